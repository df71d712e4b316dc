package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	BotStatusActive   = "active"
	BotStatusInactive = "inactive"

	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"

	ResponseTypeText = "text"
	ResponseTypeMenu = "menu"
	ResponseTypeFlow = "flow"

	MatchExact      = "exact"
	MatchContains   = "contains"
	MatchStartsWith = "starts_with"
	MatchRegex      = "regex"
)

func assignID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// Enterprise owns profiles and projects.
type Enterprise struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Enterprise) TableName() string {
	return "enterprises"
}

func (e *Enterprise) BeforeCreate(*gorm.DB) error {
	assignID(&e.ID)
	return nil
}

// Profile mirrors an account of the external auth provider; ID is the token subject.
type Profile struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email        string    `gorm:"not null" json:"email"`
	Name         string    `gorm:"not null" json:"name"`
	Role         string    `gorm:"not null;default:user" json:"role"`
	Status       string    `gorm:"not null;default:active" json:"status"`
	EnterpriseID string    `gorm:"type:varchar(36);not null;index" json:"enterprise_id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

func (p *Profile) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

type Project struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name         string    `gorm:"not null" json:"name"`
	Slug         string    `gorm:"not null" json:"slug"`
	Status       string    `gorm:"not null;default:active" json:"status"`
	EnterpriseID string    `gorm:"type:varchar(36);not null;index" json:"enterprise_id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Project) TableName() string {
	return "projects"
}

func (p *Project) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// Bot is one Z-API instance bound to a project.
type Bot struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ProjectID  string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"project_id"`
	InstanceID string    `gorm:"not null;index" json:"instance_id"`
	APIToken   string    `gorm:"not null" json:"api_token"`
	WebhookURL *string   `json:"webhook_url"`
	Status     string    `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Bot) TableName() string {
	return "whatsapp_bots"
}

func (b *Bot) BeforeCreate(*gorm.DB) error {
	assignID(&b.ID)
	return nil
}

func (b *Bot) IsActive() bool {
	return b.Status == BotStatusActive
}

// Contact is a conversation party, unique per (bot, phone).
type Contact struct {
	ID                string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	BotID             string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_contacts_bot_phone" json:"bot_id"`
	Phone             string     `gorm:"not null;uniqueIndex:idx_contacts_bot_phone" json:"phone"`
	Name              *string    `json:"name"`
	LastInteractionAt *time.Time `json:"last_interaction_at"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Contact) TableName() string {
	return "whatsapp_contacts"
}

func (c *Contact) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// Message is an append-only log entry. ExternalID is unique per bot and
// direction, which makes replayed webhook deliveries detectable.
type Message struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	BotID      string    `gorm:"type:varchar(36);not null;index;uniqueIndex:idx_messages_bot_direction_external" json:"bot_id"`
	ContactID  *string   `gorm:"type:varchar(36);index" json:"contact_id"`
	Phone      string    `gorm:"not null" json:"phone"`
	ExternalID *string   `gorm:"column:message_id;uniqueIndex:idx_messages_bot_direction_external" json:"message_id"`
	Direction  string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_messages_bot_direction_external" json:"direction"`
	Text       string    `gorm:"column:message_text;type:text;not null" json:"message_text"`
	Type       string    `gorm:"column:message_type;type:varchar(20);not null" json:"message_type"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Message) TableName() string {
	return "whatsapp_messages"
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

// Response is a reusable reply template.
type Response struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	BotID     string    `gorm:"type:varchar(36);not null;index" json:"bot_id"`
	Text      *string   `gorm:"column:response_text;type:text" json:"response_text"`
	Type      string    `gorm:"column:response_type;type:varchar(20);not null" json:"response_type"`
	MenuID    *string   `gorm:"type:varchar(36)" json:"menu_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Response) TableName() string {
	return "whatsapp_responses"
}

func (r *Response) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}

// Trigger is a matching rule; lower Priority is evaluated first.
type Trigger struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	BotID       string    `gorm:"type:varchar(36);not null;index" json:"bot_id"`
	TriggerText string    `gorm:"type:text;not null" json:"trigger_text"`
	MatchType   string    `gorm:"type:varchar(20);not null" json:"match_type"`
	Priority    int       `gorm:"not null" json:"priority"`
	ResponseID  string    `gorm:"type:varchar(36);not null" json:"response_id"`
	IsActive    bool      `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Trigger) TableName() string {
	return "whatsapp_triggers"
}

func (t *Trigger) BeforeCreate(*gorm.DB) error {
	assignID(&t.ID)
	return nil
}

type Menu struct {
	ID          string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	BotID       string       `gorm:"type:varchar(36);not null;index" json:"bot_id"`
	Title       string       `gorm:"not null" json:"title"`
	Description *string      `gorm:"type:text" json:"description"`
	Options     []MenuOption `gorm:"foreignKey:MenuID;constraint:OnDelete:CASCADE;" json:"options"`
	CreatedAt   time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Menu) TableName() string {
	return "whatsapp_menus"
}

func (m *Menu) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

type MenuOption struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	MenuID      string    `gorm:"type:varchar(36);not null;index" json:"menu_id"`
	OptionText  string    `gorm:"not null" json:"option_text"`
	OptionValue *string   `json:"option_value"`
	ResponseID  *string   `gorm:"type:varchar(36)" json:"response_id"`
	Order       int       `gorm:"column:order;not null" json:"order"`
	Position    int       `gorm:"not null;default:0" json:"position"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (MenuOption) TableName() string {
	return "whatsapp_menu_options"
}

func (o *MenuOption) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&Enterprise{},
		&Profile{},
		&Project{},
		&Bot{},
		&Contact{},
		&Message{},
		&Menu{},
		&MenuOption{},
		&Response{},
		&Trigger{},
	}
}
