package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"whatsapp-bot/internal/models"
	"whatsapp-bot/internal/whatsapp"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Sender delivers text through a gateway instance.
type Sender interface {
	SendText(ctx context.Context, inst whatsapp.Instance, phone, text string) (*whatsapp.SendResult, error)
}

// Notifier is told about every persisted message.
type Notifier interface {
	NotifyMessage(msg models.Message)
}

type Engine struct {
	DB       *gorm.DB
	Sender   Sender
	Notifier Notifier
}

func NewEngine(db *gorm.DB, sender Sender, notifier Notifier) *Engine {
	return &Engine{DB: db, Sender: sender, Notifier: notifier}
}

// Inbound is one received text message, already stripped of gateway framing.
type Inbound struct {
	InstanceID string
	Phone      string
	Name       string
	Text       string
	ExternalID string
	At         time.Time
}

// Outcome names how a message unit ended.
type Outcome string

const (
	OutcomeReplied         Outcome = "replied"
	OutcomeRepliedUnlogged Outcome = "replied_unlogged"
	OutcomeNoBot           Outcome = "no_bot"
	OutcomeBotInactive     Outcome = "bot_inactive"
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomeNoMatch         Outcome = "no_match"
	OutcomeNoReply         Outcome = "no_reply"
	OutcomeSendFailed      Outcome = "send_failed"
	OutcomeError           Outcome = "error"
)

// ProcessMessage runs one inbound message through the bot pipeline:
// bot lookup, contact upsert, inbound log, rule evaluation and dispatch.
// Each step commits on its own; a failure leaves earlier steps in place.
func (e *Engine) ProcessMessage(ctx context.Context, in Inbound) (Outcome, error) {
	bot, err := e.FindBot(ctx, in.InstanceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Info().Str("instance_id", in.InstanceID).Msg("no bot registered for instance")
			return OutcomeNoBot, nil
		}
		return OutcomeError, err
	}
	if !bot.IsActive() {
		log.Info().Str("bot_id", bot.ID).Msg("bot is inactive, ignoring message")
		return OutcomeBotInactive, nil
	}

	contactID, err := e.ResolveContact(ctx, bot.ID, in.Phone, in.Name, in.At)
	if err != nil {
		return OutcomeError, fmt.Errorf("resolve contact: %w", err)
	}

	incoming := models.Message{
		BotID:     bot.ID,
		ContactID: &contactID,
		Phone:     in.Phone,
		Direction: models.DirectionIncoming,
		Text:      in.Text,
		Type:      models.ResponseTypeText,
	}
	if in.ExternalID != "" {
		incoming.ExternalID = &in.ExternalID
	}
	if err := e.DB.WithContext(ctx).Create(&incoming).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			log.Info().Str("bot_id", bot.ID).Str("message_id", in.ExternalID).Msg("duplicate delivery, already processed")
			return OutcomeDuplicate, nil
		}
		return OutcomeError, fmt.Errorf("save incoming message: %w", err)
	}
	e.notify(incoming)

	response, err := e.Evaluate(ctx, bot.ID, in.Text)
	if err != nil {
		if errors.Is(err, ErrNoMatch) {
			log.Info().Str("bot_id", bot.ID).Str("text", in.Text).Msg("no trigger matched")
			return OutcomeNoMatch, nil
		}
		return OutcomeError, err
	}

	return e.Dispatch(ctx, bot, contactID, in.Phone, response), nil
}

// FindBot resolves the bot behind a gateway instance id. This lookup is the
// only tenant check on the webhook path; payloads carry no signature.
func (e *Engine) FindBot(ctx context.Context, instanceID string) (*models.Bot, error) {
	var bot models.Bot
	err := e.DB.WithContext(ctx).
		Where("instance_id = ?", instanceID).
		Order("created_at ASC").
		Take(&bot).Error
	if err != nil {
		return nil, err
	}
	return &bot, nil
}

func (e *Engine) notify(msg models.Message) {
	if e.Notifier != nil {
		e.Notifier.NotifyMessage(msg)
	}
}
