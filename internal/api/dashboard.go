package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"whatsapp-bot/internal/automation"
	"whatsapp-bot/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 500
)

// Deliverer sends a message through a bot and records it as outgoing.
type Deliverer interface {
	Deliver(ctx context.Context, bot *models.Bot, contactID *string, phone, text, msgType string) (*models.Message, error)
}

// LiveFeed attaches a websocket connection to a bot's message events.
type LiveFeed interface {
	ServeWs(w http.ResponseWriter, r *http.Request, botID string)
}

type DashboardHandler struct {
	Access    *Access
	Deliverer Deliverer
	Feed      LiveFeed
}

func NewDashboardHandler(access *Access, deliverer Deliverer, feed LiveFeed) *DashboardHandler {
	return &DashboardHandler{Access: access, Deliverer: deliverer, Feed: feed}
}

// GetMessages returns a bot's message log, newest first, optionally for one phone.
func (h *DashboardHandler) GetMessages(c *gin.Context) {
	bot, err := h.Access.bot(c, c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}

	limit := defaultMessageLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxMessageLimit)
	}

	query := h.Access.DB.WithContext(c.Request.Context()).Where("bot_id = ?", bot.ID)
	if phone := c.Query("phone"); phone != "" {
		query = query.Where("phone = ?", phone)
	}

	messages := []models.Message{}
	if err := query.Order("created_at DESC").Limit(limit).Find(&messages).Error; err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

type SendRequest struct {
	Phone   string `json:"phone" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// SendMessage lets an operator write to a phone through the bot's instance.
func (h *DashboardHandler) SendMessage(c *gin.Context) {
	bot, err := h.Access.bot(c, c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}

	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var contactID *string
	var contact models.Contact
	err = h.Access.DB.WithContext(c.Request.Context()).
		Where("bot_id = ? AND phone = ?", bot.ID, req.Phone).
		Take(&contact).Error
	switch {
	case err == nil:
		contactID = &contact.ID
	case !errors.Is(err, gorm.ErrRecordNotFound):
		internalError(c, err)
		return
	}

	msg, err := h.Deliverer.Deliver(c.Request.Context(), bot, contactID, req.Phone, req.Message, models.ResponseTypeText)
	if errors.Is(err, automation.ErrNotLogged) {
		c.JSON(http.StatusAccepted, msg)
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send message: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, msg)
}

// GetAnalytics summarizes a bot's traffic and configuration.
func (h *DashboardHandler) GetAnalytics(c *gin.Context) {
	bot, err := h.Access.bot(c, c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}

	var stats struct {
		Contacts         int64 `json:"contacts"`
		IncomingMessages int64 `json:"incoming_messages"`
		OutgoingMessages int64 `json:"outgoing_messages"`
		Triggers         int64 `json:"triggers"`
		ActiveTriggers   int64 `json:"active_triggers"`
		Responses        int64 `json:"responses"`
		Menus            int64 `json:"menus"`
	}

	db := h.Access.DB.WithContext(c.Request.Context())
	counts := []struct {
		query *gorm.DB
		dest  *int64
	}{
		{db.Model(&models.Contact{}).Where("bot_id = ?", bot.ID), &stats.Contacts},
		{db.Model(&models.Message{}).Where("bot_id = ? AND direction = ?", bot.ID, models.DirectionIncoming), &stats.IncomingMessages},
		{db.Model(&models.Message{}).Where("bot_id = ? AND direction = ?", bot.ID, models.DirectionOutgoing), &stats.OutgoingMessages},
		{db.Model(&models.Trigger{}).Where("bot_id = ?", bot.ID), &stats.Triggers},
		{db.Model(&models.Trigger{}).Where("bot_id = ? AND is_active = ?", bot.ID, true), &stats.ActiveTriggers},
		{db.Model(&models.Response{}).Where("bot_id = ?", bot.ID), &stats.Responses},
		{db.Model(&models.Menu{}).Where("bot_id = ?", bot.ID), &stats.Menus},
	}
	for _, q := range counts {
		if err := q.query.Count(q.dest).Error; err != nil {
			internalError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, stats)
}

// Live upgrades to a websocket that receives the bot's new messages.
func (h *DashboardHandler) Live(c *gin.Context) {
	bot, err := h.Access.bot(c, c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}
	h.Feed.ServeWs(c.Writer, c.Request, bot.ID)
}
