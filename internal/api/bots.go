package api

import (
	"context"
	"errors"
	"net/http"

	"whatsapp-bot/internal/models"
	"whatsapp-bot/internal/whatsapp"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// StatusChecker asks the gateway whether an instance is connected.
type StatusChecker interface {
	InstanceStatus(ctx context.Context, inst whatsapp.Instance) (*whatsapp.Status, error)
}

type BotHandler struct {
	Access *Access
	Status StatusChecker
}

func NewBotHandler(access *Access, status StatusChecker) *BotHandler {
	return &BotHandler{Access: access, Status: status}
}

// GetProjectBot returns the bot configured for a project.
func (h *BotHandler) GetProjectBot(c *gin.Context) {
	project, err := h.Access.project(c, c.Param("projectId"))
	if err != nil {
		abortWith(c, err)
		return
	}

	var bot models.Bot
	if err := h.Access.DB.WithContext(c.Request.Context()).Where("project_id = ?", project.ID).Take(&bot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bot not found"})
			return
		}
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, bot)
}

// CreateBot registers a Z-API instance for a project. A project has at most one bot.
func (h *BotHandler) CreateBot(c *gin.Context) {
	var req struct {
		ProjectID  string  `json:"project_id" binding:"required,uuid"`
		InstanceID string  `json:"instance_id" binding:"required"`
		APIToken   string  `json:"api_token" binding:"required"`
		WebhookURL *string `json:"webhook_url" binding:"omitempty,url|len=0"`
		Status     string  `json:"status" binding:"omitempty,oneof=active inactive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := h.Access.project(c, req.ProjectID)
	if err != nil {
		abortWith(c, err)
		return
	}

	bot := models.Bot{
		ProjectID:  project.ID,
		InstanceID: req.InstanceID,
		APIToken:   req.APIToken,
		WebhookURL: req.WebhookURL,
		Status:     req.Status,
	}
	if bot.Status == "" {
		bot.Status = models.BotStatusInactive
	}
	if bot.WebhookURL != nil && *bot.WebhookURL == "" {
		bot.WebhookURL = nil
	}

	if err := h.Access.DB.WithContext(c.Request.Context()).Create(&bot).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "Project already has a bot"})
			return
		}
		internalError(c, err)
		return
	}

	log.Info().Str("bot_id", bot.ID).Str("project_id", project.ID).Msg("bot created")
	c.JSON(http.StatusCreated, bot)
}

// UpdateBot changes only the fields present in the body. An empty
// webhook_url clears it.
func (h *BotHandler) UpdateBot(c *gin.Context) {
	bot, err := h.Access.bot(c, c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}

	var req struct {
		InstanceID *string `json:"instance_id" binding:"omitempty,min=1"`
		APIToken   *string `json:"api_token" binding:"omitempty,min=1"`
		WebhookURL *string `json:"webhook_url" binding:"omitempty,url|len=0"`
		Status     *string `json:"status" binding:"omitempty,oneof=active inactive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updateData := map[string]interface{}{}
	if req.InstanceID != nil {
		updateData["instance_id"] = *req.InstanceID
	}
	if req.APIToken != nil {
		updateData["api_token"] = *req.APIToken
	}
	if req.WebhookURL != nil {
		if *req.WebhookURL == "" {
			updateData["webhook_url"] = nil
		} else {
			updateData["webhook_url"] = *req.WebhookURL
		}
	}
	if req.Status != nil {
		updateData["status"] = *req.Status
	}

	db := h.Access.DB.WithContext(c.Request.Context())
	if len(updateData) > 0 {
		if err := db.Model(bot).Updates(updateData).Error; err != nil {
			internalError(c, err)
			return
		}
	}
	if err := db.Where("id = ?", bot.ID).Take(bot).Error; err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, bot)
}

// GetBotStatus reports the gateway connection state of the bot's instance.
func (h *BotHandler) GetBotStatus(c *gin.Context) {
	bot, err := h.Access.bot(c, c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}

	status, err := h.Status.InstanceStatus(c.Request.Context(), whatsapp.Instance{ID: bot.InstanceID, Token: bot.APIToken})
	if err != nil {
		log.Warn().Err(err).Str("bot_id", bot.ID).Msg("failed to fetch instance status")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to reach WhatsApp gateway"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bot_id":               bot.ID,
		"status":               bot.Status,
		"connected":            status.Connected,
		"smartphone_connected": status.SmartphoneConnected,
	})
}
