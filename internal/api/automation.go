package api

import (
	"net/http"

	"whatsapp-bot/internal/automation"
	"whatsapp-bot/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AutomationHandler manages responses and the triggers that select them.
type AutomationHandler struct {
	Access *Access
}

func NewAutomationHandler(access *Access) *AutomationHandler {
	return &AutomationHandler{Access: access}
}

func (h *AutomationHandler) db(c *gin.Context) *gorm.DB {
	return h.Access.DB.WithContext(c.Request.Context())
}

func responseBotID(r *models.Response) string { return r.BotID }
func triggerBotID(t *models.Trigger) string   { return t.BotID }

// GetResponses lists a bot's responses, oldest first.
func (h *AutomationHandler) GetResponses(c *gin.Context) {
	bot, err := h.Access.bot(c, c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}

	responses := []models.Response{}
	if err := h.db(c).Where("bot_id = ?", bot.ID).Order("created_at ASC").Find(&responses).Error; err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, responses)
}

// checkResponseShape enforces that menu responses point at a menu of the
// same bot.
func (h *AutomationHandler) checkResponseShape(c *gin.Context, botID, responseType string, menuID *string) (string, bool) {
	if responseType == models.ResponseTypeMenu && (menuID == nil || *menuID == "") {
		return "menu_id is required for menu responses", false
	}
	if menuID != nil && *menuID != "" {
		var count int64
		if err := h.db(c).Model(&models.Menu{}).Where("id = ? AND bot_id = ?", *menuID, botID).Count(&count).Error; err != nil {
			internalError(c, err)
			return "", false
		}
		if count == 0 {
			return "Menu not found", false
		}
	}
	return "", true
}

// CreateResponse creates a response template for a bot.
func (h *AutomationHandler) CreateResponse(c *gin.Context) {
	var req struct {
		BotID        string  `json:"bot_id" binding:"required,uuid"`
		ResponseText *string `json:"response_text"`
		ResponseType string  `json:"response_type" binding:"omitempty,oneof=text menu flow"`
		MenuID       *string `json:"menu_id" binding:"omitempty,uuid|len=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ResponseType == "" {
		req.ResponseType = models.ResponseTypeText
	}

	bot, err := h.Access.bot(c, req.BotID)
	if err != nil {
		abortWith(c, err)
		return
	}
	if msg, ok := h.checkResponseShape(c, bot.ID, req.ResponseType, req.MenuID); !ok {
		if msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		}
		return
	}

	response := models.Response{
		BotID:  bot.ID,
		Text:   nilIfEmpty(req.ResponseText),
		Type:   req.ResponseType,
		MenuID: nilIfEmpty(req.MenuID),
	}
	if err := h.db(c).Create(&response).Error; err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// UpdateResponse changes the fields present in the body.
func (h *AutomationHandler) UpdateResponse(c *gin.Context) {
	response, err := owned(h.Access, c, c.Param("id"), responseBotID)
	if err != nil {
		abortWith(c, err)
		return
	}

	var req struct {
		ResponseText *string `json:"response_text"`
		ResponseType *string `json:"response_type" binding:"omitempty,oneof=text menu flow"`
		MenuID       *string `json:"menu_id" binding:"omitempty,uuid|len=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.ResponseText != nil {
		response.Text = nilIfEmpty(req.ResponseText)
	}
	if req.ResponseType != nil {
		response.Type = *req.ResponseType
	}
	if req.MenuID != nil {
		response.MenuID = nilIfEmpty(req.MenuID)
	}
	if msg, ok := h.checkResponseShape(c, response.BotID, response.Type, response.MenuID); !ok {
		if msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		}
		return
	}

	if err := h.db(c).Model(response).Select("response_text", "response_type", "menu_id").Updates(response).Error; err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// DeleteResponse removes a response that no trigger uses. Menu options
// pointing at it are kept without a response.
func (h *AutomationHandler) DeleteResponse(c *gin.Context) {
	response, err := owned(h.Access, c, c.Param("id"), responseBotID)
	if err != nil {
		abortWith(c, err)
		return
	}

	var used int64
	if err := h.db(c).Model(&models.Trigger{}).Where("response_id = ?", response.ID).Count(&used).Error; err != nil {
		internalError(c, err)
		return
	}
	if used > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Response is used by triggers"})
		return
	}

	err = h.db(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.MenuOption{}).Where("response_id = ?", response.ID).Update("response_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(response).Error
	})
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Response deleted successfully"})
}

// GetTriggers lists a bot's triggers in evaluation order.
func (h *AutomationHandler) GetTriggers(c *gin.Context) {
	bot, err := h.Access.bot(c, c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}

	triggers := []models.Trigger{}
	if err := h.db(c).Where("bot_id = ?", bot.ID).Order("priority ASC, created_at ASC").Find(&triggers).Error; err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, triggers)
}

func (h *AutomationHandler) responseOfBot(c *gin.Context, botID, responseID string) (bool, error) {
	var count int64
	err := h.db(c).Model(&models.Response{}).Where("id = ? AND bot_id = ?", responseID, botID).Count(&count).Error
	return count > 0, err
}

// CreateTrigger adds a rule; regex patterns are compiled before saving.
func (h *AutomationHandler) CreateTrigger(c *gin.Context) {
	var req struct {
		BotID       string `json:"bot_id" binding:"required,uuid"`
		TriggerText string `json:"trigger_text" binding:"required"`
		MatchType   string `json:"match_type"`
		Priority    int    `json:"priority"`
		ResponseID  string `json:"response_id" binding:"required,uuid"`
		IsActive    *bool  `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MatchType == "" {
		req.MatchType = models.MatchExact
	}
	if err := automation.ValidateTrigger(req.TriggerText, req.MatchType); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bot, err := h.Access.bot(c, req.BotID)
	if err != nil {
		abortWith(c, err)
		return
	}
	ok, err := h.responseOfBot(c, bot.ID, req.ResponseID)
	if err != nil {
		internalError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Response not found"})
		return
	}

	trigger := models.Trigger{
		BotID:       bot.ID,
		TriggerText: req.TriggerText,
		MatchType:   req.MatchType,
		Priority:    req.Priority,
		ResponseID:  req.ResponseID,
		IsActive:    req.IsActive == nil || *req.IsActive,
	}
	if err := h.db(c).Create(&trigger).Error; err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusCreated, trigger)
}

// UpdateTrigger changes the fields present in the body.
func (h *AutomationHandler) UpdateTrigger(c *gin.Context) {
	trigger, err := owned(h.Access, c, c.Param("id"), triggerBotID)
	if err != nil {
		abortWith(c, err)
		return
	}

	var req struct {
		TriggerText *string `json:"trigger_text"`
		MatchType   *string `json:"match_type"`
		Priority    *int    `json:"priority"`
		ResponseID  *string `json:"response_id" binding:"omitempty,uuid"`
		IsActive    *bool   `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.TriggerText != nil {
		trigger.TriggerText = *req.TriggerText
	}
	if req.MatchType != nil {
		trigger.MatchType = *req.MatchType
	}
	if req.Priority != nil {
		trigger.Priority = *req.Priority
	}
	if req.IsActive != nil {
		trigger.IsActive = *req.IsActive
	}
	if err := automation.ValidateTrigger(trigger.TriggerText, trigger.MatchType); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ResponseID != nil {
		ok, err := h.responseOfBot(c, trigger.BotID, *req.ResponseID)
		if err != nil {
			internalError(c, err)
			return
		}
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Response not found"})
			return
		}
		trigger.ResponseID = *req.ResponseID
	}

	if err := h.db(c).Model(trigger).
		Select("trigger_text", "match_type", "priority", "response_id", "is_active").
		Updates(trigger).Error; err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, trigger)
}

// ToggleTrigger flips is_active.
func (h *AutomationHandler) ToggleTrigger(c *gin.Context) {
	trigger, err := owned(h.Access, c, c.Param("id"), triggerBotID)
	if err != nil {
		abortWith(c, err)
		return
	}

	trigger.IsActive = !trigger.IsActive
	if err := h.db(c).Model(trigger).Update("is_active", trigger.IsActive).Error; err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, trigger)
}

func (h *AutomationHandler) DeleteTrigger(c *gin.Context) {
	trigger, err := owned(h.Access, c, c.Param("id"), triggerBotID)
	if err != nil {
		abortWith(c, err)
		return
	}

	if err := h.db(c).Delete(trigger).Error; err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Trigger deleted successfully"})
}

func nilIfEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
