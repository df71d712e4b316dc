package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"whatsapp-bot/internal/automation"
	"whatsapp-bot/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type MenuHandler struct {
	Access *Access
}

func NewMenuHandler(access *Access) *MenuHandler {
	return &MenuHandler{Access: access}
}

func menuBotID(m *models.Menu) string { return m.BotID }

type menuOptionInput struct {
	OptionText  string  `json:"option_text"`
	OptionValue *string `json:"option_value"`
	ResponseID  *string `json:"response_id"`
	Order       *int    `json:"order"`
}

// errInvalidOption marks option input the caller has to fix.
var errInvalidOption = errors.New("invalid menu option")

// buildOptions validates option input against the menu's bot. Options
// without an explicit order keep their position in the list.
func buildOptions(db *gorm.DB, botID string, input []menuOptionInput) ([]models.MenuOption, error) {
	options := make([]models.MenuOption, 0, len(input))
	for i, in := range input {
		if strings.TrimSpace(in.OptionText) == "" {
			return nil, fmt.Errorf("%w: option %d: option_text is required", errInvalidOption, i+1)
		}
		opt := models.MenuOption{
			OptionText:  in.OptionText,
			OptionValue: nilIfEmpty(in.OptionValue),
			ResponseID:  nilIfEmpty(in.ResponseID),
			Order:       i,
			Position:    i,
		}
		if in.Order != nil {
			opt.Order = *in.Order
		}
		if opt.ResponseID != nil {
			var count int64
			if err := db.Model(&models.Response{}).Where("id = ? AND bot_id = ?", *opt.ResponseID, botID).Count(&count).Error; err != nil {
				return nil, fmt.Errorf("check option response: %w", err)
			}
			if count == 0 {
				return nil, fmt.Errorf("%w: option %d: response not found", errInvalidOption, i+1)
			}
		}
		options = append(options, opt)
	}
	return options, nil
}

// optionsError answers a buildOptions failure.
func optionsError(c *gin.Context, err error) {
	if errors.Is(err, errInvalidOption) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	internalError(c, err)
}

// GetMenus lists a bot's menus with their options.
func (h *MenuHandler) GetMenus(c *gin.Context) {
	bot, err := h.Access.bot(c, c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}

	menus := []models.Menu{}
	err = h.Access.DB.WithContext(c.Request.Context()).
		Preload("Options", automation.OrderOptions).
		Where("bot_id = ?", bot.ID).
		Order("created_at ASC").
		Find(&menus).Error
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, menus)
}

// CreateMenu stores a menu and its options in one transaction.
func (h *MenuHandler) CreateMenu(c *gin.Context) {
	var req struct {
		BotID       string            `json:"bot_id" binding:"required,uuid"`
		Title       string            `json:"title" binding:"required"`
		Description *string           `json:"description"`
		Options     []menuOptionInput `json:"options"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bot, err := h.Access.bot(c, req.BotID)
	if err != nil {
		abortWith(c, err)
		return
	}

	db := h.Access.DB.WithContext(c.Request.Context())
	options, err := buildOptions(db, bot.ID, req.Options)
	if err != nil {
		optionsError(c, err)
		return
	}

	menu := models.Menu{
		BotID:       bot.ID,
		Title:       req.Title,
		Description: nilIfEmpty(req.Description),
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Options").Create(&menu).Error; err != nil {
			return err
		}
		for i := range options {
			options[i].MenuID = menu.ID
			if err := tx.Create(&options[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		internalError(c, err)
		return
	}

	menu.Options = options
	c.JSON(http.StatusCreated, menu)
}

// UpdateMenu changes title and description when present. When options are
// given they replace the current set.
func (h *MenuHandler) UpdateMenu(c *gin.Context) {
	menu, err := owned(h.Access, c, c.Param("id"), menuBotID)
	if err != nil {
		abortWith(c, err)
		return
	}

	var req struct {
		Title       *string            `json:"title" binding:"omitempty,min=1"`
		Description *string            `json:"description"`
		Options     *[]menuOptionInput `json:"options"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	db := h.Access.DB.WithContext(c.Request.Context())
	var options []models.MenuOption
	if req.Options != nil {
		options, err = buildOptions(db, menu.BotID, *req.Options)
		if err != nil {
			optionsError(c, err)
			return
		}
	}

	if req.Title != nil {
		menu.Title = *req.Title
	}
	if req.Description != nil {
		menu.Description = nilIfEmpty(req.Description)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(menu).Select("title", "description").Updates(menu).Error; err != nil {
			return err
		}
		if req.Options == nil {
			return nil
		}
		if err := tx.Where("menu_id = ?", menu.ID).Delete(&models.MenuOption{}).Error; err != nil {
			return err
		}
		for i := range options {
			options[i].MenuID = menu.ID
			if err := tx.Create(&options[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		internalError(c, err)
		return
	}

	if err := db.Preload("Options", automation.OrderOptions).Where("id = ?", menu.ID).Take(menu).Error; err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, menu)
}

// DeleteMenu removes a menu and its options unless a response still points at it.
func (h *MenuHandler) DeleteMenu(c *gin.Context) {
	menu, err := owned(h.Access, c, c.Param("id"), menuBotID)
	if err != nil {
		abortWith(c, err)
		return
	}

	db := h.Access.DB.WithContext(c.Request.Context())
	var used int64
	if err := db.Model(&models.Response{}).Where("menu_id = ?", menu.ID).Count(&used).Error; err != nil {
		internalError(c, err)
		return
	}
	if used > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Menu is used by responses"})
		return
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("menu_id = ?", menu.ID).Delete(&models.MenuOption{}).Error; err != nil {
			return err
		}
		return tx.Delete(menu).Error
	})
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Menu deleted successfully"})
}

// PreviewMenu returns the text a contact would receive for this menu.
func (h *MenuHandler) PreviewMenu(c *gin.Context) {
	menu, err := owned(h.Access, c, c.Param("id"), menuBotID)
	if err != nil {
		abortWith(c, err)
		return
	}

	options, err := automation.MenuOptions(c.Request.Context(), h.Access.DB, menu.ID)
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"text": automation.FormatMenu(*menu, options)})
}
