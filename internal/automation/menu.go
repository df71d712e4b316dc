package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"whatsapp-bot/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FormatMenu renders a menu as WhatsApp text: bold title, optional
// description, then one numbered line per option in the given order.
func FormatMenu(menu models.Menu, options []models.MenuOption) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n\n", menu.Title)
	if menu.Description != nil && *menu.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", *menu.Description)
	}
	for i, opt := range options {
		fmt.Fprintf(&b, "%d. %s\n", i+1, opt.OptionText)
	}
	return strings.TrimSpace(b.String())
}

// OrderOptions sorts menu options by order. Ties keep the position the
// option had in the list it was saved with.
func OrderOptions(db *gorm.DB) *gorm.DB {
	return db.
		Order(clause.OrderByColumn{Column: clause.Column{Name: "order"}}).
		Order("position ASC").
		Order("created_at ASC")
}

// MenuOptions loads the options of a menu in display order.
func MenuOptions(ctx context.Context, db *gorm.DB, menuID string) ([]models.MenuOption, error) {
	var options []models.MenuOption
	err := OrderOptions(db.WithContext(ctx)).
		Where("menu_id = ?", menuID).
		Find(&options).Error
	return options, err
}

// RenderMenu loads a menu and its options and formats them. It returns an
// empty string when the menu does not exist.
func (e *Engine) RenderMenu(ctx context.Context, menuID string) (string, error) {
	var menu models.Menu
	if err := e.DB.WithContext(ctx).Where("id = ?", menuID).Take(&menu).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("load menu %s: %w", menuID, err)
	}

	options, err := MenuOptions(ctx, e.DB, menuID)
	if err != nil {
		return "", fmt.Errorf("load menu options %s: %w", menuID, err)
	}
	return FormatMenu(menu, options), nil
}
