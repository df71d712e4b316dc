package automation

import (
	"context"
	"errors"
	"time"

	"whatsapp-bot/internal/models"

	"gorm.io/gorm"
)

// ResolveContact returns the contact id for (botID, phone), creating the
// contact on first contact. An empty name never overwrites a stored one;
// last_interaction_at always takes the event time.
func (e *Engine) ResolveContact(ctx context.Context, botID, phone, name string, at time.Time) (string, error) {
	db := e.DB.WithContext(ctx)

	var contact models.Contact
	err := db.Where("bot_id = ? AND phone = ?", botID, phone).Take(&contact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		contact = models.Contact{
			BotID:             botID,
			Phone:             phone,
			LastInteractionAt: &at,
		}
		if name != "" {
			contact.Name = &name
		}
		err = db.Create(&contact).Error
		if err == nil {
			return contact.ID, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return "", err
		}
		// A concurrent delivery created it first.
		err = db.Where("bot_id = ? AND phone = ?", botID, phone).Take(&contact).Error
	}
	if err != nil {
		return "", err
	}

	updates := map[string]interface{}{"last_interaction_at": at}
	if name != "" {
		updates["name"] = name
	}
	if err := db.Model(&models.Contact{}).Where("id = ?", contact.ID).Updates(updates).Error; err != nil {
		return "", err
	}
	return contact.ID, nil
}
