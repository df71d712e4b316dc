package automation

import (
	"context"
	"errors"
	"fmt"

	"whatsapp-bot/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var ErrNoMatch = errors.New("no trigger matched")

// ActiveTriggers returns the bot's active triggers in evaluation order.
func ActiveTriggers(ctx context.Context, db *gorm.DB, botID string) ([]models.Trigger, error) {
	var triggers []models.Trigger
	err := db.WithContext(ctx).
		Where("bot_id = ? AND is_active = ?", botID, true).
		Order("priority ASC, created_at ASC, id ASC").
		Find(&triggers).Error
	return triggers, err
}

// Evaluate returns the response of the first active trigger that matches
// text. Lower priority wins; ties go to the older trigger. A trigger whose
// response is gone yields ErrNoMatch.
func (e *Engine) Evaluate(ctx context.Context, botID, text string) (*models.Response, error) {
	triggers, err := ActiveTriggers(ctx, e.DB, botID)
	if err != nil {
		return nil, fmt.Errorf("load triggers: %w", err)
	}

	for _, trigger := range triggers {
		if !MatchTrigger(text, trigger.TriggerText, trigger.MatchType) {
			continue
		}

		var response models.Response
		err := e.DB.WithContext(ctx).Where("id = ?", trigger.ResponseID).Take(&response).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Info().Str("trigger_id", trigger.ID).Msg("response not found for trigger")
			return nil, ErrNoMatch
		}
		if err != nil {
			return nil, fmt.Errorf("load response: %w", err)
		}
		log.Debug().Str("bot_id", botID).Str("trigger_id", trigger.ID).Int("priority", trigger.Priority).Msg("trigger matched")
		return &response, nil
	}
	return nil, ErrNoMatch
}
