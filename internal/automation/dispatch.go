package automation

import (
	"context"
	"errors"
	"fmt"

	"whatsapp-bot/internal/models"
	"whatsapp-bot/internal/whatsapp"

	"github.com/rs/zerolog/log"
)

var (
	ErrUnsupported = errors.New("unsupported response type")
	ErrEmptyReply  = errors.New("response has no content")
	// ErrNotLogged means the gateway accepted the message but the outgoing
	// row could not be saved.
	ErrNotLogged = errors.New("message sent but not logged")
)

// RenderResponse produces the outbound text for a response.
func (e *Engine) RenderResponse(ctx context.Context, response *models.Response) (string, error) {
	switch response.Type {
	case models.ResponseTypeMenu:
		if response.MenuID == nil || *response.MenuID == "" {
			return "", ErrEmptyReply
		}
		text, err := e.RenderMenu(ctx, *response.MenuID)
		if err != nil {
			return "", err
		}
		if text == "" {
			return "", ErrEmptyReply
		}
		return text, nil
	case models.ResponseTypeText:
		if response.Text == nil || *response.Text == "" {
			return "", ErrEmptyReply
		}
		return *response.Text, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, response.Type)
	}
}

// Dispatch renders and sends a response. It never fails the caller: render
// and send problems are logged and reported through the outcome only.
func (e *Engine) Dispatch(ctx context.Context, bot *models.Bot, contactID, phone string, response *models.Response) Outcome {
	text, err := e.RenderResponse(ctx, response)
	if err != nil {
		event := log.Info()
		if !errors.Is(err, ErrUnsupported) && !errors.Is(err, ErrEmptyReply) {
			event = log.Error()
		}
		event.Err(err).Str("bot_id", bot.ID).Str("response_id", response.ID).Msg("no reply for response")
		return OutcomeNoReply
	}

	var contact *string
	if contactID != "" {
		contact = &contactID
	}
	if _, err := e.Deliver(ctx, bot, contact, phone, text, response.Type); err != nil {
		if errors.Is(err, ErrNotLogged) {
			return OutcomeRepliedUnlogged
		}
		return OutcomeSendFailed
	}
	return OutcomeReplied
}

// Deliver sends text through the bot's instance and logs the outgoing
// message. Nothing is persisted when the send fails. When only the log
// fails, the unsaved message is returned with an ErrNotLogged error.
func (e *Engine) Deliver(ctx context.Context, bot *models.Bot, contactID *string, phone, text, msgType string) (*models.Message, error) {
	result, err := e.Sender.SendText(ctx, whatsapp.Instance{ID: bot.InstanceID, Token: bot.APIToken}, phone, text)
	if err != nil {
		log.Error().Err(err).Str("bot_id", bot.ID).Str("phone", phone).Msg("failed to send reply via z-api")
		return nil, err
	}

	outgoing := models.Message{
		BotID:     bot.ID,
		ContactID: contactID,
		Phone:     phone,
		Direction: models.DirectionOutgoing,
		Text:      text,
		Type:      msgType,
	}
	if id := result.ExternalID(); id != "" {
		outgoing.ExternalID = &id
	}
	if err := e.DB.WithContext(ctx).Create(&outgoing).Error; err != nil {
		log.Error().Err(err).Str("bot_id", bot.ID).Str("phone", phone).Msg("reply sent but not logged")
		return &outgoing, fmt.Errorf("%w: %w", ErrNotLogged, err)
	}
	e.notify(outgoing)

	log.Info().Str("bot_id", bot.ID).Str("phone", phone).Str("message_id", result.ExternalID()).Msg("reply sent")
	return &outgoing, nil
}
