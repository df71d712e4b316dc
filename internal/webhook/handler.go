package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"runtime/debug"

	"whatsapp-bot/internal/automation"
	"whatsapp-bot/internal/config"
	"whatsapp-bot/internal/metrics"
	"whatsapp-bot/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Processor runs one received message through the bot pipeline.
type Processor interface {
	ProcessMessage(ctx context.Context, in automation.Inbound) (automation.Outcome, error)
}

type Handler struct {
	Config    *config.Config
	Processor Processor
}

func NewHandler(cfg *config.Config, processor Processor) *Handler {
	return &Handler{
		Config:    cfg,
		Processor: processor,
	}
}

// HandleZAPI receives Z-API "on message received" deliveries. The body is a
// single callback object or an array of them. Once the body parses, the
// answer is always 200 so the gateway does not redeliver.
func (h *Handler) HandleZAPI(c *gin.Context) {
	if !isJSON(c.GetHeader("Content-Type")) {
		h.reject(c, "content type must be application/json")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read webhook body")
		h.reject(c, "failed to read body")
		return
	}

	batch, err := decodeBatch(body)
	if err != nil {
		log.Warn().Err(err).Msg("invalid webhook payload")
		h.reject(c, err.Error())
		return
	}

	// Units outlive the gateway's connection, bounded by WebhookTimeout.
	ctx := context.WithoutCancel(c.Request.Context())
	if h.Config.WebhookTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Config.WebhookTimeout)
		defer cancel()
	}
	h.processBatch(ctx, batch)

	metrics.WebhookRequests.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) reject(c *gin.Context, msg string) {
	metrics.WebhookRequests.WithLabelValues("rejected").Inc()
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}

// decodeBatch normalizes the body to a list of raw elements. Elements are
// decoded individually later so one bad element does not sink the batch.
func decodeBatch(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("invalid JSON")
	}

	switch trimmed[0] {
	case '[':
		var batch []json.RawMessage
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil, fmt.Errorf("invalid JSON array: %w", err)
		}
		return batch, nil
	case '{':
		return []json.RawMessage{json.RawMessage(trimmed)}, nil
	default:
		return nil, fmt.Errorf("payload must be an object or an array")
	}
}

// processBatch runs every element concurrently, bounded by
// WebhookConcurrency, and waits for all of them. Failures never escape a unit.
func (h *Handler) processBatch(ctx context.Context, batch []json.RawMessage) {
	if len(batch) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(h.Config.WebhookConcurrency)
	for i, raw := range batch {
		i, raw := i, raw
		g.Go(func() error {
			h.processOne(ctx, i, raw)
			return nil
		})
	}
	g.Wait()
}

func (h *Handler) processOne(ctx context.Context, index int, raw json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			metrics.WebhookMessages.WithLabelValues(string(automation.OutcomeError)).Inc()
			log.Error().
				Int("index", index).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("panic while processing webhook message")
		}
	}()

	var cb models.ReceivedCallback
	if err := json.Unmarshal(raw, &cb); err != nil {
		metrics.WebhookMessages.WithLabelValues("skipped").Inc()
		log.Debug().Int("index", index).Err(err).Msg("skipping element that is not a callback object")
		return
	}
	if reason := cb.SkipReason(); reason != "" {
		metrics.WebhookMessages.WithLabelValues("skipped").Inc()
		log.Debug().
			Int("index", index).
			Str("reason", reason).
			Str("message_id", cb.MessageID).
			Msg("skipping webhook message")
		return
	}

	outcome, err := h.Processor.ProcessMessage(ctx, automation.Inbound{
		InstanceID: cb.InstanceID,
		Phone:      cb.Phone,
		Name:       cb.ContactName(),
		Text:       cb.Body(),
		ExternalID: cb.MessageID,
		At:         cb.ReceivedAt(),
	})
	metrics.WebhookMessages.WithLabelValues(string(outcome)).Inc()
	if err != nil {
		log.Error().
			Err(err).
			Str("instance_id", cb.InstanceID).
			Str("phone", cb.Phone).
			Str("message_id", cb.MessageID).
			Msg("failed to process webhook message")
		return
	}
	log.Info().
		Str("instance_id", cb.InstanceID).
		Str("phone", cb.Phone).
		Str("message_id", cb.MessageID).
		Str("outcome", string(outcome)).
		Msg("webhook message processed")
}
