package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"whatsapp-bot/internal/config"
	"whatsapp-bot/internal/metrics"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Instance identifies one Z-API instance; credentials come from the bot row.
type Instance struct {
	ID    string
	Token string
}

type SendTextRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type SendResult struct {
	ZaapID    string `json:"zaapId,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	ID        string `json:"id,omitempty"`
}

// ExternalID returns the gateway message id, preferring messageId over id.
func (r *SendResult) ExternalID() string {
	if r == nil {
		return ""
	}
	if r.MessageID != "" {
		return r.MessageID
	}
	return r.ID
}

// APIError is a non-2xx answer from Z-API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("z-api error: %d - %s", e.StatusCode, e.Body)
}

type Client struct {
	baseURL     string
	clientToken string
	http        *http.Client
	limiter     *rate.Limiter

	breakerFailures uint32
	breakerTimeout  time.Duration

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:         strings.TrimRight(cfg.ZAPIBaseURL, "/"),
		clientToken:     cfg.ZAPIClientToken,
		http:            &http.Client{Timeout: cfg.ZAPITimeout},
		limiter:         rate.NewLimiter(rate.Limit(cfg.ZAPIRatePerSec), cfg.ZAPIBurst),
		breakerFailures: cfg.ZAPIBreakerFailures,
		breakerTimeout:  cfg.ZAPIBreakerTimeout,
		breakers:        make(map[string]*gobreaker.CircuitBreaker),
	}
}

// breaker returns the circuit breaker of one instance. Each tenant's
// instance trips on its own failures only.
func (c *Client) breaker(instanceID string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[instanceID]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "zapi:" + instanceID,
		MaxRequests: 1,
		Timeout:     c.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.breakerFailures
		},
		// Rejections caused by the request itself do not mean the gateway is down.
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < 500
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	c.breakers[instanceID] = cb
	return cb
}

func (c *Client) sendRequest(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.clientToken != "" {
		req.Header.Set("Client-Token", c.clientToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 300 {
		return respBody, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

func (c *Client) instanceURL(inst Instance, action string) string {
	return fmt.Sprintf("%s/instances/%s/token/%s/%s",
		c.baseURL, url.PathEscape(inst.ID), url.PathEscape(inst.Token), action)
}

// SendText sends a plain text message to phone through the given instance.
func (c *Client) SendText(ctx context.Context, inst Instance, phone, text string) (*SendResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.ZAPISend.WithLabelValues("rate_limited").Inc()
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	start := time.Now()
	raw, err := c.breaker(inst.ID).Execute(func() (interface{}, error) {
		return c.sendRequest(ctx, http.MethodPost, c.instanceURL(inst, "send-text"), SendTextRequest{
			Phone:   phone,
			Message: text,
		})
	})
	metrics.ZAPILatency.Observe(time.Since(start).Seconds())

	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			metrics.ZAPISend.WithLabelValues("breaker_open").Inc()
		default:
			metrics.ZAPISend.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	var result SendResult
	if err := json.Unmarshal(raw.([]byte), &result); err != nil {
		metrics.ZAPISend.WithLabelValues("bad_response").Inc()
		return nil, fmt.Errorf("decode send-text response: %w", err)
	}
	metrics.ZAPISend.WithLabelValues("ok").Inc()
	return &result, nil
}

// Status reports whether the instance is connected to WhatsApp.
type Status struct {
	Connected           bool   `json:"connected"`
	SmartphoneConnected bool   `json:"smartphoneConnected"`
	Error               string `json:"error,omitempty"`
}

func (c *Client) InstanceStatus(ctx context.Context, inst Instance) (*Status, error) {
	raw, err := c.sendRequest(ctx, http.MethodGet, c.instanceURL(inst, "status"), nil)
	if err != nil {
		return nil, err
	}
	var st Status
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	return &st, nil
}
