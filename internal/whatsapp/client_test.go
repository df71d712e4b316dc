package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"whatsapp-bot/internal/config"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		ZAPIBaseURL:         baseURL,
		ZAPIClientToken:     "client-secret",
		ZAPITimeout:         2 * time.Second,
		ZAPIRatePerSec:      1000,
		ZAPIBurst:           100,
		ZAPIBreakerFailures: 2,
		ZAPIBreakerTimeout:  time.Minute,
	}
}

func TestSendText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/instances/inst-1/token/tok-1/send-text", r.URL.Path)
		assert.Equal(t, "client-secret", r.Header.Get("Client-Token"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req SendTextRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "5511999990000", req.Phone)
		assert.Equal(t, "hello", req.Message)

		w.Write([]byte(`{"zaapId":"z-1","messageId":"m-1","id":"m-1"}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	res, err := c.SendText(context.Background(), Instance{ID: "inst-1", Token: "tok-1"}, "5511999990000", "hello")
	require.NoError(t, err)
	assert.Equal(t, "m-1", res.ExternalID())
	assert.Equal(t, "z-1", res.ZaapID)
}

func TestSendTextAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"instance not found"}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	_, err := c.SendText(context.Background(), Instance{ID: "x", Token: "y"}, "1", "hi")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestSendTextBreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	inst := Instance{ID: "x", Token: "y"}
	for i := 0; i < 2; i++ {
		_, err := c.SendText(context.Background(), inst, "1", "hi")
		require.Error(t, err)
	}

	_, err := c.SendText(context.Background(), inst, "1", "hi")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.EqualValues(t, 2, calls.Load())
}

func TestSendTextBreakerIsPerInstance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/instances/broken/token/t/send-text" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"messageId":"ok-1"}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	broken := Instance{ID: "broken", Token: "t"}
	for i := 0; i < 3; i++ {
		_, err := c.SendText(context.Background(), broken, "1", "hi")
		require.Error(t, err)
	}
	_, err := c.SendText(context.Background(), broken, "1", "hi")
	require.ErrorIs(t, err, gobreaker.ErrOpenState)

	res, err := c.SendText(context.Background(), Instance{ID: "healthy", Token: "t"}, "1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok-1", res.ExternalID())
}

func TestSendTextClientErrorsKeepBreakerClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	inst := Instance{ID: "x", Token: "y"}
	for i := 0; i < 5; i++ {
		_, err := c.SendText(context.Background(), inst, "1", "hi")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
	}
}

func TestExternalID(t *testing.T) {
	tests := []struct {
		name string
		res  *SendResult
		want string
	}{
		{"nil", nil, ""},
		{"message id preferred", &SendResult{MessageID: "a", ID: "b"}, "a"},
		{"fallback to id", &SendResult{ID: "b"}, "b"},
		{"none", &SendResult{ZaapID: "z"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.res.ExternalID())
		})
	}
}

func TestInstanceStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/instances/inst-1/token/tok-1/status", r.URL.Path)
		w.Write([]byte(`{"connected":true,"smartphoneConnected":false}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	st, err := c.InstanceStatus(context.Background(), Instance{ID: "inst-1", Token: "tok-1"})
	require.NoError(t, err)
	assert.True(t, st.Connected)
	assert.False(t, st.SmartphoneConnected)
}
