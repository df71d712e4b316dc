package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"whatsapp-bot/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, hub *Hub, botID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWs(w, r, botID)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestNotifyMessageReachesOnlyThatBot(t *testing.T) {
	hub := NewHub("")
	go hub.Run()

	a := dial(t, hub, "bot-a")
	b := dial(t, hub, "bot-b")
	require.Eventually(t, func() bool {
		return hub.ClientCount("bot-a") == 1 && hub.ClientCount("bot-b") == 1
	}, time.Second, 10*time.Millisecond)

	hub.NotifyMessage(models.Message{ID: "m-1", BotID: "bot-a", Phone: "5511", Text: "oi", Direction: models.DirectionIncoming})

	a.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := a.ReadMessage()
	require.NoError(t, err)

	var event struct {
		Type string         `json:"type"`
		Data models.Message `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, "new_message", event.Type)
	assert.Equal(t, "m-1", event.Data.ID)
	assert.Equal(t, "oi", event.Data.Text)

	b.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = b.ReadMessage()
	assert.Error(t, err)
}

func TestClientUnregistersOnClose(t *testing.T) {
	hub := NewHub("")
	go hub.Run()

	conn := dial(t, hub, "bot-a")
	require.Eventually(t, func() bool { return hub.ClientCount("bot-a") == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount("bot-a") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestUpgradeRejectsForeignOrigin(t *testing.T) {
	hub := NewHub("https://app.example.com")
	go hub.Run()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWs(w, r, "bot-a")
	}))
	defer srv.Close()

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
