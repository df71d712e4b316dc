package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"whatsapp-bot/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one dashboard connection following a single bot.
type Client struct {
	hub   *Hub
	botID string
	conn  *websocket.Conn
	send  chan []byte
}

type envelope struct {
	botID   string
	payload []byte
}

// Hub fans message events out to the clients following the event's bot.
type Hub struct {
	upgrader   websocket.Upgrader
	clients    map[string]map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub builds a hub accepting upgrades from allowedOrigin; empty allows any.
func NewHub(allowedOrigin string) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || origin == "" || origin == allowedOrigin
			},
		},
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string]map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.botID] == nil {
				h.clients[client.botID] = make(map[*Client]bool)
			}
			h.clients[client.botID][client] = true
			h.mu.Unlock()
			log.Debug().Str("bot_id", client.botID).Msg("websocket client registered")
		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			log.Debug().Str("bot_id", client.botID).Msg("websocket client unregistered")
		case env := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[env.botID] {
				select {
				case client.send <- env.payload:
				default:
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) {
	set := h.clients[client.botID]
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	close(client.send)
	if len(set) == 0 {
		delete(h.clients, client.botID)
	}
}

// ClientCount reports how many connections follow botID.
func (h *Hub) ClientCount(botID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[botID])
}

type WSEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func (h *Hub) BroadcastEvent(botID, eventType string, data interface{}) {
	payload, err := json.Marshal(WSEvent{Type: eventType, Data: data})
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("failed to marshal websocket event")
		return
	}
	select {
	case h.broadcast <- envelope{botID: botID, payload: payload}:
	default:
		log.Warn().Str("bot_id", botID).Str("event", eventType).Msg("websocket broadcast queue full, dropping event")
	}
}

// NotifyMessage publishes a persisted message to the clients of its bot.
func (h *Hub) NotifyMessage(msg models.Message) {
	h.BroadcastEvent(msg.BotID, "new_message", msg)
}

// ServeWs upgrades the request and subscribes the connection to botID.
// Access control happens before this is called.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request, botID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := &Client{hub: h, botID: botID, conn: conn, send: make(chan []byte, 256)}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// Clients only send control frames.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
