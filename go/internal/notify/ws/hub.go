// Package ws delivers turn notifications to websocket clients subscribed to
// a room.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/miou/go/internal/notify"
)

// ErrNoClients is returned by Send when nobody listens on the room.
var ErrNoClients = errors.New("no websocket client connected to room")

// Config holds the websocket connection settings.
type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      16,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// Hub keeps the websocket clients grouped by room and implements
// notify.Sink.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*client]bool

	upgrader websocket.Upgrader
	config   Config
}

type client struct {
	id          string
	roomID      string
	conn        *websocket.Conn
	send        chan []byte
	hub         *Hub
	connectedAt time.Time
}

func NewHub(config Config) *Hub {
	return &Hub{
		rooms: make(map[string]map[*client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
	}
}

// ServeHTTP upgrades the request and subscribes the client to ?room=.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		http.Error(w, "missing room parameter", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to upgrade websocket connection")
		return
	}

	c := &client{
		id:          uuid.New().String(),
		roomID:      roomID,
		conn:        conn,
		send:        make(chan []byte, h.config.SendBuffer),
		hub:         h,
		connectedAt: time.Now(),
	}
	h.register(c)

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.id).
		Str("room_id", roomID).
		Msg("websocket connection established")
}

// Send queues msg on every client of the room. Slow clients are dropped.
func (h *Hub) Send(ctx context.Context, msg notify.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return notify.AsDeliveryError(msg.RoomID, fmt.Errorf("marshal notification: %w", err))
	}

	// Pushes happen under the read lock so unregister cannot close a send
	// channel concurrently.
	h.mu.RLock()
	clients := h.rooms[msg.RoomID]
	if len(clients) == 0 {
		h.mu.RUnlock()
		return notify.AsDeliveryError(msg.RoomID, ErrNoClients)
	}
	delivered := 0
	var slow []*client
	for c := range clients {
		select {
		case c.send <- data:
			delivered++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Warn().
			Str("connection_id", c.id).
			Str("room_id", c.roomID).
			Msg("connection send buffer full, closing connection")
		h.unregister(c)
	}
	if delivered == 0 {
		return notify.AsDeliveryError(msg.RoomID, ErrNoClients)
	}

	log.Debug().
		Str("room_id", msg.RoomID).
		Int("connections", delivered).
		Msg("notification sent to websocket clients")
	return nil
}

// Stats returns the number of connected clients per room.
func (h *Hub) Stats() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]int, len(h.rooms))
	for room, clients := range h.rooms {
		out[room] = len(clients)
	}
	return out
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*client
	for _, clients := range h.rooms {
		for c := range clients {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.unregister(c)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[c.roomID] == nil {
		h.rooms[c.roomID] = make(map[*client]bool)
	}
	h.rooms[c.roomID][c] = true

	log.Debug().
		Str("connection_id", c.id).
		Str("room_id", c.roomID).
		Int("total_connections", len(h.rooms[c.roomID])).
		Msg("connection registered")
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	clients := h.rooms[c.roomID]
	if !clients[c] {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.rooms, c.roomID)
	}
	close(c.send)
	h.mu.Unlock()

	log.Info().
		Str("connection_id", c.id).
		Str("room_id", c.roomID).
		Dur("connected_for", time.Since(c.connectedAt)).
		Msg("connection unregistered")
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.hub.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.id).Msg("failed to write message to websocket")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("connection_id", c.id).Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump only keeps the read deadline alive; clients never send commands.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("connection_id", c.id).Msg("unexpected websocket close")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	}
}
