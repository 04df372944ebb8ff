// Package live carries the score feed: the trainer server broadcasts an
// event whenever a flag is accepted, and the client watcher turns those
// events into ledger and leaderboard refreshes.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Message types
const (
	MessageTypeScoreUpdate = "score_update"
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
)

// Message is one feed event.
type Message struct {
	Type          string    `json:"type"`
	PlayerID      int64     `json:"player_id,omitempty"`
	Nickname      string    `json:"nickname,omitempty"`
	Points        int       `json:"points,omitempty"`
	Vulnerability string    `json:"vulnerability,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Hub maintains the set of connected feed clients and broadcasts events.
type Hub struct {
	clients map[*Conn]bool

	register   chan *Conn
	unregister chan *Conn
	broadcast  chan *Message

	mu     sync.RWMutex
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Conn]bool),
		register:   make(chan *Conn),
		unregister: make(chan *Conn),
		broadcast:  make(chan *Message, 256),
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	h.logger.Info("score feed hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("score feed hub stopping")
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()
			h.logger.Debug("feed client registered", "client_id", conn.id)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				close(conn.send)
			}
			h.mu.Unlock()
			h.logger.Debug("feed client unregistered", "client_id", conn.id)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub.
func (h *Hub) Stop() {
	h.cancel()
}

// broadcastMessage sends a message to every connected client.
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal feed message", "error", err)
		return
	}

	for conn := range h.clients {
		select {
		case conn.send <- data:
		default:
			// Client's buffer is full, skip
			h.logger.Warn("feed client buffer full, skipping", "client_id", conn.id)
		}
	}
}

// BroadcastScoreUpdate announces an accepted redemption to all clients.
func (h *Hub) BroadcastScoreUpdate(playerID int64, nickname string, points int, vulnerability string) {
	message := &Message{
		Type:          MessageTypeScoreUpdate,
		PlayerID:      playerID,
		Nickname:      nickname,
		Points:        points,
		Vulnerability: vulnerability,
		Timestamp:     time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(conn *Conn) {
	h.register <- conn
}

// Unregister removes a connection from the hub.
func (h *Hub) Unregister(conn *Conn) {
	h.unregister <- conn
}

// ConnectionCount returns the number of connected feed clients.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
