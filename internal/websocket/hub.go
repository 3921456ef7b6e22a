// Package websocket pushes the live daily leaderboard to connected clients.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"star-clicker/internal/model"
)

// Message types
const (
	MessageTypeLeaderboard = "leaderboard"
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
	MessageTypeError       = "error"
)

// Message is the envelope of every server push.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// LeaderboardUpdate is the payload of a leaderboard push.
type LeaderboardUpdate struct {
	Date    string              `json:"date"`
	Entries []model.RankedEntry `json:"entries"`
}

// Hub maintains the set of active clients and broadcasts to all of them.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a new Hub
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan []byte, 64),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	log.Info().Msg("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			log.Info().Msg("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Debug().Str("client_id", client.id).Msg("WebSocket client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			log.Debug().Str("client_id", client.id).Msg("WebSocket client unregistered")

		case data := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					log.Warn().Str("client_id", client.id).Msg("WebSocket client buffer full, skipping")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Stop stops the hub and disconnects every client.
func (h *Hub) Stop() {
	h.cancel()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}

// BroadcastLeaderboard sends the ranking of date to every client.
func (h *Hub) BroadcastLeaderboard(date time.Time, entries []model.RankedEntry) {
	data, err := encodeLeaderboard(date, entries)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode leaderboard update")
		return
	}

	select {
	case h.broadcast <- data:
	default:
		log.Warn().Msg("WebSocket broadcast channel full, dropping update")
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Connections returns the number of connected clients.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func encodeLeaderboard(date time.Time, entries []model.RankedEntry) ([]byte, error) {
	if entries == nil {
		entries = []model.RankedEntry{}
	}
	return json.Marshal(Message{
		Type: MessageTypeLeaderboard,
		Data: LeaderboardUpdate{
			Date:    model.Day(date).Format(model.DateLayout),
			Entries: entries,
		},
		Timestamp: time.Now().UTC(),
	})
}
