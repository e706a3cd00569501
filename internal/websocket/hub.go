// Package websocket pushes dataset lifecycle events to connected
// dashboard clients. The hub owns the client set; a reload of the
// underlying cancellation dataset is broadcast so frontends can
// refetch without polling.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"canceldash/internal/infrastructure"
)

// Message types pushed to clients.
const (
	TypeConnected     = "connected"
	TypeDatasetReload = "dataset:reload"
)

// Hub maintains the set of active clients and broadcasts messages to
// them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu     sync.RWMutex
	logger *slog.Logger
}

// NewHub creates a hub with the given logger.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With(slog.String("component", "websocket.hub")),
	}
}

// Run processes register, unregister and broadcast events until the
// context is cancelled. Meant to be run in its own goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()

			h.logger.Info("client connected",
				slog.String("client_id", client.id),
				slog.Int("client_count", count))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()

			h.logger.Info("client disconnected",
				slog.String("client_id", client.id),
				slog.Int("client_count", count))

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					// Send buffer full, drop the client.
					h.mu.Lock()
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
					h.mu.Unlock()

					h.logger.Warn("client send buffer full, disconnecting",
						slog.String("client_id", client.id))
				}
			}
		}
	}
}

// BroadcastDatasetReload notifies all clients that the cancellation
// dataset changed on disk and was reloaded.
func (h *Hub) BroadcastDatasetReload(recordCount int, contentHash string) {
	h.broadcastJSON(map[string]interface{}{
		"type":         TypeDatasetReload,
		"record_count": recordCount,
		"content_hash": contentHash,
		"timestamp":    time.Now().Format(time.RFC3339),
	})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcastJSON(message map[string]interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("marshaling broadcast message",
			slog.String("error", err.Error()))
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}
