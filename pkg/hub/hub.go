// Package hub provides a thread-safe websocket broadcast hub using the
// channel-based fan-out pattern. The dashboard uses one hub per stream.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/fablab-bergamo/squid-game-doll/internal/log"
)

// Hub maintains the set of active clients and broadcasts JSON messages
// to them. Slow clients are dropped rather than allowed to stall the
// targeting loop's state updates.
type Hub struct {
	name string
	log  *slog.Logger

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex
}

// New creates a new hub. Call Run in a goroutine before broadcasting.
func New(name string) *Hub {
	return &Hub{
		name:       name,
		log:        log.Component("hub").With("stream", name),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run is the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("dashboard client connected", "total", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Buffer full: the client is too slow, cut it loose.
					close(client.send)
					delete(h.clients, client)
					h.log.Warn("dropped slow dashboard client")
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastJSON encodes v and sends it to every connected client.
// If the broadcast queue is full the update is dropped; the next state
// push supersedes it anyway.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Debug("broadcast queue full")
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
