// Package sse streams match events to connected clients as server-sent events.
package sse

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/fairway/internal/model"
)

// Hub fans messages out to the clients watching one match
type Hub struct {
	matchID model.MatchID
	clients map[*Client]bool
	mu      sync.RWMutex
	logger  *slog.Logger

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a new Hub for a match. Call Run to start it.
func NewHub(matchID model.MatchID, logger *slog.Logger) *Hub {
	return &Hub{
		matchID:    matchID,
		clients:    make(map[*Client]bool),
		logger:     logger.With(slog.String("match_id", string(matchID))),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until Close
func (h *Hub) Run() {
	h.logger.Debug("sse hub started")
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("sse client registered",
				slog.String("user_id", string(client.userID)),
				slog.Int("total_clients", count))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				count := len(h.clients)
				h.mu.Unlock()
				h.logger.Info("sse client unregistered",
					slog.String("user_id", string(client.userID)),
					slog.Duration("connection_duration", time.Since(client.connectedAt)),
					slog.Int("total_clients", count))
			} else {
				h.mu.Unlock()
			}

		case message := <-h.broadcast:
			h.mu.RLock()
			dropped := 0
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					dropped++
				}
			}
			h.mu.RUnlock()
			if dropped > 0 {
				h.logger.Warn("sse message dropped - client buffer full", slog.Int("dropped", dropped))
			}

		case <-h.done:
			h.mu.Lock()
			count := len(h.clients)
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Debug("sse hub stopped", slog.Int("disconnected_clients", count))
			return
		}
	}
}

// Register adds a client to the hub. It is a no-op once the hub is closed.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues a raw message for every client
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("sse broadcast dropped - hub buffer full")
	}
}

// BroadcastEvent queues a named event
func (h *Hub) BroadcastEvent(eventName, data string) {
	h.Broadcast(formatMessage(eventName, data))
}

// Close disconnects every client and stops the hub
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// formatMessage renders one SSE frame. Every data line gets its own
// "data: " prefix.
func formatMessage(eventName, data string) []byte {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(eventName)
	b.WriteString("\n")
	data = strings.ReplaceAll(data, "\r\n", "\n")
	for _, line := range strings.Split(strings.TrimSuffix(data, "\n"), "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return []byte(b.String())
}

// HubManager owns one hub per watched match. A hub lives while it has
// subscribers.
type HubManager struct {
	hubs   map[model.MatchID]*managedHub
	mu     sync.Mutex
	logger *slog.Logger
}

type managedHub struct {
	hub         *Hub
	subscribers int
}

// NewHubManager creates a new HubManager
func NewHubManager(logger *slog.Logger) *HubManager {
	return &HubManager{
		hubs:   make(map[model.MatchID]*managedHub),
		logger: logger.With(slog.String("component", "sse")),
	}
}

// Acquire returns the hub for a match, starting one if needed, and counts
// the caller as a subscriber until Release
func (m *HubManager) Acquire(matchID model.MatchID) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.hubs[matchID]
	if !ok {
		entry = &managedHub{hub: NewHub(matchID, m.logger)}
		m.hubs[matchID] = entry
		go entry.hub.Run()
	}
	entry.subscribers++
	return entry.hub
}

// Release drops a subscriber, closing the hub when none remain
func (m *HubManager) Release(matchID model.MatchID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.hubs[matchID]
	if !ok {
		return
	}
	entry.subscribers--
	if entry.subscribers <= 0 {
		entry.hub.Close()
		delete(m.hubs, matchID)
	}
}

// GetHub returns the hub for a match, or nil if nobody is watching it
func (m *HubManager) GetHub(matchID model.MatchID) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.hubs[matchID]; ok {
		return entry.hub
	}
	return nil
}

// HubCount returns the number of live hubs
func (m *HubManager) HubCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hubs)
}

// CloseAll shuts every hub down
func (m *HubManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, entry := range m.hubs {
		entry.hub.Close()
		delete(m.hubs, id)
	}
}
