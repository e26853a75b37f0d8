package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/abbasifarasat36-dev/globaldragon/internal/logger"
	"github.com/abbasifarasat36-dev/globaldragon/internal/metrics"
)

// Hub tracks the open connections of every user and fans frames out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	closed  bool
	log     *slog.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		log:     logger.With("component", "ws_hub"),
	}
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.clients[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.UserID] = set
	}
	set[c] = struct{}{}
	metrics.WSConnections.Inc()
	h.log.Debug("client registered", "user_id", c.UserID, "connections", len(set))
	return true
}

// unregister removes c and closes its send queue. The queue is only closed
// under the write lock, so Send never writes to a closed channel.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.UserID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.UserID)
	}
	close(c.send)
	metrics.WSConnections.Dec()
	h.log.Debug("client unregistered", "user_id", c.UserID)
}

// Send queues f on every connection of userID and returns how many took it.
// A connection whose queue is full is dropped.
func (h *Hub) Send(userID string, f Frame) int {
	msg, err := json.Marshal(f)
	if err != nil {
		h.log.Error("marshal frame failed", "type", f.Type, "error", err)
		return 0
	}

	var slow []*Client
	queued := 0
	h.mu.RLock()
	for c := range h.clients[userID] {
		select {
		case c.send <- msg:
			queued++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("dropping slow client", "user_id", userID, "type", f.Type)
		h.unregister(c)
	}
	return queued
}

// sendTo queues f on one connection only.
func (h *Hub) sendTo(c *Client, f Frame) {
	msg, err := json.Marshal(f)
	if err != nil {
		return
	}
	h.mu.RLock()
	_, live := h.clients[c.UserID][c]
	if live {
		select {
		case c.send <- msg:
			live = false
		default:
		}
	}
	h.mu.RUnlock()
	if live {
		h.unregister(c)
	}
}

// Disconnect closes every connection of userID after its queued frames
// are written.
func (h *Hub) Disconnect(userID string) {
	h.mu.RLock()
	list := make([]*Client, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		list = append(list, c)
	}
	h.mu.RUnlock()
	for _, c := range list {
		h.unregister(c)
	}
}

// DisconnectSession closes the connections opened with one login session.
func (h *Hub) DisconnectSession(userID, sid string) {
	h.mu.RLock()
	var list []*Client
	for c := range h.clients[userID] {
		if c.SessionID == sid {
			list = append(list, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range list {
		h.unregister(c)
	}
}

// Connected returns the number of open connections of userID.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Close drops every connection and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*Client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.Unlock()
	for _, c := range all {
		h.unregister(c)
	}
}
