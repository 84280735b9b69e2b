package ws

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Hub fans frames out to subscribed clients. All sends are non-blocking:
// a client whose buffer is full misses the frame, and because every
// frame is a full snapshot the next one makes it whole again. The tick
// loop never waits on a socket.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	clientsConnected.Inc()

	log.WithFields(log.Fields{
		"userID":  c.userID,
		"clients": n,
	}).Debug("Client connected")
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	clientsConnected.Dec()

	log.WithFields(log.Fields{
		"userID":  c.userID,
		"clients": n,
	}).Debug("Client disconnected")

	if dropped := c.dropped.Load(); dropped > 0 {
		log.WithFields(log.Fields{
			"userID":  c.userID,
			"dropped": dropped,
		}).Warn("Client fell behind the frame stream")
	}
}

// Broadcast delivers a frame to every client subscribed to the topic.
func (h *Hub) Broadcast(topic Topic, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if c.subscribed(topic) {
			c.trySend(frame)
		}
	}
}

// BroadcastUser delivers a frame only to the given user's connections.
func (h *Hub) BroadcastUser(topic Topic, userID int64, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if c.userID == userID && c.subscribed(topic) {
			c.trySend(frame)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
