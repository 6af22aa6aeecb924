package realtime

import (
	"sync"
	"sync/atomic"

	"puzzle-bar/utils"

	"github.com/google/uuid"
)

// Client is one stream subscriber.
type Client struct {
	ID     string
	UserID string
	events chan ChangeEvent
}

func (c *Client) Events() <-chan ChangeEvent {
	return c.events
}

// Hub fans change events out to subscribers. Publish never blocks: a
// subscriber whose buffer is full misses the event and is expected to
// resync on reconnect.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	buffer  int
	dropped atomic.Int64
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 1
	}
	return &Hub{clients: make(map[string]*Client), buffer: buffer}
}

func (h *Hub) Subscribe(userID string) *Client {
	c := &Client{ID: uuid.NewString(), UserID: userID, events: make(chan ChangeEvent, h.buffer)}

	h.mu.Lock()
	h.clients[c.ID] = c
	n := len(h.clients)
	h.mu.Unlock()

	utils.LogDebug("[HUB] client %s (user %s) subscribed, %d connected", c.ID, userID, n)
	return c
}

// Unsubscribe removes c and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; ok {
		delete(h.clients, c.ID)
		close(c.events)
	}
	n := len(h.clients)
	h.mu.Unlock()

	utils.LogDebug("[HUB] client %s unsubscribed, %d connected", c.ID, n)
}

func (h *Hub) Publish(ev ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		select {
		case c.events <- ev:
		default:
			h.dropped.Add(1)
			utils.LogWarn("[HUB] client %s buffer full, dropped %s", c.ID, ev.Kind())
		}
	}
}

// Count is the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped is the total number of events discarded for slow subscribers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
