package status

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/markb/reminderd/internal/log"
)

// Send buffer size for outbound messages
const sendBufferSize = 64

// Hub manages WebSocket subscribers and remembers the latest event per
// reminder, so a client connecting late still sees current state.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*conn  // connID -> conn
	latest map[string]*Event // reminderID -> most recent event
}

// HubStats contains hub statistics.
type HubStats struct {
	Connections int `json:"connections"`
	Reminders   int `json:"reminders"`
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		conns:  make(map[string]*conn),
		latest: make(map[string]*Event),
	}
}

// Publish records the event as the reminder's latest state and fans it
// out to every connected subscriber. A slow subscriber drops events
// rather than blocking delivery.
func (h *Hub) Publish(ev Event) {
	data, err := ev.Encode()
	if err != nil {
		log.Error("status: encode event failed", "reminder_id", ev.ReminderID, "error", err.Error())
		return
	}

	h.mu.Lock()
	stored := ev
	h.latest[ev.ReminderID] = &stored
	subscribers := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		subscribers = append(subscribers, c)
	}
	h.mu.Unlock()

	for _, c := range subscribers {
		c.send(data)
	}
}

// Forget drops the remembered state for a reminder, typically after the
// reminder itself is deleted.
func (h *Hub) Forget(reminderID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.latest, reminderID)
}

// Snapshot returns the latest event per reminder, ordered by reminder id
// for stable output.
func (h *Hub) Snapshot() []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	events := make([]Event, 0, len(h.latest))
	for _, ev := range h.latest {
		events = append(events, *ev)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ReminderID < events[j].ReminderID })
	return events
}

// Stats returns current hub statistics.
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HubStats{
		Connections: len(h.conns),
		Reminders:   len(h.latest),
	}
}

func (h *Hub) register(ws *websocket.Conn) *conn {
	c := &conn{
		id:   uuid.New().String(),
		ws:   ws,
		hub:  h,
		out:  make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
	return c
}

func (h *Hub) unregister(c *conn) {
	h.mu.Lock()
	delete(h.conns, c.id)
	h.mu.Unlock()
}
