// Package realtime pushes cache invalidation events to connected dashboards over websockets.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// EventInvalidate tells clients to refetch the listed query keys.
const EventInvalidate = "invalidate"

// Event is the JSON frame written to clients.
type Event struct {
	Type string   `json:"type"`
	Keys []string `json:"keys,omitempty"`
}

type envelope struct {
	schoolID string
	payload  []byte
}

// Hub tracks connected clients grouped by school and fans events out to them.
type Hub struct {
	schools    map[string]map[*Client]struct{}
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewHub creates an idle hub. Call Run to start it.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		schools:    make(map[string]map[*Client]struct{}),
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With(zap.String("component", "realtime")),
	}
}

// Run processes registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case c := <-h.register:
			h.mu.Lock()
			set, ok := h.schools[c.schoolID]
			if !ok {
				set = make(map[*Client]struct{})
				h.schools[c.schoolID] = set
			}
			set[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			h.drop(c)
			h.mu.Unlock()
		case env := <-h.broadcast:
			h.mu.Lock()
			for c := range h.schools[env.schoolID] {
				select {
				case c.send <- env.payload:
				default:
					h.logger.Warn("dropping slow websocket client", zap.String("user_id", c.userID))
					h.drop(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// PublishInvalidation notifies every client of the school that keys changed.
func (h *Hub) PublishInvalidation(schoolID string, keys ...string) {
	if schoolID == "" || len(keys) == 0 {
		return
	}
	payload, err := json.Marshal(Event{Type: EventInvalidate, Keys: keys})
	if err != nil {
		h.logger.Warn("marshal invalidation event", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- envelope{schoolID: schoolID, payload: payload}:
	default:
		h.logger.Warn("realtime broadcast buffer full", zap.String("school_id", schoolID))
	}
}

// ClientCount returns the number of connected clients for a school.
func (h *Hub) ClientCount(schoolID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.schools[schoolID])
}

// TotalClients returns the number of connected clients across schools.
func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.schools {
		n += len(set)
	}
	return n
}

func (h *Hub) drop(c *Client) {
	set, ok := h.schools[c.schoolID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.schools, c.schoolID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.schools {
		for c := range set {
			h.drop(c)
		}
	}
}
