package hub

import (
	"encoding/json"
	"sync"

	"github.com/samber/lo"

	"github.com/wirechat/wirechat/pkg/log"
)

// Hub is the session registry and broadcast engine: it maps logged-in
// identifiers to live connections and fans events out to them. All
// methods are safe for concurrent use; Hub's own lock only protects its
// maps — the relay service serializes mutations across the hub and the
// message store with its own mutex.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	order   []string // identifiers in first-registration order
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Register maps userID to c. A duplicate login wins: the previous
// connection handle is returned so the caller can close it, and the
// identifier keeps its original roster position.
func (h *Hub) Register(userID string, c *Client) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev, existed := h.clients[userID]
	h.clients[userID] = c
	if !existed {
		h.order = append(h.order, userID)
	}

	l := log.L()
	l.Debug().Str(log.FieldClientID, c.ID).Str(log.FieldUserID, userID).Msg("session registered")

	if existed {
		return prev
	}
	return nil
}

// Unregister removes the userID mapping if it still points at c and
// reports whether it did. Idempotent; a disconnecting client that was
// displaced by a newer login must not evict its successor.
func (h *Hub) Unregister(userID string, c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, ok := h.clients[userID]
	if !ok || current != c {
		return false
	}
	delete(h.clients, userID)
	h.order = lo.Without(h.order, userID)

	l := log.L()
	l.Debug().Str(log.FieldClientID, c.ID).Str(log.FieldUserID, userID).Msg("session unregistered")
	return true
}

// Roster returns the registered identifiers in first-registration
// order.
func (h *Hub) Roster() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// Len reports the number of registered sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast serializes v once and delivers it to every registered
// connection whose transport is still open. Delivery is best-effort
// and non-blocking per client: closed or saturated connections are
// skipped, and a delivery failure never propagates to the caller.
func (h *Hub) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		l := log.L()
		l.Error().Err(err).Msg("broadcast marshal failed")
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(data) {
			l := log.L()
			l.Debug().Str(log.FieldClientID, c.ID).Msg("broadcast delivery skipped")
		}
	}
}
