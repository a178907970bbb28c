package realtime

import (
	"sync"

	"github.com/Simon2219/BetterIntelligence/internal/api/metrics"
)

// Hub tracks every admitted connection, grouped by user. A user may hold any
// number of simultaneous connections; each is independently authenticated
// and independently ordered.
type Hub struct {
	mu     sync.RWMutex
	conns  map[*Conn]struct{}
	byUser map[string]map[*Conn]struct{}
}

// NewHub returns an empty connection registry.
func NewHub() *Hub {
	return &Hub{
		conns:  make(map[*Conn]struct{}),
		byUser: make(map[string]map[*Conn]struct{}),
	}
}

func (h *Hub) register(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
	group, ok := h.byUser[conn.userID]
	if !ok {
		group = make(map[*Conn]struct{})
		h.byUser[conn.userID] = group
	}
	group[conn] = struct{}{}
	metrics.RealtimeConnectionsActive.Set(float64(len(h.conns)))
}

// unregister removes the connection and closes its outbound queue. The
// writer goroutine exits when the queue closes.
func (h *Hub) unregister(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn]; !ok {
		return
	}
	delete(h.conns, conn)
	if group, ok := h.byUser[conn.userID]; ok {
		delete(group, conn)
		if len(group) == 0 {
			delete(h.byUser, conn.userID)
		}
	}
	close(conn.send)
	metrics.RealtimeConnectionsActive.Set(float64(len(h.conns)))
}

// Broadcast queues the event on every active connection. Slow connections
// are skipped rather than allowed to stall the fan-out.
func (h *Hub) Broadcast(event string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.conns {
		conn.trySend(event, payload)
	}
}

// SendToUser queues the event on every connection held by the user.
func (h *Hub) SendToUser(userID, event string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.byUser[userID] {
		conn.trySend(event, payload)
	}
}

// ConnectionCount reports the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
