package room

import (
    "sync"

    ws "nhooyr.io/websocket"
)

// Registry keeps at most one participant connection per room.
type Registry struct {
    mu    sync.Mutex
    conns map[string]*ws.Conn
}

func NewRegistry() *Registry { return &Registry{conns: make(map[string]*ws.Conn)} }

// Replace sets the connection for a room and closes the previous one if present.
func (r *Registry) Replace(room string, c *ws.Conn) (prevClosed bool) {
    r.mu.Lock()
    defer r.mu.Unlock()
    if old, ok := r.conns[room]; ok && old != nil && old != c {
        _ = old.Close(ws.StatusPolicyViolation, "replaced by a newer connection")
        prevClosed = true
    }
    r.conns[room] = c
    return
}

func (r *Registry) Get(room string) *ws.Conn {
    r.mu.Lock(); defer r.mu.Unlock()
    return r.conns[room]
}

// Remove forgets c, leaving any newer connection for the room in place.
func (r *Registry) Remove(room string, c *ws.Conn) {
    r.mu.Lock(); defer r.mu.Unlock()
    if r.conns[room] == c {
        delete(r.conns, room)
    }
}

func (r *Registry) Len() int {
    r.mu.Lock(); defer r.mu.Unlock()
    return len(r.conns)
}

// CloseAll sends a going-away close to every connection. Handlers clean
// up their own entries as their read loops end.
func (r *Registry) CloseAll(reason string) int {
    r.mu.Lock()
    conns := make([]*ws.Conn, 0, len(r.conns))
    for _, c := range r.conns {
        conns = append(conns, c)
    }
    r.mu.Unlock()
    for _, c := range conns {
        _ = c.Close(ws.StatusGoingAway, reason)
    }
    return len(conns)
}
