// Package events keeps a short per-room log of what the turn controller did.
package events

import (
    "sync"
    "time"

    "github.com/google/uuid"

    "parley/agent/internal/types"
)

// DefaultCap bounds each room's log. Past it the oldest events are dropped
// and a single "events_truncated" marker is kept at the head.
const DefaultCap = 200

const TypeTruncated = "events_truncated"

type Event struct {
    ID        string         `json:"id"`
    Room      string         `json:"room"`
    Type      string         `json:"type"`
    Timestamp time.Time      `json:"timestamp"`
    Payload   map[string]any `json:"payload,omitempty"`
}

type Store struct {
    mu      sync.RWMutex
    cap     int
    byRoom  map[string][]Event
    dropped map[string]int
}

func NewStore(capacity int) *Store {
    if capacity <= 1 {
        capacity = DefaultCap
    }
    return &Store{cap: capacity, byRoom: make(map[string][]Event), dropped: make(map[string]int)}
}

func (s *Store) Append(room, typ string, payload map[string]any) Event {
    evt := Event{
        ID:        uuid.NewString(),
        Room:      room,
        Type:      typ,
        Timestamp: time.Now().UTC(),
        Payload:   payload,
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    log := append(s.byRoom[room], evt)
    if len(log) > s.cap {
        // slot 0 holds the marker once truncation started
        start := 0
        if s.dropped[room] > 0 {
            start = 1
        }
        over := len(log) - s.cap + 1 - start
        s.dropped[room] += over
        marker := Event{
            ID:        uuid.NewString(),
            Room:      room,
            Type:      TypeTruncated,
            Timestamp: evt.Timestamp,
            Payload:   map[string]any{"dropped": s.dropped[room]},
        }
        kept := log[start+over:]
        next := make([]Event, 0, s.cap)
        next = append(next, marker)
        log = append(next, kept...)
    }
    s.byRoom[room] = log
    return evt
}

// Observe records a controller event under room.
func (s *Store) Observe(room string, e types.Event) {
    s.Append(room, e.Type, e.Payload)
}

// Sink binds Observe to one room.
func (s *Store) Sink(room string) func(types.Event) {
    return func(e types.Event) { s.Observe(room, e) }
}

func (s *Store) List(room string) []Event {
    s.mu.RLock()
    defer s.mu.RUnlock()
    src := s.byRoom[room]
    out := make([]Event, len(src))
    copy(out, src)
    return out
}

// Forget drops a room's log.
func (s *Store) Forget(room string) {
    s.mu.Lock()
    delete(s.byRoom, room)
    delete(s.dropped, room)
    s.mu.Unlock()
}
