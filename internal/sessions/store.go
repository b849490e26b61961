// Package sessions is the directory of live conversation sessions, one per
// room, that the HTTP API reports on.
package sessions

import (
    "sort"
    "sync"
    "time"

    "github.com/google/uuid"
)

type Session struct {
    ID        string    `json:"id"`
    Room      string    `json:"room"`
    Identity  string    `json:"identity"`
    CreatedAt time.Time `json:"created_at"`
    State     string    `json:"state"`

    state func() string
}

type Store struct {
    mu     sync.RWMutex
    byRoom map[string]*Session
}

func NewStore() *Store {
    return &Store{byRoom: make(map[string]*Session)}
}

// Create returns a new session record. state, when set, is polled for the
// current turn state on every read.
func (s *Store) Create(room, identity string, state func() string) *Session {
    return &Session{
        ID:        uuid.NewString(),
        Room:      room,
        Identity:  identity,
        CreatedAt: time.Now().UTC(),
        state:     state,
    }
}

// Put registers sess as its room's live session and returns the one it
// replaced, if any.
func (s *Store) Put(sess *Session) (prev *Session) {
    s.mu.Lock()
    defer s.mu.Unlock()
    prev = s.byRoom[sess.Room]
    s.byRoom[sess.Room] = sess
    return prev
}

// Remove deletes the room's entry only if it is still sess.
func (s *Store) Remove(sess *Session) {
    s.mu.Lock()
    defer s.mu.Unlock()
    if cur := s.byRoom[sess.Room]; cur != nil && cur.ID == sess.ID {
        delete(s.byRoom, sess.Room)
    }
}

func (s *Store) Get(room string) (Session, bool) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    sess := s.byRoom[room]
    if sess == nil {
        return Session{}, false
    }
    return sess.snapshot(), true
}

// List returns every live session ordered by room.
func (s *Store) List() []Session {
    s.mu.RLock()
    out := make([]Session, 0, len(s.byRoom))
    for _, sess := range s.byRoom {
        out = append(out, sess.snapshot())
    }
    s.mu.RUnlock()
    sort.Slice(out, func(i, j int) bool { return out[i].Room < out[j].Room })
    return out
}

func (sess *Session) snapshot() Session {
    c := *sess
    if sess.state != nil {
        c.State = sess.state()
    }
    c.state = nil
    return c
}
