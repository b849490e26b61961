package store

import (
	"context"
	"sync"
	"time"

	"parley/agent/internal/types"
)

// Memory keeps everything in process. Used in tests and when no durable
// backend is configured.
type Memory struct {
	mu     sync.RWMutex
	turns  map[string][]types.ConversationTurn
	voices map[string]types.VoiceProfile
	index  map[string]types.IndexRecord
	now    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		turns:  make(map[string][]types.ConversationTurn),
		voices: make(map[string]types.VoiceProfile),
		index:  make(map[string]types.IndexRecord),
		now:    time.Now,
	}
}

func (m *Memory) Append(_ context.Context, room string, role types.Role, content string) error {
	if err := validate(room, role); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[room] = append(m.turns[room], types.ConversationTurn{Role: role, Content: content, At: m.now().UTC()})
	return nil
}

func (m *Memory) LoadHistory(_ context.Context, room string, limit int) ([]types.ConversationTurn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return tail(m.turns[room], limit), nil
}

func (m *Memory) SetVoice(_ context.Context, p types.VoiceProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voices[p.UserID+"/"+p.Provider] = p
	return nil
}

func (m *Memory) GetVoice(_ context.Context, userID, provider string) (types.VoiceProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.voices[userID+"/"+provider]
	if !ok {
		return types.VoiceProfile{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) RecordIndex(_ context.Context, rec types.IndexRecord) error {
	if rec.At.IsZero() {
		rec.At = m.now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index[rec.UserID] = rec
	return nil
}

func (m *Memory) LastIndex(_ context.Context, userID string) (types.IndexRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.index[userID]
	if !ok {
		return types.IndexRecord{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close() error               { return nil }
