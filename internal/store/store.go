// Package store persists conversation turns, voice profiles and the persona
// index log. Every backend keeps turns in append order per room.
package store

import (
	"context"
	"errors"
	"fmt"

	"parley/agent/internal/types"
)

var (
	ErrNotFound    = errors.New("store: not found")
	ErrInvalidRole = errors.New("store: invalid role")
	ErrEmptyRoom   = errors.New("store: empty room")
)

type ConversationStore interface {
	// Append durably records one turn before returning.
	Append(ctx context.Context, room string, role types.Role, content string) error
	// LoadHistory returns the most recent limit turns, oldest first.
	LoadHistory(ctx context.Context, room string, limit int) ([]types.ConversationTurn, error)
}

type VoiceStore interface {
	SetVoice(ctx context.Context, p types.VoiceProfile) error
	GetVoice(ctx context.Context, userID, provider string) (types.VoiceProfile, error)
}

type IndexLog interface {
	RecordIndex(ctx context.Context, rec types.IndexRecord) error
	LastIndex(ctx context.Context, userID string) (types.IndexRecord, error)
}

type Store interface {
	ConversationStore
	VoiceStore
	IndexLog
	Ping(ctx context.Context) error
	Close() error
}

func validate(room string, role types.Role) error {
	if room == "" {
		return ErrEmptyRoom
	}
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return nil
}

// tail keeps the last limit turns; limit <= 0 keeps everything.
func tail(turns []types.ConversationTurn, limit int) []types.ConversationTurn {
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]types.ConversationTurn, len(turns))
	copy(out, turns)
	return out
}
