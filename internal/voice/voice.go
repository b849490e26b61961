// Package voice picks the synthesis voice for a user.
package voice

import (
	"context"
	"errors"
	"log/slog"

	"parley/agent/internal/logging"
	"parley/agent/internal/store"
	"parley/agent/internal/types"
)

type Resolver struct {
	Store    store.VoiceStore
	Provider string
	// Forced wins over everything when set.
	Forced  string
	Default string
	Log     *slog.Logger
}

func NewResolver(vs store.VoiceStore, provider, forced, def string) *Resolver {
	return &Resolver{
		Store:    vs,
		Provider: provider,
		Forced:   forced,
		Default:  def,
		Log:      logging.New("parley/agent/voice"),
	}
}

// Resolve never fails. A lookup error or a profile that is not ready
// falls through to the default voice.
func (r *Resolver) Resolve(ctx context.Context, userID string) string {
	if r.Forced != "" {
		return r.Forced
	}
	if r.Store == nil || userID == "" {
		return r.Default
	}
	p, err := r.Store.GetVoice(ctx, userID, r.Provider)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return r.Default
	case err != nil:
		if r.Log != nil {
			r.Log.Warn("voice lookup failed, using default", "user", userID, "err", err)
		}
		return r.Default
	}
	if p.Status != types.VoiceReady || p.VoiceID == "" {
		return r.Default
	}
	return p.VoiceID
}
