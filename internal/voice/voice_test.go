package voice

import (
	"context"
	"errors"
	"testing"

	"parley/agent/internal/store"
	"parley/agent/internal/types"
)

type brokenStore struct{}

func (brokenStore) SetVoice(context.Context, types.VoiceProfile) error { return errors.New("down") }
func (brokenStore) GetVoice(context.Context, string, string) (types.VoiceProfile, error) {
	return types.VoiceProfile{}, errors.New("down")
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	_ = mem.SetVoice(ctx, types.VoiceProfile{UserID: "ready", Provider: "elevenlabs", VoiceID: "clone-1", Status: types.VoiceReady})
	_ = mem.SetVoice(ctx, types.VoiceProfile{UserID: "pending", Provider: "elevenlabs", VoiceID: "clone-2", Status: types.VoicePending})
	_ = mem.SetVoice(ctx, types.VoiceProfile{UserID: "other", Provider: "azure", VoiceID: "clone-3", Status: types.VoiceReady})

	cases := []struct {
		name   string
		vs     store.VoiceStore
		forced string
		user   string
		want   string
	}{
		{"no profile", mem, "", "u1", "Rachel"},
		{"ready profile", mem, "", "ready", "clone-1"},
		{"pending profile", mem, "", "pending", "Rachel"},
		{"other provider", mem, "", "other", "Rachel"},
		{"forced", mem, "forced-voice", "ready", "forced-voice"},
		{"store error", brokenStore{}, "", "ready", "Rachel"},
		{"nil store", nil, "", "ready", "Rachel"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := NewResolver(c.vs, "elevenlabs", c.forced, "Rachel")
			if got := r.Resolve(ctx, c.user); got != c.want {
				t.Fatalf("Resolve(%q) = %q, want %q", c.user, got, c.want)
			}
		})
	}
}
