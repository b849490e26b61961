package store

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/agent/internal/types"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	out := map[string]Store{"memory": NewMemory()}

	b, err := OpenBadger(BadgerOptions{InMemory: true})
	require.NoError(t, err)
	out["badger"] = b

	mr := miniredis.RunT(t)
	out["redis"] = NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")

	if dsn := os.Getenv("PARLEY_TEST_DB_URL"); dsn != "" {
		pg, err := OpenPostgres(context.Background(), dsn)
		require.NoError(t, err)
		out["postgres"] = pg
	}
	for _, s := range out {
		s := s
		t.Cleanup(func() { s.Close() })
	}
	return out
}

// uniq keeps reruns against a shared postgres from seeing old rows.
func uniq(s string) string { return s + "-" + uuid.NewString()[:8] }

func TestAppendOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			room := uniq("room")
			for i := 0; i < 5; i++ {
				role := types.RoleUser
				if i%2 == 1 {
					role = types.RoleAssistant
				}
				require.NoError(t, s.Append(ctx, room, role, fmt.Sprintf("turn %d", i)))
			}

			all, err := s.LoadHistory(ctx, room, 0)
			require.NoError(t, err)
			require.Len(t, all, 5)
			for i, turn := range all {
				assert.Equal(t, fmt.Sprintf("turn %d", i), turn.Content)
			}
			assert.Equal(t, types.RoleAssistant, all[1].Role)

			last, err := s.LoadHistory(ctx, room, 2)
			require.NoError(t, err)
			require.Len(t, last, 2)
			assert.Equal(t, "turn 3", last[0].Content)
			assert.Equal(t, "turn 4", last[1].Content)
		})
	}
}

func TestRoomsAreIsolated(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			a := uniq("a")
			require.NoError(t, s.Append(ctx, a, types.RoleUser, "in a"))
			require.NoError(t, s.Append(ctx, a+"/b", types.RoleUser, "in a/b"))

			got, err := s.LoadHistory(ctx, a, 10)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "in a", got[0].Content)

			empty, err := s.LoadHistory(ctx, uniq("never-used"), 10)
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestAppendValidates(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, s.Append(ctx, "", types.RoleUser, "x"), ErrEmptyRoom)
			assert.ErrorIs(t, s.Append(ctx, "r", types.Role("robot"), "x"), ErrInvalidRole)
		})
	}
}

func TestVoiceProfiles(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			user := uniq("u")
			_, err := s.GetVoice(ctx, user, "elevenlabs")
			assert.ErrorIs(t, err, ErrNotFound)

			p := types.VoiceProfile{UserID: user, Provider: "elevenlabs", VoiceID: "v-1", Status: types.VoicePending}
			require.NoError(t, s.SetVoice(ctx, p))
			p.Status = types.VoiceReady
			require.NoError(t, s.SetVoice(ctx, p))

			got, err := s.GetVoice(ctx, user, "elevenlabs")
			require.NoError(t, err)
			assert.Equal(t, p, got)

			_, err = s.GetVoice(ctx, user, "other")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestIndexLog(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			user := uniq("u")
			_, err := s.LastIndex(ctx, user)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.RecordIndex(ctx, types.IndexRecord{UserID: user, Backend: "flat", Path: "p1", Chunks: 3}))
			require.NoError(t, s.RecordIndex(ctx, types.IndexRecord{UserID: user, Backend: "flat", Path: "p2", Chunks: 7}))

			rec, err := s.LastIndex(ctx, user)
			require.NoError(t, err)
			assert.Equal(t, "p2", rec.Path)
			assert.Equal(t, 7, rec.Chunks)
			assert.False(t, rec.At.IsZero())
		})
	}
}

func TestPing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, s.Ping(context.Background()))
		})
	}
}

func TestBadgerRequiresDir(t *testing.T) {
	_, err := OpenBadger(BadgerOptions{})
	assert.Error(t, err)
}
