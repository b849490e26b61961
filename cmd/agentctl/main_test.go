package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/agent/internal/config"
	"parley/agent/internal/store"
	"parley/agent/internal/types"
)

type constEmbedder struct{}

func (constEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func testApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	var cfg config.Config
	cfg.Store.Backend = "badger"
	cfg.Store.BadgerDir = filepath.Join(dir, "db")
	cfg.RAG.Backend = "flat"
	cfg.RAG.PersonaDir = filepath.Join(dir, "persona")
	cfg.RAG.IndexDir = filepath.Join(dir, "indexes")
	cfg.Agent.VoiceProvider = "elevenlabs"
	cfg.Agent.DefaultUser = "default"
	cfg.Agent.HistoryReloadTurns = 12
	out := &bytes.Buffer{}
	return &app{cfg: cfg, emb: constEmbedder{}, out: out}, out
}

func execute(t *testing.T, a *app, args ...string) error {
	t.Helper()
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetErr(&bytes.Buffer{})
	return root.ExecuteContext(context.Background())
}

func TestIndexBuildRecordsIndex(t *testing.T) {
	a, out := testApp(t)
	persona := filepath.Join(a.cfg.RAG.PersonaDir, "joyce")
	require.NoError(t, os.MkdirAll(persona, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(persona, "bio.txt"), []byte("Joyce grew up by the sea and loves sailing."), 0o644))

	require.NoError(t, execute(t, a, "index", "build", "--user", "joyce"))
	assert.Contains(t, out.String(), "for joyce (flat")

	st, err := store.Open(context.Background(), a.cfg)
	require.NoError(t, err)
	defer st.Close()
	rec, err := st.LastIndex(context.Background(), "joyce")
	require.NoError(t, err)
	assert.Equal(t, "flat", rec.Backend)
	assert.Positive(t, rec.Chunks)
}

func TestVoiceSetThenGet(t *testing.T) {
	a, out := testApp(t)

	require.Error(t, execute(t, a, "voice", "set", "--user", "u1"))
	require.Error(t, execute(t, a, "voice", "set", "--user", "u1", "--voice-id", "v", "--status", "done"))

	require.NoError(t, execute(t, a, "voice", "set", "--user", "u1", "--voice-id", "clone-7"))
	out.Reset()
	require.NoError(t, execute(t, a, "voice", "get", "--user", "u1"))
	assert.Equal(t, "u1/elevenlabs -> clone-7 (ready)\n", out.String())

	out.Reset()
	require.NoError(t, execute(t, a, "voice", "get", "--user", "nobody"))
	assert.Contains(t, out.String(), "no elevenlabs voice for nobody")
}

func TestHistoryPrintsTurns(t *testing.T) {
	a, out := testApp(t)
	ctx := context.Background()
	st, err := store.Open(ctx, a.cfg)
	require.NoError(t, err)
	require.NoError(t, st.Append(ctx, "r1", types.RoleAssistant, "hello"))
	require.NoError(t, st.Append(ctx, "r1", types.RoleUser, "hi there"))
	require.NoError(t, st.Close())

	require.Error(t, execute(t, a, "history"))
	require.NoError(t, execute(t, a, "history", "--room", "r1", "--limit", "1"))
	assert.Contains(t, out.String(), "user: hi there")
	assert.NotContains(t, out.String(), "hello")
}
