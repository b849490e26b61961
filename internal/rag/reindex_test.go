package rag

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/agent/internal/config"
)

func TestReindexFlat(t *testing.T) {
	root := t.TempDir()
	var cfg config.Config
	cfg.RAG.PersonaDir = filepath.Join(root, "persona")
	cfg.RAG.IndexDir = filepath.Join(root, "indexes")
	cfg.RAG.MaxK = 4

	userDir := filepath.Join(cfg.RAG.PersonaDir, "joyce")
	require.NoError(t, os.MkdirAll(userDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "a.md"), []byte("I love coffee."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "b.txt"), []byte("Music keeps me going."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "skip.pdf"), []byte("tea"), 0o644))

	rec, err := Reindex(context.Background(), cfg, emb, nil, "joyce")
	require.NoError(t, err)
	assert.Equal(t, "flat", rec.Backend)
	assert.Equal(t, 2, rec.Chunks)
	assert.Equal(t, filepath.Join(cfg.RAG.IndexDir, "joyce"), rec.Path)

	r, err := New(context.Background(), cfg, "joyce", emb, nil)
	require.NoError(t, err)
	got, err := r.Retrieve(context.Background(), "coffee please", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "I love coffee.", got[0].Text)
}

func TestReindexMissingPersonaIsEmpty(t *testing.T) {
	var cfg config.Config
	cfg.RAG.PersonaDir = filepath.Join(t.TempDir(), "nothing")
	cfg.RAG.IndexDir = t.TempDir()
	rec, err := Reindex(context.Background(), cfg, emb, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "default", rec.UserID)
	assert.Equal(t, 0, rec.Chunks)
}

func TestRedisBackendNeedsClient(t *testing.T) {
	var cfg config.Config
	cfg.RAG.Backend = "redis"
	_, err := New(context.Background(), cfg, "u", emb, nil)
	assert.Error(t, err)
}
