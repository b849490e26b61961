package rag

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keywordEmbedder puts weight on one axis per keyword it finds.
type keywordEmbedder struct{ words []string }

func (e keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, len(e.words)+1)
		v[len(e.words)] = 0.01
		for j, w := range e.words {
			if strings.Contains(strings.ToLower(t), w) {
				v[j] = 1
			}
		}
		out[i] = v
	}
	return out, nil
}

var emb = keywordEmbedder{words: []string{"coffee", "tea", "music"}}

func TestRetrieveEmptyCorpus(t *testing.T) {
	r := &FlatRetriever{Index: NewFlatIndex(""), Embed: emb}
	got, err := r.Retrieve(context.Background(), "coffee", 4)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFlatRanksAndCaps(t *testing.T) {
	ix, err := BuildFlat(context.Background(), emb, "kw", []string{
		"I drink tea every morning",
		"Coffee beans from Kenya",
		"Jazz music on Sundays",
		"Coffee and tea both work",
	})
	require.NoError(t, err)

	r := &FlatRetriever{Index: ix, Embed: emb, MaxK: 2}
	got, err := r.Retrieve(context.Background(), "coffee please", 10)
	require.NoError(t, err)
	require.Len(t, got, 2, "k is capped by MaxK")
	assert.Equal(t, "Coffee beans from Kenya", got[0].Text)
	assert.Equal(t, "Coffee and tea both work", got[1].Text)
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestFlatTiesKeepInsertionOrder(t *testing.T) {
	ix := NewFlatIndex("")
	require.NoError(t, ix.Add("first", []float32{1, 0}))
	require.NoError(t, ix.Add("second", []float32{2, 0}))
	require.NoError(t, ix.Add("third", []float32{0, 1}))

	got, err := ix.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{got[0].Text, got[1].Text, got[2].Text})
}

func TestFlatFewerThanK(t *testing.T) {
	ix := NewFlatIndex("")
	require.NoError(t, ix.Add("only", []float32{1}))
	got, err := ix.Search([]float32{1}, 4)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFlatDimensionMismatch(t *testing.T) {
	ix := NewFlatIndex("")
	require.NoError(t, ix.Add("a", []float32{1, 0}))
	assert.ErrorIs(t, ix.Add("b", []float32{1}), ErrDimension)
	_, err := ix.Search([]float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, ErrDimension)
}

func TestFlatSaveLoadAndUserFallback(t *testing.T) {
	root := t.TempDir()
	ix := NewFlatIndex("kw")
	require.NoError(t, ix.Add("hello", []float32{3, 4}))
	require.NoError(t, ix.Save(filepath.Join(root, "default")))

	dir := UserDir(root, "alice")
	assert.Equal(t, filepath.Join(root, "default"), dir)

	loaded, err := LoadFlat(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
	assert.InDelta(t, 0.6, loaded.Vecs[0][0], 1e-6)

	require.NoError(t, ix.Save(filepath.Join(root, "alice")))
	assert.Equal(t, filepath.Join(root, "alice"), UserDir(root, "alice"))

	missing, err := LoadFlat(filepath.Join(root, "nobody"))
	require.NoError(t, err)
	assert.Equal(t, 0, missing.Len())
}

func TestChunkOverlap(t *testing.T) {
	text := strings.Repeat("a", 1000)
	chunks := Chunk(text, 700, 120)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 700)
	assert.Len(t, chunks[1], 1000-580)
	assert.Equal(t, []string{"short"}, Chunk("  short ", 700, 120))
	assert.Nil(t, Chunk("   ", 700, 120))
}

func TestReadDocuments(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("second"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("first"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.bin"), []byte("skip"), 0o644))

	docs, err := ReadDocuments(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, docs)

	docs, err = ReadDocuments(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestJoinContext(t *testing.T) {
	assert.Equal(t, "a\n\nb", JoinContext([]Snippet{{Text: "a"}, {Text: " "}, {Text: "b"}}))
	assert.Equal(t, "", JoinContext(nil))
}

func TestParseSearchReply(t *testing.T) {
	reply := []any{
		int64(3),
		"parley:rag:persona:2", []any{"text", "tea", "seq", "2", "dist", "0.2"},
		"parley:rag:persona:1", []any{"text", "coffee", "seq", "1", "dist", "0.2"},
		"parley:rag:persona:3", []any{"text", "music", "seq", "3", "dist", "0.9"},
	}
	got, err := parseSearchReply(reply, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "coffee", got[0].Text, "equal scores resolve by insertion sequence")
	assert.Equal(t, "tea", got[1].Text)
	assert.InDelta(t, 0.8, got[0].Score, 1e-9)

	_, err = parseSearchReply("nope", 2)
	assert.Error(t, err)
}

func TestRedisIndexAddStoresHashes(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), Protocol: 2})
	defer rdb.Close()

	ix := NewRedisIndex(rdb, "persona", "test", 4, emb, 4)
	require.NoError(t, ix.Add(context.Background(), []string{"coffee", "tea"}))

	assert.Equal(t, "coffee", mr.HGet("test:rag:persona:1", "text"))
	assert.Equal(t, "tea", mr.HGet("test:rag:persona:2", "text"))
	assert.Len(t, mr.HGet("test:rag:persona:1", "embedding"), 16)
}

func TestRedisRetrieveZeroK(t *testing.T) {
	ix := NewRedisIndex(nil, "", "", 4, emb, 4)
	got, err := ix.Retrieve(context.Background(), "x", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
