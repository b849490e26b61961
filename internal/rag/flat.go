package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

const IndexFile = "index.json"

// FlatIndex is an exhaustive cosine index. Vectors are L2-normalised on
// insert so a dot product is the cosine similarity.
type FlatIndex struct {
	mu    sync.RWMutex
	Model string      `json:"model,omitempty"`
	Texts []string    `json:"texts"`
	Vecs  [][]float32 `json:"vectors"`
}

func NewFlatIndex(model string) *FlatIndex { return &FlatIndex{Model: model} }

func (ix *FlatIndex) Add(text string, vec []float32) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if len(ix.Vecs) > 0 && len(vec) != len(ix.Vecs[0]) {
		return fmt.Errorf("%w: have %d, got %d", ErrDimension, len(ix.Vecs[0]), len(vec))
	}
	ix.Texts = append(ix.Texts, text)
	ix.Vecs = append(ix.Vecs, normalize(vec))
	return nil
}

func (ix *FlatIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.Texts)
}

// Search ranks every entry against q. Equal scores keep insertion order.
func (ix *FlatIndex) Search(q []float32, k int) ([]Snippet, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if k <= 0 || len(ix.Vecs) == 0 {
		return nil, nil
	}
	if len(q) != len(ix.Vecs[0]) {
		return nil, fmt.Errorf("%w: index %d, query %d", ErrDimension, len(ix.Vecs[0]), len(q))
	}
	q = normalize(q)
	hits := make([]Snippet, len(ix.Vecs))
	for i, v := range ix.Vecs {
		hits[i] = Snippet{Text: ix.Texts[i], Score: dot(q, v)}
	}
	slices.SortStableFunc(hits, func(a, b Snippet) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func (ix *FlatIndex) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	ix.mu.RLock()
	b, err := json.Marshal(ix)
	ix.mu.RUnlock()
	if err != nil {
		return err
	}
	tmp := filepath.Join(dir, IndexFile+".tmp")
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, IndexFile))
}

// LoadFlat reads dir/index.json. A missing file is an empty index.
func LoadFlat(dir string) (*FlatIndex, error) {
	b, err := os.ReadFile(filepath.Join(dir, IndexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return NewFlatIndex(""), nil
	}
	if err != nil {
		return nil, err
	}
	ix := &FlatIndex{}
	if err := json.Unmarshal(b, ix); err != nil {
		return nil, fmt.Errorf("rag: decode %s: %w", dir, err)
	}
	if len(ix.Texts) != len(ix.Vecs) {
		return nil, fmt.Errorf("rag: %s has %d texts and %d vectors", dir, len(ix.Texts), len(ix.Vecs))
	}
	return ix, nil
}

// UserDir is the index directory for a user, falling back to the shared
// "default" index when the user has none.
func UserDir(root, user string) string {
	if user != "" {
		d := filepath.Join(root, user)
		if _, err := os.Stat(filepath.Join(d, IndexFile)); err == nil {
			return d
		}
	}
	return filepath.Join(root, "default")
}

// FlatRetriever embeds the query and searches a FlatIndex.
type FlatRetriever struct {
	Index *FlatIndex
	Embed Embedder
	MaxK  int
}

func (r *FlatRetriever) Retrieve(ctx context.Context, query string, k int) ([]Snippet, error) {
	k = clampK(k, r.MaxK)
	if k == 0 || r.Index == nil || r.Index.Len() == 0 {
		return nil, nil
	}
	ctx, span := tracer.Start(ctx, "rag.flat")
	defer span.End()
	vecs, err := r.Embed.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}
	return r.Index.Search(vecs[0], k)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	n := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
