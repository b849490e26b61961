// Package rag retrieves background snippets for a settled user utterance.
// Two backends sit behind Retriever: an exhaustive in-memory cosine index
// loaded from disk, and a Redis Search vector index.
package rag

import (
	"context"
	"errors"
	"strings"
)

const DefaultMaxK = 4

var ErrDimension = errors.New("rag: embedding dimension mismatch")

// Snippet is one ranked hit; higher Score is more relevant.
type Snippet struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Retriever returns at most k snippets, best first. An empty corpus yields
// an empty result, never an error.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Snippet, error)
}

// Embedder maps texts to vectors of a fixed dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

func clampK(k, maxK int) int {
	if maxK <= 0 {
		maxK = DefaultMaxK
	}
	if k > maxK {
		k = maxK
	}
	if k < 0 {
		k = 0
	}
	return k
}

// JoinContext renders snippets as one block for the generator.
func JoinContext(snips []Snippet) string {
	parts := make([]string, 0, len(snips))
	for _, s := range snips {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Empty never finds anything.
type Empty struct{}

func (Empty) Retrieve(context.Context, string, int) ([]Snippet, error) { return nil, nil }
