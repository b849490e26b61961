package rag

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const embedBatch = 64

// ReadDocuments returns the text of every .txt and .md file under dir,
// sorted by path so rebuilt indexes keep a stable order.
func ReadDocuments(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".txt", ".md":
			paths = append(paths, p)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	docs := make([]string, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, string(b))
	}
	return docs, nil
}

// ChunkAll chunks every document with the default window.
func ChunkAll(docs []string) []string {
	var out []string
	for _, d := range docs {
		out = append(out, Chunk(d, DefaultChunkSize, DefaultChunkOverlap)...)
	}
	return out
}

// BuildFlat embeds chunks in batches into a new FlatIndex.
func BuildFlat(ctx context.Context, emb Embedder, model string, chunks []string) (*FlatIndex, error) {
	ix := NewFlatIndex(model)
	for i := 0; i < len(chunks); i += embedBatch {
		end := min(i+embedBatch, len(chunks))
		vecs, err := emb.Embed(ctx, chunks[i:end])
		if err != nil {
			return nil, fmt.Errorf("rag: embed chunks [%d:%d]: %w", i, end, err)
		}
		for j, v := range vecs {
			if err := ix.Add(chunks[i+j], v); err != nil {
				return nil, err
			}
		}
	}
	return ix, nil
}
