package rag

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"parley/agent/internal/config"
	"parley/agent/internal/types"
)

// Reindex rebuilds user's persona index from <PersonaDir>/<user> into the
// configured backend and describes what it wrote. An empty persona dir
// yields an empty index, not an error.
func Reindex(ctx context.Context, cfg config.Config, emb Embedder, rdb *redis.Client, user string) (types.IndexRecord, error) {
	ctx, span := tracer.Start(ctx, "rag.reindex")
	defer span.End()
	if user == "" {
		user = "default"
	}
	docs, err := ReadDocuments(filepath.Join(cfg.RAG.PersonaDir, user))
	if err != nil {
		return types.IndexRecord{}, fmt.Errorf("rag: read persona: %w", err)
	}
	chunks := ChunkAll(docs)
	rec := types.IndexRecord{UserID: user, Chunks: len(chunks)}

	switch cfg.RAG.Backend {
	case "", "flat":
		model := cfg.OpenAI.EmbeddingModel
		ix, err := BuildFlat(ctx, emb, model, chunks)
		if err != nil {
			return types.IndexRecord{}, err
		}
		dir := filepath.Join(cfg.RAG.IndexDir, user)
		if err := ix.Save(dir); err != nil {
			return types.IndexRecord{}, err
		}
		rec.Backend, rec.Path = "flat", dir
	case "redis":
		if rdb == nil {
			return types.IndexRecord{}, fmt.Errorf("rag: redis backend needs a client")
		}
		ri := NewRedisIndex(rdb, indexName(cfg.RAG.RedisIndex, user), cfg.Redis.Prefix, cfg.RAG.Dimensions, emb, cfg.RAG.MaxK)
		if err := ri.EnsureIndex(ctx); err != nil {
			return types.IndexRecord{}, err
		}
		if err := ri.Add(ctx, chunks); err != nil {
			return types.IndexRecord{}, err
		}
		rec.Backend, rec.Path = "redis", ri.Name()
	default:
		return types.IndexRecord{}, fmt.Errorf("rag: unknown backend %q", cfg.RAG.Backend)
	}
	logger.InfoContext(ctx, "persona reindexed", "user", user, "backend", rec.Backend, "chunks", rec.Chunks)
	return rec, nil
}
