package rag

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"parley/agent/internal/config"
)

// New builds the retriever for user from configuration. The flat backend
// loads the user's index (or the shared default) once; redis queries live
// through rdb, which is shared across sessions.
func New(ctx context.Context, cfg config.Config, user string, emb Embedder, rdb *redis.Client) (Retriever, error) {
	if emb == nil {
		emb = NewOpenAIEmbedder(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.EmbeddingModel, 0)
	}
	switch cfg.RAG.Backend {
	case "", "flat":
		dir := UserDir(cfg.RAG.IndexDir, user)
		ix, err := LoadFlat(dir)
		if err != nil {
			return nil, err
		}
		logger.InfoContext(ctx, "flat index loaded", "dir", dir, "chunks", ix.Len())
		return &FlatRetriever{Index: ix, Embed: emb, MaxK: cfg.RAG.MaxK}, nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("rag: redis backend needs a client")
		}
		return NewRedisIndex(rdb, indexName(cfg.RAG.RedisIndex, user), cfg.Redis.Prefix, cfg.RAG.Dimensions, emb, cfg.RAG.MaxK), nil
	case "none":
		return Empty{}, nil
	}
	return nil, fmt.Errorf("rag: unknown backend %q", cfg.RAG.Backend)
}

// NewRedisClient connects with RESP2 so FT.SEARCH replies are plain arrays.
func NewRedisClient(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Protocol: 2,
	})
}

func indexName(base, user string) string {
	if user == "" {
		return base
	}
	return base + ":" + user
}
