package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"parley/agent/internal/config"
)

// Open builds the backend named by cfg.Store.Backend. A postgres:// DB_URL
// wins over the badger default.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	backend := cfg.Store.Backend
	if (backend == "" || backend == "badger") && isPostgresDSN(cfg.Store.DSN) {
		backend = "postgres"
	}
	switch backend {
	case "memory":
		return NewMemory(), nil
	case "", "badger":
		return OpenBadger(BadgerOptions{Dir: cfg.Store.BadgerDir})
	case "postgres":
		if cfg.Store.DSN == "" {
			return nil, fmt.Errorf("store: postgres backend needs DB_URL")
		}
		return OpenPostgres(ctx, cfg.Store.DSN)
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		s := NewRedis(rdb, cfg.Redis.Prefix)
		if err := s.Ping(ctx); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("store: redis: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("store: unknown backend %q", backend)
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
