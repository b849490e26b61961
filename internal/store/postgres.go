package store

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"parley/agent/internal/types"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Postgres orders turns by the serial id, so two turns written in the same
// instant still come back in append order.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects and applies pending migrations.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: postgres pool: %w", err)
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Append(ctx context.Context, room string, role types.Role, content string) error {
	if err := validate(room, role); err != nil {
		return err
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO chat_log (room, role, content) VALUES ($1, $2, $3)`,
		room, string(role), content)
	return err
}

func (p *Postgres) LoadHistory(ctx context.Context, room string, limit int) ([]types.ConversationTurn, error) {
	if limit <= 0 {
		limit = 1 << 30
	}
	rows, err := p.pool.Query(ctx, `
		SELECT role, content, ts FROM (
			SELECT id, role, content, ts FROM chat_log
			WHERE room = $1 ORDER BY id DESC LIMIT $2
		) recent ORDER BY id ASC`, room, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.ConversationTurn
	for rows.Next() {
		var t types.ConversationTurn
		var role string
		if err := rows.Scan(&role, &t.Content, &t.At); err != nil {
			return nil, err
		}
		t.Role = types.Role(role)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *Postgres) SetVoice(ctx context.Context, v types.VoiceProfile) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO voices (user_id, provider, voice_id, status) VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, provider)
		DO UPDATE SET voice_id = EXCLUDED.voice_id, status = EXCLUDED.status, updated_at = now()`,
		v.UserID, v.Provider, v.VoiceID, string(v.Status))
	return err
}

func (p *Postgres) GetVoice(ctx context.Context, userID, provider string) (types.VoiceProfile, error) {
	v := types.VoiceProfile{UserID: userID, Provider: provider}
	var status string
	err := p.pool.QueryRow(ctx,
		`SELECT voice_id, status FROM voices WHERE user_id = $1 AND provider = $2`,
		userID, provider).Scan(&v.VoiceID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.VoiceProfile{}, ErrNotFound
	}
	v.Status = types.VoiceStatus(status)
	return v, err
}

func (p *Postgres) RecordIndex(ctx context.Context, rec types.IndexRecord) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO persona_index (user_id, backend, path, chunks) VALUES ($1, $2, $3, $4)`,
		rec.UserID, rec.Backend, rec.Path, rec.Chunks)
	return err
}

func (p *Postgres) LastIndex(ctx context.Context, userID string) (types.IndexRecord, error) {
	rec := types.IndexRecord{UserID: userID}
	err := p.pool.QueryRow(ctx,
		`SELECT backend, path, chunks, ts FROM persona_index WHERE user_id = $1 ORDER BY id DESC LIMIT 1`,
		userID).Scan(&rec.Backend, &rec.Path, &rec.Chunks, &rec.At)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.IndexRecord{}, ErrNotFound
	}
	return rec, err
}

func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
