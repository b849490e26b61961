package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"parley/agent/internal/types"
)

// Redis keeps one list per room. RPUSH gives append order for free.
type Redis struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "parley"
	}
	return &Redis{client: client, prefix: prefix, now: time.Now}
}

func (r *Redis) chatKey(room string) string { return fmt.Sprintf("%s:chat:%s", r.prefix, room) }
func (r *Redis) voiceKey(user string) string { return fmt.Sprintf("%s:voice:%s", r.prefix, user) }
func (r *Redis) indexKey(user string) string { return fmt.Sprintf("%s:index:%s", r.prefix, user) }

func (r *Redis) Append(ctx context.Context, room string, role types.Role, content string) error {
	if err := validate(room, role); err != nil {
		return err
	}
	data, err := json.Marshal(types.ConversationTurn{Role: role, Content: content, At: r.now().UTC()})
	if err != nil {
		return err
	}
	return r.client.RPush(ctx, r.chatKey(room), data).Err()
}

func (r *Redis) LoadHistory(ctx context.Context, room string, limit int) ([]types.ConversationTurn, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	raw, err := r.client.LRange(ctx, r.chatKey(room), start, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]types.ConversationTurn, 0, len(raw))
	for _, s := range raw {
		var t types.ConversationTurn
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			return nil, fmt.Errorf("store: decode turn: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *Redis) SetVoice(ctx context.Context, p types.VoiceProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, r.voiceKey(p.UserID), p.Provider, data).Err()
}

func (r *Redis) GetVoice(ctx context.Context, userID, provider string) (types.VoiceProfile, error) {
	data, err := r.client.HGet(ctx, r.voiceKey(userID), provider).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.VoiceProfile{}, ErrNotFound
	}
	if err != nil {
		return types.VoiceProfile{}, err
	}
	var p types.VoiceProfile
	return p, json.Unmarshal(data, &p)
}

func (r *Redis) RecordIndex(ctx context.Context, rec types.IndexRecord) error {
	if rec.At.IsZero() {
		rec.At = r.now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.indexKey(rec.UserID), data, 0).Err()
}

func (r *Redis) LastIndex(ctx context.Context, userID string) (types.IndexRecord, error) {
	data, err := r.client.Get(ctx, r.indexKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.IndexRecord{}, ErrNotFound
	}
	if err != nil {
		return types.IndexRecord{}, err
	}
	var rec types.IndexRecord
	return rec, json.Unmarshal(data, &rec)
}

func (r *Redis) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }
func (r *Redis) Close() error { return r.client.Close() }
