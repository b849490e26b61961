package rag

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisIndex stores chunks as hashes and searches them with a Redis Search
// KNN query. The client must speak RESP2 so FT.SEARCH replies are arrays.
type RedisIndex struct {
	rdb    *redis.Client
	name   string
	prefix string
	dim    int
	embed  Embedder
	maxK   int
}

func NewRedisIndex(rdb *redis.Client, name, prefix string, dim int, emb Embedder, maxK int) *RedisIndex {
	if name == "" {
		name = "persona"
	}
	if prefix == "" {
		prefix = "parley"
	}
	return &RedisIndex{rdb: rdb, name: name, prefix: prefix + ":rag:" + name + ":", dim: dim, embed: emb, maxK: maxK}
}

func (r *RedisIndex) Name() string { return r.name }

// EnsureIndex creates the search index when it does not exist yet.
func (r *RedisIndex) EnsureIndex(ctx context.Context) error {
	err := r.rdb.Do(ctx, "FT.CREATE", r.name, "ON", "HASH", "PREFIX", "1", r.prefix,
		"SCHEMA", "text", "TEXT", "seq", "NUMERIC", "SORTABLE",
		"embedding", "VECTOR", "FLAT", "6", "TYPE", "FLOAT32", "DIM", strconv.Itoa(r.dim), "DISTANCE_METRIC", "COSINE",
	).Err()
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "index already exists") {
		return fmt.Errorf("rag: create index: %w", err)
	}
	return nil
}

// Add embeds and stores chunks, continuing the insertion sequence.
func (r *RedisIndex) Add(ctx context.Context, chunks []string) error {
	for i := 0; i < len(chunks); i += embedBatch {
		end := min(i+embedBatch, len(chunks))
		vecs, err := r.embed.Embed(ctx, chunks[i:end])
		if err != nil {
			return fmt.Errorf("rag: embed chunks [%d:%d]: %w", i, end, err)
		}
		pipe := r.rdb.Pipeline()
		for j, v := range vecs {
			seq, err := r.rdb.Incr(ctx, r.prefix+"seq").Result()
			if err != nil {
				return err
			}
			pipe.HSet(ctx, r.prefix+strconv.FormatInt(seq, 10), map[string]any{
				"text":      chunks[i+j],
				"seq":       seq,
				"embedding": floatsToBytes(v),
			})
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("rag: store chunks: %w", err)
		}
	}
	return nil
}

func (r *RedisIndex) Retrieve(ctx context.Context, query string, k int) ([]Snippet, error) {
	k = clampK(k, r.maxK)
	if k == 0 {
		return nil, nil
	}
	ctx, span := tracer.Start(ctx, "rag.redis")
	defer span.End()

	vecs, err := r.embed.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}
	knn := fmt.Sprintf("*=>[KNN %d @embedding $vec AS dist]", k)
	res, err := r.rdb.Do(ctx, "FT.SEARCH", r.name, knn,
		"PARAMS", "2", "vec", floatsToBytes(vecs[0]),
		"SORTBY", "dist", "RETURN", "3", "text", "seq", "dist",
		"LIMIT", "0", strconv.Itoa(k), "DIALECT", "2",
	).Result()
	if err != nil {
		if isMissingIndex(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("rag: search: %w", err)
	}
	return parseSearchReply(res, k)
}

func isMissingIndex(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "no such index") || strings.Contains(s, "unknown index name")
}

// parseSearchReply reads the RESP2 shape
// [total, key, [field, value, ...], key, [...], ...].
// Similarity is 1 - cosine distance; ties go to the earlier insert.
func parseSearchReply(res any, k int) ([]Snippet, error) {
	arr, ok := res.([]any)
	if !ok || len(arr) == 0 {
		return nil, fmt.Errorf("rag: unexpected search reply %T", res)
	}
	type hit struct {
		Snippet
		seq int64
	}
	var hits []hit
	for i := 1; i+1 < len(arr); i += 2 {
		fields, ok := arr[i+1].([]any)
		if !ok {
			continue
		}
		var h hit
		h.seq = math.MaxInt64
		for j := 0; j+1 < len(fields); j += 2 {
			name, _ := fields[j].(string)
			val := fmt.Sprint(fields[j+1])
			switch name {
			case "text":
				h.Text = val
			case "dist":
				d, err := strconv.ParseFloat(val, 64)
				if err != nil {
					return nil, fmt.Errorf("rag: bad distance %q", val)
				}
				h.Score = 1 - d
			case "seq":
				if n, err := strconv.ParseInt(val, 10, 64); err == nil {
					h.seq = n
				}
			}
		}
		hits = append(hits, h)
	}
	slices.SortStableFunc(hits, func(a, b hit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]Snippet, len(hits))
	for i, h := range hits {
		out[i] = h.Snippet
	}
	return out, nil
}

func floatsToBytes(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(x))
	}
	return b
}
