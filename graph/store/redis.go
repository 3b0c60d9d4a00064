package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// noExpiryScore is the index score of checkpoints saved without a TTL
// (2100-01-01).
const noExpiryScore = 4102444800

// Key parts below the configured prefix.
const (
	threadKeyPart = "thread:"
	indexKeyPart  = "idx"
	lockKeyPart   = "lock:"
)

// RedisStore is a CheckpointStore backed by Redis.
//
// Each checkpoint is a JSON value at prefix+"thread:"+threadID. A sorted
// set at prefix+"idx" scores thread ids by expiry so List can prune
// entries whose keys Redis has already expired. RedisLocker keys live
// under prefix+"lock:", so a store and a locker may share one prefix.
type RedisStore[S any] struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*redisSettings)

type redisSettings struct {
	prefix string
	ttl    time.Duration
}

// WithPrefix sets the key prefix. Default "shopflow:".
func WithPrefix(prefix string) RedisOption {
	return func(s *redisSettings) { s.prefix = prefix }
}

// WithTTL expires abandoned threads after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *redisSettings) { s.ttl = ttl }
}

// NewRedisStore connects to addr and returns a store using that client.
func NewRedisStore[S any](addr, password string, db int, opts ...RedisOption) *RedisStore[S] {
	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient[S](client, opts...)
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient[S any](client *backend.Client, opts ...RedisOption) *RedisStore[S] {
	settings := redisSettings{prefix: "shopflow:"}
	for _, opt := range opts {
		opt(&settings)
	}
	return &RedisStore[S]{
		client: client,
		prefix: settings.prefix,
		ttl:    settings.ttl,
	}
}

func (r *RedisStore[S]) key(threadID string) string {
	return r.prefix + threadKeyPart + threadID
}

func (r *RedisStore[S]) indexKey() string {
	return r.prefix + indexKeyPart
}

// Save implements CheckpointStore.
func (r *RedisStore[S]) Save(ctx context.Context, threadID string, cp Checkpoint[S]) error {
	cp.ThreadID = threadID
	if cp.SavedAt.IsZero() {
		cp.SavedAt = time.Now()
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	score := float64(time.Now().Add(r.ttl).Unix())
	if r.ttl == 0 {
		score = noExpiryScore
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.key(threadID), data, r.ttl)
	pipe.ZAdd(ctx, r.indexKey(), backend.Z{Score: score, Member: threadID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load implements CheckpointStore.
func (r *RedisStore[S]) Load(ctx context.Context, threadID string) (Checkpoint[S], error) {
	val, err := r.client.Get(ctx, r.key(threadID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return Checkpoint[S]{}, ErrNotFound
		}
		return Checkpoint[S]{}, fmt.Errorf("failed to get from redis: %w", err)
	}

	var cp Checkpoint[S]
	if err := json.Unmarshal(val, &cp); err != nil {
		return Checkpoint[S]{}, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return cp, nil
}

// Clear implements CheckpointStore.
func (r *RedisStore[S]) Clear(ctx context.Context, threadID string) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, r.key(threadID))
	pipe.ZRem(ctx, r.indexKey(), threadID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear redis checkpoint: %w", err)
	}
	return nil
}

// List implements Lister. Expired index entries are pruned first.
func (r *RedisStore[S]) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := r.client.ZRemRangeByScore(ctx, r.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired threads: %w", err)
	}

	ids, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Ping verifies the Redis connection.
func (r *RedisStore[S]) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (r *RedisStore[S]) Close() error {
	return r.client.Close()
}
