package statestore

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// RedisClient is the subset of a Redis client the store needs. The method
// set matches github.com/redis/go-redis/v9 through thin adapters.
type RedisClient interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) RedisStatusCmd
	Get(ctx context.Context, key string) RedisStringCmd
	Del(ctx context.Context, keys ...string) RedisIntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) RedisBoolCmd
	Pipeline() RedisPipeliner
}

// RedisStatusCmd is a status reply.
type RedisStatusCmd interface {
	Err() error
}

// RedisStringCmd is a bulk string reply.
type RedisStringCmd interface {
	Bytes() ([]byte, error)
	Err() error
}

// RedisIntCmd is an integer reply.
type RedisIntCmd interface {
	Err() error
}

// RedisBoolCmd is a boolean reply.
type RedisBoolCmd interface {
	Err() error
}

// RedisPipeliner batches commands.
type RedisPipeliner interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) RedisStatusCmd
	Exec(ctx context.Context) ([]any, error)
}

// ErrRedisNil is the missing-key reply. Errors with the same text as
// go-redis's redis.Nil are treated the same.
var ErrRedisNil = errors.New("redis: nil")

// RedisStore keeps entries in Redis and lets Redis expire them.
type RedisStore struct {
	client RedisClient
	prefix string
	closed atomic.Bool
	now    func() time.Time
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*redisStoreConfig)

type redisStoreConfig struct {
	prefix string
}

// WithRedisPrefix sets the key prefix. Default: "waypoint:history:".
func WithRedisPrefix(prefix string) RedisStoreOption {
	return func(c *redisStoreConfig) {
		c.prefix = prefix
	}
}

// NewRedisStore wraps client. Close leaves the client open.
func NewRedisStore(client RedisClient, opts ...RedisStoreOption) *RedisStore {
	cfg := &redisStoreConfig{prefix: "waypoint:history:"}
	for _, opt := range opts {
		opt(cfg)
	}
	return &RedisStore{client: client, prefix: cfg.prefix, now: time.Now}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

// Prefix returns the key prefix.
func (r *RedisStore) Prefix() string {
	return r.prefix
}

func (r *RedisStore) Save(ctx context.Context, id string, data []byte, expiresAt time.Time) error {
	if r.closed.Load() {
		return ErrClosed
	}
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return r.Delete(ctx, id)
	}
	return r.client.Set(ctx, r.key(id), data, ttl).Err()
}

func (r *RedisStore) Load(ctx context.Context, id string) ([]byte, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if isRedisNil(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func isRedisNil(err error) bool {
	return errors.Is(err, ErrRedisNil) || err.Error() == ErrRedisNil.Error()
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if r.closed.Load() {
		return ErrClosed
	}
	return r.client.Del(ctx, r.key(id)).Err()
}

func (r *RedisStore) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	if r.closed.Load() {
		return ErrClosed
	}
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return r.Delete(ctx, id)
	}
	return r.client.Expire(ctx, r.key(id), ttl).Err()
}

// SaveAll pipelines the writes. Already expired entries are skipped.
func (r *RedisStore) SaveAll(ctx context.Context, entries map[string]Data) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if len(entries) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	now := r.now()
	for id, d := range entries {
		if ttl := d.ExpiresAt.Sub(now); ttl > 0 {
			pipe.Set(ctx, r.key(id), d.Data, ttl)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) Close() error {
	r.closed.Store(true)
	return nil
}
