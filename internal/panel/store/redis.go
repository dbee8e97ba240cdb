package store

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/trockboppro/v4panel/internal/config"
)

// RedisStore backs the panel with a Redis keyspace. Batches use TxPipeline so
// the queued commands commit together (MULTI/EXEC).
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects a store to the configured Redis. Returns nil when
// the config is nil so callers can fall back to an in-memory store.
func NewRedisStore(c *config.RedisConfig) *RedisStore {
	if c == nil {
		return nil
	}
	return &RedisStore{rdb: redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return s.rdb.Set(ctx, key, value, 0).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

func (s *RedisStore) Batch() Batch {
	return &redisBatch{pipe: s.rdb.TxPipeline()}
}

// Ping verifies connectivity at startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *RedisStore) Close() error { return s.rdb.Close() }

type redisBatch struct {
	pipe redis.Pipeliner
}

func (b *redisBatch) Set(key string, value []byte) {
	b.pipe.Set(context.Background(), key, value, 0)
}

func (b *redisBatch) Delete(key string) {
	b.pipe.Del(context.Background(), key)
}

func (b *redisBatch) Write(ctx context.Context) error {
	_, err := b.pipe.Exec(ctx)
	return err
}
