package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend keeps the items as fields of one hash. Useful when several
// processes on different hosts share a session.
type RedisBackend struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

var _ Backend = (*RedisBackend)(nil)

// NewRedisBackend stores items under the hash key. A positive ttl is applied
// to the hash on every write.
func NewRedisBackend(client redis.UniversalClient, key string, ttl time.Duration) (*RedisBackend, error) {
	if client == nil {
		return nil, errors.New("[NewRedisBackend] client is required")
	}
	if key == "" {
		return nil, errors.New("[NewRedisBackend] key is required")
	}
	return &RedisBackend{client: client, key: key, ttl: ttl}, nil
}

func (r *RedisBackend) GetItems(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	values, err := r.client.HMGet(ctx, r.key, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hmget: %w", err)
	}
	for i, v := range values {
		if s, ok := v.(string); ok {
			out[keys[i]] = s
		}
	}
	return out, nil
}

func (r *RedisBackend) SetItems(ctx context.Context, items map[string]string) error {
	if len(items) == 0 {
		return nil
	}
	fields := make([]any, 0, len(items)*2)
	for k, v := range items {
		fields = append(fields, k, v)
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.key, fields...)
		if r.ttl > 0 {
			pipe.Expire(ctx, r.key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (r *RedisBackend) RemoveItems(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.HDel(ctx, r.key, keys...).Err(); err != nil {
		return fmt.Errorf("redis hdel: %w", err)
	}
	return nil
}
