package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aniladanir/weather-service/internal/cache"
	"github.com/go-redis/redis/v8"
	"github.com/samber/mo"
)

type RedisCache struct {
	client *redis.Client
}

var _ cache.Cache = (*RedisCache)(nil)

// NewRedisCache creates a new redis cache that complies with cache interface
func NewRedisCache(ctx context.Context, addr string) (*RedisCache, error) {
	rClient := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	retryTicker := time.NewTicker(time.Second * 2)
	defer retryTicker.Stop()

	// retry ping
	var pingErr error
	for range 5 {
		if pingErr = rClient.Ping(ctx).Err(); pingErr == nil {
			break
		}
		select {
		case <-retryTicker.C:
		case <-ctx.Done():
			rClient.Close()
			return nil, fmt.Errorf("failed to ping redis instance: %w", ctx.Err())
		}
	}
	if pingErr != nil {
		rClient.Close()
		return nil, fmt.Errorf("failed to ping redis instance: %w", pingErr)
	}

	return &RedisCache{
		client: rClient,
	}, nil
}

// Get returns the json decoded value of key. Composite values come back as
// []any and map[string]any, numbers as float64.
func (r *RedisCache) Get(ctx context.Context, key string) (mo.Option[any], error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return mo.None[any](), nil
	}
	if err != nil {
		return mo.None[any](), err
	}

	var val any
	if err := json.Unmarshal(raw, &val); err != nil {
		return mo.None[any](), fmt.Errorf("failed to decode value of %q: %w", key, err)
	}
	return mo.Some(val), nil
}

// Set writes val as json. SET without expiry drops any ttl the key had.
func (r *RedisCache) Set(ctx context.Context, key string, val any, ttl time.Duration) error {
	jsonVal, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("failed to encode value of %q: %w", key, err)
	}

	// go-redis reads negative expirations as KEEPTTL
	if ttl < 0 {
		return r.client.Del(ctx, key).Err()
	}

	return r.client.Set(ctx, key, jsonVal, ttl).Err()
}

func (r *RedisCache) SetTTL(ctx context.Context, key string, ttl time.Duration) error {
	if ttl == cache.NoTTL {
		return r.client.Persist(ctx, key).Err()
	}
	return r.client.PExpire(ctx, key, ttl).Err()
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
