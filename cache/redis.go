// Package cache keeps recent certificate verification results in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Mustafaygtbs/CertificateManagement/services"
	"github.com/redis/go-redis/v9"
)

const verificationPrefix = "cert:verify:"

// RedisVerificationCache stores valid verification results as JSON under
// cert:verify:<token>.
type RedisVerificationCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisVerificationCache connects using a redis:// URL and pings the
// server before returning.
func NewRedisVerificationCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisVerificationCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: ping redis: %w", err)
	}
	return NewVerificationCache(rdb, ttl), nil
}

func NewVerificationCache(rdb *redis.Client, ttl time.Duration) *RedisVerificationCache {
	return &RedisVerificationCache{rdb: rdb, ttl: ttl}
}

func (c *RedisVerificationCache) key(token string) string { return verificationPrefix + token }

func (c *RedisVerificationCache) Get(ctx context.Context, token string) (*services.Verification, bool, error) {
	data, err := c.rdb.Get(ctx, c.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	var v services.Verification
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false, fmt.Errorf("cache unmarshal: %w", err)
	}
	return &v, true, nil
}

func (c *RedisVerificationCache) Set(ctx context.Context, token string, v *services.Verification) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	return c.rdb.Set(ctx, c.key(token), data, c.ttl).Err()
}

func (c *RedisVerificationCache) Invalidate(ctx context.Context, tokens ...string) error {
	if len(tokens) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t != "" {
			keys = append(keys, c.key(t))
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *RedisVerificationCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisVerificationCache) Close() error {
	return c.rdb.Close()
}
