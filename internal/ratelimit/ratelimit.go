// Package ratelimit implements fixed-window request counters backed by Redis.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

const keyNamespace = "storefront:rl"

// Store increments a counter and starts its expiry on the first hit.
type Store interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore connects to url (redis://...) and verifies the connection.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, *redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, errors.Wrap(err, "ping redis")
	}
	return &RedisStore{client: client}, client, nil
}

func (s *RedisStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, errors.Wrap(err, "incr")
	}
	if ttl > 0 && count == 1 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return count, errors.Wrap(err, "expire")
		}
	}
	return count, nil
}

// Limiter allows at most limit hits per key within each window.
type Limiter struct {
	store  Store
	name   string
	window time.Duration
	limit  int64
}

func NewLimiter(store Store, name string, window time.Duration, limit int) *Limiter {
	return &Limiter{
		store:  store,
		name:   strings.ToLower(strings.TrimSpace(name)),
		window: window,
		limit:  int64(limit),
	}
}

// Enabled reports whether the limiter has a store and a usable policy.
func (l *Limiter) Enabled() bool {
	return l != nil && l.store != nil && l.window > 0 && l.limit > 0
}

func (l *Limiter) Window() time.Duration { return l.window }

func (l *Limiter) Limit() int64 { return l.limit }

// Allow counts a hit for subject and reports whether it is within the limit.
func (l *Limiter) Allow(ctx context.Context, subject string) (bool, int64, error) {
	if !l.Enabled() || subject == "" {
		return true, 0, nil
	}
	count, err := l.store.IncrWithTTL(ctx, l.key(subject), l.window)
	if err != nil {
		return false, 0, err
	}
	return count <= l.limit, count, nil
}

func (l *Limiter) key(subject string) string {
	name := l.name
	if name == "" {
		name = "default"
	}
	return fmt.Sprintf("%s:%s:%s", keyNamespace, name, subject)
}
