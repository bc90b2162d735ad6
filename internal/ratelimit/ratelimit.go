// Package ratelimit bounds how often a user may perform an action.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// Limiter decides whether one more action under key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Unlimited allows everything.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (bool, error) { return true, nil }

// Redis is a fixed-window limiter: a counter per key and window, expiring
// with the window.
type Redis struct {
	client *redis.Client
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewRedis allows limit actions per key in each window.
func NewRedis(client *redis.Client, limit int, window time.Duration) *Redis {
	return &Redis{
		client: client,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

// Allow counts the action and reports whether it fits in the current window.
func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	fullKey := r.windowKey(key)

	pipe := r.client.Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, r.window)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return false, fmt.Errorf("rate limit check for %s: %w", key, err)
	}

	return incr.Val() <= r.limit, nil
}

// Reset clears the counter of the current window.
func (r *Redis) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.windowKey(key)).Err()
}

func (r *Redis) windowKey(key string) string {
	start := r.now().Truncate(r.window).Unix()
	return fmt.Sprintf("%s%s:%d", keyPrefix, key, start)
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return client, nil
}
