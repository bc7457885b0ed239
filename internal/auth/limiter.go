package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const limiterKeyPrefix = "useradmin:login:"

// RedisLimiter counts login attempts per key in a fixed window.
type RedisLimiter struct {
	client redis.Cmdable
	max    int64
	window time.Duration
}

func NewRedisLimiter(client redis.Cmdable, max int64, window time.Duration) *RedisLimiter {
	if max < 1 {
		max = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RedisLimiter{client: client, max: max, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) error {
	k := limiterKeyPrefix + key

	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("auth: count login attempt: %w", err)
	}
	if err := l.ensureWindow(ctx, k, count); err != nil {
		return err
	}

	if count > l.max {
		return ErrTooManyAttempts
	}
	return nil
}

// ensureWindow gives the counter its TTL. A key left without one by an
// earlier failed EXPIRE gets it on the next attempt.
func (l *RedisLimiter) ensureWindow(ctx context.Context, k string, count int64) error {
	if count > 1 {
		ttl, err := l.client.TTL(ctx, k).Result()
		if err != nil {
			return fmt.Errorf("auth: read login attempt window: %w", err)
		}
		if ttl >= 0 {
			return nil
		}
	}
	if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
		return fmt.Errorf("auth: set login attempt window: %w", err)
	}
	return nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, limiterKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("auth: reset login attempts: %w", err)
	}
	return nil
}
