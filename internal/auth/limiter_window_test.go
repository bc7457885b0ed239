package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wuwenbin0122/useradmin/internal/auth"
)

// flakyRedis keeps counters in memory and fails the first EXPIRE it sees.
type flakyRedis struct {
	redis.Cmdable
	counts      map[string]int64
	ttls        map[string]time.Duration
	expireFails int
}

func newFlakyRedis(expireFails int) *flakyRedis {
	return &flakyRedis{counts: map[string]int64{}, ttls: map[string]time.Duration{}, expireFails: expireFails}
}

func (r *flakyRedis) Incr(_ context.Context, key string) *redis.IntCmd {
	r.counts[key]++
	return redis.NewIntResult(r.counts[key], nil)
}

func (r *flakyRedis) TTL(_ context.Context, key string) *redis.DurationCmd {
	if _, ok := r.counts[key]; !ok {
		return redis.NewDurationResult(-2, nil)
	}
	if ttl, ok := r.ttls[key]; ok {
		return redis.NewDurationResult(ttl, nil)
	}
	return redis.NewDurationResult(-1, nil)
}

func (r *flakyRedis) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	if r.expireFails > 0 {
		r.expireFails--
		return redis.NewBoolResult(false, errors.New("i/o timeout"))
	}
	r.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

// elapse drops every key that has a TTL, like Redis does when a window ends.
func (r *flakyRedis) elapse() {
	for key := range r.ttls {
		delete(r.counts, key)
		delete(r.ttls, key)
	}
}

func TestRedisLimiterRecoversFromFailedExpire(t *testing.T) {
	client := newFlakyRedis(1)
	limiter := auth.NewRedisLimiter(client, 3, time.Minute)
	ctx := context.Background()
	key := "alice@example.com|10.0.0.1"

	if err := limiter.Allow(ctx, key); err == nil || errors.Is(err, auth.ErrTooManyAttempts) {
		t.Fatalf("expected the expire failure to be reported, got %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := limiter.Allow(ctx, key); err != nil {
			t.Fatalf("attempt %d: unexpected error %v", i+2, err)
		}
	}
	if ttl := client.ttls["useradmin:login:"+key]; ttl != time.Minute {
		t.Fatalf("expected the window to be set on a later attempt, got ttl %v", ttl)
	}

	for i := 0; i < 3; i++ {
		if err := limiter.Allow(ctx, key); !errors.Is(err, auth.ErrTooManyAttempts) {
			t.Fatalf("attempt %d: expected ErrTooManyAttempts, got %v", i+4, err)
		}
	}

	client.elapse()
	if err := limiter.Allow(ctx, key); err != nil {
		t.Fatalf("expected attempts to be allowed once the window ends, got %v", err)
	}
}

func TestRedisLimiterSetsWindowOnce(t *testing.T) {
	client := newFlakyRedis(0)
	limiter := auth.NewRedisLimiter(client, 5, 30*time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := limiter.Allow(ctx, "bob@example.com"); err != nil {
			t.Fatalf("attempt %d: unexpected error %v", i+1, err)
		}
		client.ttls["useradmin:login:bob@example.com"] = 10 * time.Second
	}

	if ttl := client.ttls["useradmin:login:bob@example.com"]; ttl != 10*time.Second {
		t.Fatalf("expected a running window to be left alone, got ttl %v", ttl)
	}
}
