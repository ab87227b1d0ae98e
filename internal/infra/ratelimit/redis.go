package ratelimit

import (
	"context"
	"errors"
	"time"

	"phishaware/internal/domain"

	"github.com/redis/go-redis/v9"
)

// redisLimiter is the fixed-window counter shared across instances. It
// fronts the public tracking endpoints, so callers are expected to key it
// by endpoint and client IP (domain.TrackingRateKey); the limiter itself
// treats keys as opaque.
type redisLimiter struct {
	client *redis.Client
	now    func() time.Time
}

// fixedWindowScript counts the hit and starts the window's expiry on the
// first increment, returning the count and the remaining window in one
// round trip.
var fixedWindowScript = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {hits, redis.call("PTTL", KEYS[1])}
`)

func NewRedisLimiter(addr, password string, db int, now func() time.Time) (domain.RateLimiter, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if now == nil {
		now = time.Now
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisLimiter{client: client, now: now}, nil
}

func (r *redisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	windowMillis := window.Milliseconds()
	if windowMillis <= 0 {
		windowMillis = time.Second.Milliseconds()
	}

	raw, err := fixedWindowScript.Run(ctx, r.client, []string{key}, windowMillis).Result()
	if err != nil {
		return domain.RateLimitDecision{}, err
	}
	hits, ttlMillis, err := windowCounters(raw)
	if err != nil {
		return domain.RateLimitDecision{}, err
	}

	resetAt := r.now()
	if ttlMillis > 0 {
		resetAt = resetAt.Add(time.Duration(ttlMillis) * time.Millisecond)
	}
	remaining := limit - int(hits)
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateLimitDecision{
		Allowed:   hits <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

func windowCounters(raw any) (hits, ttlMillis int64, err error) {
	values, ok := raw.([]any)
	if !ok || len(values) != 2 {
		return 0, 0, errors.New("rate limit script returned unexpected shape")
	}
	hits, ok = values[0].(int64)
	if !ok {
		return 0, 0, errors.New("rate limit script returned non-integer count")
	}
	ttlMillis, _ = values[1].(int64)
	return hits, ttlMillis, nil
}
