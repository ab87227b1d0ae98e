package domain

import (
	"context"
	"time"
)

type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter throttles the public tracking endpoints, which are reachable
// without authentication from every simulated email.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitDecision, error)
}

// TrackingRateKey builds the limiter key for a public tracking hit. Keyed
// by client IP and endpoint, never by token, so probing for valid tokens
// shares one budget per client.
func TrackingRateKey(endpoint, clientIP string) string {
	return "track:" + endpoint + ":ip:" + clientIP
}
