// Package server implements a token bucket rate limiter for per-connection
// throttling that protects the relay from abuse.
package server

import (
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter admits up to capacity frames per interval, with bursts of capacity.
type rateLimiter struct {
	limiter *rate.Limiter
}

func newRateLimiter(capacity int, interval time.Duration) *rateLimiter {
	if capacity <= 0 {
		capacity = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	perSecond := rate.Limit(float64(capacity) / interval.Seconds())
	return &rateLimiter{limiter: rate.NewLimiter(perSecond, capacity)}
}

func (rl *rateLimiter) allow() bool {
	return rl.limiter.Allow()
}
