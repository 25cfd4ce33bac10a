package backend

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter spaces outgoing requests so a backend is not flooded when
// several collections are fetched at once.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a rate limiter that allows maxPerSecond requests per
// second with no burst. For sub-second rates pass a fraction (0.1 = 6 req/min).
func NewRateLimiter(maxPerSecond float64) *RateLimiter {
	if maxPerSecond <= 0 {
		maxPerSecond = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(maxPerSecond), 1)}
}

// Wait blocks until a request may be sent or the context is cancelled.
// A nil limiter never blocks.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return nil
	}
	return rl.limiter.Wait(ctx)
}
