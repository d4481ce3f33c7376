// Package clients provides the HTTP plumbing shared by API clients: a
// token bucket rate limiter, a circuit breaker and an instrumented client.
package clients

import (
	"context"
	"sync"
	"time"
)

// RateLimiter paces outgoing requests.
type RateLimiter interface {
	// Wait blocks until a request is allowed
	Wait(ctx context.Context) error
}

// TokenBucketRateLimiter implements the token bucket algorithm for rate limiting.
// Tokens are added at a constant rate and consumed by requests.
type TokenBucketRateLimiter struct {
	rate     float64
	burst    int
	tokens   float64
	lastTime time.Time
	now      func() time.Time

	mu sync.Mutex
}

// NewTokenBucketRateLimiter creates a limiter refilling rate tokens per
// second up to burst.
func NewTokenBucketRateLimiter(rate float64, burst int) *TokenBucketRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &TokenBucketRateLimiter{
		rate:     rate,
		burst:    burst,
		tokens:   float64(burst),
		lastTime: time.Now(),
		now:      time.Now,
	}
}

// Allow consumes a token if one is available.
func (tb *TokenBucketRateLimiter) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= 1.0 {
		tb.tokens--
		return true
	}
	return false
}

// Wait blocks until a request is allowed
func (tb *TokenBucketRateLimiter) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		tb.refill()

		if tb.tokens >= 1.0 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}

		deficit := 1.0 - tb.tokens
		waitTime := time.Duration(deficit / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		timer := time.NewTimer(waitTime)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// refill adds the tokens accrued since the last call. Callers hold mu.
func (tb *TokenBucketRateLimiter) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastTime).Seconds()
	tb.lastTime = now

	tb.tokens += elapsed * tb.rate
	if tb.tokens > float64(tb.burst) {
		tb.tokens = float64(tb.burst)
	}
}
