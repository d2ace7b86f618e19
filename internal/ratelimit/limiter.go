// Package ratelimit caps how fast calls are admitted into a batch.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter admits calls at a fixed rate shared by every worker of a
// batch. A nil *RateLimiter admits everything immediately.
type RateLimiter struct {
	limiter *rate.Limiter
	mu      sync.RWMutex
}

// NewRateLimiter returns a limiter allowing rps calls per second with a
// burst of rps. Zero disables limiting.
func NewRateLimiter(rps int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// Wait blocks until the next call may start or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	limiter := r.limiter
	limit := limiter.Limit()
	r.mu.RUnlock()

	if limit == 0 {
		return nil
	}
	return limiter.Wait(ctx)
}

// SetRate changes the admitted calls per second. Zero disables limiting.
func (r *RateLimiter) SetRate(rps int) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiter.SetLimit(rate.Limit(rps))
	r.limiter.SetBurst(rps)
}

// Rate returns the current calls-per-second limit, 0 when unlimited.
func (r *RateLimiter) Rate() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int(r.limiter.Limit())
}
