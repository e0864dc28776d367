package parser

import (
	"context"
	"math/rand/v2"
	"time"
)

// RateLimiter spaces out sequential network operations by a random
// delay drawn from [min, max].
//
// Example usage:
//
//	limiter := parser.NewRateLimiter(1*time.Second, 3*time.Second)
//
//	for i, url := range urls {
//	    if i > 0 {
//	        limiter.Wait(ctx)
//	    }
//	    // ... perform rate-limited operation ...
//	}
type RateLimiter struct {
	min time.Duration
	max time.Duration

	// sleep is swapped in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a limiter. A max below min is raised to min.
// Zero for both disables waiting entirely.
func NewRateLimiter(min, max time.Duration) *RateLimiter {
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}
	return &RateLimiter{min: min, max: max, sleep: sleepCtx}
}

// Next returns the delay the next Wait would use
func (rl *RateLimiter) Next() time.Duration {
	if rl.max <= rl.min {
		return rl.min
	}
	return rl.min + rand.N(rl.max-rl.min+1)
}

// Wait blocks for a random delay, or until ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	d := rl.Next()
	if d <= 0 {
		return ctx.Err()
	}
	return rl.sleep(ctx, d)
}

// GetInterval returns the configured bounds
func (rl *RateLimiter) GetInterval() (time.Duration, time.Duration) {
	return rl.min, rl.max
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
