// internal/resilience/retry.go
// Bounded retry with exponential backoff and jitter. Only idempotent reads
// go through here; mutations rely on the database's atomicity instead.

package resilience

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryConfig tunes the retry loop
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Retry runs fn up to MaxAttempts times, sleeping base*2^n plus jitter
// between attempts. It stops early on context cancellation or when the
// breaker is open (retrying a short-circuited call is pointless).
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := cfg.BaseDelay << uint(attempt-1)
			delay += time.Duration(rand.Int63n(int64(cfg.BaseDelay) + 1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrBreakerOpen) || errors.Is(lastErr, context.Canceled) {
			return lastErr
		}
	}

	return lastErr
}
