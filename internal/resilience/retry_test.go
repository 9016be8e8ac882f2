package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry returned error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("got %d attempts, want 3", attempts)
	}
}

func TestRetryBoundedAttempts(t *testing.T) {
	persistent := errors.New("still broken")
	attempts := 0
	err := Retry(context.Background(), RetryConfig{MaxAttempts: 4, BaseDelay: time.Millisecond}, func(context.Context) error {
		attempts++
		return persistent
	})

	if !errors.Is(err, persistent) {
		t.Fatalf("got %v, want the last error", err)
	}
	if attempts != 4 {
		t.Errorf("got %d attempts, want 4", attempts)
	}
}

func TestRetryStopsOnOpenBreaker(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), RetryConfig{MaxAttempts: 5, BaseDelay: time.Millisecond}, func(context.Context) error {
		attempts++
		return ErrBreakerOpen
	})

	if !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("got %v, want ErrBreakerOpen", err)
	}
	if attempts != 1 {
		t.Errorf("an open breaker is not retried, got %d attempts", attempts)
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := Retry(ctx, RetryConfig{MaxAttempts: 5, BaseDelay: 50 * time.Millisecond}, func(context.Context) error {
		attempts++
		cancel()
		return errors.New("transient")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("cancellation should stop the loop, got %d attempts", attempts)
	}
}

func TestRetryZeroAttemptsRunsOnce(t *testing.T) {
	attempts := 0
	Retry(context.Background(), RetryConfig{}, func(context.Context) error {
		attempts++
		return nil
	})

	if attempts != 1 {
		t.Errorf("got %d attempts, want 1", attempts)
	}
}
