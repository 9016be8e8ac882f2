// internal/resilience/breaker.go
// Circuit breaker for calls to the external profile/location store.
// Failure counts live in the shared CounterStore so multiple engine
// instances see the same failure window.

package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned when the breaker short-circuits a call
var ErrBreakerOpen = errors.New("circuit breaker is open")

// Breaker states
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half_open"
)

// BreakerConfig tunes the circuit breaker
type BreakerConfig struct {
	Name          string
	FailureLimit  int64
	FailureWindow time.Duration
	Cooldown      time.Duration
}

// CircuitBreaker wraps calls to a flaky dependency
type CircuitBreaker struct {
	cfg   BreakerConfig
	store CounterStore

	mu            sync.Mutex
	state         string
	openedAt      time.Time
	trialing      bool
	localFailures int64
	now           func() time.Time
}

// NewCircuitBreaker creates a closed breaker
func NewCircuitBreaker(cfg BreakerConfig, store CounterStore) *CircuitBreaker {
	cb := &CircuitBreaker{
		cfg:   cfg,
		store: store,
		state: StateClosed,
		now:   time.Now,
	}
	breakerState.WithLabelValues(cfg.Name).Set(0)
	return cb
}

// State returns the current breaker state
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Execute runs fn under the breaker. When open it fails fast with
// ErrBreakerOpen; when half-open it lets a single trial call through.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.record(ctx, err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cfg.Cooldown {
			return ErrBreakerOpen
		}
		cb.setState(StateHalfOpen)
		cb.trialing = true
		return nil
	case StateHalfOpen:
		if cb.trialing {
			return ErrBreakerOpen
		}
		cb.trialing = true
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) record(ctx context.Context, callErr error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.trialing = false
		if callErr != nil {
			cb.openedAt = cb.now()
			cb.setState(StateOpen)
			return
		}
		cb.store.Reset(ctx, cb.failureKey())
		cb.localFailures = 0
		cb.setState(StateClosed)
		return
	}

	if callErr == nil {
		cb.localFailures = 0
		return
	}

	cb.localFailures++
	count, err := cb.store.Incr(ctx, cb.failureKey(), cb.cfg.FailureWindow)
	if err != nil {
		// Counter store trouble must not mask the dependency error;
		// fall back to the process-local count.
		count = cb.localFailures
	}
	if count >= cb.cfg.FailureLimit {
		cb.openedAt = cb.now()
		cb.setState(StateOpen)
	}
}

func (cb *CircuitBreaker) setState(state string) {
	cb.state = state
	var v float64
	switch state {
	case StateOpen:
		v = 1
	case StateHalfOpen:
		v = 2
	}
	breakerState.WithLabelValues(cb.cfg.Name).Set(v)
}

func (cb *CircuitBreaker) failureKey() string {
	return "breaker:" + cb.cfg.Name + ":failures"
}
