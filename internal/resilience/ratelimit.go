// internal/resilience/ratelimit.go
// Token-bucket rate limiting per logical operation class. A rejected request
// gets a retry-after hint instead of blocking.

package resilience

import (
	"math"
	"sync"
	"time"
)

// Operation classes known to the limiter
const (
	ClassMatchCreate    = "match_create"
	ClassConfirm        = "confirm"
	ClassReputationRead = "reputation_read"
)

// BucketConfig defines capacity and refill rate for one operation class
type BucketConfig struct {
	Capacity     float64
	RefillPerSec float64
}

// Result is the outcome of a rate limit check
type Result struct {
	Allowed    bool
	Remaining  float64
	RetryAfter time.Duration
}

// RateLimiter holds one token bucket per (class, key) pair
type RateLimiter struct {
	mu      sync.Mutex
	configs map[string]BucketConfig
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	tokens   float64
	lastFill time.Time
}

// NewRateLimiter creates a limiter with per-class bucket configuration
func NewRateLimiter(configs map[string]BucketConfig) *RateLimiter {
	return &RateLimiter{
		configs: configs,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow consumes one token for the given class and per-caller key.
// Unknown classes are always allowed.
func (l *RateLimiter) Allow(class, key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	cfg, ok := l.configs[class]
	if !ok {
		return Result{Allowed: true}
	}

	now := l.now()
	id := class + ":" + key
	b, ok := l.buckets[id]
	if !ok {
		b = &bucket{tokens: cfg.Capacity, lastFill: now}
		l.buckets[id] = b
	}

	// Continuous refill since last check
	elapsed := now.Sub(b.lastFill).Seconds()
	b.tokens = math.Min(cfg.Capacity, b.tokens+elapsed*cfg.RefillPerSec)
	b.lastFill = now

	if b.tokens >= 1 {
		b.tokens--
		return Result{Allowed: true, Remaining: b.tokens}
	}

	retryAfter := time.Duration(0)
	if cfg.RefillPerSec > 0 {
		retryAfter = time.Duration((1 - b.tokens) / cfg.RefillPerSec * float64(time.Second))
	}
	rateLimitedTotal.WithLabelValues(class).Inc()
	return Result{Allowed: false, Remaining: b.tokens, RetryAfter: retryAfter}
}
