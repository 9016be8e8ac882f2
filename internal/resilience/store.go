// internal/resilience/store.go
// Shared counter storage for cross-instance resilience state.
// Backed by Redis in production so breaker/limiter counters survive across
// stateless engine instances; the in-memory variant serves tests and
// single-instance deployments without Redis.

package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// CounterStore is a keyed counter with TTL expiry
type CounterStore interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

// redisCounterStore backs counters with Redis
type redisCounterStore struct {
	client *redis.Client
}

// NewRedisCounterStore creates a Redis-backed counter store
func NewRedisCounterStore(client *redis.Client) CounterStore {
	return &redisCounterStore{client: client}
}

func (s *redisCounterStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// TTL is set on every increment so the window slides from the last failure
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (s *redisCounterStore) Get(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

func (s *redisCounterStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// memoryCounterStore is a process-local counter store
type memoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
}

type memoryCounter struct {
	value     int64
	expiresAt time.Time
}

// NewMemoryCounterStore creates an in-memory counter store
func NewMemoryCounterStore() CounterStore {
	return &memoryCounterStore{counters: make(map[string]*memoryCounter)}
}

func (s *memoryCounterStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	c, ok := s.counters[key]
	if !ok || now.After(c.expiresAt) {
		c = &memoryCounter{}
		s.counters[key] = c
	}
	c.value++
	c.expiresAt = now.Add(ttl)
	return c.value, nil
}

func (s *memoryCounterStore) Get(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || time.Now().After(c.expiresAt) {
		return 0, nil
	}
	return c.value, nil
}

func (s *memoryCounterStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, key)
	return nil
}
