// internal/reputation/cache.go

package reputation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache stores computed scores with a short TTL
type Cache interface {
	Get(ctx context.Context, userID int64) (*Score, error)
	Set(ctx context.Context, score *Score) error
	Delete(ctx context.Context, userID int64) error
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed score cache
func NewRedisCache(client *redis.Client, ttl time.Duration) Cache {
	return &redisCache{client: client, ttl: ttl}
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("reputation:%d", userID)
}

func (c *redisCache) Get(ctx context.Context, userID int64) (*Score, error) {
	body, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var score Score
	if err := json.Unmarshal(body, &score); err != nil {
		return nil, err
	}
	return &score, nil
}

func (c *redisCache) Set(ctx context.Context, score *Score) error {
	body, err := json.Marshal(score)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(score.UserID), body, c.ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, userID int64) error {
	return c.client.Del(ctx, cacheKey(userID)).Err()
}

// noopCache disables caching when Redis is not configured
type noopCache struct{}

// NewNoopCache creates a cache that never hits
func NewNoopCache() Cache {
	return noopCache{}
}

func (noopCache) Get(context.Context, int64) (*Score, error) { return nil, nil }
func (noopCache) Set(context.Context, *Score) error          { return nil }
func (noopCache) Delete(context.Context, int64) error        { return nil }
