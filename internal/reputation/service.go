// internal/reputation/service.go

package reputation

import (
	"context"
	"log"
	"time"
)

// Config carries the score bounds
type Config struct {
	MinScore int
	MaxScore int
}

// Service computes and caches reputation scores
type Service interface {
	// GetReputation returns the user's score, from cache when useCache is
	// set and a fresh entry exists. Cache trouble degrades to a recompute.
	GetReputation(ctx context.Context, userID int64, useCache bool) (*Score, error)

	// Invalidate drops the cached score; called by the session lifecycle
	// manager after completions and no-shows.
	Invalidate(ctx context.Context, userID int64) error
}

type service struct {
	repo  Repository
	cache Cache
	cfg   Config
	now   func() time.Time
}

// NewService creates the reputation service
func NewService(repo Repository, cache Cache, cfg Config) Service {
	return &service{
		repo:  repo,
		cache: cache,
		cfg:   cfg,
		now:   time.Now,
	}
}

func (s *service) GetReputation(ctx context.Context, userID int64, useCache bool) (*Score, error) {
	if useCache {
		cached, err := s.cache.Get(ctx, userID)
		if err != nil {
			// A broken cache must never fail a read
			log.Printf("Reputation cache read failed for user %d: %v", userID, err)
		}
		if cached != nil {
			cacheHitsTotal.Inc()
			return cached, nil
		}
		cacheMissesTotal.Inc()
	}

	completed, noShows, err := s.repo.CountOutcomes(ctx, userID)
	if err != nil {
		return nil, err
	}

	score := &Score{
		UserID:            userID,
		Score:             s.clamp(completed - noShows),
		CompletedSessions: completed,
		NoShows:           noShows,
		AsOf:              s.now().UTC(),
	}
	score.Badge = Classify(score.Score)

	if err := s.cache.Set(ctx, score); err != nil {
		log.Printf("Reputation cache write failed for user %d: %v", userID, err)
	}

	return score, nil
}

func (s *service) Invalidate(ctx context.Context, userID int64) error {
	return s.cache.Delete(ctx, userID)
}

func (s *service) clamp(score int) int {
	if score < s.cfg.MinScore {
		return s.cfg.MinScore
	}
	if score > s.cfg.MaxScore {
		return s.cfg.MaxScore
	}
	return score
}
