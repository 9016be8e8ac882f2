// internal/profile/store.go
// Resilient access to the profile collaborator: per-call timeout, circuit
// breaker, and retry with backoff. All reads are idempotent, so retrying
// here is safe in a way retrying match/session writes would not be.

package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pairupapp/pairup-backend/internal/resilience"
)

// ErrStoreUnavailable wraps transient profile store failures so callers can
// distinguish "retry later" from validation or state conflicts.
var ErrStoreUnavailable = errors.New("profile store unavailable")

// Store wraps the repository with the resilience layer
type Store struct {
	repo    Repository
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	timeout time.Duration
}

// NewStore creates a resilient profile store
func NewStore(repo Repository, breaker *resilience.CircuitBreaker, retry resilience.RetryConfig, timeout time.Duration) *Store {
	return &Store{
		repo:    repo,
		breaker: breaker,
		retry:   retry,
		timeout: timeout,
	}
}

// Lookup fetches a profile as a tagged result. A missing row is NotFound and
// a present-but-partial row is Incomplete; neither is an error.
func (s *Store) Lookup(ctx context.Context, userID int64) (LookupResult, error) {
	var p *UserLocationProfile

	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.repo.GetProfile(ctx, userID)
		if errors.Is(err, ErrProfileNotFound) {
			p = nil
			return nil
		}
		return err
	})
	if err != nil {
		return LookupResult{}, err
	}

	if p == nil {
		return LookupResult{Status: LookupNotFound}, nil
	}
	if missing := p.MissingFields(); len(missing) > 0 {
		return LookupResult{Status: LookupIncomplete, Profile: p, Missing: missing}, nil
	}
	return LookupResult{Status: LookupComplete, Profile: p}, nil
}

// ListCandidates fetches every profile except the requester's
func (s *Store) ListCandidates(ctx context.Context, excludeUserID int64, limit int) ([]*UserLocationProfile, error) {
	var profiles []*UserLocationProfile

	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		profiles, err = s.repo.ListProfiles(ctx, excludeUserID, limit)
		return err
	})
	if err != nil {
		return nil, err
	}

	return profiles, nil
}

func (s *Store) call(ctx context.Context, fn func(ctx context.Context) error) error {
	err := resilience.Retry(ctx, s.retry, func(ctx context.Context) error {
		return s.breaker.Execute(ctx, func(ctx context.Context) error {
			callCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			return fn(callCtx)
		})
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
