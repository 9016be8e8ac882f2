// internal/matching/service.go

package matching

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/pairupapp/pairup-backend/internal/notify"
	"github.com/pairupapp/pairup-backend/internal/profile"
)

var (
	ErrInvalidRadius     = errors.New("search radius must be between 1 and 100 km")
	ErrProfileIncomplete = errors.New("requester profile is incomplete")
	ErrProfileNotFound   = errors.New("requester profile not found")
	ErrNotParticipant    = errors.New("user is not a participant of this match")
	ErrMatchNotPending   = errors.New("match has already been responded to")
)

// Config carries the matching policy knobs
type Config struct {
	DefaultRadiusKm float64
	MinRadiusKm     float64
	MaxRadiusKm     float64
	RecencyWindow   time.Duration
	PendingMatchTTL time.Duration
}

// Service drives the matching pipeline
type Service interface {
	// FindOrCreateMatch runs the full pipeline: throttle check, candidate
	// discovery, compatibility filter, recency exclusion, match creation.
	// A result with Matched=false means no eligible candidate, which is a
	// normal outcome.
	FindOrCreateMatch(ctx context.Context, requesterID int64, radiusKm float64) (*MatchResult, error)

	RespondToMatch(ctx context.Context, matchID, userID int64, accept bool) (*Match, error)
	GetMatches(ctx context.Context, userID int64) ([]*Match, error)

	// ExpireStalePendingMatches marks pending matches older than the TTL as
	// expired. Run from the scheduler.
	ExpireStalePendingMatches(ctx context.Context) error
}

type service struct {
	repo     Repository
	finder   *Finder
	profiles ProfileStore
	notifier notify.Dispatcher
	cfg      Config
}

// NewService creates the matching service
func NewService(repo Repository, finder *Finder, profiles ProfileStore, notifier notify.Dispatcher, cfg Config) Service {
	return &service{
		repo:     repo,
		finder:   finder,
		profiles: profiles,
		notifier: notifier,
		cfg:      cfg,
	}
}

func (s *service) FindOrCreateMatch(ctx context.Context, requesterID int64, radiusKm float64) (*MatchResult, error) {
	if radiusKm != 0 && (radiusKm < s.cfg.MinRadiusKm || radiusKm > s.cfg.MaxRadiusKm) {
		return nil, ErrInvalidRadius
	}

	start := time.Now()
	defer func() { findDuration.Observe(time.Since(start).Seconds()) }()

	// Throttle: at most one pending match per user. A repeat request while
	// one is pending returns that match instead of erroring.
	pending, err := s.repo.GetPendingMatchForUser(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		counterpart, err := s.counterpartSummary(ctx, pending.CounterpartID(requesterID))
		if err != nil {
			return nil, err
		}
		return &MatchResult{Matched: true, Match: pending, Counterpart: counterpart}, nil
	}

	lookup, err := s.profiles.Lookup(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	switch lookup.Status {
	case profile.LookupNotFound:
		return nil, ErrProfileNotFound
	case profile.LookupIncomplete:
		return nil, ErrProfileIncomplete
	}
	requester := lookup.Profile

	if radiusKm == 0 {
		radiusKm = requester.MaxRadiusKm
		if radiusKm == 0 {
			radiusKm = s.cfg.DefaultRadiusKm
		}
	}

	candidates, err := s.finder.FindCandidates(ctx, requester, radiusKm)
	if err != nil {
		return nil, err
	}

	candidates = FilterCompatible(*requester.ExperienceLevel, candidates)

	candidates, err = s.excludeRecentPartners(ctx, requesterID, candidates)
	if err != nil {
		return nil, err
	}

	// A candidate already pending with someone else cannot take a second
	// pending match.
	candidates, err = s.excludePendingHolders(ctx, candidates)
	if err != nil {
		return nil, err
	}

	// Closest surviving candidate wins. The per-user pending indexes are
	// the backstop for candidates who pick up a pending match between the
	// filter above and the insert: a candidate-side conflict moves on to
	// the next candidate, a requester-side conflict resolves to the match
	// the requester just acquired.
	for _, chosen := range candidates {
		match, created, err := s.repo.CreateMatch(ctx, requesterID, chosen.UserID)
		if errors.Is(err, ErrUserHasPendingMatch) {
			pending, perr := s.repo.GetPendingMatchForUser(ctx, requesterID)
			if perr != nil {
				return nil, perr
			}
			if pending != nil {
				counterpart, cerr := s.counterpartSummary(ctx, pending.CounterpartID(requesterID))
				if cerr != nil {
					return nil, cerr
				}
				return &MatchResult{Matched: true, Match: pending, Counterpart: counterpart}, nil
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		if created {
			matchesCreatedTotal.Inc()
			s.emit(ctx, notify.EventMatchCreated, map[string]interface{}{
				"match_id": match.ID,
				"user1_id": match.User1ID,
				"user2_id": match.User2ID,
			})
		}

		counterpart, err := s.counterpartSummary(ctx, match.CounterpartID(requesterID))
		if err != nil {
			return nil, err
		}

		return &MatchResult{Matched: true, Match: match, Counterpart: counterpart}, nil
	}

	noCandidatesTotal.Inc()
	return &MatchResult{Matched: false, Reason: "no eligible candidates"}, nil
}

func (s *service) RespondToMatch(ctx context.Context, matchID, userID int64, accept bool) (*Match, error) {
	match, err := s.repo.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	if !match.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}

	status := StatusDeclined
	if accept {
		status = StatusAccepted
	}

	updated, err := s.repo.UpdateMatchStatus(ctx, matchID, status)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, ErrMatchNotPending
	}

	return s.repo.GetMatch(ctx, matchID)
}

func (s *service) GetMatches(ctx context.Context, userID int64) ([]*Match, error) {
	return s.repo.ListUserMatches(ctx, userID)
}

func (s *service) ExpireStalePendingMatches(ctx context.Context) error {
	cutoff := time.Now().Add(-s.cfg.PendingMatchTTL)
	expired, err := s.repo.ExpirePendingOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	if expired > 0 {
		log.Printf("Expired %d stale pending matches", expired)
	}
	return nil
}

// excludeRecentPartners drops candidates paired with the requester inside the
// recency window, regardless of how that match turned out.
func (s *service) excludeRecentPartners(ctx context.Context, requesterID int64, candidates []Candidate) ([]Candidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	since := time.Now().Add(-s.cfg.RecencyWindow)
	recentIDs, err := s.repo.ListRecentPartnerIDs(ctx, requesterID, since)
	if err != nil {
		return nil, err
	}

	recent := make(map[int64]bool, len(recentIDs))
	for _, id := range recentIDs {
		recent[id] = true
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if !recent[c.UserID] {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

// excludePendingHolders drops candidates who already hold a pending match;
// every user gets at most one at a time.
func (s *service) excludePendingHolders(ctx context.Context, candidates []Candidate) ([]Candidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.UserID
	}
	busyIDs, err := s.repo.ListUsersWithPendingMatch(ctx, ids)
	if err != nil {
		return nil, err
	}

	busy := make(map[int64]bool, len(busyIDs))
	for _, id := range busyIDs {
		busy[id] = true
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if !busy[c.UserID] {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

func (s *service) counterpartSummary(ctx context.Context, userID int64) (*CounterpartSummary, error) {
	lookup, err := s.profiles.Lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	if lookup.Profile == nil {
		return &CounterpartSummary{UserID: userID}, nil
	}

	p := lookup.Profile
	return &CounterpartSummary{
		UserID:          p.UserID,
		DisplayName:     p.DisplayName,
		ExperienceLevel: p.ExperienceLevel,
		Archetype:       p.Archetype,
		City:            p.City,
	}, nil
}

func (s *service) emit(ctx context.Context, eventType string, payload map[string]interface{}) {
	// Fire-and-forget: delivery failures never fail the mutation
	if err := s.notifier.Dispatch(ctx, notify.NewEvent(eventType, payload)); err != nil {
		log.Printf("Failed to dispatch %s event: %v", eventType, err)
	}
}
