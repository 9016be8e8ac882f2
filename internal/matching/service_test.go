package matching

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pairupapp/pairup-backend/internal/notify"
	"github.com/pairupapp/pairup-backend/internal/profile"
)

// fakeRepository is an in-memory Repository with the same conflict
// semantics as the postgres implementation.
type fakeRepository struct {
	mu      sync.Mutex
	nextID  int64
	matches []*Match
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{nextID: 1}
}

func (r *fakeRepository) CreateMatch(ctx context.Context, user1ID, user2ID int64) (*Match, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user1ID, user2ID = CanonicalPair(user1ID, user2ID)
	for _, m := range r.matches {
		if m.User1ID == user1ID && m.User2ID == user2ID &&
			(m.Status == StatusPending || m.Status == StatusAccepted) {
			return m, false, nil
		}
	}
	for _, m := range r.matches {
		if m.Status == StatusPending && (m.HasParticipant(user1ID) || m.HasParticipant(user2ID)) {
			return nil, false, ErrUserHasPendingMatch
		}
	}

	m := &Match{
		ID:        r.nextID,
		User1ID:   user1ID,
		User2ID:   user2ID,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	r.nextID++
	r.matches = append(r.matches, m)
	return m, true, nil
}

func (r *fakeRepository) GetMatch(_ context.Context, id int64) (*Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.matches {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, ErrMatchNotFound
}

func (r *fakeRepository) GetPendingMatchForUser(_ context.Context, userID int64) (*Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.matches {
		if m.Status == StatusPending && m.HasParticipant(userID) {
			return m, nil
		}
	}
	return nil, nil
}

func (r *fakeRepository) GetActiveMatchForPair(_ context.Context, user1ID, user2ID int64) (*Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user1ID, user2ID = CanonicalPair(user1ID, user2ID)
	for _, m := range r.matches {
		if m.User1ID == user1ID && m.User2ID == user2ID &&
			(m.Status == StatusPending || m.Status == StatusAccepted) {
			return m, nil
		}
	}
	return nil, ErrMatchNotFound
}

func (r *fakeRepository) ListRecentPartnerIDs(_ context.Context, userID int64, since time.Time) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for _, m := range r.matches {
		if m.HasParticipant(userID) && m.CreatedAt.After(since) {
			ids = append(ids, m.CounterpartID(userID))
		}
	}
	return ids, nil
}

func (r *fakeRepository) ListUsersWithPendingMatch(_ context.Context, userIDs []int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var busy []int64
	for _, id := range userIDs {
		for _, m := range r.matches {
			if m.Status == StatusPending && m.HasParticipant(id) {
				busy = append(busy, id)
				break
			}
		}
	}
	return busy, nil
}

func (r *fakeRepository) ListUserMatches(_ context.Context, userID int64) ([]*Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Match
	for _, m := range r.matches {
		if m.HasParticipant(userID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeRepository) UpdateMatchStatus(_ context.Context, id int64, status string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.matches {
		if m.ID == id {
			if m.Status != StatusPending {
				return false, nil
			}
			now := time.Now()
			m.Status = status
			m.RespondedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepository) ExpirePendingOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.matches {
		if m.Status == StatusPending && m.CreatedAt.Before(cutoff) {
			m.Status = StatusExpired
			n++
		}
	}
	return n, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, event notify.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) count(eventType string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, e := range d.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func testConfig() Config {
	return Config{
		DefaultRadiusKm: 25,
		MinRadiusKm:     1,
		MaxRadiusKm:     100,
		RecencyWindow:   7 * 24 * time.Hour,
		PendingMatchTTL: 72 * time.Hour,
	}
}

func newTestService(store *fakeProfileStore, repo Repository, disp *recordingDispatcher) Service {
	finder := NewFinder(store, 100)
	return NewService(repo, finder, store, disp, testConfig())
}

func (r *fakeRepository) seedPending(user1ID, user2ID int64) *Match {
	r.mu.Lock()
	defer r.mu.Unlock()

	user1ID, user2ID = CanonicalPair(user1ID, user2ID)
	m := &Match{
		ID:        r.nextID,
		User1ID:   user1ID,
		User2ID:   user2ID,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	r.nextID++
	r.matches = append(r.matches, m)
	return m
}

func (r *fakeRepository) pendingCount(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, m := range r.matches {
		if m.Status == StatusPending && m.HasParticipant(userID) {
			n++
		}
	}
	return n
}

// racingRepository simulates a competing insert landing between the
// pending-holder filter and the requester's own insert.
type racingRepository struct {
	*fakeRepository
	compete func()
	once    bool
}

func (r *racingRepository) ListUsersWithPendingMatch(context.Context, []int64) ([]int64, error) {
	// The filter ran before the competing write landed
	return nil, nil
}

func (r *racingRepository) CreateMatch(ctx context.Context, user1ID, user2ID int64) (*Match, bool, error) {
	if !r.once {
		r.once = true
		r.compete()
	}
	return r.fakeRepository.CreateMatch(ctx, user1ID, user2ID)
}

func TestFindOrCreateMatchPicksClosestCandidate(t *testing.T) {
	store := &fakeProfileStore{profiles: map[int64]*profile.UserLocationProfile{
		1: preciseProfile(1, 52.0, 13.0, 2),
		2: preciseProfile(2, 52.3, 13.0, 2),
		3: preciseProfile(3, 52.05, 13.0, 2),
	}}
	repo := newFakeRepository()
	disp := &recordingDispatcher{}
	svc := newTestService(store, repo, disp)

	result, err := svc.FindOrCreateMatch(context.Background(), 1, 50)
	if err != nil {
		t.Fatalf("FindOrCreateMatch returned error: %v", err)
	}

	if !result.Matched {
		t.Fatal("expected a match")
	}
	if result.Match.User1ID != 1 || result.Match.User2ID != 3 {
		t.Errorf("expected pair (1, 3), got (%d, %d)", result.Match.User1ID, result.Match.User2ID)
	}
	if result.Counterpart == nil || result.Counterpart.UserID != 3 {
		t.Errorf("expected counterpart 3, got %+v", result.Counterpart)
	}
	if disp.count(notify.EventMatchCreated) != 1 {
		t.Errorf("expected one match.created event, got %d", disp.count(notify.EventMatchCreated))
	}
}

func TestFindOrCreateMatchInvalidRadius(t *testing.T) {
	svc := newTestService(&fakeProfileStore{profiles: map[int64]*profile.UserLocationProfile{}}, newFakeRepository(), &recordingDispatcher{})

	for _, radius := range []float64{0.5, 101, -3} {
		if _, err := svc.FindOrCreateMatch(context.Background(), 1, radius); !errors.Is(err, ErrInvalidRadius) {
			t.Errorf("radius %g: got %v, want ErrInvalidRadius", radius, err)
		}
	}
}

func TestFindOrCreateMatchProfileErrors(t *testing.T) {
	incomplete := preciseProfile(2, 52.0, 13.0, 2)
	incomplete.ExperienceLevel = nil

	store := &fakeProfileStore{profiles: map[int64]*profile.UserLocationProfile{2: incomplete}}
	svc := newTestService(store, newFakeRepository(), &recordingDispatcher{})

	if _, err := svc.FindOrCreateMatch(context.Background(), 99, 10); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("missing profile: got %v, want ErrProfileNotFound", err)
	}
	if _, err := svc.FindOrCreateMatch(context.Background(), 2, 10); !errors.Is(err, ErrProfileIncomplete) {
		t.Errorf("incomplete profile: got %v, want ErrProfileIncomplete", err)
	}
}

func TestFindOrCreateMatchNoCandidatesIsNotAnError(t *testing.T) {
	store := &fakeProfileStore{profiles: map[int64]*profile.UserLocationProfile{
		1: preciseProfile(1, 52.0, 13.0, 1),
		2: preciseProfile(2, 52.0, 13.0, 3), // two levels away, never compatible
	}}
	svc := newTestService(store, newFakeRepository(), &recordingDispatcher{})

	result, err := svc.FindOrCreateMatch(context.Background(), 1, 50)
	if err != nil {
		t.Fatalf("FindOrCreateMatch returned error: %v", err)
	}
	if result.Matched {
		t.Fatal("expected no match for incompatible levels")
	}
	if result.Reason == "" {
		t.Error("unmatched result should carry a reason")
	}
}

func TestFindOrCreateMatchLevelChangeUnlocksCandidate(t *testing.T) {
	beginner := preciseProfile(1, 52.0, 13.0, profile.LevelBeginner)
	advanced := preciseProfile(2, 52.0, 13.0, profile.LevelAdvanced)
	store := &fakeProfileStore{profiles: map[int64]*profile.UserLocationProfile{
		1: beginner,
		2: advanced,
	}}
	svc := newTestService(store, newFakeRepository(), &recordingDispatcher{})

	result, err := svc.FindOrCreateMatch(context.Background(), 1, 50)
	if err != nil {
		t.Fatalf("FindOrCreateMatch returned error: %v", err)
	}
	if result.Matched {
		t.Fatal("beginner and advanced are two levels apart and must not match")
	}

	*advanced.ExperienceLevel = profile.LevelIntermediate
	result, err = svc.FindOrCreateMatch(context.Background(), 1, 50)
	if err != nil {
		t.Fatalf("FindOrCreateMatch after level change returned error: %v", err)
	}
	if !result.Matched || result.Match.CounterpartID(1) != 2 {
		t.Fatalf("intermediate candidate should now match, got %+v", result)
	}
}

func TestFindOrCreateMatchThrottleReturnsExistingPending(t *testing.T) {
	store := &fakeProfileStore{profiles: map[int64]*profile.UserLocationProfile{
		1: preciseProfile(1, 52.0, 13.0, 2),
		2: preciseProfile(2, 52.01, 13.0, 2),
		3: preciseProfile(3, 52.02, 13.0, 2),
	}}
	repo := newFakeRepository()
	disp := &recordingDispatcher{}
	svc := newTestService(store, repo, disp)

	first, err := svc.FindOrCreateMatch(context.Background(), 1, 50)
	if err != nil {
		t.Fatalf("first call returned error: %v", err)
	}
	second, err := svc.FindOrCreateMatch(context.Background(), 1, 50)
	if err != nil {
		t.Fatalf("second call returned error: %v", err)
	}

	if second.Match.ID != first.Match.ID {
		t.Errorf("repeat request while pending must return the same match: got %d, want %d",
			second.Match.ID, first.Match.ID)
	}
	if len(repo.matches) != 1 {
		t.Errorf("expected exactly one match row, got %d", len(repo.matches))
	}
	if disp.count(notify.EventMatchCreated) != 1 {
		t.Errorf("expected one match.created event in total, got %d", disp.count(notify.EventMatchCreated))
	}
}

func TestFindOrCreateMatchSkipsCandidatesWithPendingMatch(t *testing.T) {
	// Candidate 2 is closest but already pending with user 3; the requester
	// must pair with the next candidate, never hand 2 a second pending match.
	store := &fakeProfileStore{profiles: map[int64]*profile.UserLocationProfile{
		1: preciseProfile(1, 52.0, 13.0, 2),
		2: preciseProfile(2, 52.01, 13.0, 2),
		3: preciseProfile(3, 52.3, 13.0, 2),
		4: preciseProfile(4, 52.1, 13.0, 2),
	}}
	repo := newFakeRepository()
	repo.seedPending(2, 3)
	svc := newTestService(store, repo, &recordingDispatcher{})

	result, err := svc.FindOrCreateMatch(context.Background(), 1, 50)
	if err != nil {
		t.Fatalf("FindOrCreateMatch returned error: %v", err)
	}
	if !result.Matched || result.Match.CounterpartID(1) != 4 {
		t.Fatalf("expected counterpart 4, got %+v", result)
	}
	if repo.pendingCount(2) != 1 {
		t.Errorf("user 2 holds %d pending matches, want 1", repo.pendingCount(2))
	}
}

func TestFindOrCreateMatchAllCandidatesPending(t *testing.T) {
	store := &fakeProfileStore{profiles: map[int64]*profile.UserLocationProfile{
		1: preciseProfile(1, 52.0, 13.0, 2),
		2: preciseProfile(2, 52.01, 13.0, 2),
	}}
	repo := newFakeRepository()
	repo.seedPending(2, 9)
	svc := newTestService(store, repo, &recordingDispatcher{})

	result, err := svc.FindOrCreateMatch(context.Background(), 1, 50)
	if err != nil {
		t.Fatalf("FindOrCreateMatch returned error: %v", err)
	}
	if result.Matched {
		t.Fatalf("the only candidate is already pending, got %+v", result)
	}
}

func TestFindOrCreateMatchRequesterLosesInsertRace(t *testing.T) {
	// A pending match for the requester lands after the throttle check but
	// before the insert; the per-user conflict resolves to that match
	// instead of leaving the requester with two pending rows.
	store := &fakeProfileStore{profiles: map[int64]*profile.UserLocationProfile{
		1: preciseProfile(1, 52.0, 13.0, 2),
		2: preciseProfile(2, 52.0, 13.0, 2),
		3: preciseProfile(3, 52.1, 13.0, 2),
	}}
	base := newFakeRepository()
	disp := &recordingDispatcher{}
	var competing *Match
	repo := &racingRepository{
		fakeRepository: base,
		compete:        func() { competing = base.seedPending(1, 3) },
	}
	svc := newTestService(store, repo, disp)

	result, err := svc.FindOrCreateMatch(context.Background(), 1, 50)
	if err != nil {
		t.Fatalf("FindOrCreateMatch returned error: %v", err)
	}
	if !result.Matched || result.Match.ID != competing.ID {
		t.Fatalf("expected the competing match %d, got %+v", competing.ID, result.Match)
	}
	if base.pendingCount(1) != 1 {
		t.Errorf("user 1 holds %d pending matches, want 1", base.pendingCount(1))
	}
	if disp.count(notify.EventMatchCreated) != 0 {
		t.Errorf("a lost race must not emit a creation event, got %d", disp.count(notify.EventMatchCreated))
	}
}

func TestFindOrCreateMatchCandidateLosesInsertRace(t *testing.T) {
	// The chosen candidate picks up a pending match mid-flight; the pipeline
	// moves on to the next candidate.
	store := &fakeProfileStore{profiles: map[int64]*profile.UserLocationProfile{
		1: preciseProfile(1, 52.0, 13.0, 2),
		2: preciseProfile(2, 52.01, 13.0, 2),
		3: preciseProfile(3, 52.1, 13.0, 2),
	}}
	base := newFakeRepository()
	repo := &racingRepository{
		fakeRepository: base,
		compete:        func() { base.seedPending(2, 9) },
	}
	svc := newTestService(store, repo, &recordingDispatcher{})

	result, err := svc.FindOrCreateMatch(context.Background(), 1, 50)
	if err != nil {
		t.Fatalf("FindOrCreateMatch returned error: %v", err)
	}
	if !result.Matched || result.Match.CounterpartID(1) != 3 {
		t.Fatalf("expected fallback to candidate 3, got %+v", result)
	}
	if base.pendingCount(2) != 1 {
		t.Errorf("user 2 holds %d pending matches, want 1", base.pendingCount(2))
	}
}

func TestFindOrCreateMatchExcludesRecentPartners(t *testing.T) {
	store := &fakeProfileStore{profiles: map[int64]*profile.UserLocationProfile{
		1: preciseProfile(1, 52.0, 13.0, 2),
		2: preciseProfile(2, 52.0, 13.0, 2),
		3: preciseProfile(3, 52.1, 13.0, 2),
	}}
	repo := newFakeRepository()
	svc := newTestService(store, repo, &recordingDispatcher{})

	// Users 1 and 2 were paired three days ago and the match was declined;
	// declined matches still count against recency.
	repo.matches = append(repo.matches, &Match{
		ID: 1, User1ID: 1, User2ID: 2,
		Status:    StatusDeclined,
		CreatedAt: time.Now().Add(-3 * 24 * time.Hour),
	})
	repo.nextID = 2

	result, err := svc.FindOrCreateMatch(context.Background(), 1, 50)
	if err != nil {
		t.Fatalf("FindOrCreateMatch returned error: %v", err)
	}
	if !result.Matched {
		t.Fatal("expected a match with the non-recent candidate")
	}
	if result.Match.CounterpartID(1) != 3 {
		t.Errorf("user 2 should be excluded by recency, got counterpart %d", result.Match.CounterpartID(1))
	}
}

func TestFindOrCreateMatchRecencyWindowExpires(t *testing.T) {
	store := &fakeProfileStore{profiles: map[int64]*profile.UserLocationProfile{
		1: preciseProfile(1, 52.0, 13.0, 2),
		2: preciseProfile(2, 52.0, 13.0, 2),
	}}
	repo := newFakeRepository()
	svc := newTestService(store, repo, &recordingDispatcher{})

	repo.matches = append(repo.matches, &Match{
		ID: 1, User1ID: 1, User2ID: 2,
		Status:    StatusDeclined,
		CreatedAt: time.Now().Add(-8 * 24 * time.Hour),
	})
	repo.nextID = 2

	result, err := svc.FindOrCreateMatch(context.Background(), 1, 50)
	if err != nil {
		t.Fatalf("FindOrCreateMatch returned error: %v", err)
	}
	if !result.Matched || result.Match.CounterpartID(1) != 2 {
		t.Fatalf("a partner from 8 days ago is re-matchable, got %+v", result)
	}
}

func TestFindOrCreateMatchConcurrentPairConflict(t *testing.T) {
	// An active match for the pair already exists (the other user created it
	// between our check and insert). The insert conflict resolves to the
	// existing row and no duplicate event fires.
	store := &fakeProfileStore{profiles: map[int64]*profile.UserLocationProfile{
		1: preciseProfile(1, 52.0, 13.0, 2),
		2: preciseProfile(2, 52.0, 13.0, 2),
	}}
	repo := newFakeRepository()
	disp := &recordingDispatcher{}
	svc := newTestService(store, repo, disp)

	existing, created, err := repo.CreateMatch(context.Background(), 2, 1)
	if err != nil || !created {
		t.Fatalf("seed match: created=%v err=%v", created, err)
	}

	result, err := svc.FindOrCreateMatch(context.Background(), 1, 50)
	if err != nil {
		t.Fatalf("FindOrCreateMatch returned error: %v", err)
	}
	if result.Match.ID != existing.ID {
		t.Errorf("expected the existing match %d, got %d", existing.ID, result.Match.ID)
	}
	if disp.count(notify.EventMatchCreated) != 0 {
		t.Errorf("no event should fire for a pre-existing match, got %d", disp.count(notify.EventMatchCreated))
	}
}

func TestRespondToMatch(t *testing.T) {
	store := &fakeProfileStore{profiles: map[int64]*profile.UserLocationProfile{}}
	repo := newFakeRepository()
	svc := newTestService(store, repo, &recordingDispatcher{})

	match, _, err := repo.CreateMatch(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("seed match: %v", err)
	}

	if _, err := svc.RespondToMatch(context.Background(), match.ID, 3, true); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("outsider response: got %v, want ErrNotParticipant", err)
	}

	updated, err := svc.RespondToMatch(context.Background(), match.ID, 2, true)
	if err != nil {
		t.Fatalf("accept returned error: %v", err)
	}
	if updated.Status != StatusAccepted {
		t.Errorf("got status %q, want accepted", updated.Status)
	}
	if updated.RespondedAt == nil {
		t.Error("responded_at should be set")
	}

	if _, err := svc.RespondToMatch(context.Background(), match.ID, 1, false); !errors.Is(err, ErrMatchNotPending) {
		t.Errorf("second response: got %v, want ErrMatchNotPending", err)
	}
}

func TestRespondToMatchDecline(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(&fakeProfileStore{profiles: map[int64]*profile.UserLocationProfile{}}, repo, &recordingDispatcher{})

	match, _, _ := repo.CreateMatch(context.Background(), 5, 6)
	updated, err := svc.RespondToMatch(context.Background(), match.ID, 5, false)
	if err != nil {
		t.Fatalf("decline returned error: %v", err)
	}
	if updated.Status != StatusDeclined {
		t.Errorf("got status %q, want declined", updated.Status)
	}
}

func TestExpireStalePendingMatches(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(&fakeProfileStore{profiles: map[int64]*profile.UserLocationProfile{}}, repo, &recordingDispatcher{})

	repo.matches = []*Match{
		{ID: 1, User1ID: 1, User2ID: 2, Status: StatusPending, CreatedAt: time.Now().Add(-80 * time.Hour)},
		{ID: 2, User1ID: 3, User2ID: 4, Status: StatusPending, CreatedAt: time.Now().Add(-1 * time.Hour)},
		{ID: 3, User1ID: 5, User2ID: 6, Status: StatusAccepted, CreatedAt: time.Now().Add(-200 * time.Hour)},
	}

	if err := svc.ExpireStalePendingMatches(context.Background()); err != nil {
		t.Fatalf("ExpireStalePendingMatches returned error: %v", err)
	}

	if repo.matches[0].Status != StatusExpired {
		t.Errorf("stale pending match should expire, got %q", repo.matches[0].Status)
	}
	if repo.matches[1].Status != StatusPending {
		t.Errorf("fresh pending match must stay pending, got %q", repo.matches[1].Status)
	}
	if repo.matches[2].Status != StatusAccepted {
		t.Errorf("accepted match must not expire, got %q", repo.matches[2].Status)
	}
}
