// internal/session/service.go

package session

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pairupapp/pairup-backend/internal/matching"
	"github.com/pairupapp/pairup-backend/internal/notify"
)

var (
	ErrMatchNotAccepted       = errors.New("match is not accepted")
	ErrScheduledTimeNotFuture = errors.New("scheduled time must be in the future")
	ErrInvalidScheduledTime   = errors.New("scheduled time must be RFC 3339 with an explicit offset")
	ErrNotParticipant         = errors.New("user is not a participant of this session")
	ErrTooEarly               = errors.New("cannot confirm before the scheduled time")
	ErrCannotConfirmSelf      = errors.New("cannot confirm your own completion")
	ErrSessionTerminal        = errors.New("session is already completed or cancelled")
	ErrSessionNotDue          = errors.New("session is not past its scheduled time")
	ErrNotesTooLong           = errors.New("notes exceed the maximum length")
)

// ReputationInvalidator is the hook the lifecycle manager uses to drop
// cached reputation for both participants after a terminal transition.
type ReputationInvalidator interface {
	Invalidate(ctx context.Context, userID int64) error
}

// Config carries session policy knobs
type Config struct {
	MaxNotesLength int
}

// Service drives the session state machine
type Service interface {
	CreateSession(ctx context.Context, userID int64, dto *CreateSessionDTO) (*Session, error)
	GetSession(ctx context.Context, sessionID, userID int64) (*Session, error)

	// ConfirmCompletion records that confirmingUserID attests targetUserID
	// completed their activity. Idempotent after completion.
	ConfirmCompletion(ctx context.Context, sessionID, confirmingUserID, targetUserID int64) (*ConfirmResult, error)

	UpdateNotes(ctx context.Context, sessionID, userID int64, notes string) (*Session, error)

	// MarkNoShow is the pluggable no-show input: a participant reports the
	// other side failed to appear for a past-due session.
	MarkNoShow(ctx context.Context, sessionID, reporterID, noShowUserID int64) (*Session, error)
}

type service struct {
	repo        Repository
	matches     matching.Repository
	reputations ReputationInvalidator
	notifier    notify.Dispatcher
	cfg         Config
	now         func() time.Time
}

// NewService creates the session lifecycle service
func NewService(repo Repository, matches matching.Repository, reputations ReputationInvalidator, notifier notify.Dispatcher, cfg Config) Service {
	return &service{
		repo:        repo,
		matches:     matches,
		reputations: reputations,
		notifier:    notifier,
		cfg:         cfg,
		now:         time.Now,
	}
}

func (s *service) CreateSession(ctx context.Context, userID int64, dto *CreateSessionDTO) (*Session, error) {
	scheduledAt, err := parseScheduledTime(dto.ScheduledAt)
	if err != nil {
		return nil, err
	}
	if !scheduledAt.After(s.now().UTC()) {
		return nil, ErrScheduledTimeNotFuture
	}

	match, err := s.matches.GetMatch(ctx, dto.MatchID)
	if err != nil {
		return nil, err
	}
	if !match.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	if match.Status != matching.StatusAccepted {
		return nil, ErrMatchNotAccepted
	}

	sess := &Session{
		MatchID:     match.ID,
		User1ID:     match.User1ID,
		User2ID:     match.User2ID,
		Venue:       strings.TrimSpace(dto.Venue),
		ScheduledAt: scheduledAt,
	}

	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	sessionsCreatedTotal.Inc()
	s.emit(ctx, notify.EventSessionScheduled, map[string]interface{}{
		"session_id":   sess.ID,
		"match_id":     sess.MatchID,
		"scheduled_at": sess.ScheduledAt,
	})

	return sess, nil
}

func (s *service) GetSession(ctx context.Context, sessionID, userID int64) (*Session, error) {
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return sess, nil
}

func (s *service) ConfirmCompletion(ctx context.Context, sessionID, confirmingUserID, targetUserID int64) (*ConfirmResult, error) {
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !sess.HasParticipant(confirmingUserID) || !sess.HasParticipant(targetUserID) {
		return nil, ErrNotParticipant
	}
	if confirmingUserID == targetUserID {
		return nil, ErrCannotConfirmSelf
	}

	// Duplicate submissions after completion return the current state
	if sess.Status == StatusCompleted {
		return &ConfirmResult{Session: sess, BothConfirmed: true}, nil
	}
	if sess.Status == StatusCancelled {
		return nil, ErrSessionTerminal
	}

	if s.now().Before(sess.ScheduledAt) {
		return nil, ErrTooEarly
	}

	updated, ok, err := s.repo.Confirm(ctx, sessionID, confirmingUserID == sess.User1ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race with the other participant's completing confirmation
		// or a cancellation; re-read and report the settled state.
		sess, err = s.repo.GetSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if sess.Status == StatusCompleted {
			return &ConfirmResult{Session: sess, BothConfirmed: true}, nil
		}
		return nil, ErrSessionTerminal
	}

	if updated.Status == StatusCompleted {
		sessionsCompletedTotal.Inc()
		s.invalidateReputations(ctx, updated.User1ID, updated.User2ID)
		s.emit(ctx, notify.EventSessionCompleted, map[string]interface{}{
			"session_id": updated.ID,
			"match_id":   updated.MatchID,
		})
	}

	return &ConfirmResult{
		Session:       updated,
		BothConfirmed: updated.Status == StatusCompleted,
	}, nil
}

func (s *service) UpdateNotes(ctx context.Context, sessionID, userID int64, notes string) (*Session, error) {
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	if sess.Terminal() {
		return nil, ErrSessionTerminal
	}

	sanitized := SanitizeNotes(notes)
	if utf8.RuneCountInString(sanitized) > s.cfg.MaxNotesLength {
		return nil, ErrNotesTooLong
	}

	ok, err := s.repo.UpdateNotes(ctx, sessionID, sanitized)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionTerminal
	}

	return s.repo.GetSession(ctx, sessionID)
}

func (s *service) MarkNoShow(ctx context.Context, sessionID, reporterID, noShowUserID int64) (*Session, error) {
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.HasParticipant(reporterID) || !sess.HasParticipant(noShowUserID) {
		return nil, ErrNotParticipant
	}
	if sess.Terminal() {
		return nil, ErrSessionTerminal
	}
	if s.now().Before(sess.ScheduledAt) {
		return nil, ErrSessionNotDue
	}

	ok, err := s.repo.MarkNoShow(ctx, sessionID, noShowUserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionTerminal
	}

	sessionsNoShowTotal.Inc()
	s.invalidateReputations(ctx, sess.User1ID, sess.User2ID)

	return s.repo.GetSession(ctx, sessionID)
}

func (s *service) invalidateReputations(ctx context.Context, userIDs ...int64) {
	for _, id := range userIDs {
		if err := s.reputations.Invalidate(ctx, id); err != nil {
			log.Printf("Failed to invalidate reputation for user %d: %v", id, err)
		}
	}
}

func (s *service) emit(ctx context.Context, eventType string, payload map[string]interface{}) {
	if err := s.notifier.Dispatch(ctx, notify.NewEvent(eventType, payload)); err != nil {
		log.Printf("Failed to dispatch %s event: %v", eventType, err)
	}
}

// parseScheduledTime accepts RFC 3339 timestamps only; anything without an
// explicit offset fails to parse and is rejected.
func parseScheduledTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, ErrInvalidScheduledTime
	}
	return t.UTC(), nil
}

var markupPattern = regexp.MustCompile(`(?is)<script.*?</script>|<[^>]*>`)

// SanitizeNotes strips executable and structural markup from free-text notes
func SanitizeNotes(notes string) string {
	return strings.TrimSpace(markupPattern.ReplaceAllString(notes, ""))
}
