// internal/session/repository.go

package session

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	// ErrSessionNotFound is returned when no session row exists for an id
	ErrSessionNotFound = errors.New("session not found")
	// ErrActiveSessionExists is returned when a match already has a
	// non-cancelled session
	ErrActiveSessionExists = errors.New("match already has an active session")
)

const uniqueViolation = "23505"

// Repository persists sessions
type Repository interface {
	// CreateSession inserts a scheduled session. The partial unique index on
	// match_id enforces one non-cancelled session per match; a conflict
	// surfaces as ErrActiveSessionExists.
	CreateSession(ctx context.Context, s *Session) error

	GetSession(ctx context.Context, id int64) (*Session, error)

	// Confirm sets one confirmation flag and, in the same statement, flips
	// the session to completed when both flags end up true. False means the
	// session was not in the scheduled state anymore.
	Confirm(ctx context.Context, id int64, byUser1 bool) (*Session, bool, error)

	// UpdateNotes stores sanitized notes; false when the session left the
	// scheduled state first.
	UpdateNotes(ctx context.Context, id int64, notes string) (bool, error)

	// MarkNoShow cancels a scheduled session recording who failed to show;
	// false when the session was no longer scheduled.
	MarkNoShow(ctx context.Context, id, noShowUserID int64) (bool, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a session repository
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateSession(ctx context.Context, s *Session) error {
	query := `
        INSERT INTO sessions (match_id, user1_id, user2_id, venue, scheduled_at, status)
        VALUES ($1, $2, $3, $4, $5, 'scheduled')
        RETURNING id, created_at
    `

	err := r.db.QueryRowxContext(
		ctx, query,
		s.MatchID, s.User1ID, s.User2ID, s.Venue, s.ScheduledAt,
	).Scan(&s.ID, &s.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return ErrActiveSessionExists
	}

	if err == nil {
		s.Status = StatusScheduled
	}
	return err
}

func (r *postgresRepository) GetSession(ctx context.Context, id int64) (*Session, error) {
	var s Session
	query := `
        SELECT id, match_id, user1_id, user2_id, venue, scheduled_at, status,
               confirmed_by_user1, confirmed_by_user2, notes, no_show_user_id,
               completed_at, created_at
        FROM sessions
        WHERE id = $1
    `

	err := r.db.GetContext(ctx, &s, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	return &s, nil
}

func (r *postgresRepository) Confirm(ctx context.Context, id int64, byUser1 bool) (*Session, bool, error) {
	// Flag update and the both-flags -> completed transition happen in one
	// statement so concurrent confirmations cannot split the invariant.
	// completed_at is only ever written while NULL.
	var s Session
	query := `
        UPDATE sessions
        SET confirmed_by_user1 = confirmed_by_user1 OR $2,
            confirmed_by_user2 = confirmed_by_user2 OR $3,
            status = CASE
                WHEN (confirmed_by_user1 OR $2) AND (confirmed_by_user2 OR $3)
                THEN 'completed' ELSE status
            END,
            completed_at = CASE
                WHEN (confirmed_by_user1 OR $2) AND (confirmed_by_user2 OR $3) AND completed_at IS NULL
                THEN NOW() ELSE completed_at
            END
        WHERE id = $1 AND status = 'scheduled'
        RETURNING id, match_id, user1_id, user2_id, venue, scheduled_at, status,
                  confirmed_by_user1, confirmed_by_user2, notes, no_show_user_id,
                  completed_at, created_at
    `

	err := r.db.QueryRowxContext(ctx, query, id, byUser1, !byUser1).StructScan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &s, true, nil
}

func (r *postgresRepository) UpdateNotes(ctx context.Context, id int64, notes string) (bool, error) {
	query := `
        UPDATE sessions
        SET notes = $2
        WHERE id = $1 AND status = 'scheduled'
    `

	res, err := r.db.ExecContext(ctx, query, id, notes)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

func (r *postgresRepository) MarkNoShow(ctx context.Context, id, noShowUserID int64) (bool, error) {
	query := `
        UPDATE sessions
        SET status = 'cancelled', no_show_user_id = $2
        WHERE id = $1 AND status = 'scheduled'
    `

	res, err := r.db.ExecContext(ctx, query, id, noShowUserID)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}
