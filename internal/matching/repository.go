// internal/matching/repository.go

package matching

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	// ErrMatchNotFound is returned when no match row exists for an id
	ErrMatchNotFound = errors.New("match not found")
	// ErrUserHasPendingMatch is returned when an insert hits the per-user
	// pending index: one of the participants already holds a pending match
	// with someone else
	ErrUserHasPendingMatch = errors.New("user already has a pending match")
)

// pq error code for unique constraint violations
const uniqueViolation = "23505"

// Repository persists matches
type Repository interface {
	// CreateMatch inserts a pending match for the canonical pair. On a
	// uniqueness conflict against the pair index the existing
	// pending/accepted row is returned with created=false instead of an
	// error, closing the check-then-act race between two users who pick
	// each other. A conflict against the per-user pending indexes surfaces
	// as ErrUserHasPendingMatch.
	CreateMatch(ctx context.Context, user1ID, user2ID int64) (match *Match, created bool, err error)

	GetMatch(ctx context.Context, id int64) (*Match, error)
	GetPendingMatchForUser(ctx context.Context, userID int64) (*Match, error)
	GetActiveMatchForPair(ctx context.Context, user1ID, user2ID int64) (*Match, error)
	ListRecentPartnerIDs(ctx context.Context, userID int64, since time.Time) ([]int64, error)

	// ListUsersWithPendingMatch returns the subset of userIDs currently
	// holding a pending match
	ListUsersWithPendingMatch(ctx context.Context, userIDs []int64) ([]int64, error)
	ListUserMatches(ctx context.Context, userID int64) ([]*Match, error)

	// UpdateMatchStatus transitions a pending match; returns false when the
	// row was not pending anymore (compare-and-set).
	UpdateMatchStatus(ctx context.Context, id int64, status string) (bool, error)

	ExpirePendingOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a match repository
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateMatch(ctx context.Context, user1ID, user2ID int64) (*Match, bool, error) {
	user1ID, user2ID = CanonicalPair(user1ID, user2ID)

	var m Match
	query := `
        INSERT INTO matches (user1_id, user2_id, status)
        VALUES ($1, $2, 'pending')
        RETURNING id, user1_id, user2_id, status, created_at, responded_at
    `

	err := r.db.QueryRowxContext(ctx, query, user1ID, user2ID).StructScan(&m)
	if err == nil {
		return &m, true, nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		existing, lookupErr := r.GetActiveMatchForPair(ctx, user1ID, user2ID)
		if lookupErr == nil {
			return existing, false, nil
		}
		if errors.Is(lookupErr, ErrMatchNotFound) {
			// No active row for the pair, so a per-user pending index
			// fired: one participant is already pending with someone else
			return nil, false, ErrUserHasPendingMatch
		}
		return nil, false, lookupErr
	}

	return nil, false, err
}

func (r *postgresRepository) GetMatch(ctx context.Context, id int64) (*Match, error) {
	var m Match
	query := `
        SELECT id, user1_id, user2_id, status, created_at, responded_at
        FROM matches
        WHERE id = $1
    `

	err := r.db.GetContext(ctx, &m, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}

	return &m, nil
}

func (r *postgresRepository) GetPendingMatchForUser(ctx context.Context, userID int64) (*Match, error) {
	var m Match
	query := `
        SELECT id, user1_id, user2_id, status, created_at, responded_at
        FROM matches
        WHERE (user1_id = $1 OR user2_id = $1) AND status = 'pending'
        ORDER BY created_at
        LIMIT 1
    `

	err := r.db.GetContext(ctx, &m, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &m, nil
}

func (r *postgresRepository) GetActiveMatchForPair(ctx context.Context, user1ID, user2ID int64) (*Match, error) {
	user1ID, user2ID = CanonicalPair(user1ID, user2ID)

	var m Match
	query := `
        SELECT id, user1_id, user2_id, status, created_at, responded_at
        FROM matches
        WHERE user1_id = $1 AND user2_id = $2 AND status IN ('pending', 'accepted')
        LIMIT 1
    `

	err := r.db.GetContext(ctx, &m, query, user1ID, user2ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}

	return &m, nil
}

func (r *postgresRepository) ListRecentPartnerIDs(ctx context.Context, userID int64, since time.Time) ([]int64, error) {
	var partnerIDs []int64
	query := `
        SELECT CASE WHEN user1_id = $1 THEN user2_id ELSE user1_id END
        FROM matches
        WHERE (user1_id = $1 OR user2_id = $1) AND created_at >= $2
    `

	err := r.db.SelectContext(ctx, &partnerIDs, query, userID, since)
	if err != nil {
		return nil, err
	}

	return partnerIDs, nil
}

func (r *postgresRepository) ListUsersWithPendingMatch(ctx context.Context, userIDs []int64) ([]int64, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	var rows []struct {
		User1ID int64 `db:"user1_id"`
		User2ID int64 `db:"user2_id"`
	}
	query := `
        SELECT user1_id, user2_id
        FROM matches
        WHERE status = 'pending' AND (user1_id = ANY($1) OR user2_id = ANY($1))
    `

	err := r.db.SelectContext(ctx, &rows, query, pq.Array(userIDs))
	if err != nil {
		return nil, err
	}

	wanted := make(map[int64]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}

	seen := make(map[int64]bool)
	var busy []int64
	for _, row := range rows {
		for _, id := range []int64{row.User1ID, row.User2ID} {
			if wanted[id] && !seen[id] {
				seen[id] = true
				busy = append(busy, id)
			}
		}
	}
	return busy, nil
}

func (r *postgresRepository) ListUserMatches(ctx context.Context, userID int64) ([]*Match, error) {
	var matches []*Match
	query := `
        SELECT id, user1_id, user2_id, status, created_at, responded_at
        FROM matches
        WHERE user1_id = $1 OR user2_id = $1
        ORDER BY created_at DESC
    `

	err := r.db.SelectContext(ctx, &matches, query, userID)
	if err != nil {
		return nil, err
	}

	return matches, nil
}

func (r *postgresRepository) UpdateMatchStatus(ctx context.Context, id int64, status string) (bool, error) {
	query := `
        UPDATE matches
        SET status = $2, responded_at = NOW()
        WHERE id = $1 AND status = 'pending'
    `

	res, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

func (r *postgresRepository) ExpirePendingOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
        UPDATE matches
        SET status = 'expired'
        WHERE status = 'pending' AND created_at < $1
    `

	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
