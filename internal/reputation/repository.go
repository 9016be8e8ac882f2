// internal/reputation/repository.go

package reputation

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Repository reads session outcome counts for a user
type Repository interface {
	CountOutcomes(ctx context.Context, userID int64) (completed, noShows int, err error)
}

type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a reputation repository
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CountOutcomes(ctx context.Context, userID int64) (int, int, error) {
	var counts struct {
		Completed int `db:"completed"`
		NoShows   int `db:"no_shows"`
	}

	query := `
        SELECT
            COUNT(*) FILTER (WHERE status = 'completed') AS completed,
            COUNT(*) FILTER (WHERE no_show_user_id = $1) AS no_shows
        FROM sessions
        WHERE user1_id = $1 OR user2_id = $1
    `

	if err := r.db.GetContext(ctx, &counts, query, userID); err != nil {
		return 0, 0, err
	}

	return counts.Completed, counts.NoShows, nil
}
