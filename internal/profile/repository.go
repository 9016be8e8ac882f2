// internal/profile/repository.go
// Postgres reads against the profile collaborator's tables. The engine is
// never a writer here.

package profile

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// ErrProfileNotFound is returned when no profile row exists for a user
var ErrProfileNotFound = errors.New("profile not found")

// Repository reads user location profiles
type Repository interface {
	GetProfile(ctx context.Context, userID int64) (*UserLocationProfile, error)
	ListProfiles(ctx context.Context, excludeUserID int64, limit int) ([]*UserLocationProfile, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a read-only profile repository
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) GetProfile(ctx context.Context, userID int64) (*UserLocationProfile, error) {
	var p UserLocationProfile
	query := `
        SELECT user_id, display_name, city, latitude, longitude, city_only,
               experience_level, archetype, max_radius_km, updated_at
        FROM user_location_profiles
        WHERE user_id = $1
    `

	err := r.db.GetContext(ctx, &p, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *postgresRepository) ListProfiles(ctx context.Context, excludeUserID int64, limit int) ([]*UserLocationProfile, error) {
	var profiles []*UserLocationProfile
	query := `
        SELECT user_id, display_name, city, latitude, longitude, city_only,
               experience_level, archetype, max_radius_km, updated_at
        FROM user_location_profiles
        WHERE user_id <> $1
        ORDER BY user_id
        LIMIT $2
    `

	err := r.db.SelectContext(ctx, &profiles, query, excludeUserID, limit)
	if err != nil {
		return nil, err
	}

	return profiles, nil
}
