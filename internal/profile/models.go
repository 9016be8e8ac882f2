// internal/profile/models.go
// Read-only view of the profile/location collaborator's data.

package profile

import "time"

// Experience levels on the three-point ordinal scale
const (
	LevelBeginner     = 1
	LevelIntermediate = 2
	LevelAdvanced     = 3
)

// UserLocationProfile is the engine's read-only view of a user.
// City and precise coordinates are mutually exclusive: a user in city-only
// privacy mode has no coordinates visible to the engine.
type UserLocationProfile struct {
	UserID          int64    `json:"user_id" db:"user_id"`
	DisplayName     string   `json:"display_name" db:"display_name"`
	City            *string  `json:"city,omitempty" db:"city"`
	Latitude        *float64 `json:"latitude,omitempty" db:"latitude"`
	Longitude       *float64 `json:"longitude,omitempty" db:"longitude"`
	CityOnly        bool     `json:"city_only" db:"city_only"`
	ExperienceLevel *int     `json:"experience_level,omitempty" db:"experience_level"`
	Archetype       *string  `json:"archetype,omitempty" db:"archetype"`
	MaxRadiusKm     float64  `json:"max_radius_km" db:"max_radius_km"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// MissingFields lists profile attributes a match-eligible user must have
func (p *UserLocationProfile) MissingFields() []string {
	var missing []string
	if p.ExperienceLevel == nil {
		missing = append(missing, "experience_level")
	}
	if p.Archetype == nil {
		missing = append(missing, "archetype")
	}
	if p.CityOnly {
		if p.City == nil {
			missing = append(missing, "city")
		}
	} else if p.Latitude == nil || p.Longitude == nil {
		missing = append(missing, "coordinates")
	}
	return missing
}

// Lookup result statuses. The collaborator may hand back partial records, so
// callers branch on the tag instead of probing field presence.
type LookupStatus int

const (
	LookupComplete LookupStatus = iota
	LookupIncomplete
	LookupNotFound
)

// LookupResult is a tagged profile lookup outcome
type LookupResult struct {
	Status  LookupStatus
	Profile *UserLocationProfile
	Missing []string
}
