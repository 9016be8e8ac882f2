// internal/matching/models.go

package matching

import "time"

// Match statuses
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusDeclined = "declined"
	StatusExpired  = "expired"
)

// Match is a proposed or realized pairing. Participants are stored in
// canonical order (smaller id first) so any unordered pair maps to exactly
// one row.
type Match struct {
	ID          int64      `json:"id" db:"id"`
	User1ID     int64      `json:"user1_id" db:"user1_id"`
	User2ID     int64      `json:"user2_id" db:"user2_id"`
	Status      string     `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty" db:"responded_at"`
}

// CounterpartID returns the other participant's id
func (m *Match) CounterpartID(userID int64) int64 {
	if m.User1ID == userID {
		return m.User2ID
	}
	return m.User1ID
}

// HasParticipant reports whether userID is part of the match
func (m *Match) HasParticipant(userID int64) bool {
	return m.User1ID == userID || m.User2ID == userID
}

// CanonicalPair orders two user ids so the smaller comes first. Applied
// before every match lookup and write.
func CanonicalPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

// Candidate is one nearby, eligible user found by the Candidate Finder
type Candidate struct {
	UserID          int64   `json:"user_id"`
	DisplayName     string  `json:"display_name"`
	DistanceKm      float64 `json:"distance_km"`
	ExperienceLevel int     `json:"experience_level"`
	Archetype       string  `json:"archetype"`
}

// CounterpartSummary is the basic profile returned alongside a match
type CounterpartSummary struct {
	UserID          int64   `json:"user_id"`
	DisplayName     string  `json:"display_name"`
	ExperienceLevel *int    `json:"experience_level,omitempty"`
	Archetype       *string `json:"archetype,omitempty"`
	City            *string `json:"city,omitempty"`
}
