// internal/reputation/models.go

package reputation

import "time"

// Badge classifications
const (
	BadgeGold  = "gold"
	BadgeGreen = "green"
	BadgeRed   = "red"
)

// Score is the derived reputation for one user. It is never persisted as its
// own row; it is recomputed from session history and cached.
type Score struct {
	UserID            int64     `json:"user_id"`
	Score             int       `json:"score"`
	CompletedSessions int       `json:"completed_sessions"`
	NoShows           int       `json:"no_shows"`
	Badge             string    `json:"badge"`
	AsOf              time.Time `json:"as_of"`
}

// Classify maps a score to a badge: gold at 10 and above, red below zero,
// green in between.
func Classify(score int) string {
	switch {
	case score >= 10:
		return BadgeGold
	case score < 0:
		return BadgeRed
	default:
		return BadgeGreen
	}
}
