// internal/session/models.go

package session

import "time"

// Session statuses
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Session is a scheduled practice meeting created against an accepted match.
// ConfirmedByUser1 means "user1 attests user2 completed their activity" and
// vice versa; the session completes exactly when both are true.
type Session struct {
	ID               int64      `json:"id" db:"id"`
	MatchID          int64      `json:"match_id" db:"match_id"`
	User1ID          int64      `json:"user1_id" db:"user1_id"`
	User2ID          int64      `json:"user2_id" db:"user2_id"`
	Venue            string     `json:"venue" db:"venue"`
	ScheduledAt      time.Time  `json:"scheduled_at" db:"scheduled_at"`
	Status           string     `json:"status" db:"status"`
	ConfirmedByUser1 bool       `json:"confirmed_by_user1" db:"confirmed_by_user1"`
	ConfirmedByUser2 bool       `json:"confirmed_by_user2" db:"confirmed_by_user2"`
	Notes            *string    `json:"notes,omitempty" db:"notes"`
	NoShowUserID     *int64     `json:"no_show_user_id,omitempty" db:"no_show_user_id"`
	CompletedAt      *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}

// HasParticipant reports whether userID belongs to the session
func (s *Session) HasParticipant(userID int64) bool {
	return s.User1ID == userID || s.User2ID == userID
}

// Terminal reports whether the session reached a terminal state
func (s *Session) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusCancelled
}
