// internal/session/dto.go
package session

// DTOs for API requests/responses

type CreateSessionDTO struct {
	MatchID int64  `json:"match_id" validate:"required"`
	Venue   string `json:"venue" validate:"required,min=2,max=200"`
	// ScheduledAt must be RFC 3339 with an explicit offset; naive timestamps
	// are rejected rather than silently assumed to be UTC
	ScheduledAt string `json:"scheduled_at" validate:"required"`
}

type ConfirmCompletionDTO struct {
	TargetUserID int64 `json:"target_user_id" validate:"required"`
}

type UpdateNotesDTO struct {
	Notes string `json:"notes"`
}

type MarkNoShowDTO struct {
	NoShowUserID int64 `json:"no_show_user_id" validate:"required"`
}

// ConfirmResult reports the outcome of a confirmation
type ConfirmResult struct {
	Session       *Session `json:"session"`
	BothConfirmed bool     `json:"both_confirmed"`
}
