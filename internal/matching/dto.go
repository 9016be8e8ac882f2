// internal/matching/dto.go
package matching

// DTOs for API requests/responses

type FindMatchDTO struct {
	// RadiusKm overrides the requester's stored radius; 0 keeps the stored one
	RadiusKm float64 `json:"radius_km,omitempty" validate:"omitempty,min=1,max=100"`
}

type RespondMatchDTO struct {
	Accept *bool `json:"accept" validate:"required"`
}

// MatchResult is the outcome of FindOrCreateMatch. Matched=false with an
// empty Match is the "no candidates available" success variant, not an error.
type MatchResult struct {
	Matched     bool                `json:"matched"`
	Match       *Match              `json:"match,omitempty"`
	Counterpart *CounterpartSummary `json:"counterpart,omitempty"`
	Reason      string              `json:"reason,omitempty"`
}
