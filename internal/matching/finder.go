// internal/matching/finder.go
// Candidate discovery and compatibility filtering.

package matching

import (
	"context"
	"math"
	"sort"

	"github.com/pairupapp/pairup-backend/internal/profile"
)

// ProfileStore is the slice of the profile collaborator the matching
// pipeline needs. Satisfied by *profile.Store.
type ProfileStore interface {
	Lookup(ctx context.Context, userID int64) (profile.LookupResult, error)
	ListCandidates(ctx context.Context, excludeUserID int64, limit int) ([]*profile.UserLocationProfile, error)
}

// Finder discovers nearby, eligible candidates for a requester
type Finder struct {
	profiles ProfileStore
	limit    int
}

// NewFinder creates a candidate finder
func NewFinder(profiles ProfileStore, candidateLimit int) *Finder {
	return &Finder{profiles: profiles, limit: candidateLimit}
}

// FindCandidates returns eligible candidates within radiusKm of the
// requester, sorted by distance ascending with candidate id as tie-breaker
// so identical inputs always produce identical output.
//
// A city-only requester is compared by city label equality only; no distance
// is computed because there are no coordinates to compute it from. A precise
// requester gets great-circle distances, and city-only candidates are not
// comparable so they are excluded.
func (f *Finder) FindCandidates(ctx context.Context, requester *profile.UserLocationProfile, radiusKm float64) ([]Candidate, error) {
	profiles, err := f.profiles.ListCandidates(ctx, requester.UserID, f.limit)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(profiles))
	for _, p := range profiles {
		// Incomplete profiles are "not yet eligible", not an error
		if p.ExperienceLevel == nil || p.Archetype == nil {
			continue
		}

		var distance float64
		if requester.CityOnly {
			if requester.City == nil || p.City == nil || *p.City != *requester.City {
				continue
			}
			// Same city, no measurable distance
			distance = 0
		} else {
			if p.CityOnly || p.Latitude == nil || p.Longitude == nil {
				continue
			}
			distance = haversineKm(*requester.Latitude, *requester.Longitude, *p.Latitude, *p.Longitude)
			if distance > radiusKm {
				continue
			}
		}

		candidates = append(candidates, Candidate{
			UserID:          p.UserID,
			DisplayName:     p.DisplayName,
			DistanceKm:      distance,
			ExperienceLevel: *p.ExperienceLevel,
			Archetype:       *p.Archetype,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].DistanceKm != candidates[j].DistanceKm {
			return candidates[i].DistanceKm < candidates[j].DistanceKm
		}
		return candidates[i].UserID < candidates[j].UserID
	})

	return candidates, nil
}

// FilterCompatible keeps candidates within one experience level of the
// requester, preserving order. An empty result is a normal outcome.
func FilterCompatible(requesterLevel int, candidates []Candidate) []Candidate {
	compatible := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		diff := requesterLevel - c.ExperienceLevel
		if diff < 0 {
			diff = -diff
		}
		if diff <= 1 {
			compatible = append(compatible, c)
		}
	}
	return compatible
}

// haversineKm computes great-circle distance between two coordinates
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371 // km

	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}
