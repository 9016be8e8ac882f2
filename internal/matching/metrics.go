package matching

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	matchesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_matches_created_total",
			Help: "Total number of matches created",
		},
	)

	noCandidatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_no_candidates_total",
			Help: "Match requests that found no eligible candidate",
		},
	)

	findDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matching_find_duration_seconds",
			Help:    "Duration of the full matching pipeline",
			Buckets: prometheus.DefBuckets,
		},
	)
)
