package reputation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reputation_cache_hits_total",
			Help: "Reputation reads served from cache",
		},
	)

	cacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reputation_cache_misses_total",
			Help: "Reputation reads that required a recompute",
		},
	)
)
