package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_rate_limited_total",
			Help: "Requests rejected by the rate limiter, per operation class",
		},
		[]string{"class"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "resilience_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"breaker"},
	)
)
