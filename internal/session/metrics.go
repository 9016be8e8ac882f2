package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_created_total",
			Help: "Total number of sessions scheduled",
		},
	)

	sessionsCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_completed_total",
			Help: "Sessions that reached the completed state",
		},
	)

	sessionsNoShowTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_no_show_total",
			Help: "Sessions cancelled with a recorded no-show",
		},
	)
)
