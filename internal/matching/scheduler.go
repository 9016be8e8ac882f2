package matching

import (
	"context"
	"log"
	"time"
)

// Scheduler runs periodic matching maintenance
type Scheduler struct {
	service  Service
	interval time.Duration
}

// NewScheduler creates a scheduler that expires stale pending matches
func NewScheduler(service Service, interval time.Duration) *Scheduler {
	return &Scheduler{service: service, interval: interval}
}

// Start blocks until ctx is cancelled; run it in a goroutine
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.service.ExpireStalePendingMatches(ctx); err != nil {
				log.Printf("Match expiry task failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
