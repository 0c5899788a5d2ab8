// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartStaleRequestSweeper watches for referral requests that sat
// unprocessed past the cutoff — the worker fell behind, or a terminal-state
// write failed. It logs each one loudly and nudges the worker via kick.
// Re-running a request is safe: the engine's referredBy guard makes
// redelivery a no-op.
func (s *ReferralService) StartStaleRequestSweeper(kick func()) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			stale, err := s.StaleRequests(5 * time.Minute)
			if err != nil {
				log.Printf("[Sweeper] DB error: %v", err)
				return
			}
			if len(stale) == 0 {
				return
			}
			for _, r := range stale {
				log.Printf("🚨 [Sweeper] Referral request %s (newUid=%s) unprocessed since %s", r.ID, r.NewUID, r.CreatedAt.Format(time.RFC3339))
			}
			if kick != nil {
				kick()
			}
		}),
	)
}
