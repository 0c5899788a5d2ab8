// workers/referral_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"proofly-rewards/models"
	"proofly-rewards/services"
)

// ReferralWorker drains the referral request queue. Delivery is
// at-least-once: a row picked up twice (poll racing a kick, or a crash after
// processing but before the status write) is re-run, and the engine's
// idempotence guard makes the re-run a no-op.
type ReferralWorker struct {
	referrals *services.ReferralService
	interval  time.Duration
	batchSize int
	kick      chan struct{}
}

func NewReferralWorker(referrals *services.ReferralService) *ReferralWorker {
	return &ReferralWorker{
		referrals: referrals,
		interval:  5 * time.Second,
		batchSize: 50,
		kick:      make(chan struct{}, 1),
	}
}

// Kick asks the worker to drain immediately instead of waiting for the next
// poll. Non-blocking; a pending kick absorbs further ones.
func (w *ReferralWorker) Kick() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

func (w *ReferralWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Referral Worker (referral_requests → attribution engine)…")
	go w.run(ctx)
}

func (w *ReferralWorker) run(ctx context.Context) {
	// Initial drain picks up anything enqueued while the service was down.
	w.Drain(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Drain(ctx)
		case <-w.kick:
			w.Drain(ctx)
		case <-ctx.Done():
			log.Println("⏹️ Referral Worker stopped")
			return
		}
	}
}

// Drain processes unprocessed requests oldest-first until the queue is
// empty or the context is cancelled.
func (w *ReferralWorker) Drain(ctx context.Context) {
	for {
		var batch []models.ReferralRequest
		if err := w.referrals.DB.
			Where("processed = ?", false).
			Order("created_at ASC").
			Limit(w.batchSize).
			Find(&batch).Error; err != nil {
			log.Printf("❌ Referral worker failed to fetch batch: %v", err)
			return
		}
		if len(batch) == 0 {
			return
		}

		for i := range batch {
			if ctx.Err() != nil {
				return
			}
			result := w.referrals.ProcessRequest(&batch[i])
			log.Printf("Referral request %s processed: %s", batch[i].ID, result)
		}

		if len(batch) < w.batchSize {
			return
		}
	}
}
