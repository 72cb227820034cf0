package notify

import (
	"context"
	"log"
	"time"

	"github.com/amanazads/flashbites-sub000/repository"
)

// Sweeper periodically removes notifications whose expiry has passed.
type Sweeper struct {
	notifications repository.NotificationRepositoryI
	interval      time.Duration
}

// NewSweeper creates a Sweeper with the given cadence.
func NewSweeper(notifications repository.NotificationRepositoryI, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{notifications: notifications, interval: interval}
}

// Run sweeps on a ticker until the context is cancelled. Failures are
// logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.notifications.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("sweeper: delete expired notifications: %v", err)
		return
	}
	if n > 0 {
		log.Printf("sweeper: removed %d expired notifications", n)
	}
}
