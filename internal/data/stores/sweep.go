package stores

import (
	"context"
	"time"

	"github.com/colonyops/cinq/internal/core/logging"
)

// Sweeper removes expired entries.
type Sweeper interface {
	SweepExpired(ctx context.Context) error
}

// Sweep calls s.SweepExpired every interval. It blocks until ctx is cancelled.
func Sweep(ctx context.Context, s Sweeper, interval time.Duration) {
	log := logging.Component("kv-sweep")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepExpired(ctx); err != nil {
				log.Debug().Err(err).Msg("kv sweep failed")
			}
		}
	}
}
