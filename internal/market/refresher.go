package market

import (
	"context"
	"time"

	"github.com/rewired-gh/monkeyball/internal/logger"
	"github.com/rewired-gh/monkeyball/internal/models"
)

// Refresher periodically reloads the market data and publishes fresh state
// snapshots. Consumers drain Updates between simulation ticks; the channel
// holds a single pending snapshot and newer ones overwrite older unread
// ones, so a slow consumer only ever sees the latest state.
type Refresher struct {
	loader   *Loader
	interval time.Duration
	updates  chan models.MarketState
}

// NewRefresher wraps a loader with a refresh schedule.
func NewRefresher(loader *Loader, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Refresher{
		loader:   loader,
		interval: interval,
		updates:  make(chan models.MarketState, 1),
	}
}

// Updates delivers fresh market states as they are loaded.
func (r *Refresher) Updates() <-chan models.MarketState {
	return r.updates
}

// Run reloads on the configured interval until the context is cancelled.
// Blocking; intended for its own goroutine.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("market: refresher stopped")
			return ctx.Err()
		case <-ticker.C:
			r.loader.Reload()
			r.publish(r.loader.State())
		}
	}
}

func (r *Refresher) publish(state models.MarketState) {
	for {
		select {
		case r.updates <- state:
			return
		default:
			// Drop the stale unread snapshot and retry with the fresh one.
			select {
			case <-r.updates:
			default:
			}
		}
	}
}
