// Package reaper runs the background sweep that evicts idle rooms.
//
// The reaper is the only cleanup path for rooms whose clients stopped
// sending events without a transport-level disconnect. It is a pure
// in-memory scan and cannot fail; removals are logged for observability
// only.
package reaper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/doommaze/relay/game/registry"
)

// Reaper periodically removes rooms that have been inactive beyond a
// threshold.
type Reaper struct {
	registry  *registry.Registry
	interval  time.Duration
	threshold time.Duration
	logger    *zap.Logger

	// onReap, when set, observes each sweep's removals. Used for metrics.
	onReap func(removed []string)
}

// New creates a reaper over the given registry. Interval and threshold are
// policy values from configuration, not invariants.
func New(reg *registry.Registry, interval, threshold time.Duration, logger *zap.Logger) *Reaper {
	return &Reaper{
		registry:  reg,
		interval:  interval,
		threshold: threshold,
		logger:    logger,
	}
}

// OnReap registers a callback invoked with the room codes removed by each
// sweep that removed anything.
func (r *Reaper) OnReap(fn func(removed []string)) {
	r.onReap = fn
}

// Run sweeps on a fixed ticker until ctx is cancelled. Call it on its own
// goroutine.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("idle reaper started",
		zap.Duration("interval", r.interval),
		zap.Duration("threshold", r.threshold))

	for {
		select {
		case now := <-ticker.C:
			r.Sweep(now)
		case <-ctx.Done():
			r.logger.Info("idle reaper stopped")
			return
		}
	}
}

// Sweep runs a single pass, removing every room idle past the threshold.
func (r *Reaper) Sweep(now time.Time) {
	removed := r.registry.SweepIdle(now, r.threshold)
	if len(removed) == 0 {
		return
	}

	r.logger.Info("reaped idle rooms",
		zap.Strings("rooms", removed),
		zap.Int("count", len(removed)))

	if r.onReap != nil {
		r.onReap(removed)
	}
}
