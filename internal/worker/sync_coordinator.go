// Package worker hosts background loops that respect context cancellation.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/sigil-dev/sigil/internal/types"
)

// Runner executes one reconciliation pass.
type Runner interface {
	Run(ctx context.Context) *types.SyncSummary
}

// SyncCoordinator runs reconciliation passes on a fixed interval. Each pass
// is independent; a failed pass simply leaves records unsynced for the next
// tick.
type SyncCoordinator struct {
	reconciler Runner
	interval   time.Duration
}

// NewSyncCoordinator creates a coordinator that reconciles every interval.
func NewSyncCoordinator(r Runner, interval time.Duration) *SyncCoordinator {
	return &SyncCoordinator{reconciler: r, interval: interval}
}

// Run starts the coordinator loop. Blocks until ctx is cancelled.
func (c *SyncCoordinator) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "sync-coordinator",
		"action", "worker_started",
		"interval", c.interval.String(),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Reconcile immediately on start, then on each tick
	c.runPass(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "sync-coordinator",
				"action", "worker_stopped",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			c.runPass(ctx)
		}
	}
}

func (c *SyncCoordinator) runPass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	summary := c.reconciler.Run(ctx)
	if !summary.Clean() {
		slog.Warn("reconciliation pass had failures",
			"component", "worker",
			"worker", "sync-coordinator",
			"action", "pass_incomplete",
			"patterns_failed", summary.PatternsFailed,
			"solutions_failed", summary.SolutionsFailed,
			"errors", len(summary.Errors),
		)
	}
}
