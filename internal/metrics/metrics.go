// Package metrics computes derived statistics over the event log and
// pattern index. Pure read-side aggregation, recomputed on demand; the
// engine never mutates the store.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sigil-dev/sigil/internal/store"
	"github.com/sigil-dev/sigil/internal/types"
)

// Store defines the read operations the engine needs.
type Store interface {
	CountEvents(ctx context.Context, typ types.EventType) (int, error)
	CountEventsSince(ctx context.Context, since time.Time) (int, error)
	CountEventsOfTypeSince(ctx context.Context, typ types.EventType, since time.Time) (int, error)
	AvgSolutionEffectiveness(ctx context.Context) (float64, bool, error)
	LastMilestone(ctx context.Context) (*types.Event, error)
}

// Engine computes descriptive statistics from the local store.
type Engine struct {
	store Store
	now   func() time.Time
}

// NewEngine creates a metrics engine over the given store.
func NewEngine(s Store) *Engine {
	return &Engine{store: s, now: time.Now}
}

// Compute returns the current statistics snapshot.
func (e *Engine) Compute(ctx context.Context) (*types.Stats, error) {
	errorCount, err := e.store.CountEvents(ctx, types.EventError)
	if err != nil {
		return nil, fmt.Errorf("count errors: %w", err)
	}

	milestoneCount, err := e.store.CountEvents(ctx, types.EventMilestone)
	if err != nil {
		return nil, fmt.Errorf("count milestones: %w", err)
	}

	// Division by zero is guarded by a floor of 1, not by omission.
	if milestoneCount < 1 {
		milestoneCount = 1
	}
	quality := round2(float64(errorCount) / float64(milestoneCount))

	avg, ok, err := e.store.AvgSolutionEffectiveness(ctx)
	if err != nil {
		return nil, fmt.Errorf("average effectiveness: %w", err)
	}
	effectiveness := 0.0
	if ok {
		effectiveness = round2(avg)
	}

	velocity, err := e.store.CountEventsSince(ctx, e.now().Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("count recent events: %w", err)
	}

	return &types.Stats{
		QualityRatio:    quality,
		AIEffectiveness: effectiveness,
		DailyVelocity:   velocity,
	}, nil
}

// ContextSummary produces a one-line project status string from recent
// activity: errors in the last 24h and the latest milestone.
func (e *Engine) ContextSummary(ctx context.Context) (string, error) {
	recentErrors, err := e.store.CountEventsOfTypeSince(ctx, types.EventError, e.now().Add(-24*time.Hour))
	if err != nil {
		return "", fmt.Errorf("count recent errors: %w", err)
	}

	lastMilestone := "Project initialized"
	milestone, err := e.store.LastMilestone(ctx)
	switch {
	case err == nil:
		lastMilestone = milestone.Content
	case errors.Is(err, store.ErrNotFound):
		// keep the default
	default:
		return "", fmt.Errorf("last milestone: %w", err)
	}

	return fmt.Sprintf("Recent errors (24h): %d. Last milestone: %s.", recentErrors, lastMilestone), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
