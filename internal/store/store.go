package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sigil-dev/sigil/internal/types"
)

// Store defines the interface contract for the local pattern store: the
// append-only event log plus the deduplicated pattern index layered on it.
type Store interface {
	// Event log. Append-only; no update or delete is exposed.
	AppendEvent(ctx context.Context, typ types.EventType, phase, content string, metadata json.RawMessage) (string, error)
	RecentEvents(ctx context.Context, limit int) ([]types.Event, error)

	// Pattern index.
	CaptureError(ctx context.Context, p types.CaptureParams) (string, error)
	AddSolution(ctx context.Context, p types.SolutionParams) (string, error)
	GetPattern(ctx context.Context, signature string) (*types.Pattern, error)
	ListPatterns(ctx context.Context) ([]types.Pattern, error)
	InsertPatternIfAbsent(ctx context.Context, p types.Pattern) (bool, error)

	// Sync bookkeeping.
	UnsyncedPatterns(ctx context.Context) ([]types.Pattern, error)
	UnsyncedSolutions(ctx context.Context) ([]types.UnsyncedSolution, error)
	MarkPatternSynced(ctx context.Context, id, centralID string) error
	MarkSolutionSynced(ctx context.Context, eventID, centralRef string) error

	// Read-side aggregates consumed by the metrics engine.
	CountEvents(ctx context.Context, typ types.EventType) (int, error)
	CountEventsSince(ctx context.Context, since time.Time) (int, error)
	CountEventsOfTypeSince(ctx context.Context, typ types.EventType, since time.Time) (int, error)
	AvgSolutionEffectiveness(ctx context.Context) (float64, bool, error)
	LastMilestone(ctx context.Context) (*types.Event, error)

	Close() error
}
