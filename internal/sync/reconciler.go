package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sigil-dev/sigil/internal/types"
)

// Client defines the remote operations the reconciler drives.
type Client interface {
	Health(ctx context.Context) error
	SubmitPattern(ctx context.Context, sub PatternSubmission) (string, error)
	SubmitSolutions(ctx context.Context, batch []SolutionSubmission) (*BatchResult, error)
}

// Store defines the local bookkeeping operations the reconciler needs.
type Store interface {
	UnsyncedPatterns(ctx context.Context) ([]types.Pattern, error)
	UnsyncedSolutions(ctx context.Context) ([]types.UnsyncedSolution, error)
	MarkPatternSynced(ctx context.Context, id, centralID string) error
	MarkSolutionSynced(ctx context.Context, eventID, centralRef string) error
}

// Options carries per-instance identity attached to every submission.
type Options struct {
	InstanceID   string
	Language     string
	Technologies []string
}

// Reconciler drives the one-way Unsynced → Synced transition for local
// patterns and solutions. A record only becomes synced after the central
// authority acknowledges it; a failed attempt leaves it unsynced for the
// next pass.
type Reconciler struct {
	store  Store
	client Client
	opts   Options
}

// NewReconciler creates a reconciler over the given store and remote client.
func NewReconciler(s Store, c Client, opts Options) *Reconciler {
	return &Reconciler{store: s, client: c, opts: opts}
}

// Run executes one reconciliation pass and always returns a summary, even
// when the pass aborts at the connectivity probe. Patterns are pushed before
// solutions: solutions reference patterns by central id, so the dependency
// order is fixed.
func (r *Reconciler) Run(ctx context.Context) *types.SyncSummary {
	summary := &types.SyncSummary{Errors: []string{}}

	// Fail fast on an unreachable remote rather than attempting partial work.
	if err := r.client.Health(ctx); err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("remote unreachable: %v", err))
		slog.Warn("reconciliation aborted, remote unreachable",
			"component", "sync",
			"action", "health_probe_failed",
			"error", err,
		)
		return summary
	}

	r.syncPatterns(ctx, summary)
	r.syncSolutions(ctx, summary)

	slog.Info("reconciliation pass complete",
		"component", "sync",
		"action", "pass_complete",
		"patterns_synced", summary.PatternsSynced,
		"patterns_failed", summary.PatternsFailed,
		"solutions_synced", summary.SolutionsSynced,
		"solutions_failed", summary.SolutionsFailed,
	)

	return summary
}

// syncPatterns pushes every unsynced pattern, isolating failures per item:
// one pattern's rejection never blocks the rest of the phase.
func (r *Reconciler) syncPatterns(ctx context.Context, summary *types.SyncSummary) {
	patterns, err := r.store.UnsyncedPatterns(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("list unsynced patterns: %v", err))
		return
	}

	for _, p := range patterns {
		if ctx.Err() != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("pass cancelled: %v", ctx.Err()))
			return
		}

		centralID, err := r.client.SubmitPattern(ctx, PatternSubmission{
			InstanceID:     r.opts.InstanceID,
			ErrorSignature: p.Signature,
			ErrorCategory:  p.Category,
			Language:       r.opts.Language,
			Description:    p.Description,
			Technologies:   r.technologies(),
		})
		if err != nil {
			summary.PatternsFailed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("pattern %s: %v", p.Signature, err))
			slog.Warn("pattern sync failed",
				"component", "sync",
				"action", "pattern_failed",
				"signature", p.Signature,
				"error", err,
			)
			continue
		}

		if err := r.store.MarkPatternSynced(ctx, p.ID, centralID); err != nil {
			summary.PatternsFailed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("mark pattern %s synced: %v", p.Signature, err))
			continue
		}

		summary.PatternsSynced++
		slog.Info("pattern synced",
			"component", "sync",
			"action", "pattern_synced",
			"signature", p.Signature,
			"central_id", centralID,
		)
	}
}

// syncSolutions builds one batch from solutions whose owning pattern already
// has a central id. Solutions whose pattern is still unsynced count as
// failed for this pass and become eligible once their pattern succeeds.
//
// The batch contract returns accept/reject counts rather than per-item ids,
// so on a 2xx response every submitted solution is marked synced while the
// remote counts are surfaced on the summary. Known approximation; without
// per-item reporting it is ambiguous which items the accepted count covers.
func (r *Reconciler) syncSolutions(ctx context.Context, summary *types.SyncSummary) {
	solutions, err := r.store.UnsyncedSolutions(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("list unsynced solutions: %v", err))
		return
	}

	var batch []SolutionSubmission
	var members []types.UnsyncedSolution
	for _, sol := range solutions {
		if sol.CentralPatternID == nil || *sol.CentralPatternID == "" {
			summary.SolutionsFailed++
			slog.Warn("solution deferred, pattern not yet synced",
				"component", "sync",
				"action", "solution_deferred",
				"event_id", sol.EventID,
				"signature", sol.TargetSignature,
			)
			continue
		}

		batch = append(batch, SolutionSubmission{
			PatternID:       *sol.CentralPatternID,
			Title:           solutionTitle(sol.Text),
			Description:     sol.Text,
			CodeSnippet:     sol.CodeSnippet,
			DifficultyLevel: "intermediate",
			Technologies:    r.technologies(),
		})
		members = append(members, sol)
	}

	if len(batch) == 0 {
		return
	}

	if ctx.Err() != nil {
		summary.SolutionsFailed += len(batch)
		summary.Errors = append(summary.Errors, fmt.Sprintf("pass cancelled: %v", ctx.Err()))
		return
	}

	result, err := r.client.SubmitSolutions(ctx, batch)
	if err != nil {
		summary.SolutionsFailed += len(batch)
		summary.Errors = append(summary.Errors, fmt.Sprintf("solution batch: %v", err))
		slog.Warn("solution batch failed",
			"component", "sync",
			"action", "solution_batch_failed",
			"count", len(batch),
			"error", err,
		)
		return
	}

	summary.BatchAccepted = result.Accepted
	summary.BatchFailed = result.Failed

	// Final bookkeeping stays serialized against the local store.
	for i, sol := range members {
		if err := r.store.MarkSolutionSynced(ctx, sol.EventID, batch[i].PatternID); err != nil {
			summary.SolutionsFailed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("mark solution %s synced: %v", sol.EventID, err))
			continue
		}
		summary.SolutionsSynced++
	}

	slog.Info("solution batch submitted",
		"component", "sync",
		"action", "solution_batch_submitted",
		"submitted", len(batch),
		"accepted", result.Accepted,
		"rejected", result.Failed,
	)
}

func (r *Reconciler) technologies() []string {
	if r.opts.Technologies == nil {
		return []string{}
	}
	return r.opts.Technologies
}

// solutionTitle derives a short title from the remediation text: its first
// line, bounded at 80 runes.
func solutionTitle(text string) string {
	title := text
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	runes := []rune(title)
	if len(runes) > 80 {
		title = string(runes[:80])
	}
	return strings.TrimSpace(title)
}
