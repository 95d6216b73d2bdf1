package types

import (
	"encoding/json"
	"time"
)

// EventType classifies an event in the append-only log.
type EventType string

const (
	EventError     EventType = "error"
	EventSolution  EventType = "solution"
	EventMilestone EventType = "milestone"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventError, EventSolution, EventMilestone:
		return true
	}
	return false
}

// Severity levels for captured errors. Stored in event metadata, never
// validated beyond being a string.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// PhaseUnknown is the default lifecycle tag for events captured outside a
// tracked phase.
const PhaseUnknown = "unknown"

// Event is an immutable record of a single occurrence. Events are never
// mutated or deleted after insertion; the log is the system of record for
// what happened when.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Phase     string          `json:"phase"`
	Content   string          `json:"content"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CentralID *string         `json:"central_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// ErrorMetadata is the metadata payload attached to error events.
type ErrorMetadata struct {
	Severity  string          `json:"severity"`
	Category  string          `json:"category,omitempty"`
	Signature string          `json:"signature"`
	Context   json.RawMessage `json:"context,omitempty"`
}

// SolutionMetadata is the metadata payload attached to solution events.
type SolutionMetadata struct {
	Effectiveness   int    `json:"effectiveness"`
	TargetSignature string `json:"target_signature"`
	CodeSnippet     string `json:"code_snippet,omitempty"`
}

// Pattern is the deduplicated identity of a recurring error. Exactly one
// pattern exists per distinct signature; occurrence_count equals the number
// of error events sharing that signature.
type Pattern struct {
	ID               string    `json:"id"`
	Signature        string    `json:"signature"`
	Category         string    `json:"category,omitempty"`
	Description      string    `json:"description,omitempty"`
	OccurrenceCount  int       `json:"occurrence_count"`
	Solution         *string   `json:"solution,omitempty"`
	FirstSeenAt      time.Time `json:"first_seen_at"`
	LastSeenAt       time.Time `json:"last_seen_at"`
	CentralPatternID *string   `json:"central_pattern_id,omitempty"`
}

// Synced reports whether the pattern has been acknowledged by the central
// authority. Absence of a central id means locally known only.
func (p *Pattern) Synced() bool {
	return p.CentralPatternID != nil && *p.CentralPatternID != ""
}

// CaptureParams holds the inputs to an error capture.
type CaptureParams struct {
	Signature   string          // optional; derived from Description when empty
	Category    string          //
	Description string          //
	Severity    string          // defaults to medium
	Phase       string          // defaults to unknown
	Context     json.RawMessage // optional structured context
}

// SolutionParams holds the inputs to a solution recording.
type SolutionParams struct {
	Signature     string // signature of the pattern this solves
	Text          string // remediation text
	Effectiveness int    // 1-5; at or above the proven threshold overwrites the pattern's solution
	CodeSnippet   string // optional
	Phase         string // defaults to unknown
}

// UnsyncedSolution is a solution-bearing event joined with its owning
// pattern's sync state, as consumed by the reconciler.
type UnsyncedSolution struct {
	EventID          string
	TargetSignature  string
	Text             string
	Effectiveness    int
	CodeSnippet      string
	CentralPatternID *string // nil while the owning pattern is unsynced
}

// Stats is the read-side aggregate produced by the metrics engine.
type Stats struct {
	QualityRatio    float64 `json:"quality_ratio"`    // errors per milestone, floor 1
	AIEffectiveness float64 `json:"ai_effectiveness"` // mean solution effectiveness, 0.0 when none
	DailyVelocity   int     `json:"daily_velocity"`   // events in the last 24h
}

// SyncSummary reports the outcome of one reconciliation pass. It is always
// returned, never raised, even when the pass aborts at the connectivity probe.
type SyncSummary struct {
	PatternsSynced  int      `json:"patterns_synced"`
	PatternsFailed  int      `json:"patterns_failed"`
	SolutionsSynced int      `json:"solutions_synced"`
	SolutionsFailed int      `json:"solutions_failed"`
	BatchAccepted   int      `json:"batch_accepted"` // remote-reported accept count, informational
	BatchFailed     int      `json:"batch_failed"`   // remote-reported reject count, informational
	Errors          []string `json:"errors"`
}

// Clean reports whether the pass completed without failures.
func (s *SyncSummary) Clean() bool {
	return s.PatternsFailed == 0 && s.SolutionsFailed == 0 && len(s.Errors) == 0
}
