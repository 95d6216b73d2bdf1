// Package sync pushes locally-originated patterns and solutions to the
// central knowledge authority and records the local-to-central identity
// mapping. A reconciliation pass is safe to re-run after partial failure.
package sync

import "encoding/json"

// PatternSubmission is the wire payload for submitting one pattern.
type PatternSubmission struct {
	InstanceID     string          `json:"instance_id"`
	ErrorSignature string          `json:"error_signature"`
	ErrorCategory  string          `json:"error_category"`
	Language       string          `json:"language"`
	Description    string          `json:"description"`
	Technologies   []string        `json:"technologies"`
	Context        json.RawMessage `json:"context,omitempty"`
}

// patternSubmitResponse is the central authority's reply to a pattern
// submission. Exactly one of the two ids is populated: a newly minted id, or
// the existing id when the authority already holds an equivalent pattern
// (central dedup by signature is authoritative).
type patternSubmitResponse struct {
	ID                string `json:"id,omitempty"`
	ExistingPatternID string `json:"existing_pattern_id,omitempty"`
}

// SolutionSubmission is one element of the batch solution payload.
type SolutionSubmission struct {
	PatternID       string   `json:"pattern_id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	CodeSnippet     string   `json:"code_snippet,omitempty"`
	DifficultyLevel string   `json:"difficulty_level"`
	Technologies    []string `json:"technologies"`
}

// BatchResult reports the central authority's accept/reject counts for one
// solution batch. The contract returns counts, not per-item ids.
type BatchResult struct {
	Accepted int `json:"accepted"`
	Failed   int `json:"failed"`
}
