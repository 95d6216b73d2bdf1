// Package capture routes Go errors into the pattern store through an
// explicit scoped-resource wrapper: acquire a recorder, run the guarded
// work, and any error carried out of it is captured before being returned
// unchanged.
package capture

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sigil-dev/sigil/internal/types"
)

// Store defines the single store operation the recorder needs.
type Store interface {
	CaptureError(ctx context.Context, p types.CaptureParams) (string, error)
}

// Recorder captures errors into the local pattern store.
type Recorder struct {
	store    Store
	phase    string
	severity string
}

// NewRecorder creates a recorder. Empty phase/severity fall back to the
// store defaults (unknown, medium).
func NewRecorder(s Store, phase, severity string) *Recorder {
	return &Recorder{store: s, phase: phase, severity: severity}
}

// FromError captures a Go error: the error string becomes the signature and
// the dynamic type becomes the category, so repeated occurrences of the
// same error converge on one pattern. Returns the event id.
func (r *Recorder) FromError(ctx context.Context, err error) (string, error) {
	if err == nil {
		return "", nil
	}

	return r.store.CaptureError(ctx, types.CaptureParams{
		Signature:   err.Error(),
		Category:    fmt.Sprintf("%T", err),
		Description: err.Error(),
		Severity:    r.severity,
		Phase:       r.phase,
	})
}

// Do runs fn and captures any error it returns before handing it back
// unchanged. A capture failure is logged, never allowed to mask the
// original error.
func (r *Recorder) Do(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}

	if _, captureErr := r.FromError(ctx, err); captureErr != nil {
		slog.Error("error capture failed",
			"component", "capture",
			"error", captureErr,
			"original_error", err,
		)
	}

	return err
}
