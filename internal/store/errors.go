package store

import "errors"

var (
	// ErrStorageUnavailable indicates the local database could not be opened
	// or written. Fatal to the calling operation, never swallowed.
	ErrStorageUnavailable = errors.New("local storage unavailable")

	// ErrValidation indicates malformed input to a capture or solution
	// operation. Rejected before any write occurs.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates the requested pattern or event does not exist.
	ErrNotFound = errors.New("record not found")
)
