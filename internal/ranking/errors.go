package ranking

import "errors"

// Sentinel kinds for failed operations. They are logged and never returned to
// callers of the public surface.
var (
	// ErrNothingDeleted means the primary delete removed nothing.
	ErrNothingDeleted = errors.New("delete removed nothing")
	// ErrRecordUnavailable means an update could not read the record it merges into.
	ErrRecordUnavailable = errors.New("record missing or unreadable")

	errNoop = errors.New("no-op")
)
