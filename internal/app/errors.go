package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrUnknownBackend = errors.New("unknown backend")
	ErrRejected       = errors.New("operation rejected")
	ErrNotFound       = errors.New("player not found")
	ErrTimeout        = errors.New("timed out waiting for result")
)
