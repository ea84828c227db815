package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrMissingBody   = errors.New("missing request body")
	ErrInvalidLimit  = errors.New("limit must be a positive integer")
	ErrLimitExceeded = errors.New("limit exceeds maximum")
	ErrInvalidOrder  = errors.New("order must be asc or desc")
)
