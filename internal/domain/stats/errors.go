package stats

import "errors"

var (
	// ErrUnknownAttribute is returned when decoding a field outside the schema.
	ErrUnknownAttribute = errors.New("unknown attribute")
	// ErrMalformed is returned when a record cannot be decoded.
	ErrMalformed = errors.New("malformed record")
)
