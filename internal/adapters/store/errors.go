package store

import "errors"

// Sentinel kinds for store errors.
var (
	ErrDisconnected    = errors.New("store disconnected")
	ErrWrongType       = errors.New("operation against a key holding the wrong kind of value")
	ErrUnexpectedReply = errors.New("unexpected reply from store")
)
