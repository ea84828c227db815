package memstore

import "time"

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithLatency delays every round trip by d.
func WithLatency(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.latency = d
		}
	}
}

// WithUnavailable starts the store in a simulated outage.
func WithUnavailable() Option {
	return func(s *Store) {
		s.available = false
	}
}
