package ranking

import (
	"time"

	"github.com/okian/rankd/pkg/logger"
)

// DefaultReconnectInterval is the wait between reconnect attempts.
const DefaultReconnectInterval = 5 * time.Second

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithReconnectInterval sets the wait between reconnect attempts.
func WithReconnectInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.reconnectInterval = d
		}
	}
}

// WithLogger sets a custom logger for the server.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
