// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load(ctx) layers defaults, an optional YAML file and RANKD_ env vars.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Supported store backends.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Backend selects the store: "redis" or "memory".
	Backend string `koanf:"backend"`

	// Redis connection settings.
	RedisHost     string `koanf:"redis_host"`
	RedisPort     int    `koanf:"redis_port"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// ConnectTimeoutMS bounds dialing and each command round trip.
	ConnectTimeoutMS int `koanf:"connect_timeout_ms"`

	// ReconnectIntervalMS is the pause between reconnect attempts.
	ReconnectIntervalMS int `koanf:"reconnect_interval_ms"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// ResultTimeoutMS bounds how long an HTTP read waits for its callback.
	ResultTimeoutMS int `koanf:"result_timeout_ms"`

	// Metrics settings. Labels and buckets are only practical to set from
	// the YAML file.
	MetricsEnabled           bool              `koanf:"metrics_enabled"`
	MetricsNamespace         string            `koanf:"metrics_namespace"`
	MetricsPrefix            string            `koanf:"metrics_prefix"`
	MetricsRefreshIntervalMS int               `koanf:"metrics_refresh_interval_ms"`
	MetricsLabels            map[string]string `koanf:"metrics_labels"`
	MetricsLatencyBucketsMS  []float64         `koanf:"metrics_latency_buckets_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		Backend:             BackendRedis,
		RedisHost:           "127.0.0.1",
		RedisPort:           6379,
		ConnectTimeoutMS:    10_000,
		ReconnectIntervalMS: 5_000,
		MaxLeaderboardLimit: 100,
		ResultTimeoutMS:     15_000,

		MetricsEnabled:           true,
		MetricsNamespace:         "rankd",
		MetricsRefreshIntervalMS: 10_000,
	}
}

// RedisAddr returns host:port for the redis backend.
func (c *Config) RedisAddr() string {
	return net.JoinHostPort(c.RedisHost, strconv.Itoa(c.RedisPort))
}

// ConnectTimeout returns ConnectTimeoutMS as a duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMS) * time.Millisecond
}

// ReconnectInterval returns ReconnectIntervalMS as a duration.
func (c *Config) ReconnectInterval() time.Duration {
	return time.Duration(c.ReconnectIntervalMS) * time.Millisecond
}

// ResultTimeout returns ResultTimeoutMS as a duration.
func (c *Config) ResultTimeout() time.Duration {
	return time.Duration(c.ResultTimeoutMS) * time.Millisecond
}

// MetricsRefreshInterval returns MetricsRefreshIntervalMS as a duration.
func (c *Config) MetricsRefreshInterval() time.Duration {
	return time.Duration(c.MetricsRefreshIntervalMS) * time.Millisecond
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Backend != BackendRedis && c.Backend != BackendMemory:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	case c.MaxLeaderboardLimit < 1:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	case c.ReconnectIntervalMS < 1:
		return fmt.Errorf("%w: reconnect_interval_ms must be positive", ErrInvalidConfig)
	case c.MetricsRefreshIntervalMS < 1:
		return fmt.Errorf("%w: metrics_refresh_interval_ms must be positive", ErrInvalidConfig)
	case !slices.IsSorted(c.MetricsLatencyBucketsMS):
		return fmt.Errorf("%w: metrics_latency_buckets_ms must be ascending", ErrInvalidConfig)
	}
	if c.Backend == BackendRedis {
		if strings.TrimSpace(c.RedisHost) == "" {
			return fmt.Errorf("%w: redis_host must not be empty", ErrInvalidConfig)
		}
		if c.RedisPort < 1 || c.RedisPort > 65535 {
			return fmt.Errorf("%w: redis_port %d out of range", ErrInvalidConfig, c.RedisPort)
		}
	}
	return nil
}
