// Package service wires the ranking server to its configured backend and
// exposes it to the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/rankd/internal/adapters/store/memstore"
	"github.com/okian/rankd/internal/adapters/store/redisstore"
	"github.com/okian/rankd/internal/config"
	"github.com/okian/rankd/internal/domain/model"
	"github.com/okian/rankd/internal/domain/stats"
	"github.com/okian/rankd/internal/domain/types"
	"github.com/okian/rankd/internal/ranking"
	"github.com/okian/rankd/pkg/logger"
)

const defaultResultTimeout = 5 * time.Second

// Service implements the API dependencies on top of a ranking.Server.
type Service struct {
	mu sync.RWMutex

	server *ranking.Server
	mem    *memstore.Store

	// Configuration
	backend           string
	redis             redisstore.Options
	reconnectInterval time.Duration
	resultTimeout     time.Duration

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithBackend selects config.BackendRedis or config.BackendMemory.
func WithBackend(backend string) Option {
	return func(s *Service) {
		if backend != "" {
			s.backend = backend
		}
	}
}

// WithRedis sets the Redis connection options.
func WithRedis(o redisstore.Options) Option {
	return func(s *Service) {
		s.redis = o
	}
}

// WithReconnectInterval sets the wait between reconnect attempts.
func WithReconnectInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.reconnectInterval = d
		}
	}
}

// WithResultTimeout bounds how long reads wait for their callback.
func WithResultTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.resultTimeout = d
		}
	}
}

// WithMemoryStore runs the memory backend on mem instead of a fresh store.
func WithMemoryStore(mem *memstore.Store) Option {
	return func(s *Service) {
		if mem != nil {
			s.backend = config.BackendMemory
			s.mem = mem
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// FromConfig translates loaded configuration into options.
func FromConfig(cfg *config.Config) []Option {
	return []Option{
		WithBackend(cfg.Backend),
		WithRedis(redisstore.Options{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Timeout:  cfg.ConnectTimeout(),
		}),
		WithReconnectInterval(cfg.ReconnectInterval()),
		WithResultTimeout(cfg.ResultTimeout()),
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		backend:           config.BackendMemory,
		redis:             redisstore.Options{Host: "127.0.0.1", Port: 6379, Timeout: 10 * time.Second},
		reconnectInterval: ranking.DefaultReconnectInterval,
		resultTimeout:     defaultResultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the ranking server. A store that is down does not fail Start;
// the server keeps reconnecting in the background.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	opts := []ranking.Option{
		ranking.WithReconnectInterval(s.reconnectInterval),
		ranking.WithLogger(s.logger.Named("ranking")),
	}
	switch s.backend {
	case config.BackendRedis:
		s.logger.Info(ctx, "using redis backend", logger.String("addr", s.redis.Addr()))
		s.server = ranking.New(ctx, redisstore.New(s.redis), opts...)
	case config.BackendMemory:
		if s.mem == nil {
			s.mem = memstore.New()
		}
		s.logger.Info(ctx, "using memory backend")
		s.server = ranking.New(ctx, s.mem, opts...)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, s.backend)
	}

	s.started = true
	s.logger.Info(ctx, "ranking service started",
		logger.String("backend", s.backend),
		logger.Duration("reconnectInterval", s.reconnectInterval),
	)
	return nil
}

// Stop closes the ranking server, waiting for in-flight operations.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(context.Background(), "stopping ranking service...")
	if err := s.server.Close(); err != nil {
		s.logger.Error(context.Background(), "closing ranking server", logger.Error(err))
	}
	s.started = false
	s.logger.Info(context.Background(), "ranking service stopped")
}

// Server returns the underlying ranking server, nil before Start.
func (s *Service) Server() *ranking.Server {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.server
}

func (s *Service) running() (*ranking.Server, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.server, nil
}

// SetPlayer submits an overwrite of the player's record.
func (s *Service) SetPlayer(ctx context.Context, nickname, prefix string, rec stats.Stats) error {
	srv, err := s.running()
	if err != nil {
		return err
	}
	if !srv.SetRanking(ctx, nickname, rec, prefix) {
		return ErrRejected
	}
	return nil
}

// UpdatePlayer submits a delta for the player's record.
func (s *Service) UpdatePlayer(ctx context.Context, nickname, prefix string, delta stats.Stats) error {
	srv, err := s.running()
	if err != nil {
		return err
	}
	if !srv.UpdateRanking(ctx, nickname, delta, prefix) {
		return ErrRejected
	}
	return nil
}

// DeletePlayer submits a delete of the player's record or prefix fields.
func (s *Service) DeletePlayer(ctx context.Context, nickname, prefix string) error {
	srv, err := s.running()
	if err != nil {
		return err
	}
	if !srv.DeleteRanking(ctx, nickname, prefix) {
		return ErrRejected
	}
	return nil
}

// Player waits for the player's record.
func (s *Service) Player(ctx context.Context, nickname, prefix string) (stats.Stats, error) {
	srv, err := s.running()
	if err != nil {
		return stats.Invalid(), err
	}
	result := make(chan stats.Stats, 1)
	if !srv.GetRanking(ctx, nickname, prefix, func(rec stats.Stats) { result <- rec }) {
		return stats.Invalid(), ErrRejected
	}
	rec, err := await(ctx, result, s.resultTimeout)
	if err != nil {
		return stats.Invalid(), err
	}
	if !rec.Valid() {
		return rec, ErrNotFound
	}
	return rec, nil
}

// Leaderboard waits for the top entries of one attribute index.
func (s *Service) Leaderboard(ctx context.Context, attribute, prefix string, limit int, biggestFirst bool) ([]types.Entry, error) {
	srv, err := s.running()
	if err != nil {
		return nil, err
	}
	result := make(chan []model.Ranked, 1)
	if !srv.GetTopRanking(ctx, limit, attribute, prefix, biggestFirst, func(r []model.Ranked) { result <- r }) {
		return nil, ErrRejected
	}
	ranked, err := await(ctx, result, s.resultTimeout)
	if err != nil {
		return nil, err
	}

	entries := make([]types.Entry, len(ranked))
	for i, r := range ranked {
		v, _ := r.Stats.Get(attribute)
		entries[i] = types.Entry{Rank: i + 1, Nickname: r.Nickname, Value: v, Stats: r.Stats}
	}
	return entries, nil
}

// Ready reports whether the store session is up.
func (s *Service) Ready() bool {
	srv, err := s.running()
	if err != nil {
		return false
	}
	return srv.Stats().State == ranking.Connected.String()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[string]interface{}{
		"started":           s.started,
		"backend":           s.backend,
		"reconnectInterval": s.reconnectInterval.String(),
	}
	if s.server != nil {
		st := s.server.Stats()
		out["connection"] = st.State
		out["backlog"] = st.Backlog
		out["inFlight"] = st.InFlight
	}
	return out
}

func await[T any](ctx context.Context, result <-chan T, timeout time.Duration) (T, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case v := <-result:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("waiting for result: %w", ctx.Err())
	case <-timer.C:
		var zero T
		return zero, ErrTimeout
	}
}
