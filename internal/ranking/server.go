// Package ranking is an asynchronous leaderboard on top of a key-value store.
//
// Each player record is a hash keyed by nickname whose fields are
// prefix+attribute. Each (prefix, attribute) pair has a sorted index named
// prefix+attribute mapping nicknames to that attribute's value. Every public
// call validates its input, spawns one task and returns whether the task was
// accepted. Failed writes are queued and replayed through the same public
// calls once the store is reachable again.
//
// Nothing bounds the number of in-flight tasks, and concurrent updates of one
// nickname race on their read-modify-write.
package ranking

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/okian/rankd/internal/adapters/store"
	"github.com/okian/rankd/internal/adapters/store/memstore"
	"github.com/okian/rankd/internal/adapters/store/redisstore"
	"github.com/okian/rankd/internal/domain/model"
	"github.com/okian/rankd/internal/domain/stats"
	"github.com/okian/rankd/internal/tasks"
	"github.com/okian/rankd/pkg/logger"
)

// RankingServer is the surface game servers call. A true return means a task
// was spawned, not that the operation succeeded.
type RankingServer interface {
	SetRanking(ctx context.Context, nickname string, rec stats.Stats, prefix string) bool
	UpdateRanking(ctx context.Context, nickname string, delta stats.Stats, prefix string) bool
	DeleteRanking(ctx context.Context, nickname, prefix string) bool
	GetRanking(ctx context.Context, nickname, prefix string, onResult func(stats.Stats)) bool
	GetTopRanking(ctx context.Context, topN int, attribute, prefix string, biggestFirst bool, onResult func([]model.Ranked)) bool
	AwaitFutures()
	Close() error
}

// ServerStats is a point-in-time view of the server.
type ServerStats struct {
	State    string `json:"state"`
	Backlog  int    `json:"backlog"`
	InFlight int    `json:"in_flight"`
	Disabled bool   `json:"disabled"`
	Closed   bool   `json:"closed"`
}

// Server implements RankingServer on a store.Client.
type Server struct {
	conn    *connManager
	backlog *backlog
	tracker *tasks.Tracker
	logger  logger.Logger

	reconnectInterval time.Duration
	disabled          bool
	closing           atomic.Bool
	closed            atomic.Bool
}

var _ RankingServer = (*Server)(nil)

// New builds a server on client and connects it. A failed connect is logged
// and retried in the background.
func New(ctx context.Context, client store.Client, opts ...Option) *Server {
	s := build(client, opts)
	s.conn.connect(ctx)
	return s
}

// NewRedisServer connects to Redis at host:port. timeout bounds connecting
// and each command.
func NewRedisServer(ctx context.Context, host string, port int, timeout, reconnectInterval time.Duration, opts ...Option) *Server {
	client := redisstore.New(redisstore.Options{Host: host, Port: port, Timeout: timeout})
	opts = append([]Option{WithReconnectInterval(reconnectInterval)}, opts...)
	return New(ctx, client, opts...)
}

// NewMemoryServer runs on a fresh in-process store.
func NewMemoryServer(ctx context.Context, opts ...Option) *Server {
	return New(ctx, memstore.New(), opts...)
}

// NewDisabled returns a placeholder that rejects every operation.
func NewDisabled() *Server {
	s := build(memstore.New(), []Option{WithLogger(logger.Nop())})
	s.disabled = true
	return s
}

func build(client store.Client, opts []Option) *Server {
	s := &Server{reconnectInterval: DefaultReconnectInterval}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("ranking")
	}
	s.tracker = tasks.NewTracker(tasks.WithLogger(s.logger))
	s.backlog = &backlog{logger: s.logger}
	s.conn = newConnManager(client, s.reconnectInterval, s.tracker, s.logger)
	s.conn.recovered = func(ctx context.Context) {
		s.backlog.drainAndReplay(ctx, s.replay)
	}
	return s
}

// Close stops the reconnect loop, waits for every task and releases the
// store. Writes still queued at that point are logged and dropped. Further
// calls are rejected.
func (s *Server) Close() error {
	if s.disabled || !s.closing.CompareAndSwap(false, true) {
		return nil
	}
	ctx := context.Background()
	s.conn.requestShutdown()
	s.tracker.Wait(ctx)

	for _, in := range s.backlog.takeAll() {
		s.logger.Warn(ctx, "dropping undelivered write",
			logger.String("action", string(in.Action)),
			logger.String("nickname", in.Nickname),
			logger.String("prefix", in.Prefix),
		)
	}
	s.closed.Store(true)
	return s.conn.close()
}

// Stats reports the connection state, backlog length and tracked tasks.
func (s *Server) Stats() ServerStats {
	return ServerStats{
		State:    s.conn.currentState().String(),
		Backlog:  s.backlog.len(),
		InFlight: s.tracker.Len(),
		Disabled: s.disabled,
		Closed:   s.closed.Load(),
	}
}

func (s *Server) enabled() bool {
	return !s.disabled && !s.closed.Load()
}
