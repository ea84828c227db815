package ranking

import (
	"context"
	"sync"
	"time"

	"github.com/okian/rankd/internal/adapters/store"
	"github.com/okian/rankd/internal/tasks"
	"github.com/okian/rankd/pkg/logger"
	"github.com/okian/rankd/pkg/metrics"
)

// ConnState is the connection lifecycle.
type ConnState int

// Connection states. The zero value is Disconnected.
const (
	Disconnected ConnState = iota
	Connected
	Reconnecting
)

func (s ConnState) String() string {
	switch s {
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// connManager owns the store session. One mutex guards the client handle and
// the state; every command batch runs while holding it.
//
// Transitions:
//
//	Disconnected -> Connected     connect succeeds
//	Disconnected -> Reconnecting  a failure starts the loop
//	Connected    -> Reconnecting  a failure with a dead session starts the loop
//	Reconnecting -> Connected     the loop reconnects
//	Reconnecting -> Disconnected  the loop exits on shutdown
type connManager struct {
	mu       sync.Mutex
	client   store.Client
	state    ConnState
	stopping bool

	interval  time.Duration
	shutdown  chan struct{}
	closeOnce sync.Once

	tracker *tasks.Tracker
	// recovered runs after every reconnect and once more when the loop is
	// stopped by shutdown.
	recovered func(ctx context.Context)
	logger    logger.Logger
}

func newConnManager(client store.Client, interval time.Duration, tracker *tasks.Tracker, l logger.Logger) *connManager {
	return &connManager{
		client:   client,
		interval: interval,
		shutdown: make(chan struct{}),
		tracker:  tracker,
		logger:   l,
	}
}

// connect opens the session. A failure never reaches the caller; it starts
// the reconnect loop instead.
func (m *connManager) connect(ctx context.Context) {
	m.mu.Lock()
	err := m.client.Connect(ctx)
	if err == nil {
		m.setState(Connected)
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn(ctx, "connection failed", logger.Error(err))
		m.startReconnectLoop(ctx)
		return
	}
	m.logger.Info(ctx, "connected")
}

// isConnected asks the store whether the session is alive.
func (m *connManager) isConnected(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client.Ping(ctx) == nil
}

// exec runs fn with exclusive use of the session.
func (m *connManager) exec(ctx context.Context, fn func(c store.Client) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.client)
}

// startReconnectLoop spawns the loop unless it is already running or shutdown
// has been requested. It reports whether a loop was started.
func (m *connManager) startReconnectLoop(ctx context.Context) bool {
	m.mu.Lock()
	if m.state == Reconnecting || m.stopping {
		m.mu.Unlock()
		return false
	}
	m.setState(Reconnecting)
	m.mu.Unlock()

	m.tracker.Go(ctx, "reconnect", tasks.KindReconnect, m.loop)
	return true
}

func (m *connManager) loop(ctx context.Context) {
	m.logger.Info(ctx, "reconnect loop started", logger.Duration("interval", m.interval))
	for attempt := 1; ; attempt++ {
		if m.stopRequested() {
			m.stop(ctx)
			return
		}

		metrics.RecordReconnectAttempt()
		m.mu.Lock()
		err := m.client.Connect(ctx)
		if err == nil {
			m.setState(Connected)
		}
		m.mu.Unlock()

		if err == nil {
			metrics.RecordReconnectSuccess()
			m.logger.Info(ctx, "reconnected", logger.Int("attempts", attempt))
			m.recovered(ctx)
			return
		}
		m.logger.Warn(ctx, "reconnect failed",
			logger.Int("attempt", attempt),
			logger.Duration("retry_in", m.interval),
			logger.Error(err),
		)

		timer := time.NewTimer(m.interval)
		select {
		case <-m.shutdown:
			timer.Stop()
			m.stop(ctx)
			return
		case <-timer.C:
		}
	}
}

// stop flushes the backlog a final time and leaves the loop.
func (m *connManager) stop(ctx context.Context) {
	m.logger.Info(ctx, "reconnect loop stopping")
	m.recovered(ctx)
	m.mu.Lock()
	m.setState(Disconnected)
	m.mu.Unlock()
}

func (m *connManager) stopRequested() bool {
	select {
	case <-m.shutdown:
		return true
	default:
		return false
	}
}

// requestShutdown stops a running loop and prevents new ones.
func (m *connManager) requestShutdown() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.stopping = true
		m.mu.Unlock()
		close(m.shutdown)
	})
}

func (m *connManager) close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setState(Disconnected)
	return m.client.Close()
}

func (m *connManager) currentState() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// setState must be called with mu held.
func (m *connManager) setState(s ConnState) {
	m.state = s
	metrics.UpdateConnectionState(int(s))
}
