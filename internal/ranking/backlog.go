package ranking

import (
	"context"
	"sync"

	"github.com/okian/rankd/internal/domain/model"
	"github.com/okian/rankd/pkg/logger"
	"github.com/okian/rankd/pkg/metrics"
)

// backlog queues write intents that failed. It has its own mutex and never
// takes the connection mutex.
type backlog struct {
	mu      sync.Mutex
	entries []model.Intent
	logger  logger.Logger
}

func (b *backlog) push(ctx context.Context, in model.Intent) {
	b.mu.Lock()
	b.entries = append(b.entries, in)
	n := len(b.entries)
	b.mu.Unlock()

	metrics.RecordBacklogPush(string(in.Action))
	metrics.UpdateBacklogSize(n)
	b.logger.Warn(ctx, "write queued for replay",
		logger.String("action", string(in.Action)),
		logger.String("nickname", in.Nickname),
		logger.String("prefix", in.Prefix),
		logger.Int("backlog", n),
	)
}

// drainAndReplay pops every queued intent, newest first, and hands it to
// replay. Entries are not deduplicated. It returns the number replayed.
func (b *backlog) drainAndReplay(ctx context.Context, replay func(context.Context, model.Intent) bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) == 0 {
		return 0
	}
	count := 0
	for len(b.entries) > 0 {
		last := len(b.entries) - 1
		in := b.entries[last]
		b.entries = b.entries[:last]
		if replay(ctx, in) {
			count++
		} else {
			b.logger.Warn(ctx, "backlog entry rejected on replay",
				logger.String("action", string(in.Action)),
				logger.String("nickname", in.Nickname),
			)
		}
	}
	b.entries = nil

	metrics.UpdateBacklogSize(0)
	metrics.RecordBacklogReplays(count)
	b.logger.Info(ctx, "cleaned up backlog tasks", logger.Int("count", count))
	return count
}

// takeAll empties the backlog without replaying it.
func (b *backlog) takeAll() []model.Intent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.entries
	b.entries = nil
	metrics.UpdateBacklogSize(0)
	return out
}

func (b *backlog) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
