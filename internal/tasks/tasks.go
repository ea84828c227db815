// Package tasks tracks detached goroutines so callers can reap finished ones
// and join the rest.
package tasks

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/rankd/pkg/logger"
	"github.com/okian/rankd/pkg/metrics"
)

// Kind separates operation tasks from the long-lived reconnect loop, which is
// always joined last.
type Kind int

// Task kinds.
const (
	KindOperation Kind = iota
	KindReconnect
)

func (k Kind) String() string {
	if k == KindReconnect {
		return "reconnect"
	}
	return "operation"
}

// Task is a handle to one spawned goroutine. It cannot be cancelled.
type Task struct {
	ID      uuid.UUID
	Name    string
	Kind    Kind
	Started time.Time

	done chan struct{}
	err  error
}

// Done is closed when the task returns.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the recovered panic, if any. Only valid after Done is closed.
func (t *Task) Err() error { return t.err }

func (t *Task) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Tracker owns every task from spawn until it is reaped by Sweep or Wait.
// There is no limit on the number of tasks.
type Tracker struct {
	mu     sync.Mutex
	tasks  map[uuid.UUID]*Task
	logger logger.Logger
}

// NewTracker creates an empty tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		tasks: make(map[uuid.UUID]*Task),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = logger.Named("tasks")
	}
	return t
}

// Go runs fn on its own goroutine. fn gets a context that is never cancelled
// but keeps the values of ctx. A panic in fn is recovered and kept on the task.
func (t *Tracker) Go(ctx context.Context, name string, kind Kind, fn func(ctx context.Context)) *Task {
	task := &Task{
		ID:      uuid.New(),
		Name:    name,
		Kind:    kind,
		Started: time.Now(),
		done:    make(chan struct{}),
	}

	t.mu.Lock()
	t.tasks[task.ID] = task
	n := len(t.tasks)
	t.mu.Unlock()
	metrics.UpdateTasksInFlight(n)

	detached := context.WithoutCancel(ctx)
	go func() {
		defer close(task.done)
		defer func() {
			if r := recover(); r != nil {
				task.err = fmt.Errorf("%w: %v\n%s", ErrPanicked, r, debug.Stack())
				metrics.RecordTaskPanic()
			}
		}()
		fn(detached)
	}()
	return task
}

// Sweep reaps finished tasks without blocking and logs captured panics.
// It returns the number of tasks reaped.
func (t *Tracker) Sweep(ctx context.Context) int {
	t.mu.Lock()
	var reaped []*Task
	for id, task := range t.tasks {
		if task.finished() {
			reaped = append(reaped, task)
			delete(t.tasks, id)
		}
	}
	n := len(t.tasks)
	t.mu.Unlock()

	if len(reaped) > 0 {
		metrics.UpdateTasksInFlight(n)
	}
	for _, task := range reaped {
		t.report(ctx, task)
	}
	return len(reaped)
}

// Wait blocks until no task is tracked. Operation tasks are joined before the
// reconnect loop; tasks spawned while waiting are joined as well.
func (t *Tracker) Wait(ctx context.Context) {
	for {
		ops, loops := t.snapshot()
		switch {
		case len(ops) > 0:
			t.join(ctx, ops)
		case len(loops) > 0:
			t.join(ctx, loops)
		default:
			metrics.UpdateTasksInFlight(0)
			return
		}
	}
}

// Len returns the number of tracked tasks, finished or not.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tasks)
}

func (t *Tracker) snapshot() (ops, loops []*Task) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, task := range t.tasks {
		if task.Kind == KindReconnect {
			loops = append(loops, task)
		} else {
			ops = append(ops, task)
		}
	}
	return ops, loops
}

func (t *Tracker) join(ctx context.Context, batch []*Task) {
	for _, task := range batch {
		<-task.done
		t.mu.Lock()
		_, owned := t.tasks[task.ID]
		delete(t.tasks, task.ID)
		n := len(t.tasks)
		t.mu.Unlock()
		metrics.UpdateTasksInFlight(n)
		// A concurrent Sweep may have reaped and reported it already.
		if owned {
			t.report(ctx, task)
		}
	}
}

func (t *Tracker) report(ctx context.Context, task *Task) {
	if task.err == nil {
		return
	}
	t.logger.Error(ctx, "task failed",
		logger.String("task", task.Name),
		logger.String("task_id", task.ID.String()),
		logger.String("kind", task.Kind.String()),
		logger.Duration("age", time.Since(task.Started)),
		logger.Error(task.err),
	)
}
