package runner

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/harunnryd/tarjama/pkg/logging"
)

// Task is the handle of one goroutine started by a TaskGroup.
type Task struct {
	name string
	done chan struct{}
	err  error
}

func (t *Task) Name() string { return t.name }

// Done is closed when the task returns or panics.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err is valid after Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// TaskGroup runs named goroutines under a shared context and recovers their
// panics so one failing track never takes the room down.
type TaskGroup struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
	wg     sync.WaitGroup
	mu     sync.Mutex
	tasks  map[*Task]struct{}
	failed atomic.Int64
}

func NewTaskGroup(ctx context.Context, logger *slog.Logger) *TaskGroup {
	ctx, cancel := context.WithCancel(ctx)
	return &TaskGroup{
		ctx:    ctx,
		cancel: cancel,
		logger: logging.NewComponentLogger(logger, "tasks"),
		tasks:  make(map[*Task]struct{}),
	}
}

func (g *TaskGroup) Go(name string, fn func(ctx context.Context) error) *Task {
	t := &Task{name: name, done: make(chan struct{})}
	g.mu.Lock()
	g.tasks[t] = struct{}{}
	g.mu.Unlock()
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				t.err = fmt.Errorf("task %s panicked: %v", name, rec)
				g.logger.Error("task_panic",
					slog.String("task", name),
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
				)
			}
			if t.err != nil {
				g.failed.Add(1)
			}
			g.mu.Lock()
			delete(g.tasks, t)
			g.mu.Unlock()
			close(t.done)
		}()
		t.err = fn(g.ctx)
		if t.err != nil {
			g.logger.Warn("task_failed", slog.String("task", name), slog.String("error", t.err.Error()))
		}
	}()
	return t
}

// Running reports how many tasks have not returned yet.
func (g *TaskGroup) Running() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tasks)
}

// Failed reports how many tasks ended with an error or a panic.
func (g *TaskGroup) Failed() int64 {
	return g.failed.Load()
}

// Cancel asks every task to stop.
func (g *TaskGroup) Cancel() {
	g.cancel()
}

// Wait blocks until every task has returned or ctx ends.
func (g *TaskGroup) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
