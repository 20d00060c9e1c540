// Package workers provides a supervised task group for fire-and-forget
// background work. Every task runs in its own goroutine, panics are
// recovered and logged, and shutdown can either await outstanding tasks
// or abandon them after a deadline.
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/aatumaykin/purgebot/internal/logger"
)

// Group tracks spawned tasks.
type Group struct {
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *logger.Logger
	metrics *groupMetrics

	mu     sync.Mutex
	closed bool
}

// NewGroup creates a task group. Task contexts derive from parent and are
// cancelled when Shutdown gives up waiting.
func NewGroup(parent context.Context, log *logger.Logger) *Group {
	ctx, cancel := context.WithCancel(parent)
	return &Group{
		ctx:     ctx,
		cancel:  cancel,
		logger:  log,
		metrics: &groupMetrics{},
	}
}

// Go spawns fn as a tracked task. It never blocks. After Close the task is
// dropped and false is returned.
func (g *Group) Go(task Task) bool {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		g.logger.Warn("task rejected, group closed",
			logger.Field{Key: "task", Value: task.Name})
		return false
	}
	g.wg.Add(1)
	g.mu.Unlock()

	g.metrics.submitted()
	go g.run(task)
	return true
}

// Close stops accepting new tasks. Running tasks continue.
func (g *Group) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
}

// Wait blocks until every task has finished or ctx ends. It returns
// ctx.Err() when it gives up.
func (g *Group) Wait(ctx context.Context) error {
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

// Shutdown closes the group and waits up to grace for running tasks.
// Tasks still running afterwards have their context cancelled and are
// abandoned.
func (g *Group) Shutdown(grace time.Duration) error {
	g.Close()

	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	err := g.Wait(ctx)
	m := g.Metrics()
	if err != nil {
		g.logger.Warn("abandoning running tasks",
			logger.Field{Key: "running", Value: m.Running},
			logger.Field{Key: "grace", Value: grace.String()})
	}
	g.cancel()

	g.logger.Info("task group stopped",
		logger.Field{Key: "tasks_submitted", Value: m.TasksSubmitted},
		logger.Field{Key: "tasks_completed", Value: m.TasksCompleted},
		logger.Field{Key: "tasks_failed", Value: m.TasksFailed})
	return err
}
