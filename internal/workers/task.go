package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/aatumaykin/purgebot/internal/logger"
)

// Task is a unit of work run by a Group.
type Task struct {
	Name string // used in logs, e.g. "purge:123"
	Run  func(ctx context.Context) error
}

// run executes a task with panic recovery and metrics.
func (g *Group) run(task Task) {
	start := time.Now()
	g.metrics.started()

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			g.logger.Error("task panic recovered", err,
				logger.Field{Key: "task", Value: task.Name})
		}
		g.metrics.finished(err, time.Since(start))
		g.wg.Done()
	}()

	g.logger.Debug("task started", logger.Field{Key: "task", Value: task.Name})

	err = task.Run(g.ctx)

	g.logger.Debug("task finished",
		logger.Field{Key: "task", Value: task.Name},
		logger.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
		logger.Field{Key: "error", Value: err})
}
