package workers

import (
	"sync"
	"time"
)

// Metrics is a snapshot of group counters.
type Metrics struct {
	TasksSubmitted uint64
	TasksCompleted uint64
	TasksFailed    uint64
	Running        int64
	TotalDuration  time.Duration
}

type groupMetrics struct {
	mu sync.RWMutex
	m  Metrics
}

// Metrics returns the current group counters.
func (g *Group) Metrics() Metrics {
	g.metrics.mu.RLock()
	defer g.metrics.mu.RUnlock()
	return g.metrics.m
}

func (gm *groupMetrics) submitted() {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	gm.m.TasksSubmitted++
}

func (gm *groupMetrics) started() {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	gm.m.Running++
}

func (gm *groupMetrics) finished(err error, d time.Duration) {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	gm.m.Running--
	if err != nil {
		gm.m.TasksFailed++
	} else {
		gm.m.TasksCompleted++
	}
	gm.m.TotalDuration += d
}
