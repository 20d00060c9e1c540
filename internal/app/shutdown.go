package app

import (
	"context"
	"time"

	"github.com/aatumaykin/purgebot/internal/logger"
)

const metricsShutdownTimeout = 5 * time.Second

// Shutdown stops components in order: the scheduler loop, then running
// purges (awaited up to the configured grace, then abandoned), then the
// gateway, the metrics endpoint and storage. Safe to call more than once.
func (a *App) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		a.closeStore()
		return nil
	}

	if a.scheduler != nil {
		if err := a.scheduler.Stop(); err != nil {
			a.logger.Warn("failed to stop scheduler", logger.Field{Key: "error", Value: err.Error()})
		}
	}

	// Shutdown logs abandoned tasks itself.
	if a.group != nil {
		_ = a.group.Shutdown(a.config.Scheduler.ShutdownGrace())
	}

	a.cancel()

	if err := a.bot.Stop(); err != nil {
		a.logger.Error("failed to stop discord bot", err)
	}

	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Error("failed to stop metrics server", err)
		}
		cancel()
	}

	a.closeStore()
	a.started = false

	a.logger.Info("application shutdown complete")
	return nil
}

func (a *App) closeStore() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close storage", err)
	}
	a.store = nil
}
