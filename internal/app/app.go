// Package app wires the bot together: storage, the Discord gateway, the
// purge dispatcher, the cron scheduler, confirmation prompts, command
// handling and the metrics endpoint. It owns their startup and graceful
// shutdown order.
package app

import (
	"context"
	"sync"

	"github.com/aatumaykin/purgebot/internal/commands"
	"github.com/aatumaykin/purgebot/internal/config"
	"github.com/aatumaykin/purgebot/internal/confirm"
	"github.com/aatumaykin/purgebot/internal/cron"
	"github.com/aatumaykin/purgebot/internal/discord"
	"github.com/aatumaykin/purgebot/internal/logger"
	"github.com/aatumaykin/purgebot/internal/metrics"
	"github.com/aatumaykin/purgebot/internal/purge"
	"github.com/aatumaykin/purgebot/internal/storage"
	"github.com/aatumaykin/purgebot/internal/workers"
)

// App holds every long-lived component.
type App struct {
	config *config.Config
	logger *logger.Logger

	// Persistence
	store storage.Repository

	// Discord
	bot    *discord.Bot
	router *discord.Router

	// Purging
	dispatcher   *purge.Dispatcher
	orchestrator *confirm.Orchestrator
	handler      *commands.Handler

	// Scheduled purges
	group     *workers.Group
	scheduler *cron.Scheduler

	// Observability
	metrics       *metrics.Metrics
	metricsServer *metrics.Server

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
}

// New creates an App. Components are built by Initialize.
func New(cfg *config.Config, log *logger.Logger) *App {
	return &App{
		config: cfg,
		logger: log,
	}
}

// Run initializes and starts the bot, then blocks until ctx is cancelled
// and shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := a.Initialize(ctx); err != nil {
		a.closeStore()
		return err
	}

	if err := a.Start(); err != nil {
		_ = a.Shutdown()
		return err
	}

	a.logger.Info("purgebot is running")

	<-ctx.Done()

	return a.Shutdown()
}
