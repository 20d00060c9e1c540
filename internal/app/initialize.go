package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aatumaykin/purgebot/internal/app/builders"
	"github.com/aatumaykin/purgebot/internal/auth"
	"github.com/aatumaykin/purgebot/internal/commands"
	"github.com/aatumaykin/purgebot/internal/confirm"
	"github.com/aatumaykin/purgebot/internal/discord"
	"github.com/aatumaykin/purgebot/internal/purge"
	"github.com/aatumaykin/purgebot/internal/retry"
	"github.com/aatumaykin/purgebot/internal/storage"
	"github.com/aatumaykin/purgebot/internal/workers"
)

var gatewayRetry = retry.Config{
	MaxAttempts:    5,
	InitialBackoff: 2 * time.Second,
	MaxBackoff:     30 * time.Second,
}

// Initialize builds all components without touching the network.
func (a *App) Initialize(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	// 1. Storage
	store, err := storage.Open(a.config.Storage, a.logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	a.store = store

	// 2. Metrics collectors
	metricsBuilder := builders.NewMetricsBuilder(a.config, a.logger)
	a.metrics = metricsBuilder.BuildCollectors()

	// 3. Discord session, client and prompt presenter
	kit, err := builders.NewDiscordBuilder(a.config, a.logger).Build()
	if err != nil {
		return err
	}
	a.bot = kit.Bot

	// 4. Purge dispatcher and worker group. Tasks outlive a.ctx so the
	// shutdown grace period applies to them.
	a.dispatcher = purge.NewDispatcher(kit.Client, a.logger.Component("purge"), a.metrics)
	a.group = workers.NewGroup(context.Background(), a.logger.Component("workers"))
	a.metrics.WatchWorkers(a.group.Metrics)

	// 5. Scheduler
	a.scheduler = builders.NewSchedulerBuilder(a.config, a.logger).Build(a.store, a.dispatcher, a.group, a.metrics)

	// 6. Confirmation prompts
	a.orchestrator = confirm.NewOrchestrator(kit.Client, a.dispatcher, kit.Presenter, a.config.Purge.ConfirmTimeout(), a.logger)

	// 7. Commands
	authz := auth.New(a.config.Auth, a.config.Commands, a.store, a.logger)
	svc := commands.NewService(a.store, a.orchestrator, a.logger)
	a.handler = commands.NewHandler(a.config.Discord.CommandPrefix, svc, authz, kit.Client, a.logger)
	a.router = discord.NewRouter(a.bot.API(), a.handler, a.orchestrator, a.logger)

	// 8. Metrics endpoint
	a.metricsServer = metricsBuilder.BuildServer(a.metrics, a.health)

	return nil
}

// Start opens the gateway and starts the scheduler and metrics endpoint.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return errors.New("app already started")
	}
	if a.bot == nil {
		return errors.New("app not initialized")
	}

	err := retry.Do(a.ctx, gatewayRetry, a.logger, "open discord gateway", func(ctx context.Context) error {
		return a.bot.Start(ctx, a.router)
	})
	if err != nil {
		return err
	}
	a.started = true

	if a.scheduler != nil {
		if err := a.scheduler.Start(a.ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	} else {
		a.logger.Info("scheduler disabled")
	}

	if a.metricsServer != nil {
		if err := a.metricsServer.Start(); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) health(ctx context.Context) error {
	a.mu.Lock()
	started := a.started
	a.mu.Unlock()

	if !started {
		return errors.New("not started")
	}
	if !a.bot.Ready() {
		return errors.New("discord gateway not ready")
	}
	return nil
}
