package builders

import (
	"github.com/aatumaykin/purgebot/internal/config"
	"github.com/aatumaykin/purgebot/internal/cron"
	"github.com/aatumaykin/purgebot/internal/logger"
)

type SchedulerBuilder struct {
	config *config.Config
	logger *logger.Logger
}

func NewSchedulerBuilder(cfg *config.Config, log *logger.Logger) *SchedulerBuilder {
	return &SchedulerBuilder{
		config: cfg,
		logger: log,
	}
}

// Build returns nil when the scheduler is disabled.
func (b *SchedulerBuilder) Build(store cron.ScheduleLister, dispatcher cron.Dispatcher, group cron.TaskGroup, observer cron.Observer) *cron.Scheduler {
	if !b.config.Scheduler.Enabled {
		return nil
	}
	return cron.NewScheduler(cron.Config{
		TickInterval: b.config.Scheduler.TickInterval(),
		Cooldown:     b.config.Scheduler.Cooldown(),
		Observer:     observer,
	}, store, dispatcher, group, b.logger)
}
