package cron

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aatumaykin/purgebot/internal/logger"
	"github.com/aatumaykin/purgebot/internal/purge"
	"github.com/aatumaykin/purgebot/internal/storage"
	"github.com/aatumaykin/purgebot/internal/workers"
)

const (
	DefaultTickInterval = 60 * time.Second
	DefaultCooldown     = 2 * time.Second
)

// Outcome is the result of evaluating one schedule in a tick.
type Outcome string

const (
	OutcomeDisabled   Outcome = "disabled"
	OutcomeNotDue     Outcome = "not_due"
	OutcomeDispatched Outcome = "dispatched"
	OutcomeDeduped    Outcome = "deduped"
	OutcomeError      Outcome = "error"
)

// AllOutcomes lists every outcome, for metric label pre-registration.
var AllOutcomes = []Outcome{OutcomeDisabled, OutcomeNotDue, OutcomeDispatched, OutcomeDeduped, OutcomeError}

// TickReport describes one tick.
type TickReport struct {
	At       time.Time
	Outcomes map[string]Outcome // channel ID -> outcome
	Errors   map[string]error   // channel ID -> evaluation error
	Err      error              // set when schedules could not be loaded
}

// Count returns how many schedules ended with o.
func (r TickReport) Count(o Outcome) int {
	n := 0
	for _, got := range r.Outcomes {
		if got == o {
			n++
		}
	}
	return n
}

// Channels returns the sorted channel IDs that ended with o.
func (r TickReport) Channels(o Outcome) []string {
	var ids []string
	for id, got := range r.Outcomes {
		if got == o {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ScheduleLister loads schedules.
type ScheduleLister interface {
	ListSchedules(ctx context.Context) ([]storage.ChannelSchedule, error)
}

// Dispatcher purges a channel.
type Dispatcher interface {
	Purge(ctx context.Context, channelID string, pred purge.Predicate) purge.Result
}

// TaskGroup runs dispatches in the background.
type TaskGroup interface {
	Go(task workers.Task) bool
	Wait(ctx context.Context) error
}

// Observer receives tick reports.
type Observer interface {
	ObserveTick(r TickReport, took time.Duration)
}

// Config configures a Scheduler.
type Config struct {
	TickInterval time.Duration
	Cooldown     time.Duration
	Clock        func() time.Time
	Observer     Observer
}

// Scheduler polls the schedule store on a fixed tick and dispatches due
// purges, at most one per channel at a time.
type Scheduler struct {
	cfg        Config
	eval       *Evaluator
	store      ScheduleLister
	dispatcher Dispatcher
	group      TaskGroup
	inflight   *InFlight
	logger     *logger.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewScheduler creates a scheduler. Zero config values take defaults.
func NewScheduler(cfg Config, store ScheduleLister, dispatcher Dispatcher, group TaskGroup, log *logger.Logger) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Cooldown < 0 {
		cfg.Cooldown = 0
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Scheduler{
		cfg:        cfg,
		eval:       NewEvaluator(),
		store:      store,
		dispatcher: dispatcher,
		group:      group,
		inflight:   NewInFlight(),
		logger:     log.Component("scheduler"),
	}
}

// InFlight exposes the dedup set.
func (s *Scheduler) InFlight() *InFlight {
	return s.inflight
}

// Start runs a tick immediately and then one per TickInterval until ctx
// ends or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true

	go s.loop(loopCtx, s.done)

	s.logger.Info("scheduler started",
		logger.Field{Key: "tick_interval", Value: s.cfg.TickInterval.String()},
		logger.Field{Key: "cooldown", Value: s.cfg.Cooldown.String()})
	return nil
}

// Stop ends the loop between ticks. A tick in progress finishes first.
// Dispatched purges keep running; use Wait to await them.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("scheduler not started")
	}
	s.cancel()
	done := s.done
	s.started = false
	s.mu.Unlock()

	<-done
	s.logger.Info("scheduler stopped")
	return nil
}

// Wait blocks until dispatched purges finish or ctx ends.
func (s *Scheduler) Wait(ctx context.Context) error {
	return s.group.Wait(ctx)
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.Tick(ctx)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick evaluates every schedule once against the current time.
func (s *Scheduler) Tick(ctx context.Context) TickReport {
	start := time.Now()
	now := s.cfg.Clock().UTC()
	report := TickReport{
		At:       now,
		Outcomes: make(map[string]Outcome),
		Errors:   make(map[string]error),
	}

	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		s.logger.Error("failed to load schedules", err)
		report.Err = err
		s.observe(report, time.Since(start))
		return report
	}

	for _, sch := range schedules {
		outcome, err := s.evaluate(sch, now)
		report.Outcomes[sch.ChannelID] = outcome
		if err != nil {
			report.Errors[sch.ChannelID] = err
		}
	}

	s.logger.Debug("tick finished",
		logger.Field{Key: "now", Value: now.Format(time.RFC3339)},
		logger.Field{Key: "schedules", Value: len(schedules)},
		logger.Field{Key: "dispatched", Value: report.Count(OutcomeDispatched)},
		logger.Field{Key: "deduped", Value: report.Count(OutcomeDeduped)},
		logger.Field{Key: "errors", Value: report.Count(OutcomeError)})

	s.observe(report, time.Since(start))
	return report
}

func (s *Scheduler) evaluate(sch storage.ChannelSchedule, now time.Time) (Outcome, error) {
	if !sch.Enabled {
		return OutcomeDisabled, nil
	}

	prev, err := s.eval.PrevAtOrBefore(sch.CronExpr, now)
	if err != nil {
		s.logger.Error("failed to evaluate schedule", err,
			logger.Field{Key: "channel_id", Value: sch.ChannelID},
			logger.Field{Key: "cron_expr", Value: sch.CronExpr})
		return OutcomeError, err
	}

	if now.Sub(prev) >= s.cfg.TickInterval {
		return OutcomeNotDue, nil
	}

	if !s.inflight.TryAcquire(sch.ChannelID) {
		s.logger.Debug("purge already in flight",
			logger.Field{Key: "channel_id", Value: sch.ChannelID})
		return OutcomeDeduped, nil
	}

	channelID := sch.ChannelID
	ok := s.group.Go(workers.Task{
		Name: "purge:" + channelID,
		Run: func(ctx context.Context) error {
			return s.dispatch(ctx, channelID)
		},
	})
	if !ok {
		s.inflight.Release(channelID)
		return OutcomeError, fmt.Errorf("dispatch rejected for channel %s", channelID)
	}

	s.logger.Info("purge dispatched",
		logger.Field{Key: "channel_id", Value: channelID},
		logger.Field{Key: "channel_name", Value: sch.ChannelName},
		logger.Field{Key: "fire_time", Value: prev.Format(time.RFC3339)})
	return OutcomeDispatched, nil
}

// dispatch purges one channel and releases its in-flight entry after the
// cooldown, whatever the purge outcome.
func (s *Scheduler) dispatch(ctx context.Context, channelID string) error {
	defer s.release(ctx, channelID)

	res := s.dispatcher.Purge(ctx, channelID, nil)
	return res.Err
}

func (s *Scheduler) release(ctx context.Context, channelID string) {
	if s.cfg.Cooldown > 0 {
		timer := time.NewTimer(s.cfg.Cooldown)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}
	s.inflight.Release(channelID)
}

func (s *Scheduler) observe(r TickReport, took time.Duration) {
	if s.cfg.Observer != nil {
		s.cfg.Observer.ObserveTick(r, took)
	}
}
