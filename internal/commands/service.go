// Package commands implements the moderation command surface: schedule
// management, manual user purges and the admin allow-list. Service holds
// the logical operations; Handler parses prefix commands and gates them on
// authorization.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aatumaykin/purgebot/internal/confirm"
	"github.com/aatumaykin/purgebot/internal/cron"
	"github.com/aatumaykin/purgebot/internal/logger"
	"github.com/aatumaykin/purgebot/internal/storage"
)

// NextRunsCount is how many upcoming runs Get reports.
const NextRunsCount = 5

// ChannelRef identifies a chat channel.
type ChannelRef struct {
	ID   string
	Name string
}

// PromptOpener starts a manual purge confirmation.
type PromptOpener interface {
	Open(ctx context.Context, req confirm.Request) (*confirm.Prompt, error)
}

// ScheduleInfo is a schedule with its upcoming runs.
type ScheduleInfo struct {
	storage.ChannelSchedule
	NextRuns []time.Time
	NextErr  error
}

// Service performs command operations. Callers must have passed the
// authorization check.
type Service struct {
	store   storage.Repository
	eval    *cron.Evaluator
	prompts PromptOpener
	logger  *logger.Logger
	now     func() time.Time
}

// NewService creates a command service. prompts may be nil when manual
// purges are unavailable (CLI use).
func NewService(store storage.Repository, prompts PromptOpener, log *logger.Logger) *Service {
	return &Service{
		store:   store,
		eval:    cron.NewEvaluator(),
		prompts: prompts,
		logger:  log.Component("commands"),
		now:     time.Now,
	}
}

// CleanExpression strips backticks and surrounding whitespace.
func CleanExpression(expr string) string {
	return strings.TrimSpace(strings.ReplaceAll(expr, "`", ""))
}

// Set creates or replaces the schedule for ch and enables it. The
// expression is validated before the store is touched.
func (s *Service) Set(ctx context.Context, ch ChannelRef, expr string) (storage.ChannelSchedule, error) {
	expr = CleanExpression(expr)
	if err := s.eval.Validate(expr); err != nil {
		return storage.ChannelSchedule{}, err
	}

	sch := storage.ChannelSchedule{
		ChannelID:   ch.ID,
		ChannelName: ch.Name,
		CronExpr:    expr,
		Enabled:     true,
		UpdatedAt:   s.now().UTC(),
	}
	if err := s.store.UpsertSchedule(ctx, sch); err != nil {
		return storage.ChannelSchedule{}, err
	}

	s.logger.Info("schedule set",
		logger.Field{Key: "channel_id", Value: ch.ID},
		logger.Field{Key: "cron_expr", Value: expr})
	return sch, nil
}

// Unset removes the schedule for ch. Missing schedules are not an error.
func (s *Service) Unset(ctx context.Context, ch ChannelRef) error {
	if err := s.store.DeleteSchedule(ctx, ch.ID); err != nil {
		return err
	}
	s.logger.Info("schedule removed", logger.Field{Key: "channel_id", Value: ch.ID})
	return nil
}

// Enable turns on an existing schedule. It returns storage.ErrNotFound if
// there is none.
func (s *Service) Enable(ctx context.Context, ch ChannelRef) (storage.ChannelSchedule, error) {
	return s.setEnabled(ctx, ch, true)
}

// Disable turns off an existing schedule, keeping its expression.
func (s *Service) Disable(ctx context.Context, ch ChannelRef) (storage.ChannelSchedule, error) {
	return s.setEnabled(ctx, ch, false)
}

func (s *Service) setEnabled(ctx context.Context, ch ChannelRef, enabled bool) (storage.ChannelSchedule, error) {
	existing, err := s.store.GetSchedule(ctx, ch.ID)
	if err != nil {
		return storage.ChannelSchedule{}, err
	}

	existing.Enabled = enabled
	if ch.Name != "" {
		existing.ChannelName = ch.Name
	}
	existing.UpdatedAt = s.now().UTC()
	if err := s.store.UpsertSchedule(ctx, existing); err != nil {
		return storage.ChannelSchedule{}, err
	}

	s.logger.Info("schedule toggled",
		logger.Field{Key: "channel_id", Value: ch.ID},
		logger.Field{Key: "enabled", Value: enabled})
	return existing, nil
}

// Get returns the schedule for channelID with its next runs. A schedule
// whose expression no longer evaluates is still returned, with NextErr set.
func (s *Service) Get(ctx context.Context, channelID string) (ScheduleInfo, error) {
	sch, err := s.store.GetSchedule(ctx, channelID)
	if err != nil {
		return ScheduleInfo{}, err
	}

	info := ScheduleInfo{ChannelSchedule: sch}
	info.NextRuns, info.NextErr = s.eval.NextN(sch.CronExpr, s.now(), NextRunsCount)
	return info, nil
}

// List returns every schedule ordered by channel ID.
func (s *Service) List(ctx context.Context) ([]storage.ChannelSchedule, error) {
	return s.store.ListSchedules(ctx)
}

// PurgeUser opens a confirmation prompt for purging a user's messages.
func (s *Service) PurgeUser(ctx context.Context, req confirm.Request) (*confirm.Prompt, error) {
	if s.prompts == nil {
		return nil, errors.New("manual purges are not available")
	}
	if req.GuildID == "" {
		return nil, ErrGuildOnly
	}
	return s.prompts.Open(ctx, req)
}

// AddAdmin adds userID to the admin table.
func (s *Service) AddAdmin(ctx context.Context, userID string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	if err := s.store.AddAdmin(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("admin added", logger.Field{Key: "user_id", Value: userID})
	return nil
}

// RemoveAdmin removes userID from the admin table.
func (s *Service) RemoveAdmin(ctx context.Context, userID string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	if err := s.store.RemoveAdmin(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("admin removed", logger.Field{Key: "user_id", Value: userID})
	return nil
}

// ListAdmins returns the admin table.
func (s *Service) ListAdmins(ctx context.Context) ([]storage.AdminUser, error) {
	return s.store.ListAdmins(ctx)
}

// ErrGuildOnly is returned for guild-only commands issued elsewhere.
var ErrGuildOnly = errors.New("this command must be used in a server")

func validateUserID(id string) error {
	if id == "" {
		return fmt.Errorf("user id is required")
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return fmt.Errorf("invalid user id: %q", id)
		}
	}
	return nil
}
