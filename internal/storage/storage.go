// Package storage persists per-channel purge schedules and the admin
// allow-list. Two drivers implement Repository: SQLite (default) and JSONL
// files. Both serialize every operation behind a single store-wide lock.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aatumaykin/purgebot/internal/config"
	"github.com/aatumaykin/purgebot/internal/logger"
)

// ErrNotFound is returned by GetSchedule when no row exists for a channel.
var ErrNotFound = errors.New("schedule not found")

// ChannelSchedule is one monitored channel.
type ChannelSchedule struct {
	ChannelID   string    `json:"channel_id" yaml:"channel_id"`
	ChannelName string    `json:"channel_name" yaml:"channel_name"`
	CronExpr    string    `json:"cron_expr" yaml:"cron_expr"`
	Enabled     bool      `json:"enabled" yaml:"enabled"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at,omitempty"`
}

// AdminUser is a member of the admin allow-list.
type AdminUser struct {
	UserID  string    `json:"user_id" yaml:"user_id"`
	AddedAt time.Time `json:"added_at" yaml:"added_at,omitempty"`
}

// Repository is the configuration store.
type Repository interface {
	// UpsertSchedule creates the row or replaces all of its fields.
	UpsertSchedule(ctx context.Context, s ChannelSchedule) error
	// UpsertSchedules applies every upsert or none of them.
	UpsertSchedules(ctx context.Context, s []ChannelSchedule) error
	// DeleteSchedule removes the row. Absent rows are not an error.
	DeleteSchedule(ctx context.Context, channelID string) error
	// GetSchedule returns ErrNotFound when there is no row.
	GetSchedule(ctx context.Context, channelID string) (ChannelSchedule, error)
	// ListSchedules returns every row ordered by channel ID.
	ListSchedules(ctx context.Context) ([]ChannelSchedule, error)

	AddAdmin(ctx context.Context, userID string) error
	RemoveAdmin(ctx context.Context, userID string) error
	ListAdmins(ctx context.Context) ([]AdminUser, error)
	IsAdmin(ctx context.Context, userID string) (bool, error)

	Close() error
}

// Open creates the repository selected by cfg.Driver.
func Open(cfg config.StorageConfig, log *logger.Logger) (Repository, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.Path, log)
	case "jsonl":
		return NewJSONL(cfg.Path, log)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC().Truncate(time.Second)
	}
	return t.UTC()
}
