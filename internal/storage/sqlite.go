package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aatumaykin/purgebot/internal/logger"
	_ "modernc.org/sqlite"
)

// SQLite is the database-backed Repository.
type SQLite struct {
	db     *sql.DB
	logger *logger.Logger
	mu     sync.Mutex
}

// NewSQLite opens (or creates) the database at path and bootstraps the schema.
func NewSQLite(path string, log *logger.Logger) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLite{db: db, logger: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	log.Info("sqlite store initialized", logger.Field{Key: "path", Value: path})
	return s, nil
}

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS channel_configs (
			channel_id   TEXT PRIMARY KEY,
			channel_name TEXT NOT NULL DEFAULT '',
			cron_expr    TEXT NOT NULL,
			enabled      INTEGER NOT NULL DEFAULT 1 CHECK (enabled IN (0, 1)),
			updated_at   TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS admin_users (
			user_id  TEXT PRIMARY KEY,
			added_at TEXT NOT NULL DEFAULT ''
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

const upsertScheduleSQL = `
	INSERT INTO channel_configs (channel_id, channel_name, cron_expr, enabled, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(channel_id) DO UPDATE SET
		channel_name = excluded.channel_name,
		cron_expr    = excluded.cron_expr,
		enabled      = excluded.enabled,
		updated_at   = excluded.updated_at`

// UpsertSchedule implements Repository.
func (s *SQLite) UpsertSchedule(ctx context.Context, sch ChannelSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, upsertScheduleSQL,
		sch.ChannelID, sch.ChannelName, sch.CronExpr, boolToInt(sch.Enabled), formatTime(stamp(sch.UpdatedAt)))
	if err != nil {
		return fmt.Errorf("failed to upsert schedule %s: %w", sch.ChannelID, err)
	}
	return nil
}

// UpsertSchedules implements Repository. All rows are written in one
// transaction.
func (s *SQLite) UpsertSchedules(ctx context.Context, schedules []ChannelSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertScheduleSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, sch := range schedules {
		if _, err := stmt.ExecContext(ctx,
			sch.ChannelID, sch.ChannelName, sch.CronExpr, boolToInt(sch.Enabled), formatTime(stamp(sch.UpdatedAt))); err != nil {
			return fmt.Errorf("failed to upsert schedule %s: %w", sch.ChannelID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schedules: %w", err)
	}
	return nil
}

// DeleteSchedule implements Repository.
func (s *SQLite) DeleteSchedule(ctx context.Context, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM channel_configs WHERE channel_id = ?`, channelID); err != nil {
		return fmt.Errorf("failed to delete schedule %s: %w", channelID, err)
	}
	return nil
}

// GetSchedule implements Repository.
func (s *SQLite) GetSchedule(ctx context.Context, channelID string) (ChannelSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT channel_id, channel_name, cron_expr, enabled, updated_at
		FROM channel_configs WHERE channel_id = ?`, channelID)

	sch, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ChannelSchedule{}, ErrNotFound
	}
	if err != nil {
		return ChannelSchedule{}, fmt.Errorf("failed to get schedule %s: %w", channelID, err)
	}
	return sch, nil
}

// ListSchedules implements Repository.
func (s *SQLite) ListSchedules(ctx context.Context) ([]ChannelSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT channel_id, channel_name, cron_expr, enabled, updated_at
		FROM channel_configs ORDER BY channel_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	schedules := []ChannelSchedule{}
	for rows.Next() {
		sch, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		schedules = append(schedules, sch)
	}
	return schedules, rows.Err()
}

// AddAdmin implements Repository. Adding an existing admin is a no-op.
func (s *SQLite) AddAdmin(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO admin_users (user_id, added_at) VALUES (?, ?) ON CONFLICT(user_id) DO NOTHING`,
		userID, formatTime(stamp(time.Time{})))
	if err != nil {
		return fmt.Errorf("failed to add admin %s: %w", userID, err)
	}
	return nil
}

// RemoveAdmin implements Repository.
func (s *SQLite) RemoveAdmin(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM admin_users WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to remove admin %s: %w", userID, err)
	}
	return nil
}

// ListAdmins implements Repository.
func (s *SQLite) ListAdmins(ctx context.Context) ([]AdminUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT user_id, added_at FROM admin_users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	defer rows.Close()

	admins := []AdminUser{}
	for rows.Next() {
		var a AdminUser
		var addedAt string
		if err := rows.Scan(&a.UserID, &addedAt); err != nil {
			return nil, fmt.Errorf("failed to scan admin: %w", err)
		}
		a.AddedAt = parseTime(addedAt)
		admins = append(admins, a)
	}
	return admins, rows.Err()
}

// IsAdmin implements Repository.
func (s *SQLite) IsAdmin(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM admin_users WHERE user_id = ?`, userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check admin %s: %w", userID, err)
	}
	return true, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row scanner) (ChannelSchedule, error) {
	var sch ChannelSchedule
	var enabled int
	var updatedAt string
	if err := row.Scan(&sch.ChannelID, &sch.ChannelName, &sch.CronExpr, &enabled, &updatedAt); err != nil {
		return ChannelSchedule{}, err
	}
	sch.Enabled = enabled == 1
	sch.UpdatedAt = parseTime(updatedAt)
	return sch, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
