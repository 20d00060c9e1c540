package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/aatumaykin/purgebot/internal/logger"
)

const (
	// SchedulesFilename holds one ChannelSchedule per line.
	SchedulesFilename = "schedules.jsonl"
	// AdminsFilename holds one AdminUser per line.
	AdminsFilename = "admins.jsonl"
)

// JSONL is a file-backed Repository using JSON Lines. Each mutation
// rewrites the whole file through a temp file and rename.
type JSONL struct {
	schedulesPath string
	adminsPath    string
	logger        *logger.Logger
	mu            sync.Mutex
}

// NewJSONL creates a JSONL repository rooted at dir.
func NewJSONL(dir string, log *logger.Logger) (*JSONL, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	log.Info("jsonl store initialized", logger.Field{Key: "dir", Value: dir})
	return &JSONL{
		schedulesPath: filepath.Join(dir, SchedulesFilename),
		adminsPath:    filepath.Join(dir, AdminsFilename),
		logger:        log,
	}, nil
}

// UpsertSchedule implements Repository.
func (s *JSONL) UpsertSchedule(_ context.Context, sch ChannelSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedules, err := loadLines[ChannelSchedule](s.schedulesPath, s.logger)
	if err != nil {
		return err
	}

	schedules, found := mergeSchedule(schedules, sch)
	if err := saveLines(s.schedulesPath, schedules, s.logger); err != nil {
		return err
	}

	s.logger.Debug("schedule upserted",
		logger.Field{Key: "channel_id", Value: sch.ChannelID},
		logger.Field{Key: "updated", Value: found})
	return nil
}

// UpsertSchedules implements Repository. The file is rewritten once, so a
// failure leaves it unchanged.
func (s *JSONL) UpsertSchedules(_ context.Context, batch []ChannelSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedules, err := loadLines[ChannelSchedule](s.schedulesPath, s.logger)
	if err != nil {
		return err
	}
	for _, sch := range batch {
		schedules, _ = mergeSchedule(schedules, sch)
	}
	if err := saveLines(s.schedulesPath, schedules, s.logger); err != nil {
		return err
	}

	s.logger.Debug("schedules upserted", logger.Field{Key: "count", Value: len(batch)})
	return nil
}

func mergeSchedule(schedules []ChannelSchedule, sch ChannelSchedule) ([]ChannelSchedule, bool) {
	sch.UpdatedAt = stamp(sch.UpdatedAt)
	for i := range schedules {
		if schedules[i].ChannelID == sch.ChannelID {
			schedules[i] = sch
			return schedules, true
		}
	}
	return append(schedules, sch), false
}

// DeleteSchedule implements Repository.
func (s *JSONL) DeleteSchedule(_ context.Context, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedules, err := loadLines[ChannelSchedule](s.schedulesPath, s.logger)
	if err != nil {
		return err
	}

	kept := schedules[:0]
	for _, sch := range schedules {
		if sch.ChannelID != channelID {
			kept = append(kept, sch)
		}
	}
	if len(kept) == len(schedules) {
		return nil
	}
	return saveLines(s.schedulesPath, kept, s.logger)
}

// GetSchedule implements Repository.
func (s *JSONL) GetSchedule(_ context.Context, channelID string) (ChannelSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedules, err := loadLines[ChannelSchedule](s.schedulesPath, s.logger)
	if err != nil {
		return ChannelSchedule{}, err
	}
	for _, sch := range schedules {
		if sch.ChannelID == channelID {
			return sch, nil
		}
	}
	return ChannelSchedule{}, ErrNotFound
}

// ListSchedules implements Repository.
func (s *JSONL) ListSchedules(_ context.Context) ([]ChannelSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedules, err := loadLines[ChannelSchedule](s.schedulesPath, s.logger)
	if err != nil {
		return nil, err
	}
	sort.Slice(schedules, func(i, j int) bool { return schedules[i].ChannelID < schedules[j].ChannelID })
	return schedules, nil
}

// AddAdmin implements Repository.
func (s *JSONL) AddAdmin(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	admins, err := loadLines[AdminUser](s.adminsPath, s.logger)
	if err != nil {
		return err
	}
	for _, a := range admins {
		if a.UserID == userID {
			return nil
		}
	}
	admins = append(admins, AdminUser{UserID: userID, AddedAt: stamp(time.Time{})})
	return saveLines(s.adminsPath, admins, s.logger)
}

// RemoveAdmin implements Repository.
func (s *JSONL) RemoveAdmin(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	admins, err := loadLines[AdminUser](s.adminsPath, s.logger)
	if err != nil {
		return err
	}
	kept := admins[:0]
	for _, a := range admins {
		if a.UserID != userID {
			kept = append(kept, a)
		}
	}
	if len(kept) == len(admins) {
		return nil
	}
	return saveLines(s.adminsPath, kept, s.logger)
}

// ListAdmins implements Repository.
func (s *JSONL) ListAdmins(_ context.Context) ([]AdminUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	admins, err := loadLines[AdminUser](s.adminsPath, s.logger)
	if err != nil {
		return nil, err
	}
	sort.Slice(admins, func(i, j int) bool { return admins[i].UserID < admins[j].UserID })
	return admins, nil
}

// IsAdmin implements Repository.
func (s *JSONL) IsAdmin(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	admins, err := loadLines[AdminUser](s.adminsPath, s.logger)
	if err != nil {
		return false, err
	}
	for _, a := range admins {
		if a.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// Close implements Repository. Files are not held open between calls.
func (s *JSONL) Close() error {
	return nil
}

// loadLines reads a JSONL file. A missing file is an empty list; malformed
// lines are logged and skipped.
func loadLines[T any](path string, log *logger.Logger) ([]T, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return []T{}, nil
	}
	if err != nil {
		log.Error("failed to open storage file", err, logger.Field{Key: "file", Value: path})
		return nil, err
	}
	defer file.Close()

	items := []T{}
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var item T
		if err := json.Unmarshal(line, &item); err != nil {
			log.Error("failed to unmarshal storage line", err,
				logger.Field{Key: "file", Value: path},
				logger.Field{Key: "line", Value: lineNum})
			continue
		}
		items = append(items, item)
	}

	if err := scanner.Err(); err != nil {
		log.Error("error scanning storage file", err, logger.Field{Key: "file", Value: path})
		return nil, err
	}
	return items, nil
}

// saveLines writes items atomically: temp file, fsync, rename.
func saveLines[T any](path string, items []T, log *logger.Logger) error {
	tmpPath := path + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		log.Error("failed to create temporary storage file", err, logger.Field{Key: "file", Value: tmpPath})
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		log.Error("failed to sync temporary file", err, logger.Field{Key: "file", Value: tmpPath})
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		log.Error("failed to rename temporary file", err,
			logger.Field{Key: "from", Value: tmpPath},
			logger.Field{Key: "to", Value: path})
		return err
	}

	log.Debug("storage file saved",
		logger.Field{Key: "count", Value: len(items)},
		logger.Field{Key: "file", Value: path})
	return nil
}
