// Package retry runs an operation with exponential backoff. It is used for
// connection setup, never for purges: a failed purge waits for the next
// scheduled fire.
package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aatumaykin/purgebot/internal/logger"
	"github.com/aatumaykin/purgebot/internal/purge"
)

const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = 1 * time.Second
	defaultMaxDelay     = 10 * time.Second
)

// Config represents retry configuration.
type Config struct {
	MaxAttempts    int           // Maximum number of attempts (default: 3)
	InitialBackoff time.Duration // Initial backoff duration (default: 1s)
	MaxBackoff     time.Duration // Maximum backoff duration (default: 10s)
	// Retryable decides whether an error is worth another attempt.
	// Defaults to IsRetryable.
	Retryable func(error) bool
}

// Do calls fn until it succeeds, returns a non-retryable error, the
// attempts run out or ctx ends.
func Do(ctx context.Context, cfg Config, log *logger.Logger, op string, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialDelay
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxDelay
	}
	if cfg.Retryable == nil {
		cfg.Retryable = IsRetryable
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info("operation succeeded after retry",
					logger.Field{Key: "op", Value: op},
					logger.Field{Key: "attempt", Value: attempt + 1})
			}
			return nil
		}
		lastErr = err

		if !cfg.Retryable(err) {
			return err
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		backoff := calculateBackoff(attempt, cfg.InitialBackoff, cfg.MaxBackoff)
		log.Warn("operation failed, retrying",
			logger.Field{Key: "op", Value: op},
			logger.Field{Key: "attempt", Value: attempt + 1},
			logger.Field{Key: "max_attempts", Value: cfg.MaxAttempts},
			logger.Field{Key: "backoff", Value: backoff.String()},
			logger.Field{Key: "error", Value: err.Error()})

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", cfg.MaxAttempts, lastErr)
}

// IsRetryable reports whether err looks transient: a transient platform
// error, a timeout, or a network failure. Authentication failures,
// permission errors and cancellation are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, purge.ErrForbidden) || errors.Is(err, purge.ErrChannelNotFound) {
		return false
	}
	if purge.IsTransient(err) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := strings.ToLower(err.Error())

	for _, pattern := range []string{
		"4004", // gateway close: authentication failed
		"authentication failed",
		"401",
		"403",
	} {
		if strings.Contains(msg, pattern) {
			return false
		}
	}

	for _, pattern := range []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary",
		"eof",
		"too many requests",
		"rate limit",
		"no such host",
		"network",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// calculateBackoff returns 2^attempt * initial, capped at max.
func calculateBackoff(attempt int, initial, max time.Duration) time.Duration {
	backoff := time.Duration(1<<uint(attempt)) * initial
	if backoff > max || backoff <= 0 {
		return max
	}
	return backoff
}
