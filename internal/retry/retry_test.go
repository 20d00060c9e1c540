package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aatumaykin/purgebot/internal/logger"
	"github.com/aatumaykin/purgebot/internal/purge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fast = Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "canceled", err: fmt.Errorf("open: %w", context.Canceled), want: false},
		{name: "rate limited", err: &purge.PlatformError{Op: "open", StatusCode: 429}, want: true},
		{name: "server error", err: &purge.PlatformError{Op: "open", StatusCode: 502}, want: true},
		{name: "bad request", err: &purge.PlatformError{Op: "open", StatusCode: 400}, want: false},
		{name: "forbidden", err: fmt.Errorf("x: %w", purge.ErrForbidden), want: false},
		{name: "gateway auth", err: errors.New("websocket: close 4004: Authentication failed."), want: false},
		{name: "dial", err: errors.New("dial tcp: lookup gateway.discord.gg: no such host"), want: true},
		{name: "reset", err: errors.New("read: connection reset by peer"), want: true},
		{name: "eof", err: errors.New("unexpected EOF"), want: true},
		{name: "unknown", err: errors.New("something odd"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, logger.Nop(), "test", func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_SuccessAfterRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, logger.Nop(), "test", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_AllFailures(t *testing.T) {
	calls := 0
	cause := errors.New("i/o timeout")
	err := Do(context.Background(), fast, logger.Nop(), "test", func(context.Context) error {
		calls++
		return cause
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "all 3 attempts failed")
	assert.Equal(t, 3, calls)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	cause := errors.New("websocket: close 4004: Authentication failed.")
	err := Do(context.Background(), fast, logger.Nop(), "test", func(context.Context) error {
		calls++
		return cause
	})
	assert.Equal(t, cause, err)
	assert.Equal(t, 1, calls)
}

func TestDo_CustomRetryable(t *testing.T) {
	cfg := fast
	cfg.Retryable = func(error) bool { return true }

	calls := 0
	_ = Do(context.Background(), cfg, logger.Nop(), "test", func(context.Context) error {
		calls++
		return errors.New("something odd")
	})
	assert.Equal(t, 3, calls)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxAttempts: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour}

	calls := 0
	err := Do(ctx, cfg, logger.Nop(), "test", func(context.Context) error {
		calls++
		cancel()
		return errors.New("connection refused")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestCalculateBackoff(t *testing.T) {
	initial := 100 * time.Millisecond
	max := time.Second

	assert.Equal(t, 100*time.Millisecond, calculateBackoff(0, initial, max))
	assert.Equal(t, 200*time.Millisecond, calculateBackoff(1, initial, max))
	assert.Equal(t, 800*time.Millisecond, calculateBackoff(3, initial, max))
	assert.Equal(t, max, calculateBackoff(4, initial, max))
	assert.Equal(t, max, calculateBackoff(70, initial, max))
}

func TestDo_DefaultConfig(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{}, logger.Nop(), "test", func(context.Context) error {
		calls++
		return errors.New("final")
	})
	assert.EqualError(t, err, "final")
	assert.Equal(t, 1, calls)
}
