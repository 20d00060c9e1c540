package purge

import (
	"errors"
	"fmt"
)

var (
	// ErrChannelNotFound means the channel vanished or was never visible.
	ErrChannelNotFound = errors.New("channel not found")
	// ErrForbidden means the bot lacks access or permissions.
	ErrForbidden = errors.New("missing permissions")
)

// PlatformError wraps any other chat platform failure.
type PlatformError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *PlatformError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: platform error (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: platform error: %v", e.Op, e.Err)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying later may succeed (rate limit or 5xx).
func (e *PlatformError) Transient() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// IsTransient reports whether err is a transient platform error.
func IsTransient(err error) bool {
	var pErr *PlatformError
	return errors.As(err, &pErr) && pErr.Transient()
}

// Reason classifies err for logs, metrics and operator replies.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrChannelNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case IsTransient(err):
		return "transient"
	default:
		return "error"
	}
}
