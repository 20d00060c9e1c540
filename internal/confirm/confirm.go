// Package confirm implements the confirmation flow for manual user purges.
// A prompt starts Pending and ends in exactly one of Confirmed, Cancelled or
// Expired. Only the requester can confirm or cancel.
package confirm

import (
	"context"
	"errors"
	"time"

	"github.com/aatumaykin/purgebot/internal/purge"
)

const DefaultTimeout = 5 * time.Second

var (
	// ErrPromptClosed is returned for unknown or already finished prompts.
	ErrPromptClosed = errors.New("prompt is no longer active")
	// ErrNotRequester is returned when someone else presses the buttons.
	ErrNotRequester = errors.New("not authorized for this action")
)

// State of a prompt.
type State string

const (
	StatePending   State = "pending"
	StateConfirmed State = "confirmed"
	StateCancelled State = "cancelled"
	StateExpired   State = "expired"
)

// Request describes a manual purge of one user's messages.
type Request struct {
	RequesterID     string
	TargetUserID    string
	ChannelID       string // empty means every purgeable channel in the guild
	GuildID         string
	OriginChannelID string // where the prompt is shown
}

// Prompt is a pending confirmation.
type Prompt struct {
	ID string
	Request
	State     State
	CreatedAt time.Time
	ExpiresAt time.Time
}

// AllChannels reports whether the purge targets the whole guild.
func (p Prompt) AllChannels() bool {
	return p.ChannelID == ""
}

// View renders one prompt. Close disables further interaction and shows
// the terminal state; Report shows the purge outcome after confirmation.
type View interface {
	Close(ctx context.Context, state State) error
	Report(ctx context.Context, summary purge.Summary) error
}

// Presenter shows a new prompt to the requester.
type Presenter interface {
	Show(ctx context.Context, p Prompt) (View, error)
}

// Purger runs the purge once confirmed.
type Purger interface {
	PurgeAll(ctx context.Context, channels []purge.Channel, pred purge.Predicate) purge.Summary
}
