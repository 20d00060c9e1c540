// Package purge deletes messages in chat channels through a platform
// client and reports per-channel outcomes.
package purge

import (
	"context"
	"time"
)

// Message is the subset of a chat message a predicate can inspect.
type Message struct {
	ID        string
	ChannelID string
	AuthorID  string
	Timestamp time.Time
}

// Predicate selects messages to delete. A nil Predicate matches everything.
type Predicate func(Message) bool

// ByAuthor matches messages written by userID.
func ByAuthor(userID string) Predicate {
	return func(m Message) bool {
		return m.AuthorID == userID
	}
}

// Match reports whether p selects m.
func (p Predicate) Match(m Message) bool {
	return p == nil || p(m)
}

// Channel is a purgeable chat channel.
type Channel interface {
	ID() string
	Name() string
	// Purge deletes matching messages and returns how many were deleted,
	// including those deleted before a failure.
	Purge(ctx context.Context, pred Predicate) (int, error)
}

// Client resolves channels on the chat platform.
type Client interface {
	// Channel returns ErrChannelNotFound when the channel no longer exists.
	Channel(ctx context.Context, id string) (Channel, error)
	// PurgeableChannels lists guild channels where the bot can both read
	// history and delete messages.
	PurgeableChannels(ctx context.Context, guildID string) ([]Channel, error)
}

// Result is the outcome of purging one channel.
type Result struct {
	ChannelID   string
	ChannelName string
	Deleted     int
	Err         error
	Duration    time.Duration
}

// OK reports whether the purge finished without error.
func (r Result) OK() bool {
	return r.Err == nil
}

// Summary aggregates results of a multi-channel purge.
type Summary struct {
	Results []Result
	Total   int
}

// Failures returns results that ended with an error.
func (s Summary) Failures() []Result {
	var failed []Result
	for _, r := range s.Results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}
