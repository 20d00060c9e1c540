// Package purgetest provides in-memory purge.Client and purge.Channel fakes.
package purgetest

import (
	"context"
	"sort"
	"sync"

	"github.com/aatumaykin/purgebot/internal/purge"
)

// Channel is an in-memory channel holding messages.
type Channel struct {
	ChannelID   string
	ChannelName string

	// FailAfter makes Purge fail with Err once that many messages are deleted.
	// Negative disables the failure.
	FailAfter int
	Err       error
	// Block, if set, is waited on before purging.
	Block chan struct{}

	mu       sync.Mutex
	messages []purge.Message
	calls    int
}

// NewChannel creates a channel with msgs.
func NewChannel(id, name string, msgs ...purge.Message) *Channel {
	for i := range msgs {
		msgs[i].ChannelID = id
	}
	return &Channel{ChannelID: id, ChannelName: name, FailAfter: -1, messages: msgs}
}

func (c *Channel) ID() string   { return c.ChannelID }
func (c *Channel) Name() string { return c.ChannelName }

// Purge implements purge.Channel.
func (c *Channel) Purge(ctx context.Context, pred purge.Predicate) (int, error) {
	if c.Block != nil {
		select {
		case <-c.Block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++

	deleted := 0
	kept := c.messages[:0]
	var failed bool
	for _, m := range c.messages {
		if failed || !pred.Match(m) {
			kept = append(kept, m)
			continue
		}
		if c.FailAfter >= 0 && deleted == c.FailAfter {
			failed = true
			kept = append(kept, m)
			continue
		}
		deleted++
	}
	c.messages = kept

	if failed {
		return deleted, c.Err
	}
	return deleted, nil
}

// Messages returns the remaining messages.
func (c *Channel) Messages() []purge.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]purge.Message(nil), c.messages...)
}

// Calls returns how many times Purge ran.
func (c *Channel) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Client is an in-memory purge.Client.
type Client struct {
	mu       sync.Mutex
	channels map[string]*Channel
	guilds   map[string][]string

	// ListErr is returned by PurgeableChannels when set.
	ListErr error
}

// NewClient creates an empty client.
func NewClient() *Client {
	return &Client{
		channels: make(map[string]*Channel),
		guilds:   make(map[string][]string),
	}
}

// Add registers ch under guildID.
func (c *Client) Add(guildID string, ch *Channel) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[ch.ChannelID] = ch
	c.guilds[guildID] = append(c.guilds[guildID], ch.ChannelID)
	return ch
}

// Channel implements purge.Client.
func (c *Client) Channel(_ context.Context, id string) (purge.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.channels[id]
	if !ok {
		return nil, purge.ErrChannelNotFound
	}
	return ch, nil
}

// PurgeableChannels implements purge.Client.
func (c *Client) PurgeableChannels(_ context.Context, guildID string) ([]purge.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ListErr != nil {
		return nil, c.ListErr
	}

	ids := append([]string(nil), c.guilds[guildID]...)
	sort.Strings(ids)
	out := make([]purge.Channel, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.channels[id])
	}
	return out, nil
}
