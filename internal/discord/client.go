package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/aatumaykin/purgebot/internal/logger"
	"github.com/aatumaykin/purgebot/internal/purge"
	"github.com/bwmarrin/discordgo"
)

const (
	// MaxPageSize is the Discord limit for history pages and bulk deletes.
	MaxPageSize = 100
	// bulkDeleteMaxAge is the age after which Discord refuses bulk deletes.
	// A minute of margin covers clock skew and slow pages.
	bulkDeleteMaxAge = 14*24*time.Hour - time.Minute

	purgePermissions = discordgo.PermissionReadMessageHistory | discordgo.PermissionManageMessages
)

// Client implements purge.Client and commands.Directory on top of a Session.
type Client struct {
	session  Session
	pageSize int
	logger   *logger.Logger
	now      func() time.Time
}

// NewClient creates a Discord client. pageSize is clamped to 2..100.
func NewClient(session Session, pageSize int, log *logger.Logger) *Client {
	if pageSize < 2 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return &Client{
		session:  session,
		pageSize: pageSize,
		logger:   log.Component("discord"),
		now:      time.Now,
	}
}

// Channel resolves a text channel by ID.
func (c *Client) Channel(ctx context.Context, id string) (purge.Channel, error) {
	ch, err := c.session.Channel(id, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify("get channel", err)
	}
	if !isTextChannel(ch) {
		return nil, fmt.Errorf("channel %s is not a text channel: %w", id, purge.ErrChannelNotFound)
	}
	return c.wrap(ch), nil
}

// PurgeableChannels lists text channels in guildID where the bot can read
// history and manage messages.
func (c *Client) PurgeableChannels(ctx context.Context, guildID string) ([]purge.Channel, error) {
	all, err := c.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify("list guild channels", err)
	}

	var result []purge.Channel
	for _, ch := range all {
		if !isTextChannel(ch) {
			continue
		}
		perms, err := c.session.BotPermissions(ch.ID)
		if err != nil {
			c.logger.Debug("permission lookup failed, skipping channel",
				logger.Field{Key: "channel_id", Value: ch.ID},
				logger.Field{Key: "error", Value: err.Error()})
			continue
		}
		if perms&discordgo.PermissionAdministrator == 0 && perms&purgePermissions != purgePermissions {
			continue
		}
		result = append(result, c.wrap(ch))
	}
	return result, nil
}

// ChannelName returns the name of a text channel that belongs to guildID.
func (c *Client) ChannelName(ctx context.Context, guildID, channelID string) (string, error) {
	ch, err := c.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return "", classify("get channel", err)
	}
	if !isTextChannel(ch) || (guildID != "" && ch.GuildID != guildID) {
		return "", purge.ErrChannelNotFound
	}
	return ch.Name, nil
}

func (c *Client) wrap(ch *discordgo.Channel) *textChannel {
	return &textChannel{client: c, id: ch.ID, name: ch.Name}
}

func isTextChannel(ch *discordgo.Channel) bool {
	if ch == nil {
		return false
	}
	switch ch.Type {
	case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews:
		return true
	default:
		return false
	}
}

// textChannel is a purgeable guild text channel.
type textChannel struct {
	client *Client
	id     string
	name   string
}

func (t *textChannel) ID() string   { return t.id }
func (t *textChannel) Name() string { return t.name }

// Purge walks the channel history from newest to oldest. Recent matches are
// bulk deleted, older ones one at a time. On failure the count of messages
// already deleted is returned with the error.
func (t *textChannel) Purge(ctx context.Context, pred purge.Predicate) (int, error) {
	s := t.client.session
	pageSize := t.client.pageSize

	deleted := 0
	before := ""
	for {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}

		page, err := s.ChannelMessages(t.id, pageSize, before, "", "", discordgo.WithContext(ctx))
		if err != nil {
			return deleted, classify("fetch history", err)
		}
		if len(page) == 0 {
			return deleted, nil
		}
		before = page[len(page)-1].ID

		cutoff := t.client.now().Add(-bulkDeleteMaxAge)
		var recent, old []string
		for _, m := range page {
			if !pred.Match(toMessage(m)) {
				continue
			}
			if m.Timestamp.After(cutoff) {
				recent = append(recent, m.ID)
			} else {
				old = append(old, m.ID)
			}
		}

		n, err := t.bulkDelete(ctx, recent)
		deleted += n
		if err != nil {
			return deleted, err
		}
		n, err = t.deleteEach(ctx, old)
		deleted += n
		if err != nil {
			return deleted, err
		}

		if len(page) < pageSize {
			return deleted, nil
		}
	}
}

func (t *textChannel) bulkDelete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 1 {
		return t.deleteEach(ctx, ids)
	}
	deleted := 0
	for start := 0; start < len(ids); start += MaxPageSize {
		end := min(start+MaxPageSize, len(ids))
		batch := ids[start:end]
		if len(batch) == 1 {
			n, err := t.deleteEach(ctx, batch)
			return deleted + n, err
		}
		if err := t.client.session.ChannelMessagesBulkDelete(t.id, batch, discordgo.WithContext(ctx)); err != nil {
			return deleted, classify("bulk delete", err)
		}
		deleted += len(batch)
	}
	return deleted, nil
}

func (t *textChannel) deleteEach(ctx context.Context, ids []string) (int, error) {
	deleted := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		err := t.client.session.ChannelMessageDelete(t.id, id, discordgo.WithContext(ctx))
		if isUnknownMessage(err) {
			continue
		}
		if err != nil {
			return deleted, classify("delete message", err)
		}
		deleted++
	}
	return deleted, nil
}

func toMessage(m *discordgo.Message) purge.Message {
	msg := purge.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Timestamp: m.Timestamp,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
	}
	return msg
}
