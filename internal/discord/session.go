package discord

import (
	"github.com/bwmarrin/discordgo"
)

// Session is the subset of the Discord API used by the bot. It allows
// swapping the live discordgo session for a fake in tests.
type Session interface {
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessagesBulkDelete(channelID string, messages []string, options ...discordgo.RequestOption) error
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)

	// CachedChannel looks a channel up in the gateway state without a REST call.
	CachedChannel(channelID string) (*discordgo.Channel, error)
	// BotPermissions returns the bot's effective permissions in a channel.
	BotPermissions(channelID string) (int64, error)
	// RoleName resolves a guild role ID to its name.
	RoleName(guildID, roleID string) (string, error)
}

// sessionAdapter adds state lookups to a live discordgo session.
type sessionAdapter struct {
	*discordgo.Session
}

// NewSessionAdapter wraps s as a Session.
func NewSessionAdapter(s *discordgo.Session) Session {
	return &sessionAdapter{Session: s}
}

func (a *sessionAdapter) CachedChannel(channelID string) (*discordgo.Channel, error) {
	if a.State == nil {
		return nil, discordgo.ErrStateNotFound
	}
	return a.State.Channel(channelID)
}

func (a *sessionAdapter) BotPermissions(channelID string) (int64, error) {
	if a.State == nil || a.State.User == nil {
		return 0, discordgo.ErrStateNotFound
	}
	return a.State.UserChannelPermissions(a.State.User.ID, channelID)
}

func (a *sessionAdapter) RoleName(guildID, roleID string) (string, error) {
	role, err := a.State.Role(guildID, roleID)
	if err != nil {
		return "", err
	}
	return role.Name, nil
}
