package discord

import (
	"context"
	"errors"

	"github.com/aatumaykin/purgebot/internal/auth"
	"github.com/aatumaykin/purgebot/internal/commands"
	"github.com/aatumaykin/purgebot/internal/confirm"
	"github.com/aatumaykin/purgebot/internal/logger"
	"github.com/aatumaykin/purgebot/internal/purge"
	"github.com/bwmarrin/discordgo"
)

const (
	MsgNotRequesterConfirm = "You cannot confirm this action."
	MsgNotRequesterCancel  = "You cannot cancel this action."
	MsgPromptClosed        = "This prompt is no longer active."
)

// CommandHandler handles prefix commands.
type CommandHandler interface {
	IsCommand(content string) bool
	Handle(ctx context.Context, msg commands.Message) (reply string, handled bool)
}

// PromptActions resolves button presses on confirmation prompts.
type PromptActions interface {
	Confirm(ctx context.Context, promptID, actorID string) (purge.Summary, error)
	Cancel(ctx context.Context, promptID, actorID string) error
}

// Router turns gateway events into command and prompt calls.
type Router struct {
	session  Session
	commands CommandHandler
	prompts  PromptActions
	logger   *logger.Logger
}

// NewRouter creates a router.
func NewRouter(session Session, handler CommandHandler, prompts PromptActions, log *logger.Logger) *Router {
	return &Router{
		session:  session,
		commands: handler,
		prompts:  prompts,
		logger:   log.Component("router"),
	}
}

// OnMessage handles a created message. Bot authors and messages without the
// command prefix are ignored before any lookup is made.
func (r *Router) OnMessage(ctx context.Context, m *discordgo.Message) {
	if m == nil || m.Author == nil || m.Author.Bot {
		return
	}
	if !r.commands.IsCommand(m.Content) {
		return
	}

	msg := commands.Message{
		Content:   m.Content,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Actor: auth.Actor{
			UserID:  m.Author.ID,
			GuildID: m.GuildID,
		},
	}
	if m.GuildID != "" {
		msg.Actor.RoleNames = r.roleNames(m.GuildID, m.Member)
		msg.ChannelName = r.channelName(ctx, m.ChannelID)
	}

	reply, handled := r.commands.Handle(ctx, msg)
	if !handled || reply == "" {
		return
	}
	if _, err := r.session.ChannelMessageSend(m.ChannelID, reply, discordgo.WithContext(ctx)); err != nil {
		r.logger.Error("failed to send reply", err, logger.Field{Key: "channel_id", Value: m.ChannelID})
	}
}

// channelName prefers the gateway state and falls back to REST.
func (r *Router) channelName(ctx context.Context, channelID string) string {
	if ch, err := r.session.CachedChannel(channelID); err == nil {
		return ch.Name
	}
	ch, err := r.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		r.logger.Debug("channel lookup failed",
			logger.Field{Key: "channel_id", Value: channelID},
			logger.Field{Key: "error", Value: err.Error()})
		return ""
	}
	return ch.Name
}

func (r *Router) roleNames(guildID string, member *discordgo.Member) []string {
	if member == nil {
		return nil
	}
	names := make([]string, 0, len(member.Roles))
	for _, id := range member.Roles {
		name, err := r.session.RoleName(guildID, id)
		if err != nil {
			r.logger.Debug("role lookup failed",
				logger.Field{Key: "role_id", Value: id},
				logger.Field{Key: "error", Value: err.Error()})
			continue
		}
		names = append(names, name)
	}
	return names
}

// OnInteraction handles button presses on purge prompts. The interaction is
// acknowledged first since a confirmed purge can outlast Discord's
// three second response window.
func (r *Router) OnInteraction(ctx context.Context, i *discordgo.Interaction) {
	if i == nil || i.Type != discordgo.InteractionMessageComponent {
		return
	}
	action, promptID, ok := parseCustomID(i.MessageComponentData().CustomID)
	if !ok {
		return
	}

	err := r.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}, discordgo.WithContext(ctx))
	if err != nil {
		r.logger.Error("failed to acknowledge interaction", err, logger.Field{Key: "prompt_id", Value: promptID})
		return
	}

	actorID := interactionUserID(i)
	switch action {
	case actionConfirm:
		_, err = r.prompts.Confirm(ctx, promptID, actorID)
	default:
		err = r.prompts.Cancel(ctx, promptID, actorID)
	}

	switch {
	case err == nil:
		if action == actionCancel {
			r.followup(ctx, i, MsgCancelled)
		}
	case errors.Is(err, confirm.ErrNotRequester):
		if action == actionCancel {
			r.followup(ctx, i, MsgNotRequesterCancel)
		} else {
			r.followup(ctx, i, MsgNotRequesterConfirm)
		}
	case errors.Is(err, confirm.ErrPromptClosed):
		r.followup(ctx, i, MsgPromptClosed)
	default:
		r.logger.Error("prompt action failed", err,
			logger.Field{Key: "prompt_id", Value: promptID},
			logger.Field{Key: "action", Value: action})
		r.followup(ctx, i, commands.MsgInternalError)
	}
}

func (r *Router) followup(ctx context.Context, i *discordgo.Interaction, content string) {
	_, err := r.session.FollowupMessageCreate(i, false, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	}, discordgo.WithContext(ctx))
	if err != nil {
		r.logger.Warn("failed to send ephemeral followup", logger.Field{Key: "error", Value: err.Error()})
	}
}

func interactionUserID(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
