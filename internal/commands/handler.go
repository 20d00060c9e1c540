package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aatumaykin/purgebot/internal/auth"
	"github.com/aatumaykin/purgebot/internal/confirm"
	"github.com/aatumaykin/purgebot/internal/cron"
	"github.com/aatumaykin/purgebot/internal/logger"
	"github.com/aatumaykin/purgebot/internal/purge"
	"github.com/aatumaykin/purgebot/internal/storage"
)

const (
	CommandChannelConfig = "channelconfig"
	CommandPurgeUser     = "purgeuser"
	CommandAdmin         = "admin"
)

// Replies.
const (
	MsgNotAuthorized     = "You are not authorized to use this command."
	MsgSubcommands       = "Available subcommands: set, unset, enable, disable, get, list"
	MsgAdminSubcommands  = "Available subcommands: add, remove, list"
	MsgInvalidCron       = "Invalid CRON expression."
	MsgNoConfig          = "No config found for this channel."
	MsgNoConfigs         = "No channel configurations found."
	MsgGuildOnly         = "This command must be used in a server."
	MsgSuperAdminOnly    = "Only super admins can manage the admin list."
	MsgNoAdmins          = "No admins in the admin list."
	MsgUnknownChannel    = "Unknown channel."
	MsgInternalError     = "Something went wrong, check the bot logs."
	msgUsageSet          = "Usage: %schannelconfig set <#channel> <cron expression>"
	msgUsageChannel      = "Usage: %schannelconfig %s <#channel>"
	msgUsagePurgeUser    = "Usage: %spurgeuser <@user> [#channel]"
	msgUsageAdmin        = "Usage: %sadmin %s <@user>"
	timestampLayout      = "2006-01-02 15:04:05 UTC"
)

// Message is an incoming chat message.
type Message struct {
	Content     string
	Actor       auth.Actor
	ChannelID   string
	ChannelName string
	GuildID     string // empty for direct messages
}

// Authorizer gates commands.
type Authorizer interface {
	Require(ctx context.Context, actor auth.Actor) error
	CanManageAdmins(actor auth.Actor) bool
	CommandChannelAllowed(channelName string, inGuild bool) bool
}

// Directory resolves channel names.
type Directory interface {
	// ChannelName returns the name of a text channel in guildID.
	ChannelName(ctx context.Context, guildID, channelID string) (string, error)
}

// Handler parses prefix commands and replies with plain text.
type Handler struct {
	prefix string
	svc    *Service
	authz  Authorizer
	dir    Directory
	logger *logger.Logger
}

// NewHandler creates a command handler.
func NewHandler(prefix string, svc *Service, authz Authorizer, dir Directory, log *logger.Logger) *Handler {
	return &Handler{
		prefix: prefix,
		svc:    svc,
		authz:  authz,
		dir:    dir,
		logger: log.Component("handler"),
	}
}

// IsCommand reports whether content starts with the command prefix.
func (h *Handler) IsCommand(content string) bool {
	return strings.HasPrefix(content, h.prefix)
}

// Handle processes msg. handled is false for messages that are not
// commands or that arrive in a channel where commands are not accepted.
// An empty reply with handled true means the command answered elsewhere.
func (h *Handler) Handle(ctx context.Context, msg Message) (reply string, handled bool) {
	if !h.IsCommand(msg.Content) {
		return "", false
	}

	args := strings.Fields(strings.TrimPrefix(msg.Content, h.prefix))
	if len(args) == 0 {
		return "", false
	}
	cmd := strings.ToLower(args[0])
	switch cmd {
	case CommandChannelConfig, CommandPurgeUser, CommandAdmin:
	default:
		return "", false
	}

	if !h.authz.CommandChannelAllowed(msg.ChannelName, msg.GuildID != "") {
		h.logger.Debug("command ignored in channel",
			logger.Field{Key: "command", Value: cmd},
			logger.Field{Key: "channel_id", Value: msg.ChannelID})
		return "", false
	}

	if err := h.authz.Require(ctx, msg.Actor); err != nil {
		h.logger.Info("command denied",
			logger.Field{Key: "command", Value: cmd},
			logger.Field{Key: "user_id", Value: msg.Actor.UserID})
		return MsgNotAuthorized, true
	}

	h.logger.Info("command received",
		logger.Field{Key: "command", Value: cmd},
		logger.Field{Key: "user_id", Value: msg.Actor.UserID},
		logger.Field{Key: "channel_id", Value: msg.ChannelID})

	switch cmd {
	case CommandChannelConfig:
		return h.channelConfig(ctx, msg, args[1:]), true
	case CommandPurgeUser:
		return h.purgeUser(ctx, msg, args[1:]), true
	default:
		return h.admin(ctx, msg, args[1:]), true
	}
}

func (h *Handler) channelConfig(ctx context.Context, msg Message, args []string) string {
	if len(args) == 0 {
		return MsgSubcommands
	}

	sub := strings.ToLower(args[0])
	if sub == "list" {
		return h.list(ctx)
	}

	switch sub {
	case "set", "unset", "enable", "disable", "get":
	default:
		return MsgSubcommands
	}

	if len(args) < 2 {
		if sub == "set" {
			return fmt.Sprintf(msgUsageSet, h.prefix)
		}
		return fmt.Sprintf(msgUsageChannel, h.prefix, sub)
	}

	ch, err := h.resolveChannel(ctx, msg.GuildID, args[1])
	if err != nil {
		return MsgUnknownChannel
	}

	switch sub {
	case "set":
		if len(args) < 3 {
			return fmt.Sprintf(msgUsageSet, h.prefix)
		}
		if _, err := h.svc.Set(ctx, ch, strings.Join(args[2:], " ")); err != nil {
			if errors.Is(err, cron.ErrInvalidExpression) {
				return MsgInvalidCron
			}
			return h.internal(err)
		}
		return fmt.Sprintf("Config for channel `%s` set and enabled.", ch.Name)

	case "unset":
		if err := h.svc.Unset(ctx, ch); err != nil {
			return h.internal(err)
		}
		return fmt.Sprintf("Config for channel `%s` removed.", ch.Name)

	case "enable", "disable":
		var err error
		if sub == "enable" {
			_, err = h.svc.Enable(ctx, ch)
		} else {
			_, err = h.svc.Disable(ctx, ch)
		}
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Sprintf("No config exists to %s.", sub)
		}
		if err != nil {
			return h.internal(err)
		}
		return fmt.Sprintf("Config for `%s` is now %sd.", ch.Name, sub)

	default:
		info, err := h.svc.Get(ctx, ch.ID)
		if errors.Is(err, storage.ErrNotFound) {
			return MsgNoConfig
		}
		if err != nil {
			return h.internal(err)
		}
		return formatScheduleInfo(info)
	}
}

func (h *Handler) list(ctx context.Context) string {
	schedules, err := h.svc.List(ctx)
	if err != nil {
		return h.internal(err)
	}
	if len(schedules) == 0 {
		return MsgNoConfigs
	}

	var b strings.Builder
	b.WriteString("**Configured Channels:**")
	for _, sch := range schedules {
		fmt.Fprintf(&b, "\n- **%s** -> CRON: `%s`, Enabled: %s", sch.ChannelName, sch.CronExpr, yesNo(sch.Enabled))
	}
	return b.String()
}

func (h *Handler) purgeUser(ctx context.Context, msg Message, args []string) string {
	if msg.GuildID == "" {
		return MsgGuildOnly
	}
	if len(args) < 1 || len(args) > 2 {
		return fmt.Sprintf(msgUsagePurgeUser, h.prefix)
	}

	userID, ok := parseUserMention(args[0])
	if !ok {
		return fmt.Sprintf(msgUsagePurgeUser, h.prefix)
	}

	req := confirm.Request{
		RequesterID:     msg.Actor.UserID,
		TargetUserID:    userID,
		GuildID:         msg.GuildID,
		OriginChannelID: msg.ChannelID,
	}
	if len(args) == 2 {
		ch, err := h.resolveChannel(ctx, msg.GuildID, args[1])
		if err != nil {
			return MsgUnknownChannel
		}
		req.ChannelID = ch.ID
	}

	if _, err := h.svc.PurgeUser(ctx, req); err != nil {
		return h.internal(err)
	}
	return ""
}

func (h *Handler) admin(ctx context.Context, msg Message, args []string) string {
	if len(args) == 0 {
		return MsgAdminSubcommands
	}

	sub := strings.ToLower(args[0])
	switch sub {
	case "list":
		admins, err := h.svc.ListAdmins(ctx)
		if err != nil {
			return h.internal(err)
		}
		if len(admins) == 0 {
			return MsgNoAdmins
		}
		var b strings.Builder
		b.WriteString("**Admins:**")
		for _, a := range admins {
			fmt.Fprintf(&b, "\n- %s", userMention(a.UserID))
		}
		return b.String()

	case "add", "remove":
		if !h.authz.CanManageAdmins(msg.Actor) {
			return MsgSuperAdminOnly
		}
		if len(args) != 2 {
			return fmt.Sprintf(msgUsageAdmin, h.prefix, sub)
		}
		userID, ok := parseUserMention(args[1])
		if !ok {
			return fmt.Sprintf(msgUsageAdmin, h.prefix, sub)
		}

		if sub == "add" {
			if err := h.svc.AddAdmin(ctx, userID); err != nil {
				return h.internal(err)
			}
			return fmt.Sprintf("%s added to the admin list.", userMention(userID))
		}
		if err := h.svc.RemoveAdmin(ctx, userID); err != nil {
			return h.internal(err)
		}
		return fmt.Sprintf("%s removed from the admin list.", userMention(userID))

	default:
		return MsgAdminSubcommands
	}
}

func (h *Handler) resolveChannel(ctx context.Context, guildID, token string) (ChannelRef, error) {
	id, ok := parseChannelMention(token)
	if !ok {
		return ChannelRef{}, fmt.Errorf("not a channel: %q", token)
	}
	name, err := h.dir.ChannelName(ctx, guildID, id)
	if err != nil {
		h.logger.Debug("channel lookup failed",
			logger.Field{Key: "channel_id", Value: id},
			logger.Field{Key: "error", Value: err.Error()})
		return ChannelRef{}, err
	}
	return ChannelRef{ID: id, Name: name}, nil
}

func (h *Handler) internal(err error) string {
	h.logger.Error("command failed", err)
	return MsgInternalError
}

func formatScheduleInfo(info ScheduleInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Channel:** %s\n", info.ChannelName)
	fmt.Fprintf(&b, "**CRON:** `%s`\n", info.CronExpr)
	fmt.Fprintf(&b, "**Enabled:** %s\n", yesNo(info.Enabled))
	b.WriteString("**Next Runs:**")
	if info.NextErr != nil {
		b.WriteString("\n- unable to evaluate CRON expression")
		return b.String()
	}
	for _, t := range info.NextRuns {
		fmt.Fprintf(&b, "\n- %s", t.UTC().Format(timestampLayout))
	}
	return b.String()
}

// FormatSummary renders the outcome of a confirmed manual purge, one line
// per failed channel followed by the total.
func FormatSummary(targetUserID string, sum purge.Summary) string {
	var b strings.Builder
	for _, r := range sum.Failures() {
		if errors.Is(r.Err, purge.ErrForbidden) {
			fmt.Fprintf(&b, "Missing permissions in %s\n", channelMention(r.ChannelID))
			continue
		}
		fmt.Fprintf(&b, "Error purging %s: %v\n", channelMention(r.ChannelID), r.Err)
	}
	fmt.Fprintf(&b, "Finished purging %d messages from %s.", sum.Total, userMention(targetUserID))
	return b.String()
}

// FormatPrompt renders the confirmation question for p.
func FormatPrompt(p confirm.Prompt) string {
	target := "*all channels*"
	if !p.AllChannels() {
		target = channelMention(p.ChannelID)
	}
	return fmt.Sprintf("Are you sure you want to purge **all messages** from %s in %s?", userMention(p.TargetUserID), target)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
