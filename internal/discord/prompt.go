package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/aatumaykin/purgebot/internal/commands"
	"github.com/aatumaykin/purgebot/internal/confirm"
	"github.com/aatumaykin/purgebot/internal/logger"
	"github.com/aatumaykin/purgebot/internal/purge"
	"github.com/bwmarrin/discordgo"
)

const (
	customIDPrefix = "purge"
	actionConfirm  = "confirm"
	actionCancel   = "cancel"

	MsgStarting  = "Starting purge of messages from <@%s>..."
	MsgCancelled = "Purge canceled."
	MsgTimedOut  = "Timed out, no action taken."
)

// customID builds the button ID for a prompt action.
func customID(action, promptID string) string {
	return customIDPrefix + ":" + action + ":" + promptID
}

// parseCustomID splits a button ID into action and prompt ID.
func parseCustomID(id string) (action, promptID string, ok bool) {
	parts := strings.SplitN(id, ":", 3)
	if len(parts) != 3 || parts[0] != customIDPrefix || parts[2] == "" {
		return "", "", false
	}
	switch parts[1] {
	case actionConfirm, actionCancel:
		return parts[1], parts[2], true
	default:
		return "", "", false
	}
}

// Presenter shows confirmation prompts as messages with buttons.
type Presenter struct {
	session Session
	logger  *logger.Logger
}

// NewPresenter creates a presenter.
func NewPresenter(session Session, log *logger.Logger) *Presenter {
	return &Presenter{
		session: session,
		logger:  log.Component("prompt"),
	}
}

// Show posts the prompt in the channel the command came from.
func (p *Presenter) Show(ctx context.Context, prompt confirm.Prompt) (confirm.View, error) {
	msg, err := p.session.ChannelMessageSendComplex(prompt.OriginChannelID, &discordgo.MessageSend{
		Content:    commands.FormatPrompt(prompt),
		Components: promptButtons(prompt.ID),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify("send prompt", err)
	}
	return &promptView{
		session:   p.session,
		channelID: prompt.OriginChannelID,
		messageID: msg.ID,
		content:   msg.Content,
		target:    prompt.TargetUserID,
	}, nil
}

func promptButtons(promptID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Confirm",
					Style:    discordgo.DangerButton,
					CustomID: customID(actionConfirm, promptID),
				},
				discordgo.Button{
					Label:    "Cancel",
					Style:    discordgo.SecondaryButton,
					CustomID: customID(actionCancel, promptID),
				},
			},
		},
	}
}

type promptView struct {
	session   Session
	channelID string
	messageID string
	content   string
	target    string
}

// Close removes the buttons and shows the terminal state. A cancelled prompt
// keeps its text; the requester is told privately.
func (v *promptView) Close(ctx context.Context, state confirm.State) error {
	content := v.content
	switch state {
	case confirm.StateConfirmed:
		content = fmt.Sprintf(MsgStarting, v.target)
	case confirm.StateExpired:
		content = MsgTimedOut
	}

	edit := discordgo.NewMessageEdit(v.channelID, v.messageID).SetContent(content)
	empty := []discordgo.MessageComponent{}
	edit.Components = &empty

	if _, err := v.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return classify("close prompt", err)
	}
	return nil
}

// Report posts the purge summary below the prompt.
func (v *promptView) Report(ctx context.Context, summary purge.Summary) error {
	if _, err := v.session.ChannelMessageSend(v.channelID, commands.FormatSummary(v.target, summary), discordgo.WithContext(ctx)); err != nil {
		return classify("report summary", err)
	}
	return nil
}
