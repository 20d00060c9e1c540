package discord

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

type sentMessage struct {
	channelID string
	content   string
	data      *discordgo.MessageSend
}

// fakeSession keeps per-channel history newest first, like the Discord API.
type fakeSession struct {
	mu sync.Mutex

	channels      map[string]*discordgo.Channel
	cached        map[string]*discordgo.Channel
	guildChannels map[string][]*discordgo.Channel
	history       map[string][]*discordgo.Message
	perms         map[string]int64
	roles         map[string]string

	channelErr error
	historyErr error
	bulkErr    error
	deleteErr  error
	// deleteErrAfter fails single deletes once this many succeeded; -1 disables.
	deleteErrAfter int

	historyCalls int
	channelCalls int
	cachedCalls  int
	bulkCalls    [][]string
	singleCalls  []string
	sent         []sentMessage
	edits        []*discordgo.MessageEdit
	responses    []*discordgo.InteractionResponse
	followups    []*discordgo.WebhookParams
	nextID       int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		channels:       map[string]*discordgo.Channel{},
		cached:         map[string]*discordgo.Channel{},
		guildChannels:  map[string][]*discordgo.Channel{},
		history:        map[string][]*discordgo.Message{},
		perms:          map[string]int64{},
		roles:          map[string]string{},
		deleteErrAfter: -1,
		nextID:         9000,
	}
}

func (f *fakeSession) addChannel(guildID, id, name string, perms int64) *discordgo.Channel {
	ch := &discordgo.Channel{ID: id, GuildID: guildID, Name: name, Type: discordgo.ChannelTypeGuildText}
	f.channels[id] = ch
	f.guildChannels[guildID] = append(f.guildChannels[guildID], ch)
	f.perms[id] = perms
	return ch
}

// addMessages appends n messages older than anything already present.
func (f *fakeSession) addMessages(channelID, authorID string, n int, ts time.Time) {
	for i := 0; i < n; i++ {
		f.nextID--
		f.history[channelID] = append(f.history[channelID], &discordgo.Message{
			ID:        strconv.Itoa(f.nextID),
			ChannelID: channelID,
			Author:    &discordgo.User{ID: authorID},
			Timestamp: ts,
		})
	}
}

func (f *fakeSession) remaining(channelID, authorID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.history[channelID] {
		if m.Author.ID == authorID {
			n++
		}
	}
	return n
}

func (f *fakeSession) remove(channelID string, ids ...string) {
	drop := map[string]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	kept := f.history[channelID][:0]
	for _, m := range f.history[channelID] {
		if !drop[m.ID] {
			kept = append(kept, m)
		}
	}
	f.history[channelID] = kept
}

func (f *fakeSession) Channel(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channelCalls++
	if f.channelErr != nil {
		return nil, f.channelErr
	}
	ch, ok := f.channels[channelID]
	if !ok {
		return nil, restErr(http.StatusNotFound, codeUnknownChannel)
	}
	return ch, nil
}

func (f *fakeSession) CachedChannel(channelID string) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cachedCalls++
	ch, ok := f.cached[channelID]
	if !ok {
		return nil, discordgo.ErrStateNotFound
	}
	return ch, nil
}

func (f *fakeSession) GuildChannels(guildID string, _ ...discordgo.RequestOption) ([]*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.guildChannels[guildID], nil
}

func (f *fakeSession) ChannelMessages(channelID string, limit int, beforeID, _, _ string, _ ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls++
	if f.historyErr != nil {
		return nil, f.historyErr
	}

	before := -1
	if beforeID != "" {
		before, _ = strconv.Atoi(beforeID)
	}
	var page []*discordgo.Message
	for _, m := range f.history[channelID] {
		id, _ := strconv.Atoi(m.ID)
		if before >= 0 && id >= before {
			continue
		}
		page = append(page, m)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func (f *fakeSession) ChannelMessagesBulkDelete(channelID string, messages []string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bulkErr != nil {
		return f.bulkErr
	}
	if len(messages) < 2 || len(messages) > MaxPageSize {
		return errors.New("bulk delete needs 2..100 messages")
	}
	f.bulkCalls = append(f.bulkCalls, append([]string(nil), messages...))
	f.remove(channelID, messages...)
	return nil
}

func (f *fakeSession) ChannelMessageDelete(channelID, messageID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil && f.deleteErrAfter >= 0 && len(f.singleCalls) >= f.deleteErrAfter {
		return f.deleteErr
	}
	f.singleCalls = append(f.singleCalls, messageID)
	f.remove(channelID, messageID)
	return nil
}

func (f *fakeSession) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{channelID: channelID, content: content})
	return &discordgo.Message{ID: "reply", ChannelID: channelID, Content: content}, nil
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{channelID: channelID, content: data.Content, data: data})
	return &discordgo.Message{ID: "prompt-msg", ChannelID: channelID, Content: data.Content}, nil
}

func (f *fakeSession) ChannelMessageEditComplex(m *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, m)
	return &discordgo.Message{ID: m.ID, ChannelID: m.Channel}, nil
}

func (f *fakeSession) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeSession) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followups = append(f.followups, data)
	return &discordgo.Message{ID: "followup"}, nil
}

func (f *fakeSession) BotPermissions(channelID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.perms[channelID]
	if !ok {
		return 0, discordgo.ErrStateNotFound
	}
	return p, nil
}

func (f *fakeSession) RoleName(_, roleID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, ok := f.roles[roleID]
	if !ok {
		return "", discordgo.ErrStateNotFound
	}
	return name, nil
}

func restErr(status, code int) *discordgo.RESTError {
	return &discordgo.RESTError{
		Response:     &http.Response{StatusCode: status, Status: http.StatusText(status)},
		ResponseBody: []byte(`{}`),
		Message:      &discordgo.APIErrorMessage{Code: code, Message: http.StatusText(status)},
	}
}
