package commands

import (
	"context"

	"github.com/aatumaykin/purgebot/internal/confirm"
	"github.com/stretchr/testify/mock"
)

// MockPromptOpener is a mock implementation of PromptOpener.
type MockPromptOpener struct {
	mock.Mock
}

func (m *MockPromptOpener) Open(ctx context.Context, req confirm.Request) (*confirm.Prompt, error) {
	args := m.Called(ctx, req)
	p, _ := args.Get(0).(*confirm.Prompt)
	return p, args.Error(1)
}

// MockDirectory is a mock implementation of Directory.
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) ChannelName(ctx context.Context, guildID, channelID string) (string, error) {
	args := m.Called(ctx, guildID, channelID)
	return args.String(0), args.Error(1)
}
