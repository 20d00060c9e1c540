package builders

import (
	"github.com/aatumaykin/purgebot/internal/config"
	"github.com/aatumaykin/purgebot/internal/discord"
	"github.com/aatumaykin/purgebot/internal/logger"
)

// DiscordKit groups the Discord-facing components that share a session.
type DiscordKit struct {
	Bot       *discord.Bot
	Client    *discord.Client
	Presenter *discord.Presenter
}

type DiscordBuilder struct {
	config *config.Config
	logger *logger.Logger
}

func NewDiscordBuilder(cfg *config.Config, log *logger.Logger) *DiscordBuilder {
	return &DiscordBuilder{
		config: cfg,
		logger: log,
	}
}

// Build creates the session without connecting.
func (b *DiscordBuilder) Build() (*DiscordKit, error) {
	bot, err := discord.New(b.config.Discord, b.logger)
	if err != nil {
		return nil, err
	}
	return &DiscordKit{
		Bot:       bot,
		Client:    discord.NewClient(bot.API(), b.config.Purge.PageSize, b.logger),
		Presenter: discord.NewPresenter(bot.API(), b.logger),
	}, nil
}
