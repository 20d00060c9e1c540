// Package discord connects the bot to Discord: gateway lifecycle, message
// history purging, and confirmation prompts rendered as buttons.
package discord

import (
	"context"
	"fmt"
	"sync"

	"github.com/aatumaykin/purgebot/internal/config"
	"github.com/aatumaykin/purgebot/internal/logger"
	"github.com/bwmarrin/discordgo"
)

const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

// Bot owns the gateway connection.
type Bot struct {
	session *discordgo.Session
	api     Session
	logger  *logger.Logger

	mu       sync.Mutex
	started  bool
	removers []func()
}

// New creates an unconnected bot from cfg.
func New(cfg config.DiscordConfig, log *logger.Logger) (*Bot, error) {
	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = intents
	s.StateEnabled = true

	return &Bot{
		session: s,
		api:     NewSessionAdapter(s),
		logger:  log.Component("discord"),
	}, nil
}

// API returns the Session used by clients, presenters and routers.
func (b *Bot) API() Session {
	return b.api
}

// Start registers event handlers on router and opens the gateway. Handlers
// run with ctx until Stop.
func (b *Bot) Start(ctx context.Context, router *Router) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return fmt.Errorf("discord bot already started")
	}

	b.removers = append(b.removers,
		b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
			b.logger.Info("connected to discord",
				logger.Field{Key: "user", Value: r.User.Username},
				logger.Field{Key: "guilds", Value: len(r.Guilds)})
		}),
		b.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
			router.OnMessage(ctx, m.Message)
		}),
		b.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			router.OnInteraction(ctx, i.Interaction)
		}),
	)

	if err := b.session.Open(); err != nil {
		b.removeHandlers()
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	b.started = true
	b.logger.Info("discord gateway opened")
	return nil
}

// Ready reports whether the gateway has received its READY event.
func (b *Bot) Ready() bool {
	b.session.RLock()
	defer b.session.RUnlock()
	return b.session.DataReady
}

// Stop closes the gateway. Safe to call when not started.
func (b *Bot) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return nil
	}
	b.removeHandlers()
	b.started = false

	if err := b.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	b.logger.Info("discord gateway closed")
	return nil
}

func (b *Bot) removeHandlers() {
	for _, remove := range b.removers {
		remove()
	}
	b.removers = nil
}
