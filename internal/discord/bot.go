// Package discord is the Discord gateway adapter: it registers the slash
// commands, routes interactions to the reminder and gif services, and
// delivers due reminders by direct message.
package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-discord-bot/internal/config"
)

// Interactions must be acknowledged within three seconds.
const commandTimeout = 2500 * time.Millisecond

// Bot owns the gateway session.
type Bot struct {
	Session *discordgo.Session
	Router  *Router
	Config  config.DiscordConfig
	Log     zerolog.Logger

	ctx context.Context
}

// New creates the session for cfg.Token. The gateway is not opened until Run.
func New(cfg config.DiscordConfig, router *Router, logger zerolog.Logger) (*Bot, error) {
	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsDirectMessages

	b := &Bot{
		Session: s,
		Router:  router,
		Config:  cfg,
		Log:     logger.With().Str("component", "discord").Logger(),
		ctx:     context.Background(),
	}
	s.AddHandler(b.onReady)
	s.AddHandler(b.onInteraction)
	return b, nil
}

// Run opens the gateway and blocks until ctx is canceled, then closes the
// session. Command handlers derive their contexts from ctx.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx
	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	b.Log.Info().Msg("gateway connected")

	<-ctx.Done()
	if err := b.Session.Close(); err != nil {
		b.Log.Warn().Err(err).Msg("close gateway")
	}
	b.Log.Info().Msg("gateway closed")
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.Log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("ready")
	if !b.Config.RegisterCommands {
		return
	}
	cmds, err := s.ApplicationCommandBulkOverwrite(r.User.ID, b.Config.GuildID, Commands())
	if err != nil {
		b.Log.Error().Err(err).Str("guild_id", b.Config.GuildID).Msg("register commands")
		return
	}
	b.Log.Info().Int("commands", len(cmds)).Str("guild_id", b.Config.GuildID).Msg("commands registered")
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	cmd := parseCommand(i.Interaction)

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()
	resp := b.Router.Handle(ctx, cmd)

	if err := s.InteractionRespond(i.Interaction, resp.InteractionResponse()); err != nil {
		b.Log.Error().Err(err).Str("command", cmd.Name).Str("user_id", cmd.UserID).Msg("respond to interaction")
	}
}
