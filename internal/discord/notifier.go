package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/tbourn/go-discord-bot/internal/domain"
)

// dmSender is the subset of *discordgo.Session used to deliver reminders.
type dmSender interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DMNotifier delivers due reminders as a direct message to their owner.
// It satisfies scheduler.Notifier.
type DMNotifier struct {
	Session dmSender
}

// NewDMNotifier returns a DMNotifier sending through s.
func NewDMNotifier(s *discordgo.Session) *DMNotifier {
	return &DMNotifier{Session: s}
}

// Notify opens (or reuses) the DM channel with r.UserID and posts the
// reminder embed. Both REST calls are bound to ctx.
func (n *DMNotifier) Notify(ctx context.Context, r domain.Reminder) error {
	ch, err := n.Session.UserChannelCreate(r.UserID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	if _, err := n.Session.ChannelMessageSendEmbed(ch.ID, deliveryEmbed(r), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send dm: %w", err)
	}
	return nil
}
