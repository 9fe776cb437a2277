package discord

import (
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"github.com/tbourn/go-discord-bot/internal/domain"
	"github.com/tbourn/go-discord-bot/internal/repo"
	"github.com/tbourn/go-discord-bot/internal/utils"
)

const (
	colorList     = 0x2b2d31
	colorDelivery = 0x5865f2
)

// when renders an epoch-millisecond instant as Discord's absolute and
// relative timestamp markup.
func when(ms int64) string {
	unix := ms / 1000
	if ms < 0 && ms%1000 != 0 {
		unix--
	}
	return fmt.Sprintf("<t:%d:F> • <t:%d:R>", unix, unix)
}

func status(paused bool) string {
	if paused {
		return "paused"
	}
	return "active"
}

// info is the one-line "ID n • recur • status" summary of a reminder.
func info(r domain.Reminder) string {
	return fmt.Sprintf("ID %d • %s • %s", r.ID, r.Recur, status(r.Paused))
}

// listEmbed renders one page of a user's reminders.
func listEmbed(owner string, page, pageSize int, p repo.Page) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Color:  colorList,
		Author: &discordgo.MessageEmbedAuthor{Name: owner + "'s reminders"},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Page %d/%d • Total %d", page, utils.TotalPages(p.Total, pageSize), p.Total),
		},
	}
	if len(p.Items) == 0 {
		e.Description = "No reminders found"
		return e
	}
	for _, r := range p.Items {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name:  info(r),
			Value: r.Text + "\n" + when(r.Timestamp),
		})
	}
	return e
}

// scheduledEmbed confirms a newly created reminder.
func scheduledEmbed(r *domain.Reminder) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Color:       colorList,
		Author:      &discordgo.MessageEmbedAuthor{Name: "Reminder scheduled"},
		Description: r.Text,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "ID", Value: strconv.FormatInt(r.ID, 10), Inline: true},
			{Name: "When", Value: when(r.Timestamp), Inline: true},
			{Name: "Repeat", Value: string(r.Recur), Inline: true},
		},
	}
}

// deliveryEmbed is the direct message sent when a reminder fires.
func deliveryEmbed(r domain.Reminder) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Color:       colorDelivery,
		Author:      &discordgo.MessageEmbedAuthor{Name: "Reminder"},
		Description: r.Text,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "When", Value: when(r.Timestamp)},
			{Name: "Info", Value: info(r)},
		},
	}
}
