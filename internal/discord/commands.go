package discord

import "github.com/bwmarrin/discordgo"

// Slash command and subcommand names.
const (
	cmdReminder = "reminder"
	cmdGif      = "raaaaaahhhh"
	cmdAddGif   = "addraaaaaahhhh"

	subAdd    = "add"
	subList   = "list"
	subDelete = "delete"
	subEdit   = "edit"
	subPause  = "pause"
	subResume = "resume"
)

const maxTextLength = 2000

func repeatChoices() []*discordgo.ApplicationCommandOptionChoice {
	return []*discordgo.ApplicationCommandOptionChoice{
		{Name: "none", Value: "none"},
		{Name: "daily", Value: "daily"},
		{Name: "weekly", Value: "weekly"},
		{Name: "monthly", Value: "monthly"},
	}
}

func idOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "id",
		Description: "Reminder ID",
		Required:    true,
	}
}

// Commands returns the application command definitions registered on Ready.
func Commands() []*discordgo.ApplicationCommand {
	dmPermission := true
	minPage := float64(1)

	return []*discordgo.ApplicationCommand{
		{
			Name:         cmdReminder,
			Description:  "Reminder utilities",
			DMPermission: &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subAdd,
					Description: "Create a reminder",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "text", Description: "Reminder text", Required: true, MaxLength: maxTextLength},
						{Type: discordgo.ApplicationCommandOptionString, Name: "date", Description: "YYYY-MM-DD", Required: true},
						{Type: discordgo.ApplicationCommandOptionString, Name: "time", Description: "HH:mm (24h)", Required: true},
						{Type: discordgo.ApplicationCommandOptionString, Name: "repeat", Description: "Recurrence", Required: true, Choices: repeatChoices()},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subList,
					Description: "List my reminders",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "page", Description: "Page number", MinValue: &minPage},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subDelete,
					Description: "Delete a reminder",
					Options:     []*discordgo.ApplicationCommandOption{idOption()},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subEdit,
					Description: "Edit a reminder",
					Options: []*discordgo.ApplicationCommandOption{
						idOption(),
						{Type: discordgo.ApplicationCommandOptionString, Name: "text", Description: "New text", MaxLength: maxTextLength},
						{Type: discordgo.ApplicationCommandOptionString, Name: "date", Description: "YYYY-MM-DD"},
						{Type: discordgo.ApplicationCommandOptionString, Name: "time", Description: "HH:mm (24h)"},
						{Type: discordgo.ApplicationCommandOptionString, Name: "repeat", Description: "Recurrence", Choices: repeatChoices()},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subPause,
					Description: "Pause a reminder",
					Options:     []*discordgo.ApplicationCommandOption{idOption()},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subResume,
					Description: "Resume a reminder",
					Options:     []*discordgo.ApplicationCommandOption{idOption()},
				},
			},
		},
		{
			Name:        cmdGif,
			Description: "Envoie un gif aléatoire de la liste",
		},
		{
			Name:        cmdAddGif,
			Description: "Ajoute un gif à la liste raaah",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "url", Description: "Lien du gif", Required: true},
			},
		},
	}
}
