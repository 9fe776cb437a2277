package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/tbourn/go-discord-bot/internal/sysutil"
)

// Command is a slash command invocation flattened out of a discordgo
// interaction, so routing can be exercised without a gateway.
type Command struct {
	Name      string
	Sub       string
	UserID    string
	UserName  string
	ChannelID string
	GuildID   string // empty in DMs

	Strings map[string]string
	Ints    map[string]int64
}

// InGuild reports whether the command was issued in a server channel.
func (c Command) InGuild() bool { return c.GuildID != "" }

// String returns the named string option and whether it was supplied.
func (c Command) String(name string) (string, bool) {
	v, ok := c.Strings[name]
	return v, ok
}

// StringPtr returns the named string option, or nil when absent.
func (c Command) StringPtr(name string) *string {
	if v, ok := c.Strings[name]; ok {
		return &v
	}
	return nil
}

// Int returns the named integer option, or def when absent.
func (c Command) Int(name string, def int64) int64 {
	if v, ok := c.Ints[name]; ok {
		return v
	}
	return def
}

// parseCommand converts an application command interaction into a Command.
// A single subcommand level is unwrapped into Sub.
func parseCommand(i *discordgo.Interaction) Command {
	data := i.ApplicationCommandData()
	cmd := Command{
		Name:      data.Name,
		ChannelID: i.ChannelID,
		GuildID:   i.GuildID,
		Strings:   map[string]string{},
		Ints:      map[string]int64{},
	}

	var user *discordgo.User
	if i.Member != nil && i.Member.User != nil {
		user = i.Member.User
	} else {
		user = i.User
	}
	if user != nil {
		cmd.UserID = user.ID
		cmd.UserName = sysutil.FirstNonEmpty(user.GlobalName, user.Username, user.ID)
	}

	opts := data.Options
	if len(opts) == 1 && opts[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		cmd.Sub = opts[0].Name
		opts = opts[0].Options
	}
	for _, o := range opts {
		switch o.Type {
		case discordgo.ApplicationCommandOptionString:
			cmd.Strings[o.Name] = o.StringValue()
		case discordgo.ApplicationCommandOptionInteger:
			cmd.Ints[o.Name] = o.IntValue()
		}
	}
	return cmd
}
