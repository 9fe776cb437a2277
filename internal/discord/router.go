package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-discord-bot/internal/domain"
	"github.com/tbourn/go-discord-bot/internal/ratelimit"
	"github.com/tbourn/go-discord-bot/internal/repo"
	"github.com/tbourn/go-discord-bot/internal/services"
)

// User-facing replies.
const (
	msgGenericError    = "There was an error executing this command."
	msgUnknownCommand  = "Unknown command."
	msgRateLimited     = "You're sending commands too fast. Try again in a moment."
	msgInvalidDateTime = "Invalid or past date/time."
	msgInvalidText     = "Reminder text must be between 1 and 2000 characters."
	msgInvalidRepeat   = "Invalid repeat mode. Use none, daily, weekly or monthly."
	msgNotFound        = "Reminder not found."
	msgDeleted         = "Reminder deleted."
	msgUpdated         = "Reminder updated."
	msgEditRejected    = "Reminder not found or invalid data."
	msgPaused          = "Reminder paused."
	msgResumed         = "Reminder resumed."
	msgNoGifs          = "La liste est vide. Ajoute un gif avec /addraaaaaahhhh"
	msgInvalidGifURL   = "URL invalide. Utilise un lien http(s)."
	msgDuplicateGif    = "Ce gif est déjà dans la liste."
	msgGifAdded        = "Gif ajouté. Total: %d"
)

// ReminderService is the reminder API the router drives.
type ReminderService interface {
	Add(ctx context.Context, in services.AddReminderInput) (*domain.Reminder, error)
	ListPage(ctx context.Context, userID string, page int) (repo.Page, error)
	Delete(ctx context.Context, id, userID string) error
	Pause(ctx context.Context, id, userID string) error
	Resume(ctx context.Context, id, userID string) error
	Update(ctx context.Context, id, userID string, in services.EditReminderInput) (*domain.Reminder, error)
}

// GifService is the gif pool API the router drives.
type GifService interface {
	Random(ctx context.Context) (string, error)
	Add(ctx context.Context, rawURL string) (int, error)
}

// Response is the reply to a command, independent of the transport.
type Response struct {
	Content   string
	Embeds    []*discordgo.MessageEmbed
	Ephemeral bool
}

// InteractionResponse converts r to a discordgo channel message reply.
func (r Response) InteractionResponse() *discordgo.InteractionResponse {
	data := &discordgo.InteractionResponseData{
		Content: r.Content,
		Embeds:  r.Embeds,
	}
	if r.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}
}

// Router dispatches parsed commands to the services and renders replies.
type Router struct {
	Reminders ReminderService
	Gifs      GifService
	Limiter   *ratelimit.Keyed
	PageSize  int
	Log       zerolog.Logger
}

// NewRouter constructs a Router. A nil limiter disables per-user limiting.
func NewRouter(reminders ReminderService, gifs GifService, limiter *ratelimit.Keyed, pageSize int, logger zerolog.Logger) *Router {
	return &Router{
		Reminders: reminders,
		Gifs:      gifs,
		Limiter:   limiter,
		PageSize:  pageSize,
		Log:       logger.With().Str("component", "discord_router").Logger(),
	}
}

// Handle runs cmd and returns the reply. It never panics: handler panics and
// unexpected errors are logged and answered with a generic message.
func (rt *Router) Handle(ctx context.Context, cmd Command) (resp Response) {
	label := cmd.Name
	if cmd.Sub != "" {
		label += "/" + cmd.Sub
	}
	log := rt.Log.With().Str("command", label).Str("user_id", cmd.UserID).Str("guild_id", cmd.GuildID).Logger()

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Msg("command panicked")
			commandsTotal.WithLabelValues(label, outcomeError).Inc()
			resp = rt.reply(cmd, msgGenericError)
		}
	}()

	if !rt.Limiter.Allow(cmd.UserID) {
		log.Warn().Msg("command rate limited")
		commandsTotal.WithLabelValues(label, outcomeRateLimited).Inc()
		return rt.reply(cmd, msgRateLimited)
	}

	var (
		out result
		err error
	)
	switch cmd.Name {
	case cmdReminder:
		out, err = rt.reminder(ctx, cmd)
	case cmdGif:
		out, err = rt.randomGif(ctx)
	case cmdAddGif:
		out, err = rt.addGif(ctx, cmd)
	default:
		log.Warn().Msg("unknown command")
		commandsTotal.WithLabelValues(outcomeUnknown, outcomeUnknown).Inc()
		return rt.reply(cmd, msgUnknownCommand)
	}

	if err != nil {
		log.Error().Err(err).Msg("command failed")
		commandsTotal.WithLabelValues(label, outcomeError).Inc()
		return rt.reply(cmd, msgGenericError)
	}
	outcome := outcomeOK
	if out.rejected {
		outcome = outcomeRejected
	}
	commandsTotal.WithLabelValues(label, outcome).Inc()
	log.Debug().Str("outcome", outcome).Msg("command handled")
	return out.Response
}

// result pairs a reply with whether it reports a user error.
type result struct {
	Response
	rejected bool
}

func (rt *Router) reminder(ctx context.Context, cmd Command) (result, error) {
	switch cmd.Sub {
	case subAdd:
		return rt.addReminder(ctx, cmd)
	case subList:
		return rt.listReminders(ctx, cmd)
	case subDelete:
		return rt.mutate(cmd, rt.Reminders.Delete(ctx, rt.id(cmd), cmd.UserID), msgDeleted)
	case subPause:
		return rt.mutate(cmd, rt.Reminders.Pause(ctx, rt.id(cmd), cmd.UserID), msgPaused)
	case subResume:
		return rt.mutate(cmd, rt.Reminders.Resume(ctx, rt.id(cmd), cmd.UserID), msgResumed)
	case subEdit:
		return rt.editReminder(ctx, cmd)
	}
	return rt.rejected(cmd, msgUnknownCommand), nil
}

func (rt *Router) addReminder(ctx context.Context, cmd Command) (result, error) {
	in := services.AddReminderInput{
		UserID:    cmd.UserID,
		ChannelID: cmd.ChannelID,
		GuildID:   cmd.GuildID,
	}
	in.Text, _ = cmd.String("text")
	in.Date, _ = cmd.String("date")
	in.Time, _ = cmd.String("time")
	in.Repeat, _ = cmd.String("repeat")

	r, err := rt.Reminders.Add(ctx, in)
	switch {
	case err == nil:
		return result{Response: Response{Embeds: []*discordgo.MessageEmbed{scheduledEmbed(r)}, Ephemeral: cmd.InGuild()}}, nil
	case errors.Is(err, services.ErrInvalidDateTime), errors.Is(err, services.ErrPastDateTime):
		return rt.rejected(cmd, msgInvalidDateTime), nil
	case errors.Is(err, services.ErrTextEmpty), errors.Is(err, services.ErrTextTooLong):
		return rt.rejected(cmd, msgInvalidText), nil
	case errors.Is(err, services.ErrInvalidRecur):
		return rt.rejected(cmd, msgInvalidRepeat), nil
	}
	return result{}, err
}

func (rt *Router) listReminders(ctx context.Context, cmd Command) (result, error) {
	page := cmd.Int("page", 1)
	if page < 1 {
		page = 1
	}
	p, err := rt.Reminders.ListPage(ctx, cmd.UserID, int(page))
	if err != nil {
		return result{}, err
	}
	embed := listEmbed(cmd.UserName, int(page), rt.PageSize, p)
	return result{Response: Response{Embeds: []*discordgo.MessageEmbed{embed}, Ephemeral: cmd.InGuild()}}, nil
}

func (rt *Router) editReminder(ctx context.Context, cmd Command) (result, error) {
	in := services.EditReminderInput{
		Text:   cmd.StringPtr("text"),
		Date:   cmd.StringPtr("date"),
		Time:   cmd.StringPtr("time"),
		Repeat: cmd.StringPtr("repeat"),
	}
	_, err := rt.Reminders.Update(ctx, rt.id(cmd), cmd.UserID, in)
	switch {
	case err == nil:
		return rt.ok(cmd, msgUpdated), nil
	case errors.Is(err, services.ErrReminderNotFound),
		errors.Is(err, services.ErrInvalidDateTime),
		errors.Is(err, services.ErrTextEmpty),
		errors.Is(err, services.ErrTextTooLong),
		errors.Is(err, services.ErrInvalidRecur):
		return rt.rejected(cmd, msgEditRejected), nil
	}
	return result{}, err
}

// mutate maps the outcome of delete, pause or resume to a reply.
func (rt *Router) mutate(cmd Command, err error, success string) (result, error) {
	switch {
	case err == nil:
		return rt.ok(cmd, success), nil
	case errors.Is(err, services.ErrReminderNotFound):
		return rt.rejected(cmd, msgNotFound), nil
	}
	return result{}, err
}

func (rt *Router) randomGif(ctx context.Context) (result, error) {
	u, err := rt.Gifs.Random(ctx)
	switch {
	case err == nil:
		return result{Response: Response{Content: u}}, nil
	case errors.Is(err, services.ErrNoGifs):
		return result{Response: Response{Content: msgNoGifs}, rejected: true}, nil
	}
	return result{}, err
}

func (rt *Router) addGif(ctx context.Context, cmd Command) (result, error) {
	raw, _ := cmd.String("url")
	total, err := rt.Gifs.Add(ctx, raw)
	switch {
	case err == nil:
		return result{Response: Response{Content: fmt.Sprintf(msgGifAdded, total)}}, nil
	case errors.Is(err, services.ErrInvalidGifURL):
		return result{Response: Response{Content: msgInvalidGifURL}, rejected: true}, nil
	case errors.Is(err, services.ErrDuplicateGif):
		return result{Response: Response{Content: msgDuplicateGif}, rejected: true}, nil
	}
	return result{}, err
}

func (rt *Router) id(cmd Command) string {
	id, _ := cmd.String("id")
	return id
}

// reply builds a plain text reply, ephemeral in guilds.
func (rt *Router) reply(cmd Command, content string) Response {
	return Response{Content: content, Ephemeral: cmd.InGuild()}
}

func (rt *Router) ok(cmd Command, content string) result {
	return result{Response: rt.reply(cmd, content)}
}

func (rt *Router) rejected(cmd Command, content string) result {
	return result{Response: rt.reply(cmd, content), rejected: true}
}
