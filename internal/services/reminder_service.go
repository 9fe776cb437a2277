// Package services – ReminderService
//
// This file implements the ReminderService, the single entry point used by the
// slash commands and the REST API to manage reminders. It validates and
// normalizes user input (text, date, time, recurrence), resolves string ids,
// recomposes due times on edit, and delegates persistence to whichever
// repo.ReminderStore it was built with.
//
// Not-found and ownership mismatches both surface as ErrReminderNotFound.
// Storage failures keep wrapping repo.ErrUnavailable.
package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmhodges/clock"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"

	"github.com/tbourn/go-discord-bot/internal/domain"
	"github.com/tbourn/go-discord-bot/internal/repo"
)

const (
	defaultPageSize     = 5
	defaultMaxTextRunes = 2000
)

// AddReminderInput carries the raw fields of a new reminder.
type AddReminderInput struct {
	UserID    string
	ChannelID string
	GuildID   string
	Text      string
	Date      string // YYYY-MM-DD
	Time      string // HH:mm, 24h
	Repeat    string // none|daily|weekly|monthly, empty means none
}

// EditReminderInput carries the optional fields of an edit. Nil fields are
// left unchanged.
type EditReminderInput struct {
	Text   *string
	Date   *string
	Time   *string
	Repeat *string
}

// ReminderService provides reminder operations on behalf of a user.
type ReminderService struct {
	// Store is the persistence backend selected at startup.
	Store repo.ReminderStore
	// Clock supplies "now" for the future-only check.
	Clock clock.Clock
	// Location is the calendar used to interpret dates and times.
	Location *time.Location

	// PageSize is the fixed number of reminders per listed page.
	PageSize int
	// MaxTextRunes caps reminder text by rune length.
	MaxTextRunes int

	Log zerolog.Logger
}

// NewReminderService constructs a ReminderService with default paging and
// text limits.
func NewReminderService(store repo.ReminderStore, clk clock.Clock, loc *time.Location, logger zerolog.Logger) *ReminderService {
	if clk == nil {
		clk = clock.New()
	}
	if loc == nil {
		loc = time.Local
	}
	return &ReminderService{
		Store:        store,
		Clock:        clk,
		Location:     loc,
		PageSize:     defaultPageSize,
		MaxTextRunes: defaultMaxTextRunes,
		Log:          logger.With().Str("component", "reminder_service").Logger(),
	}
}

// Add validates in and stores a new reminder due strictly in the future.
func (s *ReminderService) Add(ctx context.Context, in AddReminderInput) (*domain.Reminder, error) {
	tr := otel.Tracer("services/ReminderService")
	ctx, span := tr.Start(ctx, "Add",
		trace.WithAttributes(
			attribute.String("user.id", in.UserID),
			attribute.String("recur", in.Repeat),
		),
	)
	defer span.End()

	text, err := s.normalizeText(in.Text)
	if err != nil {
		return nil, s.reject("add", in.UserID, err)
	}
	recur := domain.RecurNone
	if strings.TrimSpace(in.Repeat) != "" {
		r, ok := domain.ParseRecur(in.Repeat)
		if !ok {
			return nil, s.reject("add", in.UserID, ErrInvalidRecur)
		}
		recur = r
	}
	y, mo, d, ok := parseDate(in.Date)
	if !ok {
		return nil, s.reject("add", in.UserID, ErrInvalidDateTime)
	}
	h, mi, ok := parseClock(in.Time)
	if !ok {
		return nil, s.reject("add", in.UserID, ErrInvalidDateTime)
	}
	due := time.Date(y, mo, d, h, mi, 0, 0, s.loc())
	now := s.Clock.Now()
	if !due.After(now) {
		return nil, s.reject("add", in.UserID, ErrPastDateTime)
	}

	nowMS := now.UnixMilli()
	r := &domain.Reminder{
		UserID:    in.UserID,
		ChannelID: in.ChannelID,
		GuildID:   in.GuildID,
		Text:      text,
		Timestamp: due.UnixMilli(),
		Recur:     recur,
		CreatedAt: nowMS,
		UpdatedAt: nowMS,
	}
	if _, err := s.Store.Insert(ctx, r); err != nil {
		return nil, s.fail("add", in.UserID, err)
	}
	s.Log.Info().Int64("id", r.ID).Str("user_id", r.UserID).Int64("timestamp", r.Timestamp).Str("recur", string(r.Recur)).Msg("reminder added")
	return r, nil
}

// ListPage returns page (1-indexed, clamped to >= 1) of the user's
// reminders using the fixed PageSize.
func (s *ReminderService) ListPage(ctx context.Context, userID string, page int) (repo.Page, error) {
	tr := otel.Tracer("services/ReminderService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	p, err := s.Store.FindPaged(ctx, userID, page, s.pageSize())
	if err != nil {
		return repo.Page{}, s.fail("list", userID, err)
	}
	return p, nil
}

// Delete removes the user's reminder identified by id.
func (s *ReminderService) Delete(ctx context.Context, id, userID string) error {
	tr := otel.Tracer("services/ReminderService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("reminder.id", id), attribute.String("user.id", userID)),
	)
	defer span.End()

	rid, ok := ParseReminderID(id)
	if !ok {
		return s.reject("delete", userID, ErrReminderNotFound)
	}
	found, err := s.Store.Delete(ctx, rid, userID)
	if err != nil {
		return s.fail("delete", userID, err)
	}
	if !found {
		return s.reject("delete", userID, ErrReminderNotFound)
	}
	return nil
}

// Pause excludes the reminder from delivery until resumed. Pausing a paused
// reminder succeeds.
func (s *ReminderService) Pause(ctx context.Context, id, userID string) error {
	return s.setPaused(ctx, "Pause", id, userID, true)
}

// Resume re-enables delivery of a paused reminder. Resuming an active
// reminder succeeds.
func (s *ReminderService) Resume(ctx context.Context, id, userID string) error {
	return s.setPaused(ctx, "Resume", id, userID, false)
}

func (s *ReminderService) setPaused(ctx context.Context, op, id, userID string, paused bool) error {
	tr := otel.Tracer("services/ReminderService")
	ctx, span := tr.Start(ctx, op,
		trace.WithAttributes(attribute.String("reminder.id", id), attribute.String("user.id", userID)),
	)
	defer span.End()

	rid, ok := ParseReminderID(id)
	if !ok {
		return s.reject(op, userID, ErrReminderNotFound)
	}
	found, err := s.Store.SetPaused(ctx, rid, userID, paused)
	if err != nil {
		return s.fail(op, userID, err)
	}
	if !found {
		return s.reject(op, userID, ErrReminderNotFound)
	}
	return nil
}

// Update applies the supplied fields of in to the user's reminder. When only
// one of Date or Time is given, the other is taken from the current due time
// in Location; seconds are always zeroed. Any invalid field rejects the whole
// edit without writing. The updated reminder is returned.
func (s *ReminderService) Update(ctx context.Context, id, userID string, in EditReminderInput) (*domain.Reminder, error) {
	tr := otel.Tracer("services/ReminderService")
	ctx, span := tr.Start(ctx, "Update",
		trace.WithAttributes(attribute.String("reminder.id", id), attribute.String("user.id", userID)),
	)
	defer span.End()

	rid, ok := ParseReminderID(id)
	if !ok {
		return nil, s.reject("update", userID, ErrReminderNotFound)
	}

	var patch domain.ReminderPatch
	if in.Text != nil {
		text, err := s.normalizeText(*in.Text)
		if err != nil {
			return nil, s.reject("update", userID, err)
		}
		patch.Text = &text
	}
	if in.Repeat != nil {
		r, ok := domain.ParseRecur(*in.Repeat)
		if !ok {
			return nil, s.reject("update", userID, ErrInvalidRecur)
		}
		patch.Recur = &r
	}
	if in.Date != nil || in.Time != nil {
		current, err := s.Store.Get(ctx, rid, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, s.reject("update", userID, ErrReminderNotFound)
		}
		if err != nil {
			return nil, s.fail("update", userID, err)
		}
		ts, err := s.recompose(current.Timestamp, in.Date, in.Time)
		if err != nil {
			return nil, s.reject("update", userID, err)
		}
		patch.Timestamp = &ts
	}

	found, err := s.Store.Update(ctx, rid, userID, patch)
	if err != nil {
		return nil, s.fail("update", userID, err)
	}
	if !found {
		return nil, s.reject("update", userID, ErrReminderNotFound)
	}
	updated, err := s.Store.Get(ctx, rid, userID)
	if errors.Is(err, repo.ErrNotFound) {
		// Removed by a concurrent tick or delete after the write.
		return nil, s.reject("update", userID, ErrReminderNotFound)
	}
	if err != nil {
		return nil, s.fail("update", userID, err)
	}
	s.Log.Info().Int64("id", rid).Str("user_id", userID).Int64("timestamp", updated.Timestamp).Str("recur", string(updated.Recur)).Msg("reminder updated")
	return updated, nil
}

// recompose replaces the date and/or time-of-day of ts on the wall clock of
// Location. Missing parts come from ts; seconds and below are zeroed.
func (s *ReminderService) recompose(ts int64, date, clockStr *string) (int64, error) {
	cur := time.UnixMilli(ts).In(s.loc())
	y, mo, d := cur.Date()
	h, mi := cur.Hour(), cur.Minute()

	if date != nil {
		var ok bool
		if y, mo, d, ok = parseDate(*date); !ok {
			return 0, ErrInvalidDateTime
		}
	}
	if clockStr != nil {
		var ok bool
		if h, mi, ok = parseClock(*clockStr); !ok {
			return 0, ErrInvalidDateTime
		}
	}
	return time.Date(y, mo, d, h, mi, 0, 0, s.loc()).UnixMilli(), nil
}

// normalizeText trims, NFC-normalizes and bounds reminder text.
func (s *ReminderService) normalizeText(text string) (string, error) {
	text = norm.NFC.String(strings.TrimSpace(text))
	if text == "" {
		return "", ErrTextEmpty
	}
	limit := s.MaxTextRunes
	if limit <= 0 {
		limit = defaultMaxTextRunes
	}
	if utf8.RuneCountInString(text) > limit {
		return "", ErrTextTooLong
	}
	return text, nil
}

func (s *ReminderService) pageSize() int {
	if s.PageSize <= 0 {
		return defaultPageSize
	}
	return s.PageSize
}

func (s *ReminderService) loc() *time.Location {
	if s.Location == nil {
		return time.Local
	}
	return s.Location
}

// reject logs a declined request and returns err.
func (s *ReminderService) reject(op, userID string, err error) error {
	s.Log.Info().Str("op", op).Str("user_id", userID).Err(err).Msg("reminder request declined")
	return err
}

// fail logs a storage failure and returns err.
func (s *ReminderService) fail(op, userID string, err error) error {
	s.Log.Error().Str("op", op).Str("user_id", userID).Err(err).Msg("reminder storage failure")
	return err
}

// ParseReminderID parses a user-supplied reminder id. Only positive integers
// are valid.
func ParseReminderID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

// parseDate parses YYYY-MM-DD (month and day may have one digit) and rejects
// dates that do not exist, such as 2025-02-30.
func parseDate(s string) (int, time.Month, int, bool) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 || len(parts[0]) != 4 {
		return 0, 0, 0, false
	}
	y, ok1 := atoiDigits(parts[0], 4)
	m, ok2 := atoiDigits(parts[1], 2)
	d, ok3 := atoiDigits(parts[2], 2)
	if !ok1 || !ok2 || !ok3 || m < 1 || m > 12 || d < 1 {
		return 0, 0, 0, false
	}
	if t := time.Date(y, time.Month(m), d, 12, 0, 0, 0, time.UTC); t.Day() != d {
		return 0, 0, 0, false
	}
	return y, time.Month(m), d, true
}

// parseClock parses HH:mm on a 24h clock (the hour may have one digit).
func parseClock(s string) (int, int, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[1]) != 2 {
		return 0, 0, false
	}
	h, ok1 := atoiDigits(parts[0], 2)
	mi, ok2 := atoiDigits(parts[1], 2)
	if !ok1 || !ok2 || h > 23 || mi > 59 {
		return 0, 0, false
	}
	return h, mi, true
}

// atoiDigits parses 1..maxLen ASCII digits.
func atoiDigits(s string, maxLen int) (int, bool) {
	if s == "" || len(s) > maxLen {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
