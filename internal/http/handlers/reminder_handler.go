// Reminder HTTP handlers.
//
//   - GET    /reminders              (list, paginated)
//   - POST   /reminders              (create)
//   - PATCH  /reminders/{id}         (partial edit)
//   - DELETE /reminders/{id}
//   - POST   /reminders/{id}/pause
//   - POST   /reminders/{id}/resume
//
// The caller is identified by X-User-ID (see middleware.RequireUser). The
// header is trusted as sent: anyone who can reach the port can act as any
// Discord user. Expose these routes only on an internal interface or behind
// an authenticating proxy that overwrites X-User-ID.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-discord-bot/internal/domain"
	"github.com/tbourn/go-discord-bot/internal/http/middleware"
	"github.com/tbourn/go-discord-bot/internal/repo"
	"github.com/tbourn/go-discord-bot/internal/services"
	"github.com/tbourn/go-discord-bot/internal/utils"
)

// ReminderService defines the reminder operations consumed by the handlers.
type ReminderService interface {
	Add(ctx context.Context, in services.AddReminderInput) (*domain.Reminder, error)
	ListPage(ctx context.Context, userID string, page int) (repo.Page, error)
	Delete(ctx context.Context, id, userID string) error
	Pause(ctx context.Context, id, userID string) error
	Resume(ctx context.Context, id, userID string) error
	Update(ctx context.Context, id, userID string, in services.EditReminderInput) (*domain.Reminder, error)
}

// GifService defines the gif pool operations consumed by the handlers.
type GifService interface {
	Random(ctx context.Context) (string, error)
	Add(ctx context.Context, rawURL string) (int, error)
}

// Handlers groups the REST endpoints.
type Handlers struct {
	reminders ReminderService
	gifs      GifService
	pageSize  int
}

// New returns Handlers bound to the services. pageSize must match the
// reminder service's page size; it is only used for pagination metadata.
func New(reminders ReminderService, gifs GifService, pageSize int) *Handlers {
	return &Handlers{reminders: reminders, gifs: gifs, pageSize: pageSize}
}

// CreateReminderRequest is the payload of POST /reminders.
type CreateReminderRequest struct {
	Text      string `json:"text"       binding:"required"`
	Date      string `json:"date"       binding:"required"` // YYYY-MM-DD
	Time      string `json:"time"       binding:"required"` // HH:mm, 24h
	Repeat    string `json:"repeat"`                        // none|daily|weekly|monthly
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id"`
}

// UpdateReminderRequest is the payload of PATCH /reminders/{id}. Omitted
// fields are left unchanged.
type UpdateReminderRequest struct {
	Text   *string `json:"text"`
	Date   *string `json:"date"`
	Time   *string `json:"time"`
	Repeat *string `json:"repeat"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListRemindersResponse wraps a page of reminders.
type ListRemindersResponse struct {
	Reminders  []domain.Reminder `json:"reminders"`
	Pagination Pagination        `json:"pagination"`
}

// ListReminders returns the ?page= page (default 1) of the caller's reminders.
func (h *Handlers) ListReminders(c *gin.Context) {
	page := utils.AtoiDefault(c.Query("page"), 1)
	if page < 1 {
		page = 1
	}
	p, err := h.reminders.ListPage(c.Request.Context(), middleware.UserID(c), page)
	if err != nil {
		failFor(c, err)
		return
	}
	totalPages := utils.TotalPages(p.Total, h.pageSize)
	ok(c, http.StatusOK, ListRemindersResponse{
		Reminders: p.Items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   h.pageSize,
			Total:      p.Total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// CreateReminder schedules a reminder and returns it with 201.
func (h *Handlers) CreateReminder(c *gin.Context) {
	var req CreateReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text, date and time are required")
		return
	}
	r, err := h.reminders.Add(c.Request.Context(), services.AddReminderInput{
		UserID:    middleware.UserID(c),
		ChannelID: req.ChannelID,
		GuildID:   req.GuildID,
		Text:      req.Text,
		Date:      req.Date,
		Time:      req.Time,
		Repeat:    req.Repeat,
	})
	if err != nil {
		failFor(c, err)
		return
	}
	ok(c, http.StatusCreated, r)
}

// UpdateReminder applies a partial edit and returns the updated reminder.
func (h *Handlers) UpdateReminder(c *gin.Context) {
	var req UpdateReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	r, err := h.reminders.Update(c.Request.Context(), c.Param("id"), middleware.UserID(c), services.EditReminderInput{
		Text:   req.Text,
		Date:   req.Date,
		Time:   req.Time,
		Repeat: req.Repeat,
	})
	if err != nil {
		failFor(c, err)
		return
	}
	ok(c, http.StatusOK, r)
}

// DeleteReminder removes the caller's reminder.
func (h *Handlers) DeleteReminder(c *gin.Context) {
	h.mutate(c, h.reminders.Delete)
}

// PauseReminder stops delivery until resumed.
func (h *Handlers) PauseReminder(c *gin.Context) {
	h.mutate(c, h.reminders.Pause)
}

// ResumeReminder re-enables delivery.
func (h *Handlers) ResumeReminder(c *gin.Context) {
	h.mutate(c, h.reminders.Resume)
}

func (h *Handlers) mutate(c *gin.Context, op func(ctx context.Context, id, userID string) error) {
	if err := op(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		failFor(c, err)
		return
	}
	noContent(c)
}
