package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-discord-bot/internal/repo"
	"github.com/tbourn/go-discord-bot/internal/services"
)

// Stable, machine-readable error codes.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeUnavailable      = "storage_unavailable"

	// Domain-specific:
	ErrCodeInvalidDateTime = "invalid_datetime"
	ErrCodeInvalidText     = "invalid_text"
	ErrCodeInvalidRecur    = "invalid_recur"
	ErrCodeInvalidURL      = "invalid_url"
	ErrCodeEmptyPool       = "gif_pool_empty"
)

// failFor maps a service error to a status, code and safe message.
func failFor(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrReminderNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "reminder not found")
	case errors.Is(err, services.ErrInvalidDateTime), errors.Is(err, services.ErrPastDateTime):
		fail(c, http.StatusUnprocessableEntity, ErrCodeInvalidDateTime, "invalid or past date/time")
	case errors.Is(err, services.ErrTextEmpty), errors.Is(err, services.ErrTextTooLong):
		fail(c, http.StatusUnprocessableEntity, ErrCodeInvalidText, err.Error())
	case errors.Is(err, services.ErrInvalidRecur):
		fail(c, http.StatusUnprocessableEntity, ErrCodeInvalidRecur, "repeat must be none, daily, weekly or monthly")
	case errors.Is(err, services.ErrNoGifs):
		fail(c, http.StatusNotFound, ErrCodeEmptyPool, "gif list is empty")
	case errors.Is(err, services.ErrInvalidGifURL):
		fail(c, http.StatusUnprocessableEntity, ErrCodeInvalidURL, "url must be an absolute http(s) link")
	case errors.Is(err, services.ErrDuplicateGif):
		fail(c, http.StatusConflict, ErrCodeConflict, "gif already in the list")
	case errors.Is(err, repo.ErrUnavailable):
		_ = c.Error(err)
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "storage unavailable")
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}
