// Package services defines the business logic for reminders and the gif pool.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// command/handler layer. Backend failures are not remapped: they keep
// wrapping repo.ErrUnavailable.
package services

import "errors"

// Reminder-related errors.
var (
	// ErrReminderNotFound indicates that the reminder does not exist or belongs
	// to another user. Both cases are reported identically.
	ErrReminderNotFound = errors.New("reminder not found")

	// ErrTextEmpty is returned when the reminder text is blank after trimming.
	ErrTextEmpty = errors.New("reminder text is empty")

	// ErrTextTooLong is returned when the reminder text exceeds the configured
	// maximum rune count.
	ErrTextTooLong = errors.New("reminder text too long")

	// ErrInvalidDateTime is returned when a date (YYYY-MM-DD) or time (HH:mm)
	// cannot be parsed or does not name a real instant.
	ErrInvalidDateTime = errors.New("invalid date or time")

	// ErrPastDateTime is returned when a new reminder is not strictly in the
	// future.
	ErrPastDateTime = errors.New("date and time must be in the future")

	// ErrInvalidRecur is returned for a recurrence other than none, daily,
	// weekly or monthly.
	ErrInvalidRecur = errors.New("invalid recurrence")
)

// Gif-related errors.
var (
	// ErrNoGifs is returned when a random gif is requested from an empty pool.
	ErrNoGifs = errors.New("gif list is empty")

	// ErrInvalidGifURL is returned when a gif link is not an absolute http(s) URL.
	ErrInvalidGifURL = errors.New("gif url must be an absolute http(s) url")

	// ErrDuplicateGif is returned when the link is already in the pool.
	ErrDuplicateGif = errors.New("gif already in the list")
)
