// Package repo implements the persistence layer for reminders and gif links.
// Two interchangeable backends satisfy the same contracts: a JSON document on
// disk (FileStore, FileGifStore) and a GORM-backed SQL database (SQLStore,
// SQLGifStore). The backend is chosen once at startup by Open.
//
// Error semantics:
//   - Get returns ErrNotFound when no reminder matches (id, userID).
//   - Mutations return (false, nil) when no reminder matches; a record owned
//     by another user is indistinguishable from a missing one.
//   - SQL failures are wrapped in ErrUnavailable. The file backend never
//     fails a call: unreadable documents load empty and failed saves are
//     logged while the in-memory state is kept.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-discord-bot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound so both backends report the same value.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrUnavailable wraps every failure to reach the configured database.
var ErrUnavailable = errors.New("storage unavailable")

// Page is one page of a user's reminders plus the user's total count.
type Page struct {
	Total int64
	Items []domain.Reminder
}

// ReminderStore is the persistence contract shared by the file and SQL
// backends. Results are ordered by (timestamp ASC, id ASC) in both.
type ReminderStore interface {
	// Insert assigns a new id to r, persists it and returns the id.
	Insert(ctx context.Context, r *domain.Reminder) (int64, error)
	// Get returns the reminder with id owned by userID, or ErrNotFound.
	Get(ctx context.Context, id int64, userID string) (*domain.Reminder, error)
	// FindPaged returns page (1-indexed) of userID's reminders. Out-of-range
	// pages yield an empty, non-nil Items slice and the correct Total.
	FindPaged(ctx context.Context, userID string, page, pageSize int) (Page, error)
	Delete(ctx context.Context, id int64, userID string) (bool, error)
	// SetPaused is idempotent: pausing a paused reminder still reports true.
	SetPaused(ctx context.Context, id int64, userID string, paused bool) (bool, error)
	Update(ctx context.Context, id int64, userID string, patch domain.ReminderPatch) (bool, error)
	// FindDue returns every non-paused reminder with timestamp <= now.
	FindDue(ctx context.Context, now int64) ([]domain.Reminder, error)
	Ping(ctx context.Context) error
}

// GifStore holds the pool of gif links served by the random gif command.
type GifStore interface {
	// Add stores url unless it is already present. total is the pool size
	// after the call.
	Add(ctx context.Context, url string) (added bool, total int, err error)
	// Random returns a uniformly chosen link; ok is false when the pool is empty.
	Random(ctx context.Context) (url string, ok bool, err error)
	Count(ctx context.Context) (int, error)
}

// pageBounds converts a 1-indexed page into slice bounds over total items.
// Pages past the end yield an empty range without computing an offset, so
// huge page numbers cannot overflow.
func pageBounds(page, pageSize, total int) (start, end int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if !pageInRange(page, pageSize, int64(total)) {
		return total, total
	}
	start = (page - 1) * pageSize
	if pageSize >= total-start {
		return start, total
	}
	return start, start + pageSize
}

// pageInRange reports whether 1-indexed page has at least one item.
func pageInRange(page, pageSize int, total int64) bool {
	pages := total / int64(pageSize)
	if total%int64(pageSize) != 0 {
		pages++
	}
	return int64(page-1) < pages
}
