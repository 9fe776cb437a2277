// Package domain defines the persistence models for reminders and gif links.
// These types are mapped with GORM for the SQL backend and serialized as JSON
// for the file backend, so both tag sets describe the same record.
package domain

import "strings"

// Recur is the recurrence mode of a reminder.
type Recur string

// Recurrence modes accepted by the bot.
const (
	RecurNone    Recur = "none"
	RecurDaily   Recur = "daily"
	RecurWeekly  Recur = "weekly"
	RecurMonthly Recur = "monthly"
)

// RecurModes lists every valid recurrence mode in display order.
var RecurModes = []Recur{RecurNone, RecurDaily, RecurWeekly, RecurMonthly}

// Valid reports whether r is one of the known recurrence modes.
func (r Recur) Valid() bool {
	switch r {
	case RecurNone, RecurDaily, RecurWeekly, RecurMonthly:
		return true
	}
	return false
}

// ParseRecur normalizes s (trimmed, lower-cased) into a Recur. The boolean is
// false when s is not a known mode.
func ParseRecur(s string) (Recur, bool) {
	r := Recur(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Reminder is a message the bot delivers to its owner by direct message when
// Timestamp is reached.
//
// Fields:
//   - ID: unique per backend (file sequence or SQL auto-increment), immutable.
//   - UserID: owner of the reminder; every mutation is scoped by it.
//   - ChannelID / GuildID: where the reminder was created (informational only).
//   - Text: message body (at most 2000 characters at creation).
//   - Timestamp: due time in epoch milliseconds.
//   - Recur: recurrence mode; "none" reminders fire once.
//   - Paused: excluded from due polling while true.
//   - CreatedAt / UpdatedAt: epoch milliseconds, set explicitly by the stores.
type Reminder struct {
	ID        int64  `json:"id"        gorm:"primaryKey;autoIncrement"`
	UserID    string `json:"userId"    gorm:"type:text;not null;index:idx_reminders_user"`
	ChannelID string `json:"channelId" gorm:"type:text"`
	GuildID   string `json:"guildId"   gorm:"type:text"`
	Text      string `json:"text"      gorm:"type:text;not null"`
	Timestamp int64  `json:"timestamp" gorm:"column:timestamp;not null;index:idx_reminders_due,priority:1"`
	Recur     Recur  `json:"recur"     gorm:"type:text;not null"`
	Paused    bool   `json:"paused"    gorm:"not null;default:false;index:idx_reminders_due,priority:2"`
	CreatedAt int64  `json:"createdAt" gorm:"not null;autoCreateTime:false"`
	UpdatedAt int64  `json:"updatedAt" gorm:"not null;autoUpdateTime:false"`
}

// TableName returns the database table name for Reminder.
func (Reminder) TableName() string { return "reminders" }

// ReminderPatch carries the fields of a partial update. Nil fields are left
// untouched; UpdatedAt is always refreshed by the store.
type ReminderPatch struct {
	Text      *string
	Timestamp *int64
	Recur     *Recur
}

// Empty reports whether the patch changes nothing but UpdatedAt.
func (p ReminderPatch) Empty() bool {
	return p.Text == nil && p.Timestamp == nil && p.Recur == nil
}

// Apply copies the non-nil patch fields onto r.
func (p ReminderPatch) Apply(r *Reminder) {
	if p.Text != nil {
		r.Text = *p.Text
	}
	if p.Timestamp != nil {
		r.Timestamp = *p.Timestamp
	}
	if p.Recur != nil {
		r.Recur = *p.Recur
	}
}

// Gif is a link in the random gif pool.
type Gif struct {
	ID        int64  `json:"id"        gorm:"primaryKey;autoIncrement"`
	URL       string `json:"url"       gorm:"type:text;not null;uniqueIndex"`
	CreatedAt int64  `json:"createdAt" gorm:"not null;autoCreateTime:false"`
}

// TableName returns the database table name for Gif.
func (Gif) TableName() string { return "raaah_gifs" }
