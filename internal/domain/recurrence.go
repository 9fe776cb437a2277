package domain

import "time"

// NextDue returns the next due time (epoch ms) of a reminder that fired at ts
// with the given recurrence, computed on the wall clock of loc.
//
// Daily and weekly add calendar days, monthly adds a calendar month, so a
// reminder keeps its local time of day across DST changes. Day-of-month
// overflow rolls into the following month (Jan 31 + 1 month = Mar 3, or Mar 2
// in a leap year), following time.AddDate normalization.
//
// The boolean is false for RecurNone and unknown modes.
func NextDue(ts int64, recur Recur, loc *time.Location) (int64, bool) {
	if loc == nil {
		loc = time.Local
	}
	t := time.UnixMilli(ts).In(loc)
	switch recur {
	case RecurDaily:
		t = t.AddDate(0, 0, 1)
	case RecurWeekly:
		t = t.AddDate(0, 0, 7)
	case RecurMonthly:
		t = t.AddDate(0, 1, 0)
	default:
		return 0, false
	}
	return t.UnixMilli(), true
}
