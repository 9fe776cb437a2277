package repo

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-discord-bot/internal/domain"
)

// backendCase opens a ReminderStore rooted in dir. Calling open twice with the
// same dir simulates a process restart.
type backendCase struct {
	name string
	open func(t *testing.T, dir string, clk clock.Clock) ReminderStore
}

func backendCases() []backendCase {
	return []backendCase{
		{
			name: "file",
			open: func(t *testing.T, dir string, clk clock.Clock) ReminderStore {
				return NewFileStore(filepath.Join(dir, RemindersFile), clk, zerolog.Nop())
			},
		},
		{
			name: "sql",
			open: func(t *testing.T, dir string, clk clock.Clock) ReminderStore {
				t.Helper()
				db, err := OpenDatabase("sqlite:" + filepath.Join(dir, "bot.db"))
				if err != nil {
					t.Fatalf("OpenDatabase: %v", err)
				}
				t.Cleanup(func() {
					if sqlDB, err := db.DB(); err == nil {
						_ = sqlDB.Close()
					}
				})
				return NewSQLStore(db, clk)
			},
		},
	}
}

// forEachBackend runs fn once per backend with a fresh directory and a fake
// clock set to 2025-01-01 UTC.
func forEachBackend(t *testing.T, fn func(t *testing.T, s ReminderStore, clk clock.FakeClock)) {
	for _, bc := range backendCases() {
		t.Run(bc.name, func(t *testing.T) {
			clk := clock.NewFake()
			clk.Set(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
			fn(t, bc.open(t, t.TempDir(), clk), clk)
		})
	}
}

type tuple struct {
	ID        int64
	UserID    string
	Text      string
	Timestamp int64
	Recur     domain.Recur
	Paused    bool
}

func TestStores_InsertAssignsIncreasingIDs(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s ReminderStore, clk clock.FakeClock) {
		ctx := context.Background()
		var last int64
		for i := 0; i < 3; i++ {
			r := &domain.Reminder{UserID: "u1", Text: "t", Timestamp: int64(1000 + i), Recur: domain.RecurNone}
			id, err := s.Insert(ctx, r)
			if err != nil {
				t.Fatalf("Insert: %v", err)
			}
			if id <= last || r.ID != id {
				t.Fatalf("id %d not increasing (last %d, r.ID %d)", id, last, r.ID)
			}
			if r.CreatedAt != clk.Now().UnixMilli() || r.UpdatedAt != r.CreatedAt {
				t.Fatalf("audit timestamps not set: %+v", r)
			}
			last = id
		}
	})
}

func TestStores_RoundTripAcrossRestart(t *testing.T) {
	for _, bc := range backendCases() {
		t.Run(bc.name, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()
			clk := clock.NewFake()

			s := bc.open(t, dir, clk)
			var want []tuple
			for i, user := range []string{"a", "b", "a", "c"} {
				r := &domain.Reminder{UserID: user, ChannelID: "ch", Text: "text " + user, Timestamp: int64(5000 - i), Recur: domain.RecurModes[i]}
				if _, err := s.Insert(ctx, r); err != nil {
					t.Fatalf("Insert: %v", err)
				}
				want = append(want, tuple{r.ID, r.UserID, r.Text, r.Timestamp, r.Recur, false})
			}
			if ok, err := s.SetPaused(ctx, want[1].ID, "b", true); err != nil || !ok {
				t.Fatalf("SetPaused: ok=%v err=%v", ok, err)
			}
			want[1].Paused = true

			reopened := bc.open(t, dir, clk)
			var got []tuple
			for _, user := range []string{"a", "b", "c"} {
				p, err := reopened.FindPaged(ctx, user, 1, 10)
				if err != nil {
					t.Fatalf("FindPaged: %v", err)
				}
				for _, r := range p.Items {
					got = append(got, tuple{r.ID, r.UserID, r.Text, r.Timestamp, r.Recur, r.Paused})
				}
			}
			sortTuples(want)
			sortTuples(got)
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
			}

			// New ids continue after the reloaded ones.
			r := &domain.Reminder{UserID: "a", Text: "later", Timestamp: 9, Recur: domain.RecurNone}
			if _, err := reopened.Insert(ctx, r); err != nil {
				t.Fatalf("Insert after reopen: %v", err)
			}
			if r.ID <= want[len(want)-1].ID {
				t.Fatalf("id %d reused after restart", r.ID)
			}
		})
	}
}

func TestStores_FindPaged(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s ReminderStore, _ clock.FakeClock) {
		ctx := context.Background()
		// Inserted out of order; two share a timestamp so id breaks the tie.
		stamps := []int64{700, 100, 300, 300, 500, 200, 600}
		for _, ts := range stamps {
			if _, err := s.Insert(ctx, &domain.Reminder{UserID: "u", Text: "x", Timestamp: ts, Recur: domain.RecurNone}); err != nil {
				t.Fatalf("Insert: %v", err)
			}
		}
		if _, err := s.Insert(ctx, &domain.Reminder{UserID: "other", Text: "x", Timestamp: 1, Recur: domain.RecurNone}); err != nil {
			t.Fatalf("Insert: %v", err)
		}

		first, err := s.FindPaged(ctx, "u", 1, 5)
		if err != nil {
			t.Fatalf("FindPaged p1: %v", err)
		}
		if first.Total != 7 || len(first.Items) != 5 {
			t.Fatalf("page 1: total=%d len=%d", first.Total, len(first.Items))
		}
		if first.Items[2].Timestamp != 300 || first.Items[3].Timestamp != 300 || first.Items[2].ID >= first.Items[3].ID {
			t.Fatalf("tie not broken by id: %+v", first.Items)
		}

		second, err := s.FindPaged(ctx, "u", 2, 5)
		if err != nil {
			t.Fatalf("FindPaged p2: %v", err)
		}
		if second.Total != 7 || len(second.Items) != 2 ||
			second.Items[0].Timestamp != 600 || second.Items[1].Timestamp != 700 {
			t.Fatalf("page 2 unexpected: %+v", second)
		}

		beyond, err := s.FindPaged(ctx, "u", 9, 5)
		if err != nil {
			t.Fatalf("FindPaged p9: %v", err)
		}
		if beyond.Total != 7 || beyond.Items == nil || len(beyond.Items) != 0 {
			t.Fatalf("out-of-range page should be empty with total: %+v", beyond)
		}

		// (page-1)*pageSize would overflow int here.
		huge, err := s.FindPaged(ctx, "u", math.MaxInt/5+2, 5)
		if err != nil {
			t.Fatalf("FindPaged huge page: %v", err)
		}
		if huge.Total != 7 || huge.Items == nil || len(huge.Items) != 0 {
			t.Fatalf("huge page should be empty with total: total=%d len=%d", huge.Total, len(huge.Items))
		}

		none, err := s.FindPaged(ctx, "nobody", 1, 5)
		if err != nil || none.Total != 0 || none.Items == nil || len(none.Items) != 0 {
			t.Fatalf("unknown user: %+v err=%v", none, err)
		}
	})
}

func TestStores_PauseIdempotentAndExcludedFromDue(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s ReminderStore, clk clock.FakeClock) {
		ctx := context.Background()
		r := &domain.Reminder{UserID: "u", Text: "x", Timestamp: 10, Recur: domain.RecurDaily}
		if _, err := s.Insert(ctx, r); err != nil {
			t.Fatalf("Insert: %v", err)
		}

		for i := 0; i < 2; i++ {
			clk.Add(time.Minute)
			ok, err := s.SetPaused(ctx, r.ID, "u", true)
			if err != nil || !ok {
				t.Fatalf("pause #%d: ok=%v err=%v", i+1, ok, err)
			}
		}
		got, err := s.Get(ctx, r.ID, "u")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !got.Paused || got.UpdatedAt != clk.Now().UnixMilli() {
			t.Fatalf("unexpected after pause: %+v", got)
		}

		due, err := s.FindDue(ctx, 1<<62)
		if err != nil {
			t.Fatalf("FindDue: %v", err)
		}
		if len(due) != 0 {
			t.Fatalf("paused reminder returned as due: %+v", due)
		}

		for i := 0; i < 2; i++ {
			if ok, err := s.SetPaused(ctx, r.ID, "u", false); err != nil || !ok {
				t.Fatalf("resume #%d: ok=%v err=%v", i+1, ok, err)
			}
		}
		due, _ = s.FindDue(ctx, 10)
		if len(due) != 1 || due[0].ID != r.ID {
			t.Fatalf("resumed reminder not due: %+v", due)
		}
	})
}

func TestStores_FindDueOrderAndBoundary(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s ReminderStore, _ clock.FakeClock) {
		ctx := context.Background()
		for _, ts := range []int64{50, 10, 51, 10} {
			if _, err := s.Insert(ctx, &domain.Reminder{UserID: "u", Text: "x", Timestamp: ts, Recur: domain.RecurNone}); err != nil {
				t.Fatalf("Insert: %v", err)
			}
		}
		due, err := s.FindDue(ctx, 50)
		if err != nil {
			t.Fatalf("FindDue: %v", err)
		}
		if len(due) != 3 || due[0].Timestamp != 10 || due[1].Timestamp != 10 || due[2].Timestamp != 50 || due[0].ID > due[1].ID {
			t.Fatalf("unexpected due set: %+v", due)
		}
		empty, err := s.FindDue(ctx, 9)
		if err != nil || empty == nil || len(empty) != 0 {
			t.Fatalf("expected empty non-nil due set, got %+v err=%v", empty, err)
		}
	})
}

func TestStores_OwnershipIsolation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s ReminderStore, _ clock.FakeClock) {
		ctx := context.Background()
		r := &domain.Reminder{UserID: "B", Text: "mine", Timestamp: 10, Recur: domain.RecurNone}
		if _, err := s.Insert(ctx, r); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		text := "hijacked"

		if ok, err := s.Delete(ctx, r.ID, "A"); err != nil || ok {
			t.Fatalf("delete by non-owner: ok=%v err=%v", ok, err)
		}
		if ok, err := s.SetPaused(ctx, r.ID, "A", true); err != nil || ok {
			t.Fatalf("pause by non-owner: ok=%v err=%v", ok, err)
		}
		if ok, err := s.Update(ctx, r.ID, "A", domain.ReminderPatch{Text: &text}); err != nil || ok {
			t.Fatalf("update by non-owner: ok=%v err=%v", ok, err)
		}
		if _, err := s.Get(ctx, r.ID, "A"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get by non-owner: %v", err)
		}

		got, err := s.Get(ctx, r.ID, "B")
		if err != nil || got.Text != "mine" || got.Paused {
			t.Fatalf("record changed by non-owner: %+v err=%v", got, err)
		}

		if ok, err := s.Delete(ctx, r.ID, "B"); err != nil || !ok {
			t.Fatalf("delete by owner: ok=%v err=%v", ok, err)
		}
		if ok, err := s.Delete(ctx, r.ID, "B"); err != nil || ok {
			t.Fatalf("second delete: ok=%v err=%v", ok, err)
		}
	})
}

func TestStores_UpdatePartial(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s ReminderStore, clk clock.FakeClock) {
		ctx := context.Background()
		r := &domain.Reminder{UserID: "u", Text: "old", Timestamp: 100, Recur: domain.RecurWeekly}
		if _, err := s.Insert(ctx, r); err != nil {
			t.Fatalf("Insert: %v", err)
		}

		clk.Add(time.Hour)
		text := "new"
		if ok, err := s.Update(ctx, r.ID, "u", domain.ReminderPatch{Text: &text}); err != nil || !ok {
			t.Fatalf("Update text: ok=%v err=%v", ok, err)
		}
		got, _ := s.Get(ctx, r.ID, "u")
		if got.Text != "new" || got.Timestamp != 100 || got.Recur != domain.RecurWeekly {
			t.Fatalf("text-only update touched other fields: %+v", got)
		}
		if got.UpdatedAt != clk.Now().UnixMilli() || got.CreatedAt == got.UpdatedAt {
			t.Fatalf("updatedAt not refreshed: %+v", got)
		}

		ts := int64(200)
		rc := domain.RecurMonthly
		if ok, err := s.Update(ctx, r.ID, "u", domain.ReminderPatch{Timestamp: &ts, Recur: &rc}); err != nil || !ok {
			t.Fatalf("Update ts/recur: ok=%v err=%v", ok, err)
		}
		got, _ = s.Get(ctx, r.ID, "u")
		if got.Text != "new" || got.Timestamp != 200 || got.Recur != domain.RecurMonthly {
			t.Fatalf("unexpected after update: %+v", got)
		}

		if ok, err := s.Update(ctx, 9999, "u", domain.ReminderPatch{Text: &text}); err != nil || ok {
			t.Fatalf("update of missing id: ok=%v err=%v", ok, err)
		}
	})
}

func TestStores_Ping(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s ReminderStore, _ clock.FakeClock) {
		if err := s.Ping(context.Background()); err != nil {
			t.Fatalf("Ping: %v", err)
		}
	})
}

func TestPageBounds(t *testing.T) {
	cases := []struct {
		page, size, total int
		start, end        int
	}{
		{1, 5, 7, 0, 5},
		{2, 5, 7, 5, 7},
		{3, 5, 7, 7, 7},
		{0, 5, 7, 0, 5},
		{1, 0, 7, 0, 1},
		{1, 5, 0, 0, 0},
		{math.MaxInt/5 + 2, 5, 3, 3, 3},
		{math.MaxInt, math.MaxInt, 3, 3, 3},
		{1, math.MaxInt, 3, 0, 3},
	}
	for _, tc := range cases {
		s, e := pageBounds(tc.page, tc.size, tc.total)
		if s != tc.start || e != tc.end {
			t.Fatalf("pageBounds(%d,%d,%d) = %d,%d; want %d,%d", tc.page, tc.size, tc.total, s, e, tc.start, tc.end)
		}
	}
}

func sortTuples(ts []tuple) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].ID < ts[j].ID })
}
