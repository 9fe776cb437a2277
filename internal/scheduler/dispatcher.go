// Package scheduler runs the due-reminder dispatcher: a single polling loop
// that fetches due, non-paused reminders, hands each one to a Notifier, then
// deletes one-shot reminders and advances recurring ones.
//
// Delivery is attempted at most once per occurrence. A failed or timed-out
// delivery is logged and counted, never retried, and never prevents the
// reminder from being rescheduled or removed.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmhodges/clock"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-discord-bot/internal/domain"
	"github.com/tbourn/go-discord-bot/internal/repo"
)

const (
	defaultInterval        = 15 * time.Second
	defaultDeliveryTimeout = 10 * time.Second
	writeBackTimeout       = 10 * time.Second
)

var errNoNotifier = errors.New("no notifier configured")

// panicError carries a value recovered from a panicking Notifier.
type panicError struct{ value any }

func (e *panicError) Error() string { return fmt.Sprintf("notifier panic: %v", e.value) }

// Notifier delivers a due reminder to its owner.
type Notifier interface {
	Notify(ctx context.Context, r domain.Reminder) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, r domain.Reminder) error

// Notify calls f(ctx, r).
func (f NotifierFunc) Notify(ctx context.Context, r domain.Reminder) error { return f(ctx, r) }

// TickResult summarizes one dispatcher tick.
type TickResult struct {
	Skipped     bool // another tick was still running
	Due         int
	Delivered   int
	Failed      int
	Rescheduled int
	Removed     int
	Errors      int // persistence failures
}

// Dispatcher polls the store and delivers due reminders.
type Dispatcher struct {
	Store    repo.ReminderStore
	Notifier Notifier
	Clock    clock.Clock

	// Interval between ticks.
	Interval time.Duration
	// DeliveryTimeout bounds each Notify call.
	DeliveryTimeout time.Duration
	// Location is the calendar used for recurrence arithmetic.
	Location *time.Location

	Log zerolog.Logger

	running sync.Mutex
}

// NewDispatcher returns a Dispatcher with the default 15s interval and 10s
// delivery timeout.
func NewDispatcher(store repo.ReminderStore, n Notifier, clk clock.Clock, loc *time.Location, logger zerolog.Logger) *Dispatcher {
	if clk == nil {
		clk = clock.New()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Dispatcher{
		Store:           store,
		Notifier:        n,
		Clock:           clk,
		Interval:        defaultInterval,
		DeliveryTimeout: defaultDeliveryTimeout,
		Location:        loc,
		Log:             logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Run ticks once immediately and then every Interval until ctx is canceled.
// It always returns ctx.Err().
func (d *Dispatcher) Run(ctx context.Context) error {
	interval := d.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	d.Log.Info().Dur("interval", interval).Msg("dispatcher started")

	d.Tick(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.Log.Info().Msg("dispatcher stopped")
			return ctx.Err()
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick processes every reminder due at the current clock time, in
// (timestamp, id) order. Ticks never overlap: a call made while another tick
// is running returns immediately with Skipped set.
func (d *Dispatcher) Tick(ctx context.Context) TickResult {
	if !d.running.TryLock() {
		d.Log.Warn().Msg("previous tick still running; skipping")
		return TickResult{Skipped: true}
	}
	defer d.running.Unlock()

	start := time.Now()
	defer func() { tickDuration.Observe(time.Since(start).Seconds()) }()

	now := d.Clock.Now()
	ctx, span := otel.Tracer("scheduler/Dispatcher").Start(ctx, "Tick",
		trace.WithAttributes(attribute.Int64("now", now.UnixMilli())),
	)
	defer span.End()

	var res TickResult
	due, err := d.Store.FindDue(ctx, now.UnixMilli())
	if err != nil {
		d.Log.Error().Err(err).Msg("query due reminders")
		span.RecordError(err)
		res.Errors++
		return res
	}
	res.Due = len(due)
	dueBatch.Observe(float64(len(due)))
	if len(due) == 0 {
		return res
	}
	d.Log.Info().Int("due", len(due)).Int64("now", now.UnixMilli()).Msg("tick")

	for _, r := range due {
		if ctx.Err() != nil {
			// Shutting down: the rest stays due for the next start.
			break
		}
		if d.deliver(ctx, r) {
			res.Delivered++
		} else {
			res.Failed++
		}
		d.settle(ctx, r, &res)
	}
	span.SetAttributes(
		attribute.Int("due", res.Due),
		attribute.Int("delivered", res.Delivered),
		attribute.Int("failed", res.Failed),
	)
	return res
}

// deliver runs one bounded Notify call and reports whether it succeeded.
func (d *Dispatcher) deliver(ctx context.Context, r domain.Reminder) bool {
	timeout := d.DeliveryTimeout
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := d.notify(dctx, r)
	switch {
	case err == nil:
		deliveries.WithLabelValues(outcomeSent).Inc()
		d.Log.Debug().Int64("id", r.ID).Str("user_id", r.UserID).Msg("reminder delivered")
		return true
	case errors.Is(err, context.DeadlineExceeded):
		deliveries.WithLabelValues(outcomeTimeout).Inc()
	default:
		deliveries.WithLabelValues(outcomeFailed).Inc()
	}
	d.Log.Error().Err(err).Int64("id", r.ID).Str("user_id", r.UserID).Msg("deliver reminder")
	return false
}

// notify calls the Notifier, converting a panic into an error.
func (d *Dispatcher) notify(ctx context.Context, r domain.Reminder) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &panicError{value: p}
		}
	}()
	if d.Notifier == nil {
		return errNoNotifier
	}
	return d.Notifier.Notify(ctx, r)
}

// settle deletes or reschedules r after its delivery attempt. The write-back
// outlives cancellation of ctx so a delivered reminder is not fired again on
// restart.
func (d *Dispatcher) settle(ctx context.Context, r domain.Reminder, res *TickResult) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeBackTimeout)
	defer cancel()
	log := d.Log.With().Int64("id", r.ID).Str("user_id", r.UserID).Str("recur", string(r.Recur)).Logger()

	if r.Recur == domain.RecurNone {
		d.remove(wctx, r, reasonOneShot, res, log)
		return
	}
	next, ok := domain.NextDue(r.Timestamp, r.Recur, d.Location)
	if !ok {
		d.remove(wctx, r, reasonInvalidRecur, res, log)
		return
	}
	found, err := d.Store.Update(wctx, r.ID, r.UserID, domain.ReminderPatch{Timestamp: &next})
	switch {
	case err != nil:
		res.Errors++
		log.Error().Err(err).Msg("reschedule reminder")
	case !found:
		log.Info().Msg("reminder gone before reschedule")
	default:
		res.Rescheduled++
		reschedules.Inc()
		log.Info().Int64("next", next).Msg("reminder rescheduled")
	}
}

func (d *Dispatcher) remove(ctx context.Context, r domain.Reminder, reason string, res *TickResult, log zerolog.Logger) {
	found, err := d.Store.Delete(ctx, r.ID, r.UserID)
	switch {
	case err != nil:
		res.Errors++
		log.Error().Err(err).Str("reason", reason).Msg("remove reminder")
	case !found:
		log.Info().Str("reason", reason).Msg("reminder already removed")
	default:
		res.Removed++
		removals.WithLabelValues(reason).Inc()
		log.Info().Str("reason", reason).Msg("reminder removed")
	}
}
