package meetings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"v1tr0-backend/internal/calendar"
	"v1tr0-backend/internal/schedule"
)

const (
	MaxBatchDates   = 31
	NextAvailableIn = 30
)

// Lister is the read side the availability computation needs.
type Lister interface {
	List(ctx context.Context, filter ListFilter) ([]Booking, error)
}

// Buffers are the past-time margins per call site. Booking applies to
// the authoritative check before a write, Display to listed slots.
type Buffers struct {
	Booking time.Duration
	Display time.Duration
}

// Availability derives slot state from local bookings, overlaid with an
// optional external calendar.
type Availability struct {
	repo            Lister
	calendar        calendar.Source
	location        *time.Location
	buffers         Buffers
	calendarTimeout time.Duration
	now             func() time.Time
	log             *slog.Logger
}

// NewAvailability accepts a nil source, in which case only local
// bookings count.
func NewAvailability(repo Lister, source calendar.Source, location *time.Location, buffers Buffers, calendarTimeout time.Duration, log *slog.Logger) *Availability {
	if calendarTimeout <= 0 {
		calendarTimeout = 5 * time.Second
	}
	return &Availability{
		repo:            repo,
		calendar:        source,
		location:        location,
		buffers:         buffers,
		calendarTimeout: calendarTimeout,
		now:             time.Now,
		log:             log,
	}
}

func (a *Availability) Location() *time.Location {
	return a.location
}

// ReservedIntervals returns the intervals of scheduled bookings on date,
// skipping excludeID. Records with a malformed time are ignored.
func ReservedIntervals(date string, bookings []Booking, excludeID string) []schedule.Interval {
	out := make([]schedule.Interval, 0, len(bookings))
	for _, b := range bookings {
		if b.Date != date || !b.Active() || (excludeID != "" && b.ID == excludeID) {
			continue
		}
		iv, err := b.Interval()
		if err != nil {
			continue
		}
		out = append(out, iv)
	}
	return out
}

// OccupiedSlots is the set of canonical slots on date blocked by a
// scheduled booking.
func OccupiedSlots(date string, bookings []Booking, loc *time.Location) (map[string]bool, error) {
	return schedule.OccupiedSlots(date, ReservedIntervals(date, bookings, ""), loc)
}

// reserved merges local bookings with calendar busy time. fallback is
// true when the calendar was configured but could not be read.
func (a *Availability) reserved(ctx context.Context, date, excludeID string) ([]schedule.Interval, bool, error) {
	bookings, err := a.repo.List(ctx, ListFilter{Date: date, Status: StatusScheduled})
	if err != nil {
		return nil, false, fmt.Errorf("list bookings: %w", err)
	}
	intervals := ReservedIntervals(date, bookings, excludeID)

	busy, fallback := a.busy(ctx, date)
	intervals = append(intervals, calendar.DayIntervals(date, busy, a.location)...)
	return intervals, fallback, nil
}

func (a *Availability) busy(ctx context.Context, date string) ([]calendar.BusyInterval, bool) {
	if a.calendar == nil {
		return nil, false
	}
	day, err := schedule.ParseDate(date, a.location)
	if err != nil {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, a.calendarTimeout)
	defer cancel()

	busy, err := a.calendar.BusyIntervals(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		a.log.Warn("availability calendar: fallback to local bookings",
			slog.String("source", a.calendar.Name()),
			slog.String("date", date),
			slog.Int("status", calendar.StatusFor(err)),
			slog.String("error", err.Error()),
		)
		return nil, true
	}
	return busy, false
}

// GetAvailableSlots lists every canonical slot of date with its state.
// Weekends yield an empty list.
func (a *Availability) GetAvailableSlots(ctx context.Context, date string) (DayAvailability, error) {
	slots, err := schedule.GenerateSlots(date, a.location)
	if err != nil {
		return DayAvailability{}, invalid("date", "date")
	}
	day := DayAvailability{Date: date, Slots: make([]Slot, 0, len(slots))}
	if len(slots) == 0 {
		return day, nil
	}

	reserved, fallback, err := a.reserved(ctx, date, "")
	if err != nil {
		return DayAvailability{}, err
	}
	occupied, err := schedule.OccupiedSlots(date, reserved, a.location)
	if err != nil {
		return DayAvailability{}, err
	}

	now := a.now()
	for _, s := range slots {
		passed, err := schedule.IsTimePast(date, s, a.buffers.Display, a.location, now)
		if err != nil {
			return DayAvailability{}, err
		}
		day.Slots = append(day.Slots, Slot{
			Time:      s,
			Occupied:  occupied[s],
			Passed:    passed,
			Available: !occupied[s] && !passed,
		})
	}
	day.Fallback = fallback
	return day, nil
}

// GetAvailableSlotsBatch validates every date before computing any, so a
// single bad date fails the whole batch. Duplicates are computed once.
func (a *Availability) GetAvailableSlotsBatch(ctx context.Context, dates []string) (map[string]DayAvailability, error) {
	if len(dates) == 0 {
		return nil, invalid("dates", "required")
	}
	unique := make([]string, 0, len(dates))
	seen := make(map[string]bool, len(dates))
	for _, d := range dates {
		if _, err := schedule.ParseDate(d, a.location); err != nil {
			return nil, &ValidationError{
				Message: fmt.Sprintf("invalid date %q", d),
				Details: map[string]string{"dates": "date"},
			}
		}
		if !seen[d] {
			seen[d] = true
			unique = append(unique, d)
		}
	}
	if len(unique) > MaxBatchDates {
		return nil, invalid("dates", fmt.Sprintf("max=%d", MaxBatchDates))
	}

	var (
		mu  sync.Mutex
		out = make(map[string]DayAvailability, len(unique))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, d := range unique {
		date := d
		g.Go(func() error {
			day, err := a.GetAvailableSlots(gctx, date)
			if err != nil {
				return fmt.Errorf("date %s: %w", date, err)
			}
			mu.Lock()
			out[date] = day
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// CanScheduleAt checks a single slot starting at clock.
func (a *Availability) CanScheduleAt(ctx context.Context, date, clock string) (Decision, error) {
	return a.CanScheduleFor(ctx, SlotRequest{Date: date, Time: clock})
}

// CanScheduleFor is the authoritative check run right before a write.
// Malformed input returns a *ValidationError; a refusal is a Decision
// with a reason, not an error.
func (a *Availability) CanScheduleFor(ctx context.Context, req SlotRequest) (Decision, error) {
	duration := req.Duration
	if duration == 0 {
		duration = schedule.SlotMinutes
	}
	allowed, err := schedule.IsSlotAllowed(req.Date, req.Time, a.location)
	if err != nil {
		return Decision{}, invalid("date", "date")
	}
	fits, err := schedule.FitsBusinessHours(req.Time, duration)
	switch {
	case errors.Is(err, schedule.ErrInvalidDuration):
		return Decision{}, invalid("duration", "slot30")
	case err != nil:
		return Decision{}, invalid("time", "clock")
	}
	if !allowed || !fits {
		return Decision{CanSchedule: false, Reason: ReasonOutsideHours}, nil
	}

	passed, err := schedule.IsTimePast(req.Date, req.Time, a.buffers.Booking, a.location, a.now())
	if err != nil {
		return Decision{}, invalid("time", "clock")
	}
	if passed {
		return Decision{CanSchedule: false, Reason: ReasonPassed}, nil
	}

	reserved, fallback, err := a.reserved(ctx, req.Date, req.ExcludeID)
	if err != nil {
		return Decision{}, err
	}
	start, _ := schedule.TimeToMinutes(req.Time)
	if schedule.OverlapsAny(schedule.Interval{Start: start, End: start + duration}, reserved) {
		return Decision{CanSchedule: false, Reason: ReasonOccupied, Fallback: fallback}, nil
	}
	return Decision{CanSchedule: true, Fallback: fallback}, nil
}

// NextAvailable scans forward from from (today when empty) for the first
// available slot within days calendar days.
func (a *Availability) NextAvailable(ctx context.Context, from string, days int) (string, string, bool, error) {
	now := a.now()
	if from == "" {
		from = schedule.Today(a.location, now)
	}
	start, err := schedule.ParseDate(from, a.location)
	if err != nil {
		return "", "", false, invalid("from", "date")
	}
	if days <= 0 {
		days = NextAvailableIn
	}

	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format(schedule.DateLayout)
		if past, _ := schedule.IsDatePast(date, a.location, now); past {
			continue
		}
		day, err := a.GetAvailableSlots(ctx, date)
		if err != nil {
			return "", "", false, err
		}
		for _, s := range day.Slots {
			if s.Available {
				return date, s.Time, true, nil
			}
		}
	}
	return "", "", false, nil
}
