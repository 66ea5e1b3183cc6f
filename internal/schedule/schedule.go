package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	SlotMinutes = 30

	OpenMinutes  = 14 * 60
	CloseMinutes = 18 * 60

	DateLayout = "2006-01-02"
)

var (
	ErrInvalidDate     = errors.New("invalid date format")
	ErrInvalidTime     = errors.New("invalid time format")
	ErrInvalidDuration = errors.New("invalid duration")
)

// TimeToMinutes converts "HH:MM" into minutes since midnight.
func TimeToMinutes(clock string) (int, error) {
	parts := strings.Split(clock, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, ErrInvalidTime
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, ErrInvalidTime
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, ErrInvalidTime
	}
	return h*60 + m, nil
}

// MinutesToTime is the inverse of TimeToMinutes.
func MinutesToTime(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func ParseDate(dateStr string, loc *time.Location) (time.Time, error) {
	date, err := time.ParseInLocation(DateLayout, dateStr, loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return date, nil
}

// ParseDateTime interprets date and clock in loc. The wall clock of the
// server never takes part.
func ParseDateTime(dateStr, clock string, loc *time.Location) (time.Time, error) {
	date, err := ParseDate(dateStr, loc)
	if err != nil {
		return time.Time{}, err
	}
	minutes, err := TimeToMinutes(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), minutes/60, minutes%60, 0, 0, loc), nil
}

// IsTimePast reports whether date+clock is at or before now+buffer.
func IsTimePast(dateStr, clock string, buffer time.Duration, loc *time.Location, now time.Time) (bool, error) {
	candidate, err := ParseDateTime(dateStr, clock, loc)
	if err != nil {
		return false, err
	}
	return !candidate.After(now.In(loc).Add(buffer)), nil
}

func IsDatePast(dateStr string, loc *time.Location, now time.Time) (bool, error) {
	date, err := ParseDate(dateStr, loc)
	if err != nil {
		return false, err
	}
	local := now.In(loc)
	startToday := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return date.Before(startToday), nil
}

func IsToday(dateStr string, loc *time.Location, now time.Time) bool {
	date, err := ParseDate(dateStr, loc)
	if err != nil {
		return false
	}
	local := now.In(loc)
	return date.Year() == local.Year() && date.YearDay() == local.YearDay()
}

func Today(loc *time.Location, now time.Time) string {
	return now.In(loc).Format(DateLayout)
}

func IsWeekend(day time.Weekday) bool {
	return day == time.Saturday || day == time.Sunday
}

// GenerateSlots returns the canonical slot starts for date, empty on weekends.
func GenerateSlots(dateStr string, loc *time.Location) ([]string, error) {
	date, err := ParseDate(dateStr, loc)
	if err != nil {
		return nil, err
	}
	if IsWeekend(date.Weekday()) {
		return []string{}, nil
	}

	slots := make([]string, 0, (CloseMinutes-OpenMinutes)/SlotMinutes)
	for cursor := OpenMinutes; cursor+SlotMinutes <= CloseMinutes; cursor += SlotMinutes {
		slots = append(slots, MinutesToTime(cursor))
	}
	return slots, nil
}

func IsSlotAllowed(dateStr, clock string, loc *time.Location) (bool, error) {
	slots, err := GenerateSlots(dateStr, loc)
	if err != nil {
		return false, err
	}
	for _, s := range slots {
		if s == clock {
			return true, nil
		}
	}
	return false, nil
}

// FitsBusinessHours reports whether [clock, clock+duration) stays inside
// opening hours and starts on the slot grid.
func FitsBusinessHours(clock string, duration int) (bool, error) {
	if duration <= 0 || duration%SlotMinutes != 0 {
		return false, ErrInvalidDuration
	}
	start, err := TimeToMinutes(clock)
	if err != nil {
		return false, err
	}
	if (start-OpenMinutes)%SlotMinutes != 0 {
		return false, nil
	}
	return start >= OpenMinutes && start+duration <= CloseMinutes, nil
}

// Interval is a half-open range of minutes since midnight.
type Interval struct {
	Start int
	End   int
}

// Overlaps covers partial overlap and containment in both directions.
// Touching endpoints do not overlap.
func Overlaps(a, b Interval) bool {
	return (a.Start >= b.Start && a.Start < b.End) ||
		(a.End > b.Start && a.End <= b.End) ||
		(a.Start <= b.Start && a.End >= b.End)
}

func OverlapsAny(current Interval, reserved []Interval) bool {
	for _, r := range reserved {
		if Overlaps(current, r) {
			return true
		}
	}
	return false
}

// OccupiedSlots marks every canonical slot of date intersecting a reserved
// interval.
func OccupiedSlots(dateStr string, reserved []Interval, loc *time.Location) (map[string]bool, error) {
	slots, err := GenerateSlots(dateStr, loc)
	if err != nil {
		return nil, err
	}
	occupied := make(map[string]bool)
	for _, s := range slots {
		start, err := TimeToMinutes(s)
		if err != nil {
			return nil, err
		}
		if OverlapsAny(Interval{Start: start, End: start + SlotMinutes}, reserved) {
			occupied[s] = true
		}
	}
	return occupied, nil
}

// DayInterval projects an absolute [start, end) range onto date in loc,
// clamped to the day. ok is false when the range misses the day.
func DayInterval(dateStr string, start, end time.Time, loc *time.Location) (Interval, bool, error) {
	day, err := ParseDate(dateStr, loc)
	if err != nil {
		return Interval{}, false, err
	}
	next := day.AddDate(0, 0, 1)
	if !start.Before(next) || !end.After(day) {
		return Interval{}, false, nil
	}
	if start.Before(day) {
		start = day
	}
	if end.After(next) {
		end = next
	}
	return Interval{
		Start: int(start.Sub(day) / time.Minute),
		End:   int((end.Sub(day) + time.Minute - 1) / time.Minute),
	}, true, nil
}

// BusinessDays returns the next n weekdays starting at from (inclusive).
func BusinessDays(from time.Time, n int) []string {
	days := make([]string, 0, n)
	for cursor := from; len(days) < n; cursor = cursor.AddDate(0, 0, 1) {
		if IsWeekend(cursor.Weekday()) {
			continue
		}
		days = append(days, cursor.Format(DateLayout))
	}
	return days
}
