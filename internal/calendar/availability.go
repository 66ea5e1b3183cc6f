package calendar

import (
	"time"

	"v1tr0-backend/internal/schedule"
)

// DayAvailability lists the free canonical slots of one date.
type DayAvailability struct {
	Date  string   `json:"date"`
	Slots []string `json:"slots"`
}

// StaticAvailability is the fallback shown when the calendar cannot be
// read: every canonical slot of the next days business days.
func StaticAvailability(now time.Time, days int, loc *time.Location) []DayAvailability {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	dates := schedule.BusinessDays(start, days)

	out := make([]DayAvailability, 0, len(dates))
	for _, date := range dates {
		slots, err := schedule.GenerateSlots(date, loc)
		if err != nil {
			continue
		}
		out = append(out, DayAvailability{Date: date, Slots: slots})
	}
	return out
}

// FreeSlots removes slots overlapping busy intervals from each calendar day
// in [start, start+days).
func FreeSlots(start time.Time, days int, busy []BusyInterval, loc *time.Location) []DayAvailability {
	out := make([]DayAvailability, 0, days)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format(schedule.DateLayout)
		reserved := DayIntervals(date, busy, loc)
		occupied, err := schedule.OccupiedSlots(date, reserved, loc)
		if err != nil {
			continue
		}
		slots, _ := schedule.GenerateSlots(date, loc)
		if len(slots) == 0 {
			continue
		}
		free := make([]string, 0, len(slots))
		for _, s := range slots {
			if !occupied[s] {
				free = append(free, s)
			}
		}
		out = append(out, DayAvailability{Date: date, Slots: free})
	}
	return out
}

// DayIntervals projects busy intervals onto date.
func DayIntervals(date string, busy []BusyInterval, loc *time.Location) []schedule.Interval {
	intervals := make([]schedule.Interval, 0, len(busy))
	for _, b := range busy {
		iv, ok, err := schedule.DayInterval(date, b.Start, b.End, loc)
		if err != nil || !ok {
			continue
		}
		intervals = append(intervals, iv)
	}
	return intervals
}
