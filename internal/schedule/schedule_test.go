package schedule

import (
	"testing"
	"time"
)

func mustLoadLoc(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("America/Bogota")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestGenerateSlotsWeekday(t *testing.T) {
	loc := mustLoadLoc(t)
	slots, err := GenerateSlots("2026-02-02", loc)
	if err != nil {
		t.Fatalf("GenerateSlots error: %v", err)
	}
	want := []string{"14:00", "14:30", "15:00", "15:30", "16:00", "16:30", "17:00", "17:30"}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d (%v)", len(want), len(slots), slots)
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("slot %d: expected %s, got %s", i, want[i], slots[i])
		}
	}
}

func TestGenerateSlotsWeekendClosed(t *testing.T) {
	loc := mustLoadLoc(t)
	for _, date := range []string{"2026-02-07", "2026-02-01"} {
		slots, err := GenerateSlots(date, loc)
		if err != nil {
			t.Fatalf("GenerateSlots(%s) error: %v", date, err)
		}
		if slots == nil || len(slots) != 0 {
			t.Fatalf("expected empty slots for %s, got %v", date, slots)
		}
	}
}

func TestGenerateSlotsInvalidDate(t *testing.T) {
	loc := mustLoadLoc(t)
	if _, err := GenerateSlots("2026-13-40", loc); err != ErrInvalidDate {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestTimeRoundTrip(t *testing.T) {
	loc := mustLoadLoc(t)
	slots, err := GenerateSlots("2026-02-03", loc)
	if err != nil {
		t.Fatalf("GenerateSlots error: %v", err)
	}
	for _, s := range slots {
		m, err := TimeToMinutes(s)
		if err != nil {
			t.Fatalf("TimeToMinutes(%s) error: %v", s, err)
		}
		if got := MinutesToTime(m); got != s {
			t.Fatalf("round trip: expected %s, got %s", s, got)
		}
	}
}

func TestTimeToMinutesRejectsMalformed(t *testing.T) {
	cases := []string{"", "1400", "14:0", "24:00", "12:60", "ab:cd", "-1:30", "14:00:00"}
	for _, c := range cases {
		if _, err := TimeToMinutes(c); err == nil {
			t.Fatalf("expected error for %q", c)
		}
	}
	m, err := TimeToMinutes("09:05")
	if err != nil || m != 545 {
		t.Fatalf("expected 545, got %d (%v)", m, err)
	}
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"partial", Interval{840, 870}, Interval{855, 885}, true},
		{"touching", Interval{840, 870}, Interval{870, 900}, false},
		{"touching reversed", Interval{870, 900}, Interval{840, 870}, false},
		{"a contains b", Interval{840, 960}, Interval{870, 900}, true},
		{"b contains a", Interval{870, 900}, Interval{840, 960}, true},
		{"equal", Interval{900, 930}, Interval{900, 930}, true},
		{"disjoint", Interval{840, 870}, Interval{960, 990}, false},
	}
	for _, tc := range cases {
		if got := Overlaps(tc.a, tc.b); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestOccupiedSlotsExactInterval(t *testing.T) {
	loc := mustLoadLoc(t)
	occupied, err := OccupiedSlots("2026-02-04", []Interval{{Start: 900, End: 930}}, loc)
	if err != nil {
		t.Fatalf("OccupiedSlots error: %v", err)
	}
	if !occupied["15:00"] {
		t.Fatalf("expected 15:00 occupied")
	}
	if occupied["14:30"] || occupied["15:30"] {
		t.Fatalf("unexpected neighbours occupied: %v", occupied)
	}
}

func TestOccupiedSlotsLongBooking(t *testing.T) {
	loc := mustLoadLoc(t)
	occupied, err := OccupiedSlots("2026-02-04", []Interval{{Start: 900, End: 990}}, loc)
	if err != nil {
		t.Fatalf("OccupiedSlots error: %v", err)
	}
	if len(occupied) != 3 || !occupied["15:00"] || !occupied["15:30"] || !occupied["16:00"] {
		t.Fatalf("unexpected occupancy: %v", occupied)
	}
}

func TestIsTimePastBoundary(t *testing.T) {
	loc := mustLoadLoc(t)
	now := time.Date(2026, 2, 4, 15, 10, 0, 0, loc)
	buffer := 5 * time.Minute

	past, err := IsTimePast("2026-02-04", "15:09", buffer, loc, now)
	if err != nil || !past {
		t.Fatalf("expected now-1m to be past, got %v (%v)", past, err)
	}
	past, err = IsTimePast("2026-02-04", "15:16", buffer, loc, now)
	if err != nil || past {
		t.Fatalf("expected now+buffer+1m to be future, got %v (%v)", past, err)
	}
	past, err = IsTimePast("2026-02-04", "15:15", buffer, loc, now)
	if err != nil || !past {
		t.Fatalf("expected now+buffer to be past, got %v (%v)", past, err)
	}
}

func TestIsTimePastIgnoresServerZone(t *testing.T) {
	loc := mustLoadLoc(t)
	// 20:00 UTC is 15:00 in Bogota.
	now := time.Date(2026, 2, 4, 20, 0, 0, 0, time.UTC)
	past, err := IsTimePast("2026-02-04", "15:30", 0, loc, now)
	if err != nil || past {
		t.Fatalf("expected 15:30 Bogota to be future, got %v (%v)", past, err)
	}
	past, err = IsTimePast("2026-02-04", "14:30", 0, loc, now)
	if err != nil || !past {
		t.Fatalf("expected 14:30 Bogota to be past, got %v (%v)", past, err)
	}
}

func TestIsDatePast(t *testing.T) {
	loc := mustLoadLoc(t)
	now := time.Date(2026, 2, 4, 10, 0, 0, 0, loc)
	past, err := IsDatePast("2026-02-03", loc, now)
	if err != nil {
		t.Fatalf("IsDatePast error: %v", err)
	}
	if !past {
		t.Fatalf("expected date to be past")
	}

	past, err = IsDatePast("2026-02-04", loc, now)
	if err != nil {
		t.Fatalf("IsDatePast error: %v", err)
	}
	if past {
		t.Fatalf("expected date to be not past")
	}
}

func TestFitsBusinessHours(t *testing.T) {
	cases := []struct {
		clock    string
		duration int
		want     bool
	}{
		{"14:00", 30, true},
		{"17:30", 30, true},
		{"17:30", 60, false},
		{"13:30", 30, false},
		{"14:15", 30, false},
		{"16:00", 120, true},
	}
	for _, tc := range cases {
		got, err := FitsBusinessHours(tc.clock, tc.duration)
		if err != nil {
			t.Fatalf("FitsBusinessHours(%s,%d) error: %v", tc.clock, tc.duration, err)
		}
		if got != tc.want {
			t.Fatalf("FitsBusinessHours(%s,%d): expected %v", tc.clock, tc.duration, tc.want)
		}
	}
	if _, err := FitsBusinessHours("14:00", 45); err != ErrInvalidDuration {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
}

func TestDayIntervalClamps(t *testing.T) {
	loc := mustLoadLoc(t)
	start := time.Date(2026, 2, 3, 22, 0, 0, 0, loc)
	end := time.Date(2026, 2, 4, 14, 10, 30, 0, loc)
	iv, ok, err := DayInterval("2026-02-04", start, end, loc)
	if err != nil || !ok {
		t.Fatalf("expected interval, got ok=%v err=%v", ok, err)
	}
	if iv.Start != 0 || iv.End != 851 {
		t.Fatalf("unexpected interval: %+v", iv)
	}

	_, ok, err = DayInterval("2026-02-05", start, end, loc)
	if err != nil || ok {
		t.Fatalf("expected no interval on another day, got ok=%v err=%v", ok, err)
	}
}

func TestBusinessDaysSkipsWeekend(t *testing.T) {
	loc := mustLoadLoc(t)
	friday := time.Date(2026, 2, 6, 0, 0, 0, 0, loc)
	days := BusinessDays(friday, 3)
	want := []string{"2026-02-06", "2026-02-09", "2026-02-10"}
	for i := range want {
		if days[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, days)
		}
	}
}
