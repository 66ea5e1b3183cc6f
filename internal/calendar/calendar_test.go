package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/emersion/go-ical"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type stubSource struct {
	busy []BusyInterval
	err  error
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) BusyIntervals(ctx context.Context, from, to time.Time) ([]BusyInterval, error) {
	return s.busy, s.err
}

func bogota(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("America/Bogota")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func newHandler(t *testing.T, source Source, now time.Time) *Handler {
	h := NewHandler(source, bogota(t), time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.now = func() time.Time { return now }
	return h
}

type availabilityBody struct {
	Success      bool              `json:"success"`
	Fallback     bool              `json:"fallback"`
	Reason       string            `json:"reason"`
	Error        string            `json:"error"`
	Availability []DayAvailability `json:"availability"`
	Busy         []BusyInterval    `json:"busy"`
}

func get(t *testing.T, h *Handler, target string) (int, availabilityBody) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Get(rr, httptest.NewRequest(http.MethodGet, target, nil))
	var body availabilityBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return rr.Code, body
}

func TestHandlerTimeoutReturnsStaticFallback(t *testing.T) {
	loc := bogota(t)
	now := time.Date(2026, 2, 9, 9, 0, 0, 0, loc)
	h := newHandler(t, &stubSource{err: wrap(ErrTimeout, context.DeadlineExceeded)}, now)

	code, body := get(t, h, "/api/calendar-availability?days=5")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !body.Success || !body.Fallback {
		t.Fatalf("expected success with fallback, got %+v", body)
	}
	if len(body.Availability) != 5 {
		t.Fatalf("expected 5 business days, got %d", len(body.Availability))
	}
	for _, day := range body.Availability {
		if len(day.Slots) != 8 {
			t.Fatalf("%s: expected every canonical slot, got %v", day.Date, day.Slots)
		}
	}
	if body.Reason != ErrTimeout.Error() {
		t.Fatalf("unexpected reason %q", body.Reason)
	}
}

func TestHandlerUpstreamStatusMapping(t *testing.T) {
	now := time.Date(2026, 2, 9, 9, 0, 0, 0, bogota(t))
	tests := []struct {
		err     error
		status  int
		success bool
	}{
		{wrap(ErrAuth, errors.New("401")), http.StatusServiceUnavailable, false},
		{wrap(ErrRateLimited, errors.New("429")), http.StatusTooManyRequests, false},
		{wrap(ErrUnavailable, errors.New("dial")), http.StatusOK, true},
	}
	for _, tt := range tests {
		code, body := get(t, newHandler(t, &stubSource{err: tt.err}, now), "/api/calendar-availability")
		if code != tt.status || body.Success != tt.success {
			t.Fatalf("%v: got status %d success %v", tt.err, code, body.Success)
		}
		if !body.Fallback || len(body.Availability) != DefaultDays {
			t.Fatalf("%v: expected fallback list of %d days, got %d", tt.err, DefaultDays, len(body.Availability))
		}
	}
}

func TestHandlerNotConfigured(t *testing.T) {
	now := time.Date(2026, 2, 9, 9, 0, 0, 0, bogota(t))
	code, body := get(t, newHandler(t, nil, now), "/api/calendar-availability?days=1")
	if code != http.StatusOK || !body.Fallback || body.Reason != ErrNotConfigured.Error() {
		t.Fatalf("unexpected response %d %+v", code, body)
	}
}

func TestHandlerRemovesBusySlots(t *testing.T) {
	loc := bogota(t)
	now := time.Date(2026, 2, 9, 9, 0, 0, 0, loc)
	source := &stubSource{busy: []BusyInterval{{
		Start:   time.Date(2026, 2, 9, 15, 0, 0, 0, loc),
		End:     time.Date(2026, 2, 9, 16, 0, 0, 0, loc),
		Summary: "Standup",
	}}}
	code, body := get(t, newHandler(t, source, now), "/api/calendar-availability?days=7")
	if code != http.StatusOK || body.Fallback {
		t.Fatalf("unexpected response %d %+v", code, body)
	}
	if len(body.Availability) != 5 {
		t.Fatalf("7 calendar days starting monday hold 5 business days, got %d", len(body.Availability))
	}
	monday := body.Availability[0]
	want := []string{"14:00", "14:30", "16:00", "16:30", "17:00", "17:30"}
	if fmt.Sprint(monday.Slots) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, monday.Slots)
	}
	if len(body.Busy) != 1 {
		t.Fatalf("expected busy interval echoed")
	}
}

func TestHandlerRejectsBadDays(t *testing.T) {
	now := time.Date(2026, 2, 9, 9, 0, 0, 0, bogota(t))
	for _, target := range []string{"/api/calendar-availability?days=0", "/api/calendar-availability?days=61", "/api/calendar-availability?days=x"} {
		code, body := get(t, newHandler(t, nil, now), target)
		if code != http.StatusBadRequest || body.Success {
			t.Fatalf("%s: expected 400, got %d", target, code)
		}
	}
}

func TestStatusForClassifiedErrors(t *testing.T) {
	if StatusFor(wrap(ErrAuth, errors.New("x"))) != http.StatusServiceUnavailable {
		t.Fatalf("auth should map to 503")
	}
	if StatusFor(classifyStatus(http.StatusTooManyRequests)) != http.StatusTooManyRequests {
		t.Fatalf("429 should map to 429")
	}
	if StatusFor(classifyStatus(http.StatusBadGateway)) != http.StatusOK {
		t.Fatalf("other upstream failures degrade with 200")
	}
}

func TestClassifyGoogleError(t *testing.T) {
	ctx := context.Background()
	quota := &googleapi.Error{Code: http.StatusForbidden, Errors: []googleapi.ErrorItem{{Reason: "rateLimitExceeded"}}}
	if !errors.Is(classifyGoogleError(ctx, quota), ErrRateLimited) {
		t.Fatalf("quota 403 should be rate limited")
	}
	denied := &googleapi.Error{Code: http.StatusUnauthorized}
	if !errors.Is(classifyGoogleError(ctx, denied), ErrAuth) {
		t.Fatalf("401 should be auth")
	}
	if !errors.Is(classifyGoogleError(ctx, context.DeadlineExceeded), ErrTimeout) {
		t.Fatalf("deadline should be timeout")
	}
}

func TestToBusyIntervalsSkipsNonBlockingEvents(t *testing.T) {
	items := []*gcal.Event{
		{Summary: "call", Start: &gcal.EventDateTime{DateTime: "2026-02-09T15:00:00-05:00"}, End: &gcal.EventDateTime{DateTime: "2026-02-09T15:30:00-05:00"}},
		{Summary: "cancelled", Status: "cancelled", Start: &gcal.EventDateTime{DateTime: "2026-02-09T16:00:00-05:00"}, End: &gcal.EventDateTime{DateTime: "2026-02-09T16:30:00-05:00"}},
		{Summary: "free", Transparency: "transparent", Start: &gcal.EventDateTime{DateTime: "2026-02-09T16:00:00-05:00"}, End: &gcal.EventDateTime{DateTime: "2026-02-09T16:30:00-05:00"}},
		{Summary: "holiday", Start: &gcal.EventDateTime{Date: "2026-02-09"}, End: &gcal.EventDateTime{Date: "2026-02-10"}},
		{Summary: "reminder", Transparency: "transparent", Start: &gcal.EventDateTime{Date: "2026-02-10"}, End: &gcal.EventDateTime{Date: "2026-02-11"}},
		nil,
	}
	loc := bogota(t)
	busy := toBusyIntervals(items, loc)
	if len(busy) != 2 || busy[0].Summary != "call" || busy[1].Summary != "holiday" {
		t.Fatalf("expected the timed call and the opaque all-day event, got %+v", busy)
	}
	if !busy[1].Start.Equal(time.Date(2026, 2, 9, 0, 0, 0, 0, loc)) || busy[1].End.Sub(busy[1].Start) != 24*time.Hour {
		t.Fatalf("all-day event should cover the whole day, got %+v", busy[1])
	}
}

func TestGoogleSourceReadsEveryPage(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			fmt.Fprint(w, `{"items":[{"summary":"first","start":{"dateTime":"2026-02-09T14:00:00-05:00"},"end":{"dateTime":"2026-02-09T14:30:00-05:00"}}],"nextPageToken":"page-2"}`)
			return
		}
		fmt.Fprint(w, `{"items":[{"summary":"second","start":{"dateTime":"2026-02-10T16:00:00-05:00"},"end":{"dateTime":"2026-02-10T17:00:00-05:00"}}]}`)
	}))
	defer srv.Close()

	ctx := context.Background()
	service, err := gcal.NewService(ctx, option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	source := &GoogleSource{service: service, calendarID: "primary", logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	loc := bogota(t)
	busy, err := source.BusyIntervals(ctx, time.Date(2026, 2, 9, 0, 0, 0, 0, loc), time.Date(2026, 2, 11, 0, 0, 0, 0, loc))
	if err != nil {
		t.Fatalf("busy: %v", err)
	}
	if requests != 2 || len(busy) != 2 || busy[1].Summary != "second" {
		t.Fatalf("expected both pages read, got %d requests and %+v", requests, busy)
	}
}

func TestEventIntervalsExpandsRecurrence(t *testing.T) {
	loc := bogota(t)
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, "standup")
	event.Props.SetText(ical.PropSummary, "Standup")
	event.Props.SetDateTime(ical.PropDateTimeStart, time.Date(2026, 2, 2, 14, 0, 0, 0, loc))
	event.Props.SetDateTime(ical.PropDateTimeEnd, time.Date(2026, 2, 2, 14, 30, 0, 0, loc))
	event.Props.Set(&ical.Prop{Name: ical.PropRecurrenceRule, Params: ical.Params{}, Value: "FREQ=DAILY;COUNT=10"})

	from := time.Date(2026, 2, 9, 0, 0, 0, 0, loc)
	to := time.Date(2026, 2, 11, 0, 0, 0, 0, loc)
	overridden := map[string]bool{occurrenceKey(*event, time.Date(2026, 2, 10, 14, 0, 0, 0, loc)): true}

	busy := eventIntervals(*event, from, to, nil)
	if len(busy) != 2 || !busy[0].Start.Equal(time.Date(2026, 2, 9, 14, 0, 0, 0, loc)) || busy[1].End.Sub(busy[1].Start) != 30*time.Minute {
		t.Fatalf("expected two occurrences in the window, got %+v", busy)
	}
	busy = eventIntervals(*event, from, to, overridden)
	if len(busy) != 1 || !busy[0].Start.Equal(time.Date(2026, 2, 9, 14, 0, 0, 0, loc)) {
		t.Fatalf("overridden occurrence should be left out, got %+v", busy)
	}
}

func TestEventIntervalFromICal(t *testing.T) {
	loc := bogota(t)
	event := ical.NewEvent()
	event.Props.SetText(ical.PropSummary, "Review")
	event.Props.SetDateTime(ical.PropDateTimeStart, time.Date(2026, 2, 9, 20, 0, 0, 0, time.UTC))
	event.Props.SetDateTime(ical.PropDateTimeEnd, time.Date(2026, 2, 9, 21, 0, 0, 0, time.UTC))

	interval, ok := eventInterval(*event, loc)
	if !ok {
		t.Fatalf("expected event to block time")
	}
	if !interval.Start.Equal(time.Date(2026, 2, 9, 15, 0, 0, 0, loc)) || interval.End.Sub(interval.Start) != time.Hour {
		t.Fatalf("unexpected interval %+v", interval)
	}

	event.Props.SetText(ical.PropTransparency, "TRANSPARENT")
	if _, ok := eventInterval(*event, loc); ok {
		t.Fatalf("transparent events do not block time")
	}
}

func TestFreeSlotsSkipsWeekends(t *testing.T) {
	loc := bogota(t)
	start := time.Date(2026, 2, 13, 0, 0, 0, 0, loc)
	days := FreeSlots(start, 4, nil, loc)
	if len(days) != 2 || days[0].Date != "2026-02-13" || days[1].Date != "2026-02-16" {
		t.Fatalf("unexpected days %+v", days)
	}
}
