package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
)

type CalDAVConfig struct {
	Endpoint     string
	Username     string
	Password     string
	CalendarPath string
}

// authTransport adds basic auth and turns upstream auth and quota
// responses into classified errors.
type authTransport struct {
	username  string
	password  string
	transport http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	req.Header.Set("User-Agent", "v1tr0-backend/1.0")
	resp, err := t.transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		resp.Body.Close()
		return nil, wrap(classifyStatus(resp.StatusCode), fmt.Errorf("caldav status %d", resp.StatusCode))
	}
	return resp, nil
}

// CalDAVSource reads VEVENTs from one CalDAV calendar collection.
type CalDAVSource struct {
	client       *caldav.Client
	calendarPath string
	logger       *slog.Logger
}

func NewCalDAVSource(cfg CalDAVConfig, logger *slog.Logger) (*CalDAVSource, error) {
	if cfg.Endpoint == "" || cfg.CalendarPath == "" {
		return nil, errors.New("caldav endpoint and calendar path are required")
	}
	httpClient := &http.Client{Transport: &authTransport{
		username:  cfg.Username,
		password:  cfg.Password,
		transport: http.DefaultTransport,
	}}
	client, err := caldav.NewClient(httpClient, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("create caldav client: %w", err)
	}
	return &CalDAVSource{client: client, calendarPath: cfg.CalendarPath, logger: logger}, nil
}

func (c *CalDAVSource) Name() string {
	return "caldav"
}

func (c *CalDAVSource) BusyIntervals(ctx context.Context, from, to time.Time) ([]BusyInterval, error) {
	c.logger.Debug("calendar caldav: query", slog.String("path", c.calendarPath), slog.Time("from", from), slog.Time("to", to))

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name: ical.CompCalendar,
			Comps: []caldav.CalendarCompRequest{{
				Name:  ical.CompEvent,
				Props: []string{ical.PropSummary, ical.PropDateTimeStart, ical.PropDateTimeEnd, ical.PropDuration, ical.PropTransparency, ical.PropStatus, ical.PropUID, ical.PropRecurrenceRule, ical.PropExceptionDates, ical.PropRecurrenceID},
			}},
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: from.UTC(),
				End:   to.UTC(),
			}},
		},
	}

	objects, err := c.client.QueryCalendar(ctx, c.calendarPath, query)
	if err != nil {
		var classified *classifiedError
		if errors.As(err, &classified) {
			return nil, err
		}
		if kind := classifyContext(ctx, err); kind != nil {
			return nil, wrap(kind, err)
		}
		return nil, wrap(ErrUnavailable, err)
	}

	busy := make([]BusyInterval, 0, len(objects))
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		events := obj.Data.Events()
		overridden := overriddenOccurrences(events, from.Location())
		for _, event := range events {
			busy = append(busy, eventIntervals(event, from, to, overridden)...)
		}
	}
	return busy, nil
}

// overriddenOccurrences keys the occurrences replaced by a RECURRENCE-ID
// instance, so the master rule does not count them twice.
func overriddenOccurrences(events []ical.Event, loc *time.Location) map[string]bool {
	out := make(map[string]bool)
	for _, event := range events {
		prop := event.Props.Get(ical.PropRecurrenceID)
		if prop == nil {
			continue
		}
		at, err := prop.DateTime(loc)
		if err != nil {
			continue
		}
		out[occurrenceKey(event, at)] = true
	}
	return out
}

func occurrenceKey(event ical.Event, at time.Time) string {
	uid := ""
	if prop := event.Props.Get(ical.PropUID); prop != nil {
		uid = prop.Value
	}
	return fmt.Sprintf("%s|%d", uid, at.Unix())
}

// eventIntervals expands a recurring master into its occurrences touching
// [from, to). Other events yield at most one interval.
func eventIntervals(event ical.Event, from, to time.Time, overridden map[string]bool) []BusyInterval {
	first, ok := eventInterval(event, from.Location())
	if !ok {
		return nil
	}
	if event.Props.Get(ical.PropRecurrenceID) != nil {
		return []BusyInterval{first}
	}
	set, err := event.RecurrenceSet(from.Location())
	if err != nil || set == nil {
		return []BusyInterval{first}
	}

	length := first.End.Sub(first.Start)
	var out []BusyInterval
	for _, start := range set.Between(from.Add(-length), to, false) {
		if overridden[occurrenceKey(event, start)] {
			continue
		}
		out = append(out, BusyInterval{Start: start, End: start.Add(length), Summary: first.Summary})
	}
	return out
}

func eventInterval(event ical.Event, loc *time.Location) (BusyInterval, bool) {
	if prop := event.Props.Get(ical.PropTransparency); prop != nil && prop.Value == "TRANSPARENT" {
		return BusyInterval{}, false
	}
	if prop := event.Props.Get(ical.PropStatus); prop != nil && prop.Value == "CANCELLED" {
		return BusyInterval{}, false
	}
	start, err := event.DateTimeStart(loc)
	if err != nil {
		return BusyInterval{}, false
	}
	end, err := event.DateTimeEnd(loc)
	if err != nil || !end.After(start) {
		end = start.Add(30 * time.Minute)
	}
	summary := ""
	if prop := event.Props.Get(ical.PropSummary); prop != nil {
		summary = prop.Value
	}
	return BusyInterval{Start: start, End: end, Summary: summary}, true
}
