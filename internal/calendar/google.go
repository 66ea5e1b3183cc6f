package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type GoogleConfig struct {
	CalendarID      string
	CredentialsFile string
	ClientID        string
	ClientSecret    string
	TokenFile       string
}

// GoogleSource reads events from one Google calendar.
type GoogleSource struct {
	service    *gcal.Service
	calendarID string
	logger     *slog.Logger
}

// NewGoogleSource authenticates with a service account file when given,
// otherwise with an OAuth client and a stored token.
func NewGoogleSource(ctx context.Context, cfg GoogleConfig, logger *slog.Logger) (*GoogleSource, error) {
	if strings.TrimSpace(cfg.CalendarID) == "" {
		return nil, errors.New("google calendar id is required")
	}

	var opts []option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile), option.WithScopes(gcal.CalendarReadonlyScope))
	case cfg.ClientID != "" && cfg.ClientSecret != "" && cfg.TokenFile != "":
		token, err := tokenFromFile(cfg.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("load google token %s: %w", cfg.TokenFile, err)
		}
		oauthCfg := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       []string{gcal.CalendarReadonlyScope},
			Endpoint:     google.Endpoint,
		}
		opts = append(opts, option.WithHTTPClient(oauthCfg.Client(ctx, token)))
	default:
		return nil, errors.New("google calendar credentials are missing")
	}

	service, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &GoogleSource{service: service, calendarID: cfg.CalendarID, logger: logger}, nil
}

func (g *GoogleSource) Name() string {
	return "google"
}

func (g *GoogleSource) BusyIntervals(ctx context.Context, from, to time.Time) ([]BusyInterval, error) {
	g.logger.Debug("calendar google: list events", slog.String("calendar_id", g.calendarID), slog.Time("from", from), slog.Time("to", to))

	var busy []BusyInterval
	err := g.service.Events.List(g.calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		OrderBy("startTime").
		MaxResults(250).
		Pages(ctx, func(page *gcal.Events) error {
			busy = append(busy, toBusyIntervals(page.Items, from.Location())...)
			return nil
		})
	if err != nil {
		return nil, classifyGoogleError(ctx, err)
	}
	return busy, nil
}

// toBusyIntervals keeps opaque, non-cancelled events. All-day events span
// their dates in loc.
func toBusyIntervals(items []*gcal.Event, loc *time.Location) []BusyInterval {
	busy := make([]BusyInterval, 0, len(items))
	for _, item := range items {
		if item == nil || item.Status == "cancelled" || item.Transparency == "transparent" {
			continue
		}
		if item.Start == nil || item.End == nil {
			continue
		}
		start, end, ok := eventBounds(item.Start, item.End, loc)
		if !ok || !end.After(start) {
			continue
		}
		busy = append(busy, BusyInterval{Start: start, End: end, Summary: item.Summary})
	}
	return busy
}

func eventBounds(startAt, endAt *gcal.EventDateTime, loc *time.Location) (time.Time, time.Time, bool) {
	if startAt.DateTime != "" && endAt.DateTime != "" {
		start, err := time.Parse(time.RFC3339, startAt.DateTime)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		end, err := time.Parse(time.RFC3339, endAt.DateTime)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		return start, end, true
	}
	if startAt.Date != "" && endAt.Date != "" {
		start, err := time.ParseInLocation("2006-01-02", startAt.Date, loc)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		end, err := time.ParseInLocation("2006-01-02", endAt.Date, loc)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		return start, end, true
	}
	return time.Time{}, time.Time{}, false
}

func classifyGoogleError(ctx context.Context, err error) error {
	if kind := classifyContext(ctx, err); kind != nil {
		return wrap(kind, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		for _, item := range apiErr.Errors {
			switch item.Reason {
			case "rateLimitExceeded", "userRateLimitExceeded", "quotaExceeded":
				return wrap(ErrRateLimited, err)
			}
		}
		return wrap(classifyStatus(apiErr.Code), err)
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return wrap(ErrAuth, err)
	}
	return wrap(ErrUnavailable, err)
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}
