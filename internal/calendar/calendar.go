package calendar

import (
	"context"
	"errors"
	"net/http"
	"time"
)

var (
	ErrNotConfigured = errors.New("calendar not configured")
	ErrAuth          = errors.New("calendar authentication failed")
	ErrRateLimited   = errors.New("calendar rate limit exceeded")
	ErrTimeout       = errors.New("calendar request timed out")
	ErrUnavailable   = errors.New("calendar unavailable")
)

// BusyInterval is an event read from an external calendar.
type BusyInterval struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Summary string    `json:"summary"`
}

// Source lists busy intervals intersecting [from, to).
type Source interface {
	Name() string
	BusyIntervals(ctx context.Context, from, to time.Time) ([]BusyInterval, error)
}

// StatusFor maps a classified calendar error to the HTTP status returned
// alongside fallback availability.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrAuth):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusOK
	}
}

// classifyStatus turns an upstream HTTP status into one of the sentinels.
func classifyStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrAuth
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return ErrUnavailable
	}
}

func classifyContext(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return nil
}

type classifiedError struct {
	kind error
	err  error
}

func (e *classifiedError) Error() string {
	if e.err == nil {
		return e.kind.Error()
	}
	return e.kind.Error() + ": " + e.err.Error()
}

func (e *classifiedError) Unwrap() []error {
	return []error{e.kind, e.err}
}

func wrap(kind, err error) error {
	return &classifiedError{kind: kind, err: err}
}
