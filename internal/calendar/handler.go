package calendar

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"v1tr0-backend/internal/httpx"
	"v1tr0-backend/internal/middleware"
	"v1tr0-backend/internal/transport"
)

const (
	DefaultDays = 14
	MaxDays     = 60
)

type Handler struct {
	source   Source
	location *time.Location
	timeout  time.Duration
	now      func() time.Time
	log      *slog.Logger
}

// NewHandler accepts a nil source; every request then gets the static
// fallback.
func NewHandler(source Source, location *time.Location, timeout time.Duration, log *slog.Logger) *Handler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Handler{
		source:   source,
		location: location,
		timeout:  timeout,
		now:      time.Now,
		log:      log,
	}
}

// Get serves busy time and free slots for the next days. Upstream
// failures never surface as a 500: the body always carries a usable
// availability list flagged with fallback.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := middleware.LoggerFrom(r, h.log)

	days, err := httpx.ParseIntParam(r.URL.Query().Get("days"), DefaultDays, MaxDays)
	if err != nil {
		log.Warn("calendar availability: invalid days", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, "days must be between 1 and 60", map[string]string{"days": "range"})
		return
	}

	now := h.now().In(h.location)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.location)

	if h.source == nil {
		log.Info("calendar availability: not configured, static fallback", slog.Int("days", days))
		h.writeFallback(w, now, days, ErrNotConfigured)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	busy, err := h.source.BusyIntervals(ctx, start, start.AddDate(0, 0, days))
	if err != nil {
		log.Warn("calendar availability: fallback",
			slog.String("source", h.source.Name()),
			slog.Int("status", StatusFor(err)),
			slog.String("error", err.Error()),
		)
		h.writeFallback(w, now, days, err)
		return
	}

	log.Info("calendar availability: ok", slog.String("source", h.source.Name()), slog.Int("busy", len(busy)))
	transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"source":       h.source.Name(),
		"timezone":     h.location.String(),
		"busy":         busy,
		"availability": FreeSlots(start, days, busy, h.location),
		"fallback":     false,
	})
}

func (h *Handler) writeFallback(w http.ResponseWriter, now time.Time, days int, cause error) {
	status := StatusFor(cause)
	payload := map[string]interface{}{
		"success":      status == http.StatusOK,
		"timezone":     h.location.String(),
		"busy":         []BusyInterval{},
		"availability": StaticAvailability(now, days, h.location),
		"fallback":     true,
		"reason":       reasonFor(cause),
	}
	if status != http.StatusOK {
		payload["error"] = reasonFor(cause)
	}
	transport.WriteJSON(w, status, payload)
}

func reasonFor(err error) string {
	for _, kind := range []error{ErrNotConfigured, ErrAuth, ErrRateLimited, ErrTimeout, ErrUnavailable} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout.Error()
	}
	return ErrUnavailable.Error()
}
