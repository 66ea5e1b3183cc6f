package meetings

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"v1tr0-backend/internal/clients"
	"v1tr0-backend/internal/httpx"
	"v1tr0-backend/internal/lock"
	"v1tr0-backend/internal/middleware"
	"v1tr0-backend/internal/transport"
)

const (
	actionAvailableSlots = "available-slots"
	actionNextAvailable  = "next-available"
)

type Handler struct {
	service      *Service
	availability *Availability
	admin        func(http.Handler) http.Handler
	log          *slog.Logger
}

// NewHandler takes the admin middleware because GET serves both the
// public availability actions and the admin listing.
func NewHandler(service *Service, availability *Availability, admin func(http.Handler) http.Handler, log *slog.Logger) *Handler {
	return &Handler{
		service:      service,
		availability: availability,
		admin:        admin,
		log:          log,
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("action") {
	case actionAvailableSlots:
		h.availableSlots(w, r)
	case actionNextAvailable:
		h.nextAvailable(w, r)
	case "":
		h.admin(http.HandlerFunc(h.list)).ServeHTTP(w, r)
	default:
		middleware.LoggerFrom(r, h.log).Warn("meetings get: unknown action", slog.String("action", r.URL.Query().Get("action")))
		transport.WriteError(w, http.StatusBadRequest, "unknown action", nil)
	}
}

func (h *Handler) availableSlots(w http.ResponseWriter, r *http.Request) {
	log := middleware.LoggerFrom(r, h.log)
	query := r.URL.Query()

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	dates, err := httpx.ParseList(query, "dates")
	if err != nil {
		log.Warn("meetings availability: invalid dates", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if len(dates) > 0 {
		days, err := h.availability.GetAvailableSlotsBatch(ctx, dates)
		if err != nil {
			h.fail(w, log, "meetings availability", err)
			return
		}
		fallback := false
		for _, d := range days {
			fallback = fallback || d.Fallback
		}
		log.Info("meetings availability: ok", slog.Int("dates", len(days)), slog.Bool("fallback", fallback))
		transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{
			"timezone":     h.availability.Location().String(),
			"availability": days,
			"fallback":     fallback,
		})
		return
	}

	date := strings.TrimSpace(query.Get("date"))
	if date == "" {
		log.Warn("meetings availability: missing date")
		transport.WriteError(w, http.StatusBadRequest, "missing date", map[string]string{"date": "required"})
		return
	}
	day, err := h.availability.GetAvailableSlots(ctx, date)
	if err != nil {
		h.fail(w, log, "meetings availability", err)
		return
	}
	log.Info("meetings availability: ok", slog.String("date", date), slog.Bool("fallback", day.Fallback))
	transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"date":     day.Date,
		"timezone": h.availability.Location().String(),
		"slots":    day.Slots,
		"fallback": day.Fallback,
	})
}

func (h *Handler) nextAvailable(w http.ResponseWriter, r *http.Request) {
	log := middleware.LoggerFrom(r, h.log)
	from := strings.TrimSpace(r.URL.Query().Get("from"))

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	date, clock, found, err := h.availability.NextAvailable(ctx, from, NextAvailableIn)
	if err != nil {
		h.fail(w, log, "meetings next-available", err)
		return
	}
	if !found {
		log.Warn("meetings next-available: none found", slog.String("from", from))
		transport.WriteError(w, http.StatusNotFound, "no available slot in the next 30 days", nil)
		return
	}
	log.Info("meetings next-available: ok", slog.String("date", date), slog.String("time", clock))
	transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"date":     date,
		"time":     clock,
		"timezone": h.availability.Location().String(),
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	log := middleware.LoggerFrom(r, h.log)
	query := r.URL.Query()
	filter := ListFilter{
		Date:     strings.TrimSpace(query.Get("date")),
		Status:   strings.TrimSpace(query.Get("status")),
		ClientID: strings.TrimSpace(query.Get("clientId")),
	}
	if filter.Status != "" && filter.Status != StatusScheduled && filter.Status != StatusCompleted && filter.Status != StatusCancelled {
		log.Warn("meetings list: invalid status", slog.String("status", filter.Status))
		transport.WriteError(w, http.StatusBadRequest, "invalid status", map[string]string{"status": "oneof"})
		return
	}

	limit, offset, err := httpx.ParseLimitOffset(query, 50, MaxListLimit)
	if err != nil {
		log.Warn("meetings list: invalid query", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	filter.Limit, filter.Offset = limit, offset

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, total, err := h.service.List(ctx, filter)
	if err != nil {
		h.fail(w, log, "meetings list", err)
		return
	}
	log.Info("meetings list: ok", slog.String("date", filter.Date), slog.Int("count", len(items)), slog.Int64("total", total))
	transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"date":     filter.Date,
		"meetings": items,
		"limit":    limit,
		"offset":   offset,
		"total":    total,
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := middleware.LoggerFrom(r, h.log)

	body, err := httpx.ReadBody(r.Body)
	if err != nil {
		log.Warn("meetings create: unreadable body", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, "invalid body", nil)
		return
	}
	req, err := DecodeBookingRequest(body)
	if err != nil {
		h.fail(w, log, "meetings create", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	b, err := h.service.Create(ctx, req)
	if err != nil {
		h.fail(w, log, "meetings create", err)
		return
	}
	log.Info("meetings create: ok",
		slog.String("booking_id", b.ID),
		slog.String("date", b.Date),
		slog.String("time", b.Time),
	)
	transport.WriteSuccess(w, http.StatusCreated, map[string]interface{}{
		"meeting":     b,
		"canSchedule": true,
	})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := middleware.LoggerFrom(r, h.log)

	var req UpdateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("meetings update: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	b, err := h.service.Update(ctx, req)
	if err != nil {
		h.fail(w, log, "meetings update", err)
		return
	}
	log.Info("meetings update: ok", slog.String("booking_id", b.ID), slog.String("status", b.Status))
	transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{"meeting": b})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	log := middleware.LoggerFrom(r, h.log)
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		log.Warn("meetings cancel: missing id")
		transport.WriteError(w, http.StatusBadRequest, "missing id", map[string]string{"id": "required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	b, changed, err := h.service.Cancel(ctx, id)
	if err != nil {
		h.fail(w, log, "meetings cancel", err)
		return
	}
	log.Info("meetings cancel: ok", slog.String("booking_id", b.ID), slog.Bool("changed", changed))
	transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"meeting":   b,
		"cancelled": true,
	})
}

func (h *Handler) fail(w http.ResponseWriter, log *slog.Logger, area string, err error) {
	var (
		validationErr *ValidationError
		conflictErr   *ConflictError
	)
	switch {
	case errors.As(err, &validationErr):
		log.Warn(area+": validation error", slog.String("error", validationErr.Message))
		transport.WriteError(w, http.StatusBadRequest, validationErr.Message, validationErr.Details)
	case errors.As(err, &conflictErr):
		log.Warn(area+": "+conflictErr.Reason)
		transport.WriteJSON(w, http.StatusConflict, map[string]interface{}{
			"success":     false,
			"error":       conflictErr.Reason,
			"reason":      conflictErr.Reason,
			"canSchedule": false,
		})
	case errors.Is(err, ErrNotFound):
		log.Warn(area + ": not found")
		transport.WriteError(w, http.StatusNotFound, "meeting not found", nil)
	case errors.Is(err, clients.ErrNotFound):
		log.Warn(area + ": client not found")
		transport.WriteError(w, http.StatusNotFound, "client not found", nil)
	case errors.Is(err, lock.ErrLockTimeout):
		log.Warn(area+": lock timeout", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusServiceUnavailable, "scheduling busy, retry", nil)
	default:
		log.Error(area+": internal error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "internal error", nil)
	}
}
