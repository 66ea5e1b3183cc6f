package clients

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"v1tr0-backend/internal/httpx"
	"v1tr0-backend/internal/middleware"
	"v1tr0-backend/internal/transport"
	"v1tr0-backend/internal/validation"
)

type Handler struct {
	service *Service
	val     *validation.Validator
	log     *slog.Logger
}

func NewHandler(service *Service, val *validation.Validator, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		val:     val,
		log:     log,
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := middleware.LoggerFrom(r, h.log)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if email := strings.TrimSpace(r.URL.Query().Get("email")); email != "" {
		c, err := h.service.Get(ctx, email)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				log.Warn("clients get: not found", slog.String("email", email))
				transport.WriteError(w, http.StatusNotFound, "client not found", nil)
				return
			}
			log.Error("clients get: database error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
			return
		}
		log.Info("clients get: ok", slog.String("client_id", c.ID))
		transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{"client": c})
		return
	}

	limit, offset, err := httpx.ParseLimitOffset(r.URL.Query(), 50, 200)
	if err != nil {
		log.Warn("clients list: invalid query", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	items, total, err := h.service.List(ctx, limit, offset)
	if err != nil {
		log.Error("clients list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}
	log.Info("clients list: ok", slog.Int("count", len(items)))
	transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"clients": items,
		"limit":   limit,
		"offset":  offset,
		"total":   total,
	})
}

func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	log := middleware.LoggerFrom(r, h.log)

	var req SaveRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("clients save: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = NormalizeEmail(req.Email)
	if err := h.val.Struct(req); err != nil {
		log.Warn("clients save: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, created, err := h.service.Save(ctx, req)
	if err != nil {
		log.Error("clients save: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	log.Info("clients save: ok", slog.String("client_id", c.ID), slog.Bool("created", created))
	transport.WriteSuccess(w, status, map[string]interface{}{"client": c, "created": created})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := middleware.LoggerFrom(r, h.log)

	var req UpdateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("clients update: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	req.Email = NormalizeEmail(req.Email)
	if err := h.val.Struct(req); err != nil {
		log.Warn("clients update: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.service.Update(ctx, req)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("clients update: not found", slog.String("email", req.Email))
			transport.WriteError(w, http.StatusNotFound, "client not found", nil)
			return
		}
		log.Error("clients update: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}
	log.Info("clients update: ok", slog.String("client_id", c.ID))
	transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{"client": c})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	log := middleware.LoggerFrom(r, h.log)
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		log.Warn("clients delete: missing email")
		transport.WriteError(w, http.StatusBadRequest, "missing email", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.service.Delete(ctx, email); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			log.Warn("clients delete: not found", slog.String("email", email))
			transport.WriteError(w, http.StatusNotFound, "client not found", nil)
		case errors.Is(err, ErrHasScheduledMeetings):
			log.Warn("clients delete: has scheduled meetings", slog.String("email", email))
			transport.WriteError(w, http.StatusConflict, "client has scheduled meetings", nil)
		default:
			log.Error("clients delete: database error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		}
		return
	}
	log.Info("clients delete: ok", slog.String("email", email))
	transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{"deleted": true})
}
