package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"v1tr0-backend/internal/middleware"
	"v1tr0-backend/internal/transport"
)

func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	results := make(map[string]string, len(s.Checks))
	healthy := true
	for _, c := range s.Checks {
		if err := c.Ping(ctx); err != nil {
			healthy = false
			results[c.Name] = err.Error()
			middleware.LoggerFrom(r, s.Log).Error("health check: failed", slog.String("check", c.Name), slog.String("error", err.Error()))
			continue
		}
		results[c.Name] = "ok"
	}

	if !healthy {
		transport.WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"success": false,
			"error":   "dependency unavailable",
			"checks":  results,
		})
		return
	}
	transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"env":    s.Cfg.Env,
		"checks": results,
	})
}
