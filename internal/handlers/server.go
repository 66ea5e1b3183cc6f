package handlers

import (
	"context"
	"log/slog"

	"v1tr0-backend/internal/auth"
	"v1tr0-backend/internal/config"
	"v1tr0-backend/internal/validation"
)

// Check is a named dependency check reported by /healthz.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// Server holds the endpoints that are not tied to a domain package:
// admin sessions and health.
type Server struct {
	Cfg    *config.Config
	Auth   *auth.Manager
	Val    *validation.Validator
	Log    *slog.Logger
	Checks []Check
}
