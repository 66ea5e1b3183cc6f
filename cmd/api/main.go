package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"v1tr0-backend/internal/app"
	"v1tr0-backend/internal/auth"
	"v1tr0-backend/internal/calendar"
	"v1tr0-backend/internal/clients"
	"v1tr0-backend/internal/config"
	"v1tr0-backend/internal/handlers"
	"v1tr0-backend/internal/meetings"
	"v1tr0-backend/internal/middleware"
	"v1tr0-backend/internal/notifications"
	"v1tr0-backend/internal/redisx"
	"v1tr0-backend/internal/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("store open failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer stores.Close(context.Background())

	rdb, err := app.OpenRedis(ctx, cfg, logger)
	if err != nil {
		logger.Error("redis connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	source, err := app.NewCalendarSource(ctx, cfg, logger)
	if err != nil {
		logger.Error("calendar setup failed", slog.String("provider", cfg.CalendarProvider), slog.String("error", err.Error()))
		os.Exit(1)
	}
	if source == nil {
		logger.Info("calendar overlay disabled")
	} else {
		logger.Info("calendar overlay enabled", slog.String("provider", source.Name()))
	}

	var jwtManager *auth.Manager
	if cfg.JWTSecret != "" {
		jwtManager = &auth.Manager{
			Secret:     []byte(cfg.JWTSecret),
			AccessTTL:  time.Duration(cfg.AccessTTLMinutes) * time.Minute,
			RefreshTTL: time.Duration(cfg.RefreshTTLMinutes) * time.Minute,
			Issuer:     "v1tr0-backend",
		}
	}

	val := validation.New()
	services := app.NewServices(cfg, stores, source, app.NewLocker(rdb), val, logger)

	mailer := notifications.NewBrevoClient(cfg.BrevoAPIKey, cfg.BrevoSenderEmail, cfg.BrevoSenderName, cfg.BrevoSandbox)
	if mailer == nil {
		logger.Info("brevo mailer disabled")
	} else {
		services.Meetings.SetNotifier(mailer)
		logger.Info("brevo mailer enabled", slog.String("sender", cfg.BrevoSenderEmail), slog.Bool("sandbox", cfg.BrevoSandbox))
	}

	window := time.Duration(cfg.RateLimitWindowSec) * time.Second
	var bookingLimiter middleware.Limiter = middleware.NewRateLimiter(cfg.RateLimitMeetings, window)
	if rdb != nil {
		bookingLimiter = middleware.NewRedisRateLimiter(rdb, cfg.RateLimitMeetings, window, "v1tr0:rl")
	}

	checks := []handlers.Check{{Name: "store", Ping: stores.Ping}}
	if rdb != nil {
		checks = append(checks, handlers.Check{Name: "redis", Ping: func(ctx context.Context) error { return redisx.Ping(ctx, rdb) }})
	}
	server := &handlers.Server{
		Cfg:    cfg,
		Auth:   jwtManager,
		Val:    val,
		Log:    logger,
		Checks: checks,
	}

	admin := middleware.RequireRole(cfg.AdminAPIKey, jwtManager, auth.RoleAdmin)
	meetingsHandler := meetings.NewHandler(services.Meetings, services.Availability, admin, logger)
	clientsHandler := clients.NewHandler(services.Clients, val, logger)
	calendarHandler := calendar.NewHandler(source, cfg.Timezone, cfg.CalendarTimeout, logger)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.FrontendOrigins))
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	r.Get("/healthz", server.Healthz)

	registerRoutes := func(api chi.Router) {
		api.Get("/meetings", meetingsHandler.Get)
		api.With(middleware.RateLimit(bookingLimiter, logger)).Post("/meetings", meetingsHandler.Create)
		api.With(admin).Put("/meetings", meetingsHandler.Update)
		api.With(admin).Delete("/meetings", meetingsHandler.Cancel)

		api.Get("/calendar-availability", calendarHandler.Get)

		api.Group(func(protected chi.Router) {
			protected.Use(admin)
			protected.Get("/clients", clientsHandler.Get)
			protected.Post("/clients", clientsHandler.Save)
			protected.Put("/clients", clientsHandler.Update)
			protected.Delete("/clients", clientsHandler.Delete)
		})

		api.Route("/admin", func(a chi.Router) {
			a.Post("/login", server.AdminLogin)
			a.Post("/refresh", server.AdminRefresh)
			a.Post("/logout", server.AdminLogout)
		})
	}

	r.Route("/api", registerRoutes)
	r.Route("/api/v1", registerRoutes)

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", slog.String("addr", cfg.ServerAddr), slog.String("store", stores.Backend), slog.String("timezone", cfg.Timezone.String()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
