package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// HealthChecker reports whether the storage backend is reachable.
type HealthChecker func(ctx context.Context) error

type RouterConfig struct {
	Venues    *VenueHandler
	Bookings  *BookingHandler
	Conflicts *ConflictHandler
	Imports   *ImportHandler
	Health    HealthChecker
	// Admin guards the import routes. Without it they are not mounted.
	Admin                 AdminVerifier
	ConflictRatePerMinute int
	Logger                *slog.Logger
	Middleware            []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := defaultLogger(cfg.Logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	for _, mw := range cfg.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.Get("/healthz", healthHandler(cfg.Health, logger))

	if cfg.Venues != nil {
		r.Route("/venues", func(r chi.Router) {
			r.Get("/", cfg.Venues.List)
			r.Post("/", cfg.Venues.Create)
			r.Get("/{ref}", cfg.Venues.Get)
			r.Put("/{ref}", cfg.Venues.Update)
			r.Get("/{ref}/events", cfg.Venues.Events)
			r.Get("/{ref}/calendar.ics", cfg.Venues.Calendar)
		})
	}

	r.Route("/events", func(r chi.Router) {
		if cfg.Conflicts != nil {
			r.With(ConflictRateLimit(cfg.ConflictRatePerMinute, logger)).Get("/conflicts", cfg.Conflicts.Conflicts)
			r.Get("/date_options", cfg.Conflicts.DateOptions)
			r.Get("/time_options", cfg.Conflicts.StartTimeOptions)
			r.Get("/end_time_options", cfg.Conflicts.EndTimeOptions)
		}
		if cfg.Bookings != nil {
			r.Post("/", cfg.Bookings.Create)
			r.Get("/{id}", cfg.Bookings.Get)
			r.Put("/{id}", cfg.Bookings.Update)
			r.Delete("/{id}", cfg.Bookings.Delete)
		}
	})

	if cfg.Imports != nil && cfg.Admin != nil {
		r.Route("/admin/imports", func(r chi.Router) {
			r.Use(RequireAdmin(cfg.Admin, logger))
			r.Post("/", cfg.Imports.Create)
			r.Get("/{id}", cfg.Imports.Show)
			r.Post("/{id}/approve_all", cfg.Imports.ApproveAll)
			r.Get("/{id}/summary", cfg.Imports.Summary)
			r.Delete("/{id}", cfg.Imports.Delete)
			r.Delete("/{id}/rows/{rowID}", cfg.Imports.DeleteRow)
		})
	}

	return r
}

func healthHandler(check HealthChecker, logger *slog.Logger) http.HandlerFunc {
	responder := newResponder(logger)
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				responder.loggerFor(r.Context()).ErrorContext(r.Context(), "health check failed", "error", err)
				responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}
		responder.writeJSON(r.Context(), w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

type healthResponse struct {
	Status string `json:"status"`
}
