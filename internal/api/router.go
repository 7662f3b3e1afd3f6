package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/elliotnash/piopener/internal/door"
)

// healthCheckTimeout bounds each component check made by /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Health check (no auth required)
	r.Get("/health", s.handleHealth)

	// WebSocket (auth via ticket or bearer, validated in handler)
	r.Get("/ws", s.handleWebSocket)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/toggle", s.commandHandler(door.CommandToggle))
		r.Post("/open", s.commandHandler(door.CommandOpen))
		r.Post("/close", s.commandHandler(door.CommandClose))

		r.Get("/status", s.handleStatus)
		r.Get("/watch-status", s.handleWatchStatus)
		r.Get("/history", s.handleHistory)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/token", s.handleIssueToken)
			r.Post("/ws-ticket", s.handleWSTicket)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "no such route")
	})

	return r
}

// handleHealth returns the server health status with the door status and
// the result of each component check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	components := make(map[string]string, len(s.checks))
	for name, checker := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := checker.HealthCheck(ctx)
		cancel()
		if err != nil {
			status = "degraded"
			components[name] = err.Error()
			continue
		}
		components[name] = "ok"
	}

	resp := map[string]any{
		"status":  status,
		"version": s.version,
		"door":    s.door.State().Status,
	}
	if len(components) > 0 {
		resp["components"] = components
	}
	writeJSON(w, http.StatusOK, resp)
}
