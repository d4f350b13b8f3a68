package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Put("/credentials", s.handleSetCredentials)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)

				r.Route("/{dsn}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Post("/command", s.handleCommand)
					r.Post("/clean-rooms", s.handleCleanRooms)
				})
			})
		})
	})

	return r
}

// handleHealth returns the bridge's aggregate condition.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := s.engine.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status.Level.String(),
		"message": status.Message,
		"since":   status.Since,
		"devices": len(s.engine.Devices()),
		"version": s.version,
	})
}
