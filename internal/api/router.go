package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/moonseer/church-planner-core/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, msgNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/register", s.handleRegister)
		r.With(s.loginRateLimitMiddleware).Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)

		// Security-event stream (auth via ticket, validated in handler)
		r.Get("/security/stream", s.handleStream)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)
			r.Post("/auth/password", s.handleChangePassword)

			r.Route("/churches", func(r chi.Router) {
				r.Post("/", s.handleCreateChurch)
				r.With(s.requirePermission(auth.PermTenantsAssign)).Get("/", s.handleListChurches)
				r.Get("/{id}", s.handleGetChurch)
			})

			r.Route("/events", func(r chi.Router) {
				r.Get("/", s.handleListEvents)
				r.Get("/{id}", s.handleGetEvent)

				r.Group(func(r chi.Router) {
					r.Use(s.requirePermission(auth.PermEventsManage))
					r.Post("/", s.handleCreateEvent)
					r.Patch("/{id}", s.handleUpdateEvent)
					r.Delete("/{id}", s.handleDeleteEvent)
				})
			})

			r.Route("/accounts", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(s.requirePermission(auth.PermAccountsManage))
					r.Get("/", s.handleListAccounts)
					r.Patch("/{id}/role", s.handleSetRole)
					r.Patch("/{id}/active", s.handleSetActive)
					r.Post("/{id}/unlock", s.handleUnlock)
				})
				r.With(s.requirePermission(auth.PermTenantsAssign)).Put("/{id}/tenant", s.handleAssignTenant)
			})

			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermAuditRead))
				r.Get("/audit", s.handleListAuditLogs)
				r.Post("/security/stream/ticket", s.handleStreamTicket)
			})
		})
	})

	return r
}
