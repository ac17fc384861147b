package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/opsdeck/authguard/internal/auth"
	"github.com/opsdeck/authguard/internal/guard"
	"github.com/opsdeck/authguard/internal/handlers"
	"github.com/opsdeck/authguard/internal/middleware"
)

const adminRequestsPerMinute = 60

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	guardAdminHandler *handlers.GuardAdminHandler,
	auditAdminHandler *handlers.AuditAdminHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *auth.TokenManager,
	g *guard.Guard,
) {
	router.Get("/health", healthHandler.Check)

	// Credential endpoints sit behind the abuse guard
	router.With(middleware.Admission(g)).Post("/auth/login", authHandler.Login)
	router.With(middleware.Admission(g)).Post("/auth/refresh", authHandler.RefreshToken)

	router.Get("/auth/attempts", authHandler.AttemptInfo)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokenManager))

		r.Post("/auth/logout", authHandler.Logout)

		// Admin-only routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireRole("admin"))
			r.Use(middleware.AdminRateLimit(adminRequestsPerMinute))

			r.Get("/blocks", guardAdminHandler.ListBlocks)
			r.Delete("/blocks", guardAdminHandler.Unblock)

			r.Route("/audit", func(r chi.Router) {
				r.Get("/files", auditAdminHandler.ListFiles)
				r.Get("/files/{filename}", auditAdminHandler.DownloadFile)
				r.Get("/logs", auditAdminHandler.QueryLogs)
				r.Get("/today", auditAdminHandler.Today)
				r.Get("/users/{id}", auditAdminHandler.UserReport)
				r.Get("/summary", auditAdminHandler.Summary)
				r.Get("/suspicious", auditAdminHandler.Suspicious)
				r.Post("/archive", auditAdminHandler.Archive)
			})
		})
	})
}
