package routes

import (
	"github.com/connectcrm/auth-service/internal/auth"
	"github.com/connectcrm/auth-service/internal/handlers"
	"github.com/connectcrm/auth-service/internal/middleware"
	"github.com/connectcrm/auth-service/internal/models"
	"github.com/connectcrm/auth-service/internal/repositories"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	twoFactorHandler *handlers.TwoFactorHandler,
	securityLogHandler *handlers.SecurityLogHandler,
	adminHandler *handlers.AdminHandler,
	tokenManager *auth.TokenManager,
	accountRepo *repositories.AccountRepository,
) {
	loginLimit := middleware.DefaultLoginRateLimit()
	resendLimit := middleware.DefaultResendRateLimit()

	// Public routes - no session required. The login endpoint also handles
	// challenge completion when a pending-login cookie is present.
	router.With(middleware.RateLimitByIP(loginLimit)).Post("/auth/login", authHandler.Login)
	router.With(middleware.RateLimitByIP(resendLimit)).Post("/auth/login/send-code", authHandler.SendLoginCode)
	router.With(middleware.RateLimitByIP(loginLimit)).Post("/auth/register", authHandler.Register)
	router.With(middleware.RateLimitByIP(resendLimit)).Post("/auth/forgot-password", authHandler.ForgotPassword)
	router.With(middleware.RateLimitByIP(loginLimit)).Post("/auth/reset-password", authHandler.ResetPassword)

	// Protected routes - valid session required
	router.Group(func(r chi.Router) {
		r.Use(auth.SessionMiddleware(tokenManager))

		r.Post("/auth/logout", authHandler.Logout)

		r.Route("/api/2fa", func(r chi.Router) {
			r.Post("/setup", twoFactorHandler.Setup)
			r.Post("/verify", twoFactorHandler.Verify)
			r.Post("/disable", twoFactorHandler.Disable)
			r.With(middleware.RateLimitByIP(resendLimit)).Post("/send-code", twoFactorHandler.SendCode)
		})

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(accountRepo, models.RoleAdmin))
			r.Get("/settings/security-logs", securityLogHandler.List)
			r.Post("/admin/backup", adminHandler.RunBackup)
		})
	})
}
