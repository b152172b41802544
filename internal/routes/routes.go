package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MaxMateus/ms-auth/internal/auth"
	"github.com/MaxMateus/ms-auth/internal/handlers"
	"github.com/MaxMateus/ms-auth/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	mfaHandler *handlers.MfaHandler,
	validator auth.TokenValidator,
) {
	authLimit := middleware.RateLimitByIP(middleware.DefaultAuthRateLimit())
	codeLimit := middleware.RateLimitByIP(middleware.DefaultCodeRateLimit())

	// Public routes. Refresh reads its own Authorization header; the mfa
	// send and verify routes resolve an optional bearer identity themselves
	// so the email flow works before the first login.
	router.With(authLimit).Post("/auth/register", authHandler.Register)
	router.With(authLimit).Post("/auth/login", authHandler.Login)
	router.With(authLimit).Post("/auth/refresh", authHandler.Refresh)
	router.With(codeLimit).Post("/mfa/send", mfaHandler.Send)
	router.With(codeLimit).Post("/mfa/verify", mfaHandler.Verify)
	router.With(codeLimit).Get("/mfa/verify-link", mfaHandler.VerifyLink)

	// Protected routes
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(validator))

		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
		r.Get("/mfa/methods", mfaHandler.ListMethods)
	})
}
