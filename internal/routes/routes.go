package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/lexia-platform/auth-service/internal/config"
	"github.com/lexia-platform/auth-service/internal/handlers"
	"github.com/lexia-platform/auth-service/internal/middleware"
	"github.com/lexia-platform/auth-service/internal/token"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	tokens *token.Service,
	authHandler *handlers.AuthHandler,
	twoFactorHandler *handlers.TwoFactorHandler,
	oauthHandler *handlers.OAuthHandler,
	healthHandler *handlers.HealthHandler,
) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	auth := api.Group("/auth")

	// Credential-bearing endpoints get a stricter limit: 10 req/min per IP
	strict := limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	})

	auth.Post("/register", strict, authHandler.Register)
	auth.Post("/login", strict, authHandler.Login)
	auth.Post("/refresh", strict, authHandler.Refresh)
	auth.Get("/verify-email", authHandler.VerifyEmail)
	auth.Post("/verify-email", authHandler.VerifyEmail)
	auth.Post("/resend-verification", strict, authHandler.ResendVerification)
	auth.Post("/forgot-password", strict, authHandler.ForgotPassword)
	auth.Post("/reset-password", strict, authHandler.ResetPassword)

	// Google OAuth web flow (public) and credential verification
	auth.Get("/google", oauthHandler.GoogleRedirect)
	auth.Get("/google/callback", oauthHandler.GoogleCallback)
	auth.Post("/google/verify", strict, oauthHandler.GoogleVerify)

	jwt := middleware.JWTProtected(tokens)
	full := middleware.FullSessionOnly()

	// The 2FA login step is the only route that accepts the intermediate
	// token issued after the password check.
	auth.Post("/2fa/verify-login", jwt, strict, authHandler.VerifyTwoFactorLogin)

	// Everything below requires a full session token.
	auth.Post("/logout", jwt, full, authHandler.Logout)
	auth.Post("/logout-all", jwt, full, authHandler.LogoutAll)
	auth.Get("/me", jwt, full, authHandler.Me)
	auth.Put("/me", jwt, full, authHandler.UpdateMe)
	auth.Get("/sessions", jwt, full, authHandler.Sessions)
	auth.Get("/history", jwt, full, authHandler.History)

	auth.Post("/2fa/setup", jwt, full, twoFactorHandler.Setup)
	auth.Post("/2fa/enable", jwt, full, twoFactorHandler.Enable)
	auth.Post("/2fa/disable", jwt, full, twoFactorHandler.Disable)
	auth.Post("/2fa/verify", jwt, full, twoFactorHandler.Verify)
	auth.Post("/2fa/verify-backup", jwt, full, twoFactorHandler.VerifyBackup)
	auth.Post("/2fa/regenerate-backup-codes", jwt, full, twoFactorHandler.RegenerateBackupCodes)
	auth.Get("/2fa/status", jwt, full, twoFactorHandler.Status)

	auth.Post("/google/link", jwt, full, oauthHandler.GoogleLink)
	auth.Post("/google/unlink", jwt, full, oauthHandler.GoogleUnlink)
	auth.Get("/linked-accounts", jwt, full, oauthHandler.LinkedAccounts)

	admin := auth.Group("/admin", jwt, full, middleware.AdminRequired(cfg))
	admin.Get("/stats", authHandler.Stats)
}
