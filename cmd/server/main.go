package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/lexia-platform/auth-service/internal/config"
	"github.com/lexia-platform/auth-service/internal/database"
	"github.com/lexia-platform/auth-service/internal/handlers"
	"github.com/lexia-platform/auth-service/internal/logging"
	"github.com/lexia-platform/auth-service/internal/mailer"
	"github.com/lexia-platform/auth-service/internal/middleware"
	"github.com/lexia-platform/auth-service/internal/repository"
	"github.com/lexia-platform/auth-service/internal/routes"
	"github.com/lexia-platform/auth-service/internal/services"
	"github.com/lexia-platform/auth-service/internal/token"
)

func main() {
	// Structured logging (JSON to stdout)
	stdoutHandler := logging.Setup()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Database
	db, err := database.Connect(cfg)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(db)
	slog.SetDefault(slog.New(logging.Tee(stdoutHandler, pgLogHandler)))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	refreshRepo := repository.NewRefreshTokenRepository(db)
	verificationRepo := repository.NewVerificationTokenRepository(db)
	resetRepo := repository.NewPasswordResetRepository(db)
	twoFactorRepo := repository.NewTwoFactorRepository(db)
	oauthRepo := repository.NewOAuthRepository(db)
	authLogRepo := repository.NewAuthLogRepository(db)

	// Retention cleanup (daily)
	cleanupDone := make(chan struct{})
	logging.StartCleanup(db, refreshRepo, verificationRepo, resetRepo, authLogRepo, cleanupDone)

	// Services
	mail := mailer.New(cfg)
	tokens := token.NewService(cfg)
	googleClient := services.NewGoogleClient(cfg.GoogleClientID, cfg.GoogleClientSecret)

	authService := services.NewAuthService(userRepo, refreshRepo, verificationRepo, resetRepo, authLogRepo, tokens, mail, cfg)
	twoFactorService := services.NewTwoFactorService(userRepo, twoFactorRepo, authLogRepo, mail)
	oauthService := services.NewOAuthService(userRepo, oauthRepo, refreshRepo, authLogRepo, tokens, googleClient)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, twoFactorService, cfg)
	twoFactorHandler := handlers.NewTwoFactorHandler(twoFactorService)
	oauthHandler := handlers.NewOAuthHandler(oauthService, cfg)
	healthHandler := handlers.NewHealthHandler(db)

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.Env,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	routes.Setup(app, cfg, tokens, authHandler, twoFactorHandler, oauthHandler, healthHandler)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	close(cleanupDone)
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "error interno del servidor"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "error interno del servidor"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
