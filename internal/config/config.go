package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port        string
	Env         string
	CORSOrigins string
	FrontendURL string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTAccessSecret   string
	JWTRefreshSecret  string
	JWTAccessExpiry   time.Duration
	JWTRefreshExpiry  time.Duration
	JWTIssuer         string
	JWTAudience       string
	TwoFactorTempTTL  time.Duration

	// Account lockout
	MaxFailedAttempts int
	LockoutDuration   time.Duration

	// SMTP
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	// Google OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string

	// Admin
	AdminEmails string

	// Sentry
	SentryDSN string
}

func Load() *Config {
	// .env is a development convenience; missing file is not an error.
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "4001"),
		Env:         getEnv("APP_ENV", "development"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "lexia_auth"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTAccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
		JWTRefreshSecret: getEnv("JWT_REFRESH_SECRET", ""),
		JWTAccessExpiry:  parseDuration(getEnv("JWT_ACCESS_EXPIRY", "15m"), 15*time.Minute),
		JWTRefreshExpiry: parseDuration(getEnv("JWT_REFRESH_EXPIRY", "168h"), 168*time.Hour),
		JWTIssuer:        getEnv("JWT_ISSUER", "lexia-auth-service"),
		JWTAudience:      getEnv("JWT_AUDIENCE", "lexia-api"),
		TwoFactorTempTTL: parseDuration(getEnv("TWO_FACTOR_TEMP_TTL", "5m"), 5*time.Minute),

		MaxFailedAttempts: 5,
		LockoutDuration:   parseDuration(getEnv("LOCKOUT_DURATION", "15m"), 15*time.Minute),

		SMTPHost: getEnv("SMTP_HOST", ""),
		SMTPPort: parseInt(getEnv("SMTP_PORT", "587"), 587),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getEnv("SMTP_PASS", ""),
		SMTPFrom: getEnv("SMTP_FROM", getEnv("SMTP_USER", "")),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleCallbackURL:  getEnv("GOOGLE_CALLBACK_URL", "http://localhost:4001/api/auth/google/callback"),

		AdminEmails: getEnv("ADMIN_EMAILS", ""),

		SentryDSN: getEnv("SENTRY_DSN", ""),
	}
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate fails startup when required secrets are absent. In development
// missing JWT secrets fall back to throwaway values so the service can run
// locally without a .env file.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.JWTAccessSecret == "" {
			return fmt.Errorf("JWT_ACCESS_SECRET is required in production")
		}
		if c.JWTRefreshSecret == "" {
			return fmt.Errorf("JWT_REFRESH_SECRET is required in production")
		}
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD is required in production")
		}
		return nil
	}

	if c.JWTAccessSecret == "" {
		c.JWTAccessSecret = "dev_access_secret_change_me"
	}
	if c.JWTRefreshSecret == "" {
		c.JWTRefreshSecret = "dev_refresh_secret_change_me"
	}
	return nil
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return fallback
	}
	return n
}
