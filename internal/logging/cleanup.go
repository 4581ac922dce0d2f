package logging

import (
	"log/slog"
	"time"

	"github.com/lexia-platform/auth-service/internal/models"
	"github.com/lexia-platform/auth-service/internal/repository"
	"gorm.io/gorm"
)

// Retention windows.
const (
	systemLogRetention    = 30 * 24 * time.Hour
	authLogRetention      = 90 * 24 * time.Hour
	refreshTokenRetention = 30 * 24 * time.Hour
)

// StartCleanup runs a daily goroutine that prunes old system logs, the audit
// trail past retention, long-expired refresh tokens and expired one-time
// tokens.
func StartCleanup(
	db *gorm.DB,
	refreshTokens repository.RefreshTokenStore,
	verificationTokens repository.VerificationTokenStore,
	resetTokens repository.PasswordResetStore,
	authLogs repository.AuthLogStore,
	done chan struct{},
) {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				now := time.Now()

				result := db.Where("timestamp < ?", now.Add(-systemLogRetention)).Delete(&models.SystemLog{})
				if result.Error != nil {
					slog.Error("system log cleanup failed", "error", result.Error)
				}

				if n, err := authLogs.PurgeOld(now.Add(-authLogRetention)); err != nil {
					slog.Error("auth log cleanup failed", "error", err)
				} else if n > 0 {
					slog.Info("auth log cleanup completed", "deleted", n)
				}

				if n, err := refreshTokens.PurgeExpired(now.Add(-refreshTokenRetention)); err != nil {
					slog.Error("refresh token cleanup failed", "error", err)
				} else if n > 0 {
					slog.Info("refresh token cleanup completed", "deleted", n)
				}

				if _, err := verificationTokens.PurgeExpired(now.Add(-7 * 24 * time.Hour)); err != nil {
					slog.Error("verification token cleanup failed", "error", err)
				}
				if _, err := resetTokens.PurgeExpired(now.Add(-7 * 24 * time.Hour)); err != nil {
					slog.Error("reset token cleanup failed", "error", err)
				}
			case <-done:
				return
			}
		}
	}()
}
