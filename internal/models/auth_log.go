package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Audit event types. The table is append-only; lockout-window counting and
// suspicious-activity heuristics read from it.
const (
	EventRegister               = "register"
	EventSuccessfulLogin        = "successful_login"
	EventFailedLogin            = "failed_login"
	EventLogout                 = "logout"
	EventLogoutAll              = "logout_all"
	EventEmailVerified          = "email_verified"
	EventPasswordResetRequested = "password_reset_requested"
	EventPasswordResetCompleted = "password_reset_completed"
	EventTwoFactorEnabled       = "2fa_enabled"
	EventTwoFactorDisabled      = "2fa_disabled"
	EventBackupCodeUsed         = "2fa_backup_code_used"
	EventBackupCodesRegenerated = "2fa_backup_codes_regenerated"
	EventOAuthLogin             = "oauth_login"
	EventOAuthRegister          = "oauth_register"
	EventOAuthLinked            = "oauth_linked"
	EventOAuthUnlinked          = "oauth_unlinked"
)

type AuthLog struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UsuarioID     *uuid.UUID     `gorm:"type:uuid;index" json:"usuario_id,omitempty"`
	Email         string         `gorm:"size:255;not null;index" json:"email"`
	EventType     string         `gorm:"size:40;not null;index" json:"event_type"`
	Success       bool           `gorm:"not null" json:"success"`
	IPAddress     *string        `gorm:"size:45;index" json:"ip_address,omitempty"`
	UserAgent     *string        `gorm:"size:512" json:"user_agent,omitempty"`
	DeviceInfo    *string        `gorm:"size:255" json:"device_info,omitempty"`
	FailureReason *string        `gorm:"size:255" json:"failure_reason,omitempty"`
	Metadata      datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"metadata"`
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`
}
