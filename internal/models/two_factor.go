package models

import (
	"time"

	"github.com/google/uuid"
)

// TwoFactorAuth holds the TOTP seed for a user. A row with Enabled=false is a
// pending (or disabled) configuration; only Enabled=true rows take part in
// login and code verification.
type TwoFactorAuth struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UsuarioID  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"usuario_id"`
	Secret     string     `gorm:"not null;size:64" json:"-"`
	Enabled    bool       `gorm:"default:false" json:"enabled"`
	EnabledAt  *time.Time `json:"enabled_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	User       User       `gorm:"foreignKey:UsuarioID" json:"-"`
}

// TwoFactorBackupCode is one hashed single-use recovery code. UsedAt is set by
// a conditional update so a code can never be consumed twice.
type TwoFactorBackupCode struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UsuarioID uuid.UUID  `gorm:"type:uuid;not null;index" json:"usuario_id"`
	CodeHash  string     `gorm:"not null;size:64;index" json:"-"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
