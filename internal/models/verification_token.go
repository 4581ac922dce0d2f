package models

import (
	"time"

	"github.com/google/uuid"
)

// VerificationToken is a single-use email verification token. UsedAt doubles
// as the invalidation marker: superseded tokens are stamped without ever
// having verified anything.
type VerificationToken struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UsuarioID uuid.UUID  `gorm:"type:uuid;not null;index" json:"usuario_id"`
	Token     string     `gorm:"uniqueIndex;not null;size:64" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	Attempts  int        `gorm:"default:0" json:"attempts"`
	IPAddress *string    `gorm:"size:45" json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	User      User       `gorm:"foreignKey:UsuarioID" json:"-"`
}

// PasswordResetToken is a single-use password recovery token.
type PasswordResetToken struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UsuarioID uuid.UUID  `gorm:"type:uuid;not null;index" json:"usuario_id"`
	Token     string     `gorm:"uniqueIndex;not null;size:64" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	Attempts  int        `gorm:"default:0" json:"attempts"`
	IPAddress *string    `gorm:"size:45" json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	User      User       `gorm:"foreignKey:UsuarioID" json:"-"`
}
