package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account types. A "local" account authenticates with a password hash; a
// "google" account may have none and relies on its OAuth link instead.
const (
	AccountTypeLocal  = "local"
	AccountTypeGoogle = "google"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID                  uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email               string         `gorm:"not null;size:255;uniqueIndex" json:"email"`
	Nombre              string         `gorm:"not null;size:100" json:"nombre"`
	Apellido            string         `gorm:"not null;size:100" json:"apellido"`
	Telefono            *string        `gorm:"size:30" json:"telefono,omitempty"`
	PasswordHash        *string        `json:"-"`
	Rol                 string         `gorm:"size:20;default:'user'" json:"rol"`
	Activo              bool           `gorm:"default:true" json:"activo"`
	EmailVerified       bool           `gorm:"default:false" json:"email_verified"`
	EmailVerifiedAt     *time.Time     `json:"email_verified_at,omitempty"`
	TwoFactorEnabled    bool           `gorm:"default:false" json:"two_factor_enabled"`
	FailedLoginAttempts int            `gorm:"default:0" json:"-"`
	LockedUntil         *time.Time     `json:"-"`
	LastLoginAt         *time.Time     `json:"last_login_at,omitempty"`
	LastLoginIP         *string        `gorm:"size:45" json:"-"`
	AccountType         string         `gorm:"size:20;default:'local'" json:"account_type"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

// HasPassword reports whether the account can authenticate locally.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// IsLocked reports whether the account is inside a lockout window.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}
