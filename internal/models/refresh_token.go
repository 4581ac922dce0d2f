package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is the server-side record of an issued refresh token. Only a
// SHA-256 hash of the signed token is stored; the row, not the signature, is
// authoritative for whether the token may still be exchanged.
type RefreshToken struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UsuarioID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"usuario_id"`
	TokenHash  string     `gorm:"uniqueIndex;not null;size:64" json:"-"`
	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	Revoked    bool       `gorm:"default:false" json:"revoked"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	IPAddress  *string    `gorm:"size:45" json:"ip_address,omitempty"`
	UserAgent  *string    `gorm:"size:512" json:"user_agent,omitempty"`
	DeviceInfo *string    `gorm:"size:255" json:"device_info,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	User       User       `gorm:"foreignKey:UsuarioID" json:"-"`
}

// Usable reports whether the token can still be exchanged for a new pair.
func (t *RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}
