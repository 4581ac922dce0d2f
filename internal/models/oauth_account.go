package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const ProviderGoogle = "google"

// OAuthAccount links an external identity to a user. Unique per
// (provider, provider_account_id); one external identity maps to exactly one
// user, a user may hold several provider links.
type OAuthAccount struct {
	ID                uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UsuarioID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"usuario_id"`
	Provider          string         `gorm:"size:30;not null;uniqueIndex:idx_oauth_provider_account" json:"provider"`
	ProviderAccountID string         `gorm:"size:255;not null;uniqueIndex:idx_oauth_provider_account" json:"provider_account_id"`
	AccessToken       *string        `json:"-"`
	RefreshToken      *string        `json:"-"`
	TokenExpiresAt    *time.Time     `json:"token_expires_at,omitempty"`
	ProfileData       datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"profile_data"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	User              User           `gorm:"foreignKey:UsuarioID" json:"-"`
}
