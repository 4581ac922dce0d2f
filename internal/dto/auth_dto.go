package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/lexia-platform/auth-service/internal/models"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Nombre   string `json:"nombre" validate:"required,max=100"`
	Apellido string `json:"apellido" validate:"required,max=100"`
	Telefono string `json:"telefono,omitempty" validate:"omitempty,max=30"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type TwoFactorLoginRequest struct {
	Code         string `json:"code" validate:"required"`
	IsBackupCode bool   `json:"isBackupCode"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=128"`
}

type UpdateProfileRequest struct {
	Nombre   *string `json:"nombre,omitempty" validate:"omitempty,max=100"`
	Apellido *string `json:"apellido,omitempty" validate:"omitempty,max=100"`
	Telefono *string `json:"telefono,omitempty" validate:"omitempty,max=30"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
}

type UserResponse struct {
	ID               uuid.UUID  `json:"id"`
	Email            string     `json:"email"`
	Nombre           string     `json:"nombre"`
	Apellido         string     `json:"apellido"`
	Telefono         *string    `json:"telefono,omitempty"`
	Rol              string     `json:"rol"`
	EmailVerified    bool       `json:"emailVerified"`
	TwoFactorEnabled bool       `json:"twoFactorEnabled"`
	AccountType      string     `json:"accountType"`
	LastLoginAt      *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:               u.ID,
		Email:            u.Email,
		Nombre:           u.Nombre,
		Apellido:         u.Apellido,
		Telefono:         u.Telefono,
		Rol:              u.Rol,
		EmailVerified:    u.EmailVerified,
		TwoFactorEnabled: u.TwoFactorEnabled,
		AccountType:      u.AccountType,
		LastLoginAt:      u.LastLoginAt,
		CreatedAt:        u.CreatedAt,
	}
}

type AuthResponse struct {
	AccessToken           string       `json:"accessToken"`
	RefreshToken          string       `json:"refreshToken"`
	AccessTokenExpiresIn  int          `json:"accessTokenExpiresIn"`
	RefreshTokenExpiresIn int          `json:"refreshTokenExpiresIn"`
	User                  UserResponse `json:"user"`
}

// TwoFactorRequiredResponse is returned instead of AuthResponse when the
// account has 2FA enabled; the client completes login with the temp token.
type TwoFactorRequiredResponse struct {
	Requires2FA bool      `json:"requires2FA"`
	UserID      uuid.UUID `json:"userId"`
	TempToken   string    `json:"tempToken"`
}

type SessionResponse struct {
	ID         uuid.UUID `json:"id"`
	IPAddress  *string   `json:"ipAddress,omitempty"`
	UserAgent  *string   `json:"userAgent,omitempty"`
	DeviceInfo *string   `json:"deviceInfo,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
}
