package dto

import "time"

type TwoFactorSetupResponse struct {
	Secret      string   `json:"secret"`
	OtpauthURL  string   `json:"otpauthUrl"`
	QRCode      string   `json:"qrCode"`
	BackupCodes []string `json:"backupCodes"`
}

type TwoFactorCodeRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type TwoFactorBackupCodeRequest struct {
	Code string `json:"code" validate:"required,len=9"`
}

type TwoFactorPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

type TwoFactorStatusResponse struct {
	Enabled          bool       `json:"enabled"`
	BackupCodesCount int64      `json:"backupCodesCount"`
	LastUsedAt       *time.Time `json:"lastUsedAt,omitempty"`
}

type BackupCodesResponse struct {
	BackupCodes []string `json:"backupCodes"`
}
