package services

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image/png"
	"log/slog"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/google/uuid"
	"github.com/lexia-platform/auth-service/internal/mailer"
	"github.com/lexia-platform/auth-service/internal/models"
	"github.com/lexia-platform/auth-service/internal/repository"
	"github.com/lexia-platform/auth-service/internal/security"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpIssuer      = "LexIA"
	totpPeriod      = 30
	totpSkew        = 2 // accept codes within ±2 time steps
	totpDigits      = otp.DigitsSix
	backupCodeCount = 8
)

// TwoFactorSetup is returned exactly once: the plaintext backup codes and
// the provisioning QR are never stored or retrievable again.
type TwoFactorSetup struct {
	Secret      string
	OtpauthURL  string
	QRCodeURL   string
	BackupCodes []string
}

type TwoFactorInfo struct {
	Enabled          bool       `json:"enabled"`
	BackupCodesCount int64      `json:"backupCodesCount"`
	LastUsedAt       *time.Time `json:"lastUsedAt,omitempty"`
}

// TwoFactorService drives the TOTP state machine:
// NotConfigured -> PendingVerification -> Enabled -> Disabled.
type TwoFactorService struct {
	users     repository.UserStore
	twoFactor repository.TwoFactorStore
	authLogs  repository.AuthLogStore
	mail      mailer.Mailer
	now       func() time.Time
}

func NewTwoFactorService(
	users repository.UserStore,
	twoFactor repository.TwoFactorStore,
	authLogs repository.AuthLogStore,
	mail mailer.Mailer,
) *TwoFactorService {
	return &TwoFactorService{
		users:     users,
		twoFactor: twoFactor,
		authLogs:  authLogs,
		mail:      mail,
		now:       time.Now,
	}
}

// Setup generates a fresh secret and backup codes, overwriting any prior
// un-confirmed configuration. Fails if 2FA is already enabled.
func (s *TwoFactorService) Setup(userID uuid.UUID) (*TwoFactorSetup, error) {
	user, err := s.users.FindByID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if existing, err := s.twoFactor.FindByUserID(userID); err == nil && existing.Enabled {
		return nil, ErrTwoFactorAlreadyEnabled
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: user.Email,
		Period:      totpPeriod,
		Digits:      totpDigits,
	})
	if err != nil {
		return nil, err
	}

	plainCodes, err := security.GenerateBackupCodes(backupCodeCount)
	if err != nil {
		return nil, err
	}
	hashes := make([]string, len(plainCodes))
	for i, code := range plainCodes {
		hashes[i] = security.HashBackupCode(code)
	}

	if err := s.twoFactor.Upsert(&models.TwoFactorAuth{
		ID:        uuid.New(),
		UsuarioID: userID,
		Secret:    key.Secret(),
	}); err != nil {
		return nil, err
	}
	if err := s.twoFactor.ReplaceBackupCodes(userID, hashes); err != nil {
		return nil, err
	}

	qrDataURL, err := renderQRDataURL(key.URL())
	if err != nil {
		return nil, err
	}

	return &TwoFactorSetup{
		Secret:      key.Secret(),
		OtpauthURL:  key.URL(),
		QRCodeURL:   qrDataURL,
		BackupCodes: plainCodes,
	}, nil
}

// Enable confirms a pending setup with a valid TOTP code and flips the
// account flag. On an invalid code the state is left untouched.
func (s *TwoFactorService) Enable(userID uuid.UUID, code string) error {
	tf, err := s.twoFactor.FindByUserID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTwoFactorNotConfigured
		}
		return err
	}
	if tf.Enabled {
		return ErrTwoFactorAlreadyEnabled
	}

	if !s.validateTOTP(code, tf.Secret) {
		return ErrInvalidTwoFactorCode
	}

	now := s.now()
	if err := s.twoFactor.Enable(userID, now); err != nil {
		return err
	}
	if err := s.users.SetTwoFactorEnabled(userID, true); err != nil {
		return err
	}

	if user, err := s.users.FindByID(userID); err == nil {
		s.logEvent(userID, user.Email, models.EventTwoFactorEnabled)
		s.mail.SendTwoFactorEnabledEmail(user.Email, user.Nombre)
	}
	return nil
}

// Disable requires password re-authentication. OAuth-only accounts cannot
// disable through this path. The secret is retained but becomes inert.
func (s *TwoFactorService) Disable(userID uuid.UUID, password string) error {
	user, err := s.reauthenticate(userID, password)
	if err != nil {
		return err
	}

	if err := s.twoFactor.Disable(userID); err != nil {
		return err
	}
	if err := s.users.SetTwoFactorEnabled(userID, false); err != nil {
		return err
	}

	s.logEvent(userID, user.Email, models.EventTwoFactorDisabled)
	return nil
}

// VerifyCode checks a TOTP code for an enabled configuration.
func (s *TwoFactorService) VerifyCode(userID uuid.UUID, code string) error {
	tf, err := s.enabledConfig(userID)
	if err != nil {
		return err
	}
	if !s.validateTOTP(code, tf.Secret) {
		return ErrInvalidTwoFactorCode
	}
	if err := s.twoFactor.UpdateLastUsed(userID, s.now()); err != nil {
		slog.Error("failed to update 2fa last_used_at", "user_id", userID, "error", err)
	}
	return nil
}

// VerifyBackupCode consumes one recovery code. A code that was already used
// (or raced by a concurrent request) is invalid.
func (s *TwoFactorService) VerifyBackupCode(userID uuid.UUID, code string) error {
	if _, err := s.enabledConfig(userID); err != nil {
		return err
	}

	consumed, err := s.twoFactor.ConsumeBackupCode(userID, security.HashBackupCode(code), s.now())
	if err != nil {
		return err
	}
	if !consumed {
		return ErrInvalidTwoFactorCode
	}

	if err := s.twoFactor.UpdateLastUsed(userID, s.now()); err != nil {
		slog.Error("failed to update 2fa last_used_at", "user_id", userID, "error", err)
	}
	if user, err := s.users.FindByID(userID); err == nil {
		s.logEvent(userID, user.Email, models.EventBackupCodeUsed)
	}
	return nil
}

// RegenerateBackupCodes replaces the whole set, invalidating every previous
// code atomically. Password-gated.
func (s *TwoFactorService) RegenerateBackupCodes(userID uuid.UUID, password string) ([]string, error) {
	user, err := s.reauthenticate(userID, password)
	if err != nil {
		return nil, err
	}

	plainCodes, err := security.GenerateBackupCodes(backupCodeCount)
	if err != nil {
		return nil, err
	}
	hashes := make([]string, len(plainCodes))
	for i, code := range plainCodes {
		hashes[i] = security.HashBackupCode(code)
	}

	if err := s.twoFactor.ReplaceBackupCodes(userID, hashes); err != nil {
		return nil, err
	}

	s.logEvent(userID, user.Email, models.EventBackupCodesRegenerated)
	return plainCodes, nil
}

// Info reports the 2FA state without the secret.
func (s *TwoFactorService) Info(userID uuid.UUID) (*TwoFactorInfo, error) {
	tf, err := s.twoFactor.FindByUserID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &TwoFactorInfo{}, nil
		}
		return nil, err
	}

	count, err := s.twoFactor.CountRemainingCodes(userID)
	if err != nil {
		return nil, err
	}
	return &TwoFactorInfo{
		Enabled:          tf.Enabled,
		BackupCodesCount: count,
		LastUsedAt:       tf.LastUsedAt,
	}, nil
}

func (s *TwoFactorService) enabledConfig(userID uuid.UUID) (*models.TwoFactorAuth, error) {
	tf, err := s.twoFactor.FindByUserID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTwoFactorNotEnabled
		}
		return nil, err
	}
	if !tf.Enabled {
		return nil, ErrTwoFactorNotEnabled
	}
	return tf, nil
}

func (s *TwoFactorService) reauthenticate(userID uuid.UUID, password string) (*models.User, error) {
	user, err := s.users.FindByID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.HasPassword() {
		return nil, ErrOAuthOnlyAccount
	}
	if !security.ComparePassword(password, *user.PasswordHash) {
		return nil, ErrIncorrectPassword
	}
	return user, nil
}

func (s *TwoFactorService) validateTOTP(code, secret string) bool {
	valid, err := totp.ValidateCustom(code, secret, s.now().UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    totpDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && valid
}

func (s *TwoFactorService) logEvent(userID uuid.UUID, email, event string) {
	entry := &models.AuthLog{
		ID:        uuid.New(),
		UsuarioID: &userID,
		Email:     email,
		EventType: event,
		Success:   true,
	}
	if err := s.authLogs.Create(entry); err != nil {
		slog.Error("failed to write auth log", "event", event, "error", err)
	}
}

// renderQRDataURL encodes the otpauth URI as a base64 PNG data URL, ready
// for an <img> tag.
func renderQRDataURL(otpauthURL string) (string, error) {
	code, err := qr.Encode(otpauthURL, qr.M, qr.Auto)
	if err != nil {
		return "", err
	}
	code, err = barcode.Scale(code, 256, 256)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
