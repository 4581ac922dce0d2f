package services

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lexia-platform/auth-service/internal/config"
	"github.com/lexia-platform/auth-service/internal/mailer"
	"github.com/lexia-platform/auth-service/internal/models"
	"github.com/lexia-platform/auth-service/internal/repository"
	"github.com/lexia-platform/auth-service/internal/security"
	"github.com/lexia-platform/auth-service/internal/token"
	"gorm.io/datatypes"
)

const (
	verificationTokenTTL = 24 * time.Hour
	resetTokenTTL        = 1 * time.Hour
	resetThrottleWindow  = 5 * time.Minute
	suspiciousIPWindow   = 1 * time.Hour
	suspiciousIPCount    = 3
	secureTokenBytes     = 32
)

// ClientInfo carries per-request attribution for the audit trail.
type ClientInfo struct {
	IP        string
	UserAgent string
}

type RegisterData struct {
	Email    string
	Password string
	Nombre   string
	Apellido string
	Telefono string
}

type UpdateProfileData struct {
	Nombre   *string
	Apellido *string
	Email    *string
	Telefono *string
}

// LoginResult is the outcome of a successful password check. When the
// account has 2FA enabled, Pair is withheld and TempToken carries the
// short-lived token for the verification step.
type LoginResult struct {
	User        *models.User
	Pair        *token.Pair
	Requires2FA bool
	TempToken   string
}

// AuthService orchestrates registration, login, token rotation and the
// one-time-token flows. It owns the lockout and audit-logging policy.
type AuthService struct {
	users         repository.UserStore
	refreshTokens repository.RefreshTokenStore
	verifications repository.VerificationTokenStore
	resets        repository.PasswordResetStore
	authLogs      repository.AuthLogStore
	tokens        *token.Service
	mail          mailer.Mailer
	cfg           *config.Config
	now           func() time.Time
}

func NewAuthService(
	users repository.UserStore,
	refreshTokens repository.RefreshTokenStore,
	verifications repository.VerificationTokenStore,
	resets repository.PasswordResetStore,
	authLogs repository.AuthLogStore,
	tokens *token.Service,
	mail mailer.Mailer,
	cfg *config.Config,
) *AuthService {
	return &AuthService{
		users:         users,
		refreshTokens: refreshTokens,
		verifications: verifications,
		resets:        resets,
		authLogs:      authLogs,
		tokens:        tokens,
		mail:          mail,
		cfg:           cfg,
		now:           time.Now,
	}
}

// Register creates a local account and issues a 24h email-verification
// token. Email delivery failure never fails the registration.
func (s *AuthService) Register(data RegisterData, client ClientInfo) (*models.User, string, error) {
	email := normalizeEmail(data.Email)

	if _, err := s.users.FindByEmail(email); err == nil {
		return nil, "", ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, "", err
	}

	if err := security.ValidatePasswordStrength(data.Password); err != nil {
		return nil, "", err
	}

	hash, err := security.HashPassword(data.Password)
	if err != nil {
		return nil, "", err
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		Nombre:       strings.TrimSpace(data.Nombre),
		Apellido:     strings.TrimSpace(data.Apellido),
		Telefono:     optional(strings.TrimSpace(data.Telefono)),
		PasswordHash: &hash,
		Rol:          models.RoleUser,
		Activo:       true,
		AccountType:  models.AccountTypeLocal,
	}
	if err := s.users.Create(user); err != nil {
		// A concurrent register may win the unique index race.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, "", ErrEmailTaken
		}
		return nil, "", err
	}

	verificationToken, err := s.issueVerificationToken(user, client)
	if err != nil {
		return nil, "", err
	}

	s.audit(&user.ID, user.Email, models.EventRegister, true, client, "", nil)
	s.mail.SendVerificationEmail(user.Email, user.Nombre, verificationToken)

	return user, verificationToken, nil
}

// Login performs the ordered credential checks. Every failure is audited
// with its real reason; the caller-facing error stays generic except for the
// lockout case.
func (s *AuthService) Login(email, password string, client ClientInfo) (*LoginResult, error) {
	email = normalizeEmail(email)
	now := s.now()

	user, err := s.users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.audit(nil, email, models.EventFailedLogin, false, client, "email no encontrado", nil)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.IsLocked(now) {
		s.audit(&user.ID, email, models.EventFailedLogin, false, client, "cuenta bloqueada", nil)
		return nil, ErrAccountLocked
	}

	if !user.HasPassword() {
		s.audit(&user.ID, email, models.EventFailedLogin, false, client, "cuenta OAuth sin contraseña", nil)
		return nil, ErrOAuthOnlyAccount
	}

	if !security.ComparePassword(password, *user.PasswordHash) {
		if err := s.users.IncrementFailedAttempts(user.ID, s.cfg.MaxFailedAttempts, now.Add(s.cfg.LockoutDuration)); err != nil {
			slog.Error("failed to increment login attempts", "user_id", user.ID, "error", err)
		}
		s.audit(&user.ID, email, models.EventFailedLogin, false, client, "contraseña incorrecta", nil)
		return nil, ErrInvalidCredentials
	}

	if !user.Activo {
		s.audit(&user.ID, email, models.EventFailedLogin, false, client, "cuenta desactivada", nil)
		return nil, ErrAccountInactive
	}

	if user.TwoFactorEnabled {
		temp, err := s.tokens.IssueIntermediate(payloadFor(user))
		if err != nil {
			return nil, err
		}
		return &LoginResult{User: user, Requires2FA: true, TempToken: temp}, nil
	}

	pair, err := s.establishSession(user, client, models.EventSuccessfulLogin, nil)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Pair: pair}, nil
}

// CompleteTwoFactorLogin issues the withheld token pair after a valid 2FA
// code was presented for the intermediate token's user.
func (s *AuthService) CompleteTwoFactorLogin(userID uuid.UUID, client ClientInfo) (*LoginResult, error) {
	user, err := s.users.FindByID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.Activo {
		return nil, ErrAccountInactive
	}

	meta := datatypes.JSON([]byte(`{"method":"2fa"}`))
	pair, err := s.establishSession(user, client, models.EventSuccessfulLogin, meta)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Pair: pair}, nil
}

// Refresh rotates a refresh token. Signature validity and the persisted
// row's state are both required; the presented token is atomically revoked so
// it can be exchanged at most once even under concurrent requests.
func (s *AuthService) Refresh(refreshToken string, client ClientInfo) (*token.Pair, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	now := s.now()
	row, err := s.refreshTokens.Claim(security.HashToken(refreshToken), now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if claims.UserID != row.UsuarioID {
		return nil, ErrInvalidToken
	}

	user, err := s.users.FindByID(row.UsuarioID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.Activo {
		return nil, ErrAccountInactive
	}

	pair, err := s.tokens.Issue(payloadFor(user))
	if err != nil {
		return nil, err
	}
	if err := s.persistRefreshToken(user.ID, pair, client); err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout revokes a single refresh token.
func (s *AuthService) Logout(userID uuid.UUID, refreshToken string, client ClientInfo) error {
	if err := s.refreshTokens.Revoke(security.HashToken(refreshToken), s.now()); err != nil {
		return err
	}
	if user, err := s.users.FindByID(userID); err == nil {
		s.audit(&userID, user.Email, models.EventLogout, true, client, "", nil)
	}
	return nil
}

// LogoutAll revokes every active session of the user.
func (s *AuthService) LogoutAll(userID uuid.UUID, client ClientInfo) (int64, error) {
	revoked, err := s.refreshTokens.RevokeAllForUser(userID, s.now())
	if err != nil {
		return 0, err
	}
	if user, err := s.users.FindByID(userID); err == nil {
		s.audit(&userID, user.Email, models.EventLogoutAll, true, client, "", nil)
	}
	return revoked, nil
}

// VerifyEmail consumes a verification token. The token is single-use and all
// other outstanding tokens of that user are invalidated with it.
func (s *AuthService) VerifyEmail(tokenString string) error {
	now := s.now()
	record, err := s.verifications.FindValid(tokenString, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	// Claim the token; a concurrent verify with the same token loses here.
	if err := s.verifications.MarkUsed(tokenString, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	if err := s.users.VerifyEmail(record.UsuarioID, now); err != nil {
		return err
	}
	if _, err := s.verifications.InvalidateForUser(record.UsuarioID, now); err != nil {
		slog.Error("failed to invalidate sibling verification tokens", "user_id", record.UsuarioID, "error", err)
	}

	if user, err := s.users.FindByID(record.UsuarioID); err == nil {
		s.audit(&user.ID, user.Email, models.EventEmailVerified, true, ClientInfo{}, "", nil)
	}
	return nil
}

// ResendVerification issues a fresh verification token, invalidating all
// previous ones.
// ResendVerification behaves the same for unknown and already-verified
// addresses so the endpoint cannot be used to probe for accounts.
func (s *AuthService) ResendVerification(email string, client ClientInfo) error {
	user, err := s.users.FindByEmail(normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if user.EmailVerified {
		return nil
	}

	if _, err := s.verifications.InvalidateForUser(user.ID, s.now()); err != nil {
		return err
	}
	verificationToken, err := s.issueVerificationToken(user, client)
	if err != nil {
		return err
	}
	s.mail.SendVerificationEmail(user.Email, user.Nombre, verificationToken)
	return nil
}

// ForgotPassword never reveals whether the email exists: unknown addresses
// return nil. Known addresses are throttled to one outstanding token per
// window.
func (s *AuthService) ForgotPassword(email string, client ClientInfo) error {
	user, err := s.users.FindByEmail(normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	now := s.now()
	recent, err := s.resets.HasRecentToken(user.ID, now.Add(-resetThrottleWindow))
	if err != nil {
		return err
	}
	if recent {
		return ErrResetThrottled
	}

	if _, err := s.resets.InvalidateForUser(user.ID, now); err != nil {
		return err
	}

	resetToken, err := security.GenerateSecureToken(secureTokenBytes)
	if err != nil {
		return err
	}
	if err := s.resets.Create(&models.PasswordResetToken{
		ID:        uuid.New(),
		UsuarioID: user.ID,
		Token:     resetToken,
		ExpiresAt: now.Add(resetTokenTTL),
		IPAddress: optional(client.IP),
	}); err != nil {
		return err
	}

	s.audit(&user.ID, user.Email, models.EventPasswordResetRequested, true, client, "", nil)
	s.mail.SendPasswordResetEmail(user.Email, user.Nombre, resetToken)
	return nil
}

// ResetPassword consumes a reset token, updates the password and revokes
// every refresh token of the user (forced re-login everywhere).
func (s *AuthService) ResetPassword(tokenString, newPassword string) error {
	now := s.now()
	record, err := s.resets.FindValid(tokenString, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	if err := security.ValidatePasswordStrength(newPassword); err != nil {
		if incErr := s.resets.IncrementAttempts(tokenString); incErr != nil {
			slog.Error("failed to increment reset attempts", "error", incErr)
		}
		return err
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}

	// Claim the token before touching the password.
	if err := s.resets.MarkUsed(tokenString, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	if err := s.users.UpdatePassword(record.UsuarioID, hash); err != nil {
		return err
	}
	if _, err := s.resets.InvalidateForUser(record.UsuarioID, now); err != nil {
		slog.Error("failed to invalidate sibling reset tokens", "user_id", record.UsuarioID, "error", err)
	}
	if _, err := s.refreshTokens.RevokeAllForUser(record.UsuarioID, now); err != nil {
		slog.Error("failed to revoke sessions after password reset", "user_id", record.UsuarioID, "error", err)
	}

	if user, err := s.users.FindByID(record.UsuarioID); err == nil {
		s.audit(&user.ID, user.Email, models.EventPasswordResetCompleted, true, ClientInfo{}, "", nil)
	}
	return nil
}

// Profile returns the user record for the authenticated subject.
func (s *AuthService) Profile(userID uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// UpdateProfile changes profile fields. An email change is checked for
// uniqueness against every other user.
func (s *AuthService) UpdateProfile(userID uuid.UUID, data UpdateProfileData) (*models.User, error) {
	user, err := s.users.FindByID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if data.Email != nil {
		newEmail := normalizeEmail(*data.Email)
		if newEmail != user.Email {
			if existing, err := s.users.FindByEmail(newEmail); err == nil && existing.ID != userID {
				return nil, ErrEmailTaken
			} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, err
			}
			user.Email = newEmail
		}
	}
	if data.Nombre != nil {
		user.Nombre = strings.TrimSpace(*data.Nombre)
	}
	if data.Apellido != nil {
		user.Apellido = strings.TrimSpace(*data.Apellido)
	}
	if data.Telefono != nil {
		user.Telefono = optional(strings.TrimSpace(*data.Telefono))
	}

	if err := s.users.Update(user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

// ActiveSessions lists the user's unrevoked, unexpired refresh tokens.
func (s *AuthService) ActiveSessions(userID uuid.UUID) ([]models.RefreshToken, error) {
	return s.refreshTokens.ActiveSessions(userID, s.now())
}

// AuthHistory returns the most recent audit entries for the user.
func (s *AuthService) AuthHistory(userID uuid.UUID, limit int) ([]models.AuthLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.authLogs.FindByUserID(userID, limit)
}

// Stats aggregates the last week of the audit trail.
func (s *AuthService) Stats() (*repository.LoginStats, error) {
	return s.authLogs.Stats(s.now().Add(-7 * 24 * time.Hour))
}

// establishSession resets the failure counters, issues tokens, persists the
// refresh row and audits the login.
func (s *AuthService) establishSession(user *models.User, client ClientInfo, event string, meta datatypes.JSON) (*token.Pair, error) {
	pair, err := s.tokens.Issue(payloadFor(user))
	if err != nil {
		return nil, err
	}
	if err := s.persistRefreshToken(user.ID, pair, client); err != nil {
		return nil, err
	}
	if err := s.users.ResetFailedAttempts(user.ID, optional(client.IP), s.now()); err != nil {
		slog.Error("failed to reset login attempts", "user_id", user.ID, "error", err)
	}
	s.audit(&user.ID, user.Email, event, true, client, "", meta)
	s.warnOnSuspiciousActivity(user)
	return pair, nil
}

func (s *AuthService) persistRefreshToken(userID uuid.UUID, pair *token.Pair, client ClientInfo) error {
	return s.refreshTokens.Create(&models.RefreshToken{
		ID:        uuid.New(),
		UsuarioID: userID,
		TokenHash: security.HashToken(pair.RefreshToken),
		ExpiresAt: s.now().Add(time.Duration(pair.RefreshTokenExpiresIn) * time.Second),
		IPAddress: optional(client.IP),
		UserAgent: optional(client.UserAgent),
	})
}

func (s *AuthService) issueVerificationToken(user *models.User, client ClientInfo) (string, error) {
	verificationToken, err := security.GenerateSecureToken(secureTokenBytes)
	if err != nil {
		return "", err
	}
	err = s.verifications.Create(&models.VerificationToken{
		ID:        uuid.New(),
		UsuarioID: user.ID,
		Token:     verificationToken,
		ExpiresAt: s.now().Add(verificationTokenTTL),
		IPAddress: optional(client.IP),
	})
	if err != nil {
		return "", err
	}
	return verificationToken, nil
}

func (s *AuthService) warnOnSuspiciousActivity(user *models.User) {
	count, err := s.authLogs.DistinctLoginIPs(user.ID, s.now().Add(-suspiciousIPWindow))
	if err != nil {
		return
	}
	if count > suspiciousIPCount {
		slog.Warn("suspicious login activity",
			"user_id", user.ID, "distinct_ips", count, "window", suspiciousIPWindow.String())
	}
}

// audit writes an append-only trail entry. Failures are logged and swallowed;
// the primary operation never aborts because of them.
func (s *AuthService) audit(userID *uuid.UUID, email, event string, success bool, client ClientInfo, reason string, meta datatypes.JSON) {
	entry := &models.AuthLog{
		ID:            uuid.New(),
		UsuarioID:     userID,
		Email:         email,
		EventType:     event,
		Success:       success,
		IPAddress:     optional(client.IP),
		UserAgent:     optional(client.UserAgent),
		FailureReason: optional(reason),
		Metadata:      meta,
	}
	if err := s.authLogs.Create(entry); err != nil {
		slog.Error("failed to write auth log", "event", event, "email", email, "error", err)
	}
}

func payloadFor(user *models.User) token.Payload {
	return token.Payload{
		UserID:           user.ID,
		Email:            user.Email,
		Rol:              user.Rol,
		TwoFactorEnabled: user.TwoFactorEnabled,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
