package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lexia-platform/auth-service/internal/models"
	"github.com/lexia-platform/auth-service/internal/repository"
	"github.com/lexia-platform/auth-service/internal/security"
	"github.com/lexia-platform/auth-service/internal/token"
	"gorm.io/datatypes"
)

// GoogleCredential carries whichever Google tokens the client obtained. The
// ID token is verified locally when present; the access token is resolved via
// the userinfo endpoint only as a fallback, never both.
type GoogleCredential struct {
	IDToken      string
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

type OAuthLoginResult struct {
	User      *models.User
	Pair      *token.Pair
	IsNewUser bool
}

// LinkedAccount is the client-facing view of an OAuth link, without the
// external tokens.
type LinkedAccount struct {
	Provider    string    `json:"provider"`
	ProviderID  string    `json:"providerId"`
	LinkedAt    time.Time `json:"linkedAt"`
	ProfileData any       `json:"profileData,omitempty"`
}

// OAuthService reconciles Google identities with local user records.
type OAuthService struct {
	users         repository.UserStore
	oauthAccounts repository.OAuthStore
	refreshTokens repository.RefreshTokenStore
	authLogs      repository.AuthLogStore
	tokens        *token.Service
	verifier      GoogleVerifier
	now           func() time.Time
}

func NewOAuthService(
	users repository.UserStore,
	oauthAccounts repository.OAuthStore,
	refreshTokens repository.RefreshTokenStore,
	authLogs repository.AuthLogStore,
	tokens *token.Service,
	verifier GoogleVerifier,
) *OAuthService {
	return &OAuthService{
		users:         users,
		oauthAccounts: oauthAccounts,
		refreshTokens: refreshTokens,
		authLogs:      authLogs,
		tokens:        tokens,
		verifier:      verifier,
		now:           time.Now,
	}
}

// AuthURL builds the consent URL for the web redirect flow.
func (s *OAuthService) AuthURL(redirectURI, state string) string {
	return s.verifier.AuthURL(redirectURI, state)
}

// LoginWithCode completes the web flow: exchanges the authorization code and
// reconciles the resulting identity.
func (s *OAuthService) LoginWithCode(code, redirectURI string, client ClientInfo) (*OAuthLoginResult, error) {
	exchanged, err := s.verifier.ExchangeCode(code, redirectURI)
	if err != nil {
		return nil, fmt.Errorf("google code exchange: %w", err)
	}

	cred := GoogleCredential{
		IDToken:      exchanged.IDToken,
		AccessToken:  exchanged.AccessToken,
		RefreshToken: exchanged.RefreshToken,
	}
	if exchanged.ExpiresIn > 0 {
		exp := s.now().Add(time.Duration(exchanged.ExpiresIn) * time.Second)
		cred.ExpiresAt = &exp
	}
	return s.Login(cred, client, "web")
}

// Login verifies the credential and reconciles it against local records:
// an existing link wins, then an email match gets linked, otherwise a new
// google-account user is created. IsNewUser is true only in the last case.
func (s *OAuthService) Login(cred GoogleCredential, client ClientInfo, platform string) (*OAuthLoginResult, error) {
	profile, err := s.resolveProfile(cred)
	if err != nil {
		return nil, err
	}
	if profile.Email == "" {
		return nil, ErrOAuthEmailMissing
	}
	email := normalizeEmail(profile.Email)

	meta := datatypes.JSON([]byte(fmt.Sprintf(`{"provider":"google","platform":%q}`, platform)))

	// Branch 1: the external identity is already linked.
	if link, err := s.oauthAccounts.FindByProvider(models.ProviderGoogle, profile.Sub); err == nil {
		user, err := s.users.FindByID(link.UsuarioID)
		if err != nil {
			return nil, err
		}
		if !user.Activo {
			return nil, ErrAccountInactive
		}
		if err := s.oauthAccounts.UpdateTokens(models.ProviderGoogle, profile.Sub,
			optional(cred.AccessToken), optional(cred.RefreshToken), cred.ExpiresAt); err != nil {
			slog.Error("failed to refresh oauth tokens", "user_id", user.ID, "error", err)
		}
		pair, err := s.startSession(user, client, models.EventOAuthLogin, meta)
		if err != nil {
			return nil, err
		}
		return &OAuthLoginResult{User: user, Pair: pair}, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	// Branch 2: an account with this email already exists; link it. Google
	// vouches for the address, so the email becomes verified.
	if user, err := s.users.FindByEmail(email); err == nil {
		if !user.Activo {
			return nil, ErrAccountInactive
		}
		if err := s.createLink(user.ID, profile, cred); err != nil {
			return nil, err
		}
		if !user.EmailVerified {
			if err := s.users.VerifyEmail(user.ID, s.now()); err != nil {
				return nil, err
			}
			user.EmailVerified = true
		}
		s.audit(&user.ID, user.Email, models.EventOAuthLinked, true, client, "", meta)
		pair, err := s.startSession(user, client, models.EventOAuthLogin, meta)
		if err != nil {
			return nil, err
		}
		return &OAuthLoginResult{User: user, Pair: pair}, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	// Branch 3: brand-new user, no local password.
	user := &models.User{
		ID:            uuid.New(),
		Email:         email,
		Nombre:        firstNonEmpty(profile.GivenName, profile.Name),
		Apellido:      profile.FamilyName,
		Rol:           models.RoleUser,
		Activo:        true,
		EmailVerified: true,
		AccountType:   models.AccountTypeGoogle,
	}
	now := s.now()
	user.EmailVerifiedAt = &now
	if err := s.users.Create(user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	if err := s.createLink(user.ID, profile, cred); err != nil {
		return nil, err
	}

	pair, err := s.startSession(user, client, models.EventOAuthRegister, meta)
	if err != nil {
		return nil, err
	}
	return &OAuthLoginResult{User: user, Pair: pair, IsNewUser: true}, nil
}

// LinkGoogleAccount attaches a Google identity to the authenticated user.
// The Google email must match the account email.
func (s *OAuthService) LinkGoogleAccount(userID uuid.UUID, cred GoogleCredential, client ClientInfo) error {
	user, err := s.users.FindByID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	linked, err := s.oauthAccounts.HasProvider(userID, models.ProviderGoogle)
	if err != nil {
		return err
	}
	if linked {
		return ErrGoogleAlreadyLinked
	}

	profile, err := s.resolveProfile(cred)
	if err != nil {
		return err
	}
	if normalizeEmail(profile.Email) != normalizeEmail(user.Email) {
		return ErrEmailMismatch
	}

	// The external identity may already belong to another user.
	if existing, err := s.oauthAccounts.FindByProvider(models.ProviderGoogle, profile.Sub); err == nil {
		if existing.UsuarioID != userID {
			return ErrGoogleAlreadyLinked
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	if err := s.createLink(userID, profile, cred); err != nil {
		return err
	}
	if !user.EmailVerified {
		if err := s.users.VerifyEmail(userID, s.now()); err != nil {
			return err
		}
	}
	s.audit(&userID, user.Email, models.EventOAuthLinked, true, client, "", nil)
	return nil
}

// UnlinkGoogleAccount removes the Google link. Refused when the account has
// no local password, so the user is never left without a login method.
func (s *OAuthService) UnlinkGoogleAccount(userID uuid.UUID, client ClientInfo) error {
	user, err := s.users.FindByID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if !user.HasPassword() {
		return ErrNoLocalPassword
	}

	links, err := s.oauthAccounts.FindByUserID(userID)
	if err != nil {
		return err
	}
	var target *models.OAuthAccount
	for i := range links {
		if links[i].Provider == models.ProviderGoogle {
			target = &links[i]
			break
		}
	}
	if target == nil {
		return ErrGoogleNotLinked
	}

	if err := s.oauthAccounts.Delete(models.ProviderGoogle, target.ProviderAccountID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrGoogleNotLinked
		}
		return err
	}
	s.audit(&userID, user.Email, models.EventOAuthUnlinked, true, client, "", nil)
	return nil
}

// LinkedAccounts lists the user's OAuth links without external tokens.
func (s *OAuthService) LinkedAccounts(userID uuid.UUID) ([]LinkedAccount, error) {
	links, err := s.oauthAccounts.FindByUserID(userID)
	if err != nil {
		return nil, err
	}
	out := make([]LinkedAccount, 0, len(links))
	for _, link := range links {
		la := LinkedAccount{
			Provider:   link.Provider,
			ProviderID: link.ProviderAccountID,
			LinkedAt:   link.CreatedAt,
		}
		if len(link.ProfileData) > 0 {
			var data any
			if err := json.Unmarshal(link.ProfileData, &data); err == nil {
				la.ProfileData = data
			}
		}
		out = append(out, la)
	}
	return out, nil
}

// resolveProfile prefers the locally-verifiable ID token; the userinfo
// endpoint is only consulted when no ID token was supplied or it failed.
func (s *OAuthService) resolveProfile(cred GoogleCredential) (*GoogleProfile, error) {
	if cred.IDToken != "" {
		profile, err := s.verifier.VerifyIDToken(cred.IDToken)
		if err == nil {
			return profile, nil
		}
		if cred.AccessToken == "" {
			return nil, fmt.Errorf("google id token verification: %w", err)
		}
		slog.Warn("google id token verification failed, falling back to userinfo", "error", err)
	}
	if cred.AccessToken == "" {
		return nil, ErrInvalidToken
	}
	profile, err := s.verifier.FetchUserInfo(cred.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("google userinfo: %w", err)
	}
	return profile, nil
}

func (s *OAuthService) createLink(userID uuid.UUID, profile *GoogleProfile, cred GoogleCredential) error {
	profileJSON, err := json.Marshal(map[string]string{
		"name":    profile.Name,
		"email":   profile.Email,
		"picture": profile.Picture,
	})
	if err != nil {
		return err
	}
	return s.oauthAccounts.Upsert(&models.OAuthAccount{
		ID:                uuid.New(),
		UsuarioID:         userID,
		Provider:          models.ProviderGoogle,
		ProviderAccountID: profile.Sub,
		AccessToken:       optional(cred.AccessToken),
		RefreshToken:      optional(cred.RefreshToken),
		TokenExpiresAt:    cred.ExpiresAt,
		ProfileData:       datatypes.JSON(profileJSON),
	})
}

func (s *OAuthService) startSession(user *models.User, client ClientInfo, event string, meta datatypes.JSON) (*token.Pair, error) {
	pair, err := s.tokens.Issue(token.Payload{
		UserID:           user.ID,
		Email:            user.Email,
		Rol:              user.Rol,
		TwoFactorEnabled: user.TwoFactorEnabled,
	})
	if err != nil {
		return nil, err
	}
	err = s.refreshTokens.Create(&models.RefreshToken{
		ID:        uuid.New(),
		UsuarioID: user.ID,
		TokenHash: security.HashToken(pair.RefreshToken),
		ExpiresAt: s.now().Add(time.Duration(pair.RefreshTokenExpiresIn) * time.Second),
		IPAddress: optional(client.IP),
		UserAgent: optional(client.UserAgent),
	})
	if err != nil {
		return nil, err
	}
	if err := s.users.ResetFailedAttempts(user.ID, optional(client.IP), s.now()); err != nil {
		slog.Error("failed to reset login attempts", "user_id", user.ID, "error", err)
	}
	s.audit(&user.ID, user.Email, event, true, client, "", meta)
	return pair, nil
}

func (s *OAuthService) audit(userID *uuid.UUID, email, event string, success bool, client ClientInfo, reason string, meta datatypes.JSON) {
	entry := &models.AuthLog{
		ID:            uuid.New(),
		UsuarioID:     userID,
		Email:         email,
		EventType:     event,
		Success:       success,
		IPAddress:     optional(client.IP),
		UserAgent:     optional(client.UserAgent),
		FailureReason: optional(reason),
	}
	if meta != nil {
		entry.Metadata = meta
	}
	if err := s.authLogs.Create(entry); err != nil {
		slog.Error("failed to write auth log", "event", event, "error", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
