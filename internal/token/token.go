package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lexia-platform/auth-service/internal/config"
)

// ErrInvalidToken is the single failure result for verification: signature,
// expiry and claim problems are deliberately indistinguishable to callers.
var ErrInvalidToken = errors.New("invalid or expired token")

// ScopeTwoFactor marks the short-lived intermediate token handed out after a
// password login on a 2FA-enabled account. It is accepted only on the 2FA
// verification routes.
const ScopeTwoFactor = "2fa"

type Claims struct {
	UserID           uuid.UUID `json:"userId"`
	Email            string    `json:"email"`
	Rol              string    `json:"rol"`
	TwoFactorEnabled bool      `json:"twoFactorEnabled"`
	Scope            string    `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

type Pair struct {
	AccessToken           string `json:"accessToken"`
	RefreshToken          string `json:"refreshToken"`
	AccessTokenExpiresIn  int    `json:"accessTokenExpiresIn"`
	RefreshTokenExpiresIn int    `json:"refreshTokenExpiresIn"`
}

type Payload struct {
	UserID           uuid.UUID
	Email            string
	Rol              string
	TwoFactorEnabled bool
}

// Service signs and verifies access and refresh tokens with separate
// secrets. It holds no state beyond the signing configuration.
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	tempTTL       time.Duration
	issuer        string
	audience      string
	now           func() time.Time
}

func NewService(cfg *config.Config) *Service {
	return NewServiceWithClock(cfg, time.Now)
}

// NewServiceWithClock injects the time source, letting callers control
// expiry in tests.
func NewServiceWithClock(cfg *config.Config, now func() time.Time) *Service {
	return &Service{
		accessSecret:  []byte(cfg.JWTAccessSecret),
		refreshSecret: []byte(cfg.JWTRefreshSecret),
		accessTTL:     cfg.JWTAccessExpiry,
		refreshTTL:    cfg.JWTRefreshExpiry,
		tempTTL:       cfg.TwoFactorTempTTL,
		issuer:        cfg.JWTIssuer,
		audience:      cfg.JWTAudience,
		now:           now,
	}
}

// Issue returns a fresh access/refresh pair for the payload. The refresh
// token carries a unique jti for revocation correlation; revocation itself is
// enforced through the persisted refresh-token row.
func (s *Service) Issue(p Payload) (*Pair, error) {
	access, err := s.sign(p, s.accessSecret, s.accessTTL, "", "")
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(p, s.refreshSecret, s.refreshTTL, "", uuid.NewString())
	if err != nil {
		return nil, err
	}

	return &Pair{
		AccessToken:           access,
		RefreshToken:          refresh,
		AccessTokenExpiresIn:  int(s.accessTTL.Seconds()),
		RefreshTokenExpiresIn: int(s.refreshTTL.Seconds()),
	}, nil
}

// IssueIntermediate returns the short-lived token used between a successful
// password check and 2FA code verification.
func (s *Service) IssueIntermediate(p Payload) (string, error) {
	return s.sign(p, s.accessSecret, s.tempTTL, ScopeTwoFactor, "")
}

func (s *Service) VerifyAccess(tokenString string) (*Claims, error) {
	return s.verify(tokenString, s.accessSecret)
}

func (s *Service) VerifyRefresh(tokenString string) (*Claims, error) {
	return s.verify(tokenString, s.refreshSecret)
}

func (s *Service) AccessSecret() []byte { return s.accessSecret }

func (s *Service) sign(p Payload, secret []byte, ttl time.Duration, scope, jti string) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:           p.UserID,
		Email:            p.Email,
		Rol:              p.Rol,
		TwoFactorEnabled: p.TwoFactorEnabled,
		Scope:            scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID.String(),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (s *Service) verify(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
