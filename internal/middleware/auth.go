package middleware

import (
	"errors"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lexia-platform/auth-service/internal/dto"
	"github.com/lexia-platform/auth-service/internal/token"
)

var errNoClaims = errors.New("no token claims in context")

// JWTProtected validates the Bearer access token and stores the parsed token
// under c.Locals("user").
func JWTProtected(tokens *token.Service) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{Key: tokens.AccessSecret()},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "no autorizado: token inválido o expirado",
			})
		},
	})
}

// FullSessionOnly rejects the intermediate 2FA token. It must wrap every
// protected route except the 2FA login-verification endpoints, which are the
// only place that token is valid.
func FullSessionOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if Scope(c) == token.ScopeTwoFactor {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "no autorizado: completa la verificación 2FA",
			})
		}
		return c.Next()
	}
}

func claims(c *fiber.Ctx) (jwt.MapClaims, error) {
	tok, ok := c.Locals("user").(*jwt.Token)
	if !ok || tok == nil {
		return nil, errNoClaims
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errNoClaims
	}
	return mc, nil
}

// UserID extracts the authenticated user's id from the token subject.
func UserID(c *fiber.Ctx) (uuid.UUID, error) {
	mc, err := claims(c)
	if err != nil {
		return uuid.Nil, err
	}
	sub, _ := mc["sub"].(string)
	return uuid.Parse(sub)
}

// Email extracts the authenticated user's email claim.
func Email(c *fiber.Ctx) string {
	mc, err := claims(c)
	if err != nil {
		return ""
	}
	email, _ := mc["email"].(string)
	return email
}

// Scope returns the token's scope claim, empty for full-session tokens.
func Scope(c *fiber.Ctx) string {
	mc, err := claims(c)
	if err != nil {
		return ""
	}
	scope, _ := mc["scope"].(string)
	return scope
}
