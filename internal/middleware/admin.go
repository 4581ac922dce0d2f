package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/lexia-platform/auth-service/internal/config"
	"github.com/lexia-platform/auth-service/internal/dto"
	"github.com/lexia-platform/auth-service/internal/models"
)

// AdminRequired allows users with the admin role or an email listed in
// ADMIN_EMAILS. Must run after JWTProtected.
func AdminRequired(cfg *config.Config) fiber.Handler {
	adminEmails := parseCSV(cfg.AdminEmails)

	return func(c *fiber.Ctx) error {
		mc, err := claims(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "no autorizado",
			})
		}

		rol, _ := mc["rol"].(string)
		email, _ := mc["email"].(string)
		if rol == models.RoleAdmin || contains(adminEmails, email) {
			return c.Next()
		}

		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: "se requiere acceso de administrador",
		})
	}
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func contains(list []string, val string) bool {
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}
