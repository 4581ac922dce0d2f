package handlers

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/lexia-platform/auth-service/internal/dto"
	"github.com/lexia-platform/auth-service/internal/security"
	"github.com/lexia-platform/auth-service/internal/services"
)

var validate = validator.New()

// parseAndValidate decodes the JSON body and runs struct validation. A
// failed parse or validation short-circuits with a 400 response.
func parseAndValidate(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "cuerpo de la petición inválido",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: validationMessage(err),
		})
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "datos inválidos"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return "datos inválidos en: " + strings.Join(fields, ", ")
}

// serviceError maps domain errors onto the HTTP status taxonomy. Unknown
// errors become a generic 500 so internals never leak.
func serviceError(c *fiber.Ctx, err error) error {
	var policyErr *security.PasswordPolicyError
	if errors.As(err, &policyErr) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: policyErr.Error(),
		})
	}

	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidToken),
		errors.Is(err, services.ErrIncorrectPassword),
		errors.Is(err, services.ErrInvalidTwoFactorCode):
		status = fiber.StatusUnauthorized
	case errors.Is(err, services.ErrAccountInactive):
		status = fiber.StatusForbidden
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrGoogleNotLinked):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrGoogleAlreadyLinked):
		status = fiber.StatusConflict
	case errors.Is(err, services.ErrAccountLocked),
		errors.Is(err, services.ErrResetThrottled):
		status = fiber.StatusTooManyRequests
	case errors.Is(err, services.ErrOAuthOnlyAccount),
		errors.Is(err, services.ErrTwoFactorAlreadyEnabled),
		errors.Is(err, services.ErrTwoFactorNotConfigured),
		errors.Is(err, services.ErrTwoFactorNotEnabled),
		errors.Is(err, services.ErrEmailMismatch),
		errors.Is(err, services.ErrNoLocalPassword),
		errors.Is(err, services.ErrOAuthEmailMissing):
		status = fiber.StatusBadRequest
	}

	if status == fiber.StatusInternalServerError {
		slog.Error("unhandled service error", "path", c.Path(), "error", err)
		return c.Status(status).JSON(dto.ErrorResponse{
			Error: true, Message: "error interno del servidor",
		})
	}
	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error: true, Message: "no autorizado",
	})
}

func clientInfo(c *fiber.Ctx) services.ClientInfo {
	return services.ClientInfo{
		IP:        c.IP(),
		UserAgent: c.Get("User-Agent"),
	}
}
