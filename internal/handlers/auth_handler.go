package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/lexia-platform/auth-service/internal/config"
	"github.com/lexia-platform/auth-service/internal/dto"
	"github.com/lexia-platform/auth-service/internal/middleware"
	"github.com/lexia-platform/auth-service/internal/models"
	"github.com/lexia-platform/auth-service/internal/services"
	"github.com/lexia-platform/auth-service/internal/token"
)

type AuthHandler struct {
	authService      *services.AuthService
	twoFactorService *services.TwoFactorService
	cfg              *config.Config
}

func NewAuthHandler(authService *services.AuthService, twoFactorService *services.TwoFactorService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{authService: authService, twoFactorService: twoFactorService, cfg: cfg}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	user, verificationToken, err := h.authService.Register(services.RegisterData{
		Email:    req.Email,
		Password: req.Password,
		Nombre:   req.Nombre,
		Apellido: req.Apellido,
		Telefono: req.Telefono,
	}, clientInfo(c))
	if err != nil {
		return serviceError(c, err)
	}

	resp := fiber.Map{
		"message": "usuario registrado, revisa tu email para verificar la cuenta",
		"user":    dto.NewUserResponse(user),
	}
	// Convenience link for local testing; never exposed in production.
	if !h.cfg.IsProduction() {
		resp["devVerificationUrl"] = h.cfg.FrontendURL + "/verify-email?token=" + verificationToken
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.authService.Login(req.Email, req.Password, clientInfo(c))
	if err != nil {
		return serviceError(c, err)
	}

	if result.Requires2FA {
		return c.JSON(dto.TwoFactorRequiredResponse{
			Requires2FA: true,
			UserID:      result.User.ID,
			TempToken:   result.TempToken,
		})
	}
	return c.JSON(authResponse(result.User, result.Pair))
}

// VerifyTwoFactorLogin completes a login started with a 2FA-scoped temp
// token: a valid TOTP or backup code releases the withheld token pair.
func (h *AuthHandler) VerifyTwoFactorLogin(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.TwoFactorLoginRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	if req.IsBackupCode {
		err = h.twoFactorService.VerifyBackupCode(userID, req.Code)
	} else {
		err = h.twoFactorService.VerifyCode(userID, req.Code)
	}
	if err != nil {
		return serviceError(c, err)
	}

	result, err := h.authService.CompleteTwoFactorLogin(userID, clientInfo(c))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(authResponse(result.User, result.Pair))
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	pair, err := h.authService.Refresh(req.RefreshToken, clientInfo(c))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(pair)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.LogoutRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.authService.Logout(userID, req.RefreshToken, clientInfo(c)); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.MessageResponse{Message: "sesión cerrada"})
}

func (h *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	revoked, err := h.authService.LogoutAll(userID, clientInfo(c))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":         "todas las sesiones cerradas",
		"sessionsRevoked": revoked,
	})
}

// VerifyEmail accepts the token via query (link click) or JSON body.
func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	tokenString := c.Query("token")
	if tokenString == "" {
		var req dto.VerifyEmailRequest
		if err := parseAndValidate(c, &req); err != nil {
			return err
		}
		tokenString = req.Token
	}

	if err := h.authService.VerifyEmail(tokenString); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.MessageResponse{Message: "email verificado correctamente"})
}

func (h *AuthHandler) ResendVerification(c *fiber.Ctx) error {
	var req dto.ResendVerificationRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.authService.ResendVerification(req.Email, clientInfo(c)); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.MessageResponse{
		Message: "si el email está registrado y pendiente de verificar, recibirás un nuevo enlace",
	})
}

func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.authService.ForgotPassword(req.Email, clientInfo(c)); err != nil {
		return serviceError(c, err)
	}
	// Same response whether or not the email exists.
	return c.JSON(dto.MessageResponse{
		Message: "si el email está registrado, recibirás instrucciones para restablecer tu contraseña",
	})
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.authService.ResetPassword(req.Token, req.NewPassword); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.MessageResponse{Message: "contraseña restablecida, inicia sesión de nuevo"})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	user, err := h.authService.Profile(userID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.NewUserResponse(user))
}

func (h *AuthHandler) UpdateMe(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.UpdateProfileRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.authService.UpdateProfile(userID, services.UpdateProfileData{
		Nombre:   req.Nombre,
		Apellido: req.Apellido,
		Telefono: req.Telefono,
		Email:    req.Email,
	})
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.NewUserResponse(user))
}

func (h *AuthHandler) Sessions(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	sessions, err := h.authService.ActiveSessions(userID)
	if err != nil {
		return serviceError(c, err)
	}

	out := make([]dto.SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, dto.SessionResponse{
			ID:         s.ID,
			IPAddress:  s.IPAddress,
			UserAgent:  s.UserAgent,
			DeviceInfo: s.DeviceInfo,
			CreatedAt:  s.CreatedAt,
			ExpiresAt:  s.ExpiresAt,
		})
	}
	return c.JSON(fiber.Map{"sessions": out})
}

func (h *AuthHandler) History(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	history, err := h.authService.AuthHistory(userID, limit)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"history": history})
}

func (h *AuthHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.authService.Stats()
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(stats)
}

func authResponse(user *models.User, pair *token.Pair) dto.AuthResponse {
	return dto.AuthResponse{
		AccessToken:           pair.AccessToken,
		RefreshToken:          pair.RefreshToken,
		AccessTokenExpiresIn:  pair.AccessTokenExpiresIn,
		RefreshTokenExpiresIn: pair.RefreshTokenExpiresIn,
		User:                  dto.NewUserResponse(user),
	}
}
