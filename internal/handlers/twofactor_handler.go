package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/lexia-platform/auth-service/internal/dto"
	"github.com/lexia-platform/auth-service/internal/middleware"
	"github.com/lexia-platform/auth-service/internal/services"
)

type TwoFactorHandler struct {
	twoFactorService *services.TwoFactorService
}

func NewTwoFactorHandler(twoFactorService *services.TwoFactorService) *TwoFactorHandler {
	return &TwoFactorHandler{twoFactorService: twoFactorService}
}

func (h *TwoFactorHandler) Setup(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	setup, err := h.twoFactorService.Setup(userID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.TwoFactorSetupResponse{
		Secret:      setup.Secret,
		OtpauthURL:  setup.OtpauthURL,
		QRCode:      setup.QRCodeURL,
		BackupCodes: setup.BackupCodes,
	})
}

func (h *TwoFactorHandler) Enable(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.TwoFactorCodeRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.twoFactorService.Enable(userID, req.Code); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.MessageResponse{Message: "2FA habilitado correctamente"})
}

func (h *TwoFactorHandler) Disable(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.TwoFactorPasswordRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.twoFactorService.Disable(userID, req.Password); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.MessageResponse{Message: "2FA deshabilitado"})
}

func (h *TwoFactorHandler) Verify(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.TwoFactorCodeRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.twoFactorService.VerifyCode(userID, req.Code); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"valid": true})
}

func (h *TwoFactorHandler) VerifyBackup(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.TwoFactorBackupCodeRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.twoFactorService.VerifyBackupCode(userID, req.Code); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"valid": true})
}

func (h *TwoFactorHandler) RegenerateBackupCodes(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.TwoFactorPasswordRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	codes, err := h.twoFactorService.RegenerateBackupCodes(userID, req.Password)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.BackupCodesResponse{BackupCodes: codes})
}

func (h *TwoFactorHandler) Status(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	info, err := h.twoFactorService.Info(userID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.TwoFactorStatusResponse{
		Enabled:          info.Enabled,
		BackupCodesCount: info.BackupCodesCount,
		LastUsedAt:       info.LastUsedAt,
	})
}
