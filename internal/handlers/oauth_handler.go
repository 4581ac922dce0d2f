package handlers

import (
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/lexia-platform/auth-service/internal/config"
	"github.com/lexia-platform/auth-service/internal/dto"
	"github.com/lexia-platform/auth-service/internal/middleware"
	"github.com/lexia-platform/auth-service/internal/security"
	"github.com/lexia-platform/auth-service/internal/services"
)

const oauthStateCookie = "oauth_state"

type OAuthHandler struct {
	oauthService *services.OAuthService
	cfg          *config.Config
}

func NewOAuthHandler(oauthService *services.OAuthService, cfg *config.Config) *OAuthHandler {
	return &OAuthHandler{oauthService: oauthService, cfg: cfg}
}

// GoogleRedirect starts the web flow: a random state goes into a short-lived
// cookie and the client is sent to the Google consent screen.
func (h *OAuthHandler) GoogleRedirect(c *fiber.Ctx) error {
	state, err := security.GenerateSecureToken(16)
	if err != nil {
		return serviceError(c, err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		MaxAge:   600,
		HTTPOnly: true,
		SameSite: "Lax",
		Secure:   h.cfg.IsProduction(),
	})
	return c.Redirect(h.oauthService.AuthURL(h.cfg.GoogleCallbackURL, state), fiber.StatusTemporaryRedirect)
}

// GoogleCallback finishes the web flow and redirects back to the frontend
// with the token pair in the query string.
func (h *OAuthHandler) GoogleCallback(c *fiber.Ctx) error {
	state := c.Query("state")
	if state == "" || state != c.Cookies(oauthStateCookie) {
		return h.redirectWithError(c, "estado OAuth inválido")
	}
	c.ClearCookie(oauthStateCookie)

	if errParam := c.Query("error"); errParam != "" {
		return h.redirectWithError(c, "acceso denegado por Google")
	}
	code := c.Query("code")
	if code == "" {
		return h.redirectWithError(c, "falta el código de autorización")
	}

	result, err := h.oauthService.LoginWithCode(code, h.cfg.GoogleCallbackURL, clientInfo(c))
	if err != nil {
		return h.redirectWithError(c, "no se pudo iniciar sesión con Google")
	}

	q := url.Values{
		"accessToken":  {result.Pair.AccessToken},
		"refreshToken": {result.Pair.RefreshToken},
	}
	if result.IsNewUser {
		q.Set("isNewUser", "true")
	}
	return c.Redirect(h.cfg.FrontendURL+"/oauth/callback?"+q.Encode(), fiber.StatusTemporaryRedirect)
}

// GoogleVerify is the mobile/SPA path: the client posts a Google credential
// it obtained itself.
func (h *OAuthHandler) GoogleVerify(c *fiber.Ctx) error {
	var req dto.GoogleVerifyRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.oauthService.Login(services.GoogleCredential{
		IDToken:     req.IDToken,
		AccessToken: req.AccessToken,
	}, clientInfo(c), "mobile")
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(dto.GoogleLoginResponse{
		AuthResponse: authResponse(result.User, result.Pair),
		IsNewUser:    result.IsNewUser,
	})
}

// GoogleLink attaches a Google identity to the authenticated account.
func (h *OAuthHandler) GoogleLink(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.GoogleVerifyRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	err = h.oauthService.LinkGoogleAccount(userID, services.GoogleCredential{
		IDToken:     req.IDToken,
		AccessToken: req.AccessToken,
	}, clientInfo(c))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.MessageResponse{Message: "cuenta Google vinculada"})
}

func (h *OAuthHandler) GoogleUnlink(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	if err := h.oauthService.UnlinkGoogleAccount(userID, clientInfo(c)); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.MessageResponse{Message: "cuenta Google desvinculada"})
}

func (h *OAuthHandler) LinkedAccounts(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	accounts, err := h.oauthService.LinkedAccounts(userID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.LinkedAccountsResponse{Accounts: accounts})
}

func (h *OAuthHandler) redirectWithError(c *fiber.Ctx, message string) error {
	return c.Redirect(h.cfg.FrontendURL+"/oauth/callback?error="+url.QueryEscape(message), fiber.StatusTemporaryRedirect)
}
