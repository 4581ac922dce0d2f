package dto

import "github.com/lexia-platform/auth-service/internal/services"

// GoogleVerifyRequest is the mobile/SPA path: the client already holds a
// Google credential and posts it for verification.
type GoogleVerifyRequest struct {
	IDToken     string `json:"idToken,omitempty" validate:"required_without=AccessToken"`
	AccessToken string `json:"accessToken,omitempty" validate:"required_without=IDToken"`
}

type GoogleLoginResponse struct {
	AuthResponse
	IsNewUser bool `json:"isNewUser"`
}

type LinkedAccountsResponse struct {
	Accounts []services.LinkedAccount `json:"accounts"`
}
