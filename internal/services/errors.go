package services

import "errors"

// Sentinel errors returned across the service boundary. Handlers map them to
// HTTP statuses; credential and token failures keep deliberately generic
// messages.
var (
	ErrEmailTaken         = errors.New("el email ya está registrado")
	ErrInvalidCredentials = errors.New("credenciales inválidas")
	ErrAccountLocked      = errors.New("cuenta bloqueada temporalmente, intenta más tarde")
	ErrAccountInactive    = errors.New("cuenta desactivada")
	ErrOAuthOnlyAccount   = errors.New("esta cuenta usa autenticación de terceros (Google)")
	ErrInvalidToken       = errors.New("token inválido o expirado")
	ErrUserNotFound       = errors.New("usuario no encontrado")
	ErrResetThrottled     = errors.New("ya se envió un email recientemente, espera 5 minutos")
	ErrIncorrectPassword  = errors.New("contraseña incorrecta")

	ErrTwoFactorAlreadyEnabled = errors.New("2FA ya está habilitado")
	ErrTwoFactorNotConfigured  = errors.New("primero debes configurar 2FA")
	ErrTwoFactorNotEnabled     = errors.New("2FA no está habilitado")
	ErrInvalidTwoFactorCode    = errors.New("código 2FA inválido")

	ErrGoogleAlreadyLinked = errors.New("esta cuenta ya tiene Google vinculado")
	ErrGoogleNotLinked     = errors.New("no hay cuenta Google vinculada")
	ErrEmailMismatch       = errors.New("el email de Google no coincide con el de tu cuenta")
	ErrNoLocalPassword     = errors.New("debes establecer una contraseña antes de desvincular Google")
	ErrOAuthEmailMissing   = errors.New("no se pudo obtener el email de Google")
)
