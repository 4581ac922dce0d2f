package security

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

const specialChars = `!@#$%^&*(),.?":{}|<>`

// PasswordPolicyError lists every rule the candidate password violated, not
// just the first one.
type PasswordPolicyError struct {
	Violations []string
}

func (e *PasswordPolicyError) Error() string {
	return strings.Join(e.Violations, ", ")
}

func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func ComparePassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// ValidatePasswordStrength enforces the password policy: minimum 8
// characters, at least one uppercase, one lowercase, one digit and one
// special character.
func ValidatePasswordStrength(plain string) error {
	var violations []string

	if len(plain) < 8 {
		violations = append(violations, "la contraseña debe tener al menos 8 caracteres")
	}
	if !strings.ContainsFunc(plain, func(r rune) bool { return r >= 'A' && r <= 'Z' }) {
		violations = append(violations, "la contraseña debe contener al menos una letra mayúscula")
	}
	if !strings.ContainsFunc(plain, func(r rune) bool { return r >= 'a' && r <= 'z' }) {
		violations = append(violations, "la contraseña debe contener al menos una letra minúscula")
	}
	if !strings.ContainsFunc(plain, func(r rune) bool { return r >= '0' && r <= '9' }) {
		violations = append(violations, "la contraseña debe contener al menos un número")
	}
	if !strings.ContainsAny(plain, specialChars) {
		violations = append(violations, `la contraseña debe contener al menos un carácter especial (!@#$%^&*(),.?":{}|<>)`)
	}

	if len(violations) > 0 {
		return &PasswordPolicyError{Violations: violations}
	}
	return nil
}
