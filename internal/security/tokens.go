package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// GenerateSecureToken returns n cryptographically random bytes hex-encoded.
// Used for email verification and password reset tokens.
func GenerateSecureToken(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// GenerateBackupCodes returns count human-typable recovery codes in
// XXXX-XXXX form. Callers must hash them before storage.
func GenerateBackupCodes(count int) ([]string, error) {
	codes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		raw := make([]byte, 4)
		if _, err := rand.Read(raw); err != nil {
			return nil, fmt.Errorf("failed to generate random bytes: %w", err)
		}
		code := strings.ToUpper(hex.EncodeToString(raw))
		codes = append(codes, code[:4]+"-"+code[4:])
	}
	return codes, nil
}

// HashBackupCode hashes a recovery code for storage; a leaked database must
// not reveal usable codes.
func HashBackupCode(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

// VerifyBackupCode re-hashes the presented code and compares in constant
// time.
func VerifyBackupCode(code, hash string) bool {
	candidate := HashBackupCode(code)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(hash)) == 1
}

// HashToken digests an opaque token before persistence.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
