package security

import (
	"strings"
	"testing"
)

func TestGenerateSecureToken(t *testing.T) {
	tok, err := GenerateSecureToken(32)
	if err != nil {
		t.Fatalf("GenerateSecureToken failed: %v", err)
	}
	if len(tok) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(tok))
	}

	other, err := GenerateSecureToken(32)
	if err != nil {
		t.Fatalf("GenerateSecureToken failed: %v", err)
	}
	if tok == other {
		t.Fatal("two generated tokens must differ")
	}
}

func TestGenerateBackupCodesFormat(t *testing.T) {
	codes, err := GenerateBackupCodes(8)
	if err != nil {
		t.Fatalf("GenerateBackupCodes failed: %v", err)
	}
	if len(codes) != 8 {
		t.Fatalf("expected 8 codes, got %d", len(codes))
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		if len(code) != 9 || code[4] != '-' {
			t.Fatalf("expected XXXX-XXXX form, got %q", code)
		}
		if code != strings.ToUpper(code) {
			t.Fatalf("expected uppercase code, got %q", code)
		}
		if seen[code] {
			t.Fatalf("duplicate code %q", code)
		}
		seen[code] = true
	}
}

func TestVerifyBackupCode(t *testing.T) {
	hash := HashBackupCode("A1B2-C3D4")
	if hash == "A1B2-C3D4" {
		t.Fatal("hash must not equal the raw code")
	}
	if !VerifyBackupCode("A1B2-C3D4", hash) {
		t.Fatal("expected matching code to verify")
	}
	if VerifyBackupCode("A1B2-C3D5", hash) {
		t.Fatal("expected wrong code to fail")
	}
}

func TestHashTokenDeterministic(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Fatal("expected stable hash for the same token")
	}
	if HashToken("abc") == HashToken("abd") {
		t.Fatal("expected different hashes for different tokens")
	}
}
