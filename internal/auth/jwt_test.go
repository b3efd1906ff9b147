package auth

import (
	"strings"
	"testing"
	"time"
)

const testSecret = "test-secret-key-0123456789"

func TestTokenService_GenerateAndValidate(t *testing.T) {
	svc, err := NewTokenService(testSecret)
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}

	token, err := svc.Generate("abc123")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("token %q does not look like a JWT", token)
	}

	userID, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if userID != "abc123" {
		t.Errorf("Validate userID = %q, want abc123", userID)
	}
}

func TestTokenService_RejectsShortSecret(t *testing.T) {
	if _, err := NewTokenService("short"); err == nil {
		t.Error("secrets under 16 characters should be rejected")
	}
}

func TestTokenService_RejectsExpiredToken(t *testing.T) {
	svc, err := NewTokenService(testSecret)
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}

	token, err := svc.GenerateWithDuration("abc123", -time.Hour)
	if err != nil {
		t.Fatalf("GenerateWithDuration failed: %v", err)
	}

	if _, err := svc.Validate(token); err == nil {
		t.Error("expired token should fail validation")
	}
}

func TestTokenService_RejectsWrongSecret(t *testing.T) {
	issuer, err := NewTokenService(testSecret)
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}
	verifier, err := NewTokenService("a-completely-different-secret")
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}

	token, err := issuer.Generate("abc123")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if _, err := verifier.Validate(token); err == nil {
		t.Error("token signed with a different secret should fail validation")
	}
}

func TestTokenService_RejectsTamperedToken(t *testing.T) {
	svc, err := NewTokenService(testSecret)
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}

	token, err := svc.Generate("abc123")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// Flip a character in the payload segment.
	parts := strings.Split(token, ".")
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	if _, err := svc.Validate(tampered); err == nil {
		t.Error("tampered token should fail validation")
	}
}

func TestTokenService_RejectsGarbage(t *testing.T) {
	svc, err := NewTokenService(testSecret)
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}

	for _, bad := range []string{"", "not-a-jwt", "mock-token-abc123-1717243200000"} {
		if _, err := svc.Validate(bad); err == nil {
			t.Errorf("Validate(%q) should fail", bad)
		}
	}
}
