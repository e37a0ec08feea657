package adminapi

import (
	"testing"
	"time"

	pkgcrypto "github.com/lorawan-server/gateway-bridge/pkg/crypto"
)

func TestTokenManagerLoginAndValidate(t *testing.T) {
	hash, err := pkgcrypto.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	tm := NewTokenManager("test-secret", time.Minute, Credentials{Username: "operator", PasswordHash: hash})

	token, err := tm.Login("operator", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := tm.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Subject != "operator" {
		t.Fatalf("subject = %q, want operator", claims.Subject)
	}
}

func TestTokenManagerLoginWrongPassword(t *testing.T) {
	hash, _ := pkgcrypto.HashPassword("s3cret")
	tm := NewTokenManager("test-secret", time.Minute, Credentials{Username: "operator", PasswordHash: hash})

	if _, err := tm.Login("operator", "wrong"); err == nil {
		t.Fatal("expected error for wrong password")
	}
}

// TestValidateRejectsGarbageToken is part of testable property 10: a
// request without a valid token must be rejected.
func TestValidateRejectsGarbageToken(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Minute, Credentials{Username: "operator", PasswordHash: "x"})
	if _, err := tm.Validate("not-a-jwt"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}
