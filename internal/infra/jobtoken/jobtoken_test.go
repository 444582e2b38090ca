package jobtoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSignVerify(t *testing.T) {
	tok, err := Sign("s3cret", Subject, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sub, err := Verify("s3cret", tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sub != Subject {
		t.Errorf("expected subject %q, got %q", Subject, sub)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	tok, _ := Sign("s3cret", Subject, time.Minute)
	if _, err := Verify("other", tok); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestVerify_Expired(t *testing.T) {
	tok, _ := Sign("s3cret", Subject, -time.Minute)
	if _, err := Verify("s3cret", tok); err == nil {
		t.Fatal("expected expiry error")
	}
}

func TestVerify_RequiresExpiry(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "x"}).SignedString([]byte("s3cret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := Verify("s3cret", tok); err == nil {
		t.Fatal("tokens without exp must be rejected")
	}
}

func TestSign_EmptySecret(t *testing.T) {
	if _, err := Sign("", Subject, time.Minute); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
