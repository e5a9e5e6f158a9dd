package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testSigningSecret = "unit-test-secret"
	testIssuer        = "featherdesk-accounts"
)

func newValidator(t *testing.T, clock func() time.Time) *SessionValidator {
	t.Helper()
	validator, err := NewSessionValidator(SessionValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        testIssuer,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return validator
}

func signToken(t *testing.T, secret string, claims SessionClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("unexpected signing error: %v", err)
	}
	return signed
}

func baseClaims(now time.Time) SessionClaims {
	return SessionClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestValidateTokenAcceptsWellFormedToken(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	validator := newValidator(t, func() time.Time { return now })

	claims, err := validator.ValidateToken(signToken(t, testSigningSecret, baseClaims(now)))
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("unexpected user id: %q", claims.UserID)
	}
}

func TestValidateTokenRejectsEmptyToken(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	validator := newValidator(t, func() time.Time { return now })

	if _, err := validator.ValidateToken("   "); !errors.Is(err, ErrMissingSessionToken) {
		t.Fatalf("expected ErrMissingSessionToken, got %v", err)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	validator := newValidator(t, func() time.Time { return now })

	if _, err := validator.ValidateToken(signToken(t, "other-secret", baseClaims(now))); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected ErrInvalidSessionToken, got %v", err)
	}
}

func TestValidateTokenRejectsExpiredToken(t *testing.T) {
	issuedAt := time.Unix(1700000000, 0).UTC()
	validator := newValidator(t, func() time.Time { return issuedAt.Add(2 * time.Hour) })

	if _, err := validator.ValidateToken(signToken(t, testSigningSecret, baseClaims(issuedAt))); !errors.Is(err, ErrExpiredSessionToken) {
		t.Fatalf("expected ErrExpiredSessionToken, got %v", err)
	}
}

func TestValidateTokenRejectsForeignIssuer(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	validator := newValidator(t, func() time.Time { return now })

	claims := baseClaims(now)
	claims.Issuer = "someone-else"
	if _, err := validator.ValidateToken(signToken(t, testSigningSecret, claims)); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected ErrInvalidSessionToken, got %v", err)
	}
}

func TestValidateTokenRejectsMissingUserID(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	validator := newValidator(t, func() time.Time { return now })

	claims := baseClaims(now)
	claims.UserID = ""
	if _, err := validator.ValidateToken(signToken(t, testSigningSecret, claims)); !errors.Is(err, ErrMissingSessionSubject) {
		t.Fatalf("expected ErrMissingSessionSubject, got %v", err)
	}
}

func TestNewSessionValidatorRequiresSecretAndIssuer(t *testing.T) {
	if _, err := NewSessionValidator(SessionValidatorConfig{Issuer: testIssuer}); !errors.Is(err, ErrMissingSessionSigningKey) {
		t.Fatalf("expected ErrMissingSessionSigningKey, got %v", err)
	}
	if _, err := NewSessionValidator(SessionValidatorConfig{SigningSecret: []byte("x")}); !errors.Is(err, ErrMissingSessionIssuer) {
		t.Fatalf("expected ErrMissingSessionIssuer, got %v", err)
	}
}
