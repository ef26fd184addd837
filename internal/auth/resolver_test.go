package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/othnielvtf/livechat/internal/auth"
)

const testJWTSecret = "test-jwt-secret"

func signToken(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing test token failed: %v", err)
	}
	return s
}

type tokenClaims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

func TestResolveBearerToken(t *testing.T) {
	r := auth.NewResolver(newTestLogger(), testJWTSecret)
	token := signToken(t, testJWTSecret, tokenClaims{
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	id, err := r.Resolve(auth.Credential{Token: token})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if id.UserID != "u1" || id.Username != "alice" {
		t.Errorf("Resolve() = %+v, want u1/alice", id)
	}
}

func TestResolveTokenUsernameFallsBackToSubject(t *testing.T) {
	r := auth.NewResolver(newTestLogger(), testJWTSecret)
	token := signToken(t, testJWTSecret, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
	})

	id, err := r.Resolve(auth.Credential{Token: token})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if id.Username != "u1" {
		t.Errorf("Username = %q, want subject fallback", id.Username)
	}
}

func TestResolveRejectsBadSignature(t *testing.T) {
	r := auth.NewResolver(newTestLogger(), testJWTSecret)
	token := signToken(t, "wrong-secret", tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
	})

	_, err := r.Resolve(auth.Credential{Token: token})
	if auth.KindOf(err) != auth.KindInvalidCredential {
		t.Errorf("kind = %v, want invalid_credential", auth.KindOf(err))
	}
}

func TestResolveRejectsExpiredToken(t *testing.T) {
	r := auth.NewResolver(newTestLogger(), testJWTSecret)
	token := signToken(t, testJWTSecret, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	_, err := r.Resolve(auth.Credential{Token: token})
	if auth.KindOf(err) != auth.KindInvalidCredential {
		t.Errorf("kind = %v, want invalid_credential", auth.KindOf(err))
	}
}

func TestResolveRejectsMissingSubject(t *testing.T) {
	r := auth.NewResolver(newTestLogger(), testJWTSecret)
	token := signToken(t, testJWTSecret, tokenClaims{Username: "ghost"})

	_, err := r.Resolve(auth.Credential{Token: token})
	if auth.KindOf(err) != auth.KindInvalidCredential {
		t.Errorf("kind = %v, want invalid_credential", auth.KindOf(err))
	}
}

func TestResolveRawPair(t *testing.T) {
	r := auth.NewResolver(newTestLogger(), testJWTSecret)
	id, err := r.Resolve(auth.Credential{UserID: "u2", Username: "bob"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if id.UserID != "u2" || id.Username != "bob" {
		t.Errorf("Resolve() = %+v, want u2/bob", id)
	}
}

func TestResolveEmptyCredential(t *testing.T) {
	r := auth.NewResolver(newTestLogger(), testJWTSecret)
	cases := []auth.Credential{
		{},
		{UserID: "u1"},
		{Username: "alice"},
	}
	for _, cred := range cases {
		if _, err := r.Resolve(cred); auth.KindOf(err) != auth.KindInvalidCredential {
			t.Errorf("Resolve(%+v): kind = %v, want invalid_credential", cred, auth.KindOf(err))
		}
	}
}
