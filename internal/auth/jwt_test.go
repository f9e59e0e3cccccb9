package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestManager() *Manager {
	return NewManager("test-secret", 15*time.Minute, 720*time.Hour)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newTestManager()

	raw, err := m.GenerateAccessToken("user-1", "alice@example.com", "user")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := m.VerifyAccessToken(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "alice@example.com" || claims.Role != "user" {
		t.Fatalf("claims round trip: %+v", claims)
	}
	if claims.TokenType != "access" {
		t.Fatalf("typ = %q, want access", claims.TokenType)
	}
}

func TestRefreshTokenRejectedAsAccess(t *testing.T) {
	m := newTestManager()

	raw, jti, _, err := m.GenerateRefreshToken("user-1", "alice@example.com", "user")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if jti == "" {
		t.Fatal("refresh token issued without jti")
	}

	if _, err := m.VerifyAccessToken(raw); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("err = %v, want ErrWrongTokenType", err)
	}
	if _, err := m.VerifyRefreshToken(raw); err != nil {
		t.Fatalf("verify as refresh: %v", err)
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	raw, err := NewManager("other-secret", time.Minute, time.Hour).
		GenerateAccessToken("user-1", "alice@example.com", "user")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := newTestManager().VerifyAccessToken(raw); err == nil {
		t.Fatal("token signed with a different secret verified")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := NewManager("test-secret", -time.Minute, time.Hour)

	raw, err := m.GenerateAccessToken("user-1", "alice@example.com", "user")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := m.VerifyAccessToken(raw); err == nil {
		t.Fatal("expired token verified")
	}
}

func TestHashRefreshTokenDeterministic(t *testing.T) {
	m := newTestManager()

	a := m.HashRefreshToken("raw-token")
	b := m.HashRefreshToken("raw-token")
	if a != b {
		t.Fatal("hash is not deterministic")
	}
	if a == m.HashRefreshToken("other-token") {
		t.Fatal("distinct tokens hash identically")
	}
	if a == NewManager("other-secret", time.Minute, time.Hour).HashRefreshToken("raw-token") {
		t.Fatal("hash ignores the secret")
	}
}
