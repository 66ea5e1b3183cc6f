package auth

import (
	"errors"
	"testing"
	"time"
)

func newManager() *Manager {
	return &Manager{Secret: []byte("test-secret"), AccessTTL: time.Minute, RefreshTTL: time.Hour, Issuer: "v1tr0-backend"}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newManager()
	token, err := m.NewAccessToken("admin", RoleAdmin)
	if err != nil {
		t.Fatalf("NewAccessToken error: %v", err)
	}
	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if claims.Role != RoleAdmin || claims.Subject != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestRefreshTokenIsNotAccess(t *testing.T) {
	m := newManager()
	refresh, err := m.NewRefreshToken("admin", RoleAdmin)
	if err != nil {
		t.Fatalf("NewRefreshToken error: %v", err)
	}
	if _, err := m.Parse(refresh); err == nil {
		t.Fatalf("expected refresh token to be rejected as access token")
	}
	if _, err := m.ParseRefresh(refresh); err != nil {
		t.Fatalf("ParseRefresh error: %v", err)
	}
}

func TestParseRejectsOtherSecret(t *testing.T) {
	token, err := newManager().NewAccessToken("admin", RoleAdmin)
	if err != nil {
		t.Fatalf("NewAccessToken error: %v", err)
	}
	other := newManager()
	other.Secret = []byte("other")
	if _, err := other.Parse(token); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestComparePassword(t *testing.T) {
	if _, err := HashPassword("short"); err == nil {
		t.Fatalf("expected short password to be rejected")
	}
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if err := ComparePassword(hash, "correct horse battery"); err != nil {
		t.Fatalf("expected match: %v", err)
	}
	if err := ComparePassword(hash, "nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := ComparePassword("not-a-hash", "nope"); err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected malformed hash error, got %v", err)
	}
}
