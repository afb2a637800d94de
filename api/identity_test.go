package api

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret"

func signedToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestJWTIdentityFromAuthorizationHeader(t *testing.T) {
	provider := NewJWTIdentityProvider(testJWTSecret)

	token := signedToken(t, testJWTSecret, jwt.MapClaims{
		"name":    "Alice",
		"picture": "https://example.com/alice.png",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	identity := provider.FromRequest(r)
	assert.Equal(t, "Alice", identity.DisplayName)
	assert.Equal(t, "https://example.com/alice.png", identity.AvatarURL)
}

func TestJWTIdentityFromQueryParam(t *testing.T) {
	provider := NewJWTIdentityProvider(testJWTSecret)

	token := signedToken(t, testJWTSecret, jwt.MapClaims{
		"name": "Bob",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	r := httptest.NewRequest("GET", "/ws?token="+token, nil)

	identity := provider.FromRequest(r)
	assert.Equal(t, "Bob", identity.DisplayName)
	assert.Empty(t, identity.AvatarURL)
}

func TestJWTIdentityDegradesToGuest(t *testing.T) {
	provider := NewJWTIdentityProvider(testJWTSecret)

	tests := []struct {
		name  string
		token string
	}{
		{"no token", ""},
		{"garbage token", "not.a.jwt"},
		{"wrong secret", signedToken(t, "other-secret", jwt.MapClaims{"name": "Mallory"})},
		{"expired", signedToken(t, testJWTSecret, jwt.MapClaims{
			"name": "Late", "exp": time.Now().Add(-time.Hour).Unix(),
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws", nil)
			if tt.token != "" {
				r.Header.Set("Authorization", "Bearer "+tt.token)
			}
			assert.Equal(t, GuestIdentity, provider.FromRequest(r))
		})
	}
}

func TestJWTIdentityNamelessClaimsKeepGuestName(t *testing.T) {
	provider := NewJWTIdentityProvider(testJWTSecret)

	token := signedToken(t, testJWTSecret, jwt.MapClaims{
		"picture": "https://example.com/p.png",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	identity := provider.FromRequest(r)
	assert.Equal(t, "Guest", identity.DisplayName)
	assert.Equal(t, "https://example.com/p.png", identity.AvatarURL)
}

func TestGuestIdentityProvider(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	assert.Equal(t, GuestIdentity, GuestIdentityProvider{}.FromRequest(r))
}
