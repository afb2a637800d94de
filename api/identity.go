package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the opaque participant attribute set supplied by the identity
// provider. The synchronization core never interprets it beyond display.
type Identity struct {
	DisplayName string
	AvatarURL   string
}

// GuestIdentity is the degraded identity used whenever resolution fails.
// Identity failures never block joining.
var GuestIdentity = Identity{DisplayName: "Guest"}

// IdentityProvider resolves the identity attached to an incoming connection
type IdentityProvider interface {
	FromRequest(r *http.Request) Identity
}

// GuestIdentityProvider treats every connection as a guest
type GuestIdentityProvider struct{}

func (GuestIdentityProvider) FromRequest(*http.Request) Identity {
	return GuestIdentity
}

// JWTIdentityProvider extracts display name and avatar from a bearer token.
// Tokens arrive either in the Authorization header or, because browser
// WebSocket clients cannot set headers, in the "token" query parameter.
// Any parse or verification failure degrades to GuestIdentity.
type JWTIdentityProvider struct {
	secret []byte
}

// NewJWTIdentityProvider creates a provider verifying HMAC-signed tokens
func NewJWTIdentityProvider(secret string) *JWTIdentityProvider {
	return &JWTIdentityProvider{secret: []byte(secret)}
}

func (p *JWTIdentityProvider) FromRequest(r *http.Request) Identity {
	tokenStr := bearerToken(r)
	if tokenStr == "" {
		return GuestIdentity
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid {
		return GuestIdentity
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return GuestIdentity
	}

	identity := GuestIdentity
	if name, ok := claims["name"].(string); ok && name != "" {
		identity.DisplayName = name
	}
	if picture, ok := claims["picture"].(string); ok {
		identity.AvatarURL = picture
	}
	return identity
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	return r.URL.Query().Get("token")
}
