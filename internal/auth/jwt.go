// Package auth validates the optional bearer token that gates the voice socket.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ScopeVoice is the scope a token needs to open a voice session
const ScopeVoice = "voice"

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidScope = errors.New("token is not valid for voice sessions")
)

// VoiceClaims represents the claims in a voice token
type VoiceClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Authenticator issues and validates HS256 voice tokens
type Authenticator struct {
	secret []byte
}

// NewAuthenticator returns nil when secret is empty, meaning the voice
// socket is open to anyone.
func NewAuthenticator(secret string) *Authenticator {
	if secret == "" {
		return nil
	}
	return &Authenticator{secret: []byte(secret)}
}

// IssueToken generates a voice token for subject valid for ttl
func (a *Authenticator) IssueToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &VoiceClaims{
		Scope: ScopeVoice,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken validates a JWT token and returns the claims
func (a *Authenticator) ValidateToken(tokenString string) (*VoiceClaims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &VoiceClaims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*VoiceClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Scope != ScopeVoice {
		return nil, ErrInvalidScope
	}
	return claims, nil
}

// TokenFromRequest reads the token from the Authorization header or, since
// browsers cannot set headers on a WebSocket upgrade, the token query param.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return r.URL.Query().Get("token")
}
