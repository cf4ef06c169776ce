package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAuthenticator_DisabledWithoutSecret(t *testing.T) {
	assert.Nil(t, NewAuthenticator(""))
	assert.NotNil(t, NewAuthenticator("s3cret"))
}

func TestAuthenticator_RoundTrip(t *testing.T) {
	a := NewAuthenticator("s3cret")

	token, err := a.IssueToken("user-42", time.Minute)
	require.NoError(t, err)

	claims, err := a.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.Subject)
	assert.Equal(t, ScopeVoice, claims.Scope)
}

func TestAuthenticator_Rejects(t *testing.T) {
	a := NewAuthenticator("s3cret")

	expired, err := a.IssueToken("u", -time.Minute)
	require.NoError(t, err)

	foreign, err := NewAuthenticator("other").IssueToken("u", time.Minute)
	require.NoError(t, err)

	wrongScope, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &VoiceClaims{
		Scope: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &VoiceClaims{Scope: ScopeVoice}).
		SignedString([]byte("s3cret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "missing", token: "", want: ErrMissingToken},
		{name: "garbage", token: "not-a-jwt", want: jwt.ErrTokenMalformed},
		{name: "expired", token: expired, want: jwt.ErrTokenExpired},
		{name: "wrong secret", token: foreign, want: jwt.ErrTokenSignatureInvalid},
		{name: "wrong scope", token: wrongScope, want: ErrInvalidScope},
		{name: "no expiry", token: noExpiry, want: jwt.ErrTokenRequiredClaimMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.ValidateToken(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws/voice?token=from-query", nil)
	assert.Equal(t, "from-query", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", TokenFromRequest(r))

	assert.Empty(t, TokenFromRequest(httptest.NewRequest("GET", "/ws/voice", nil)))
}
