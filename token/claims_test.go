package token_test

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return raw
}

func TestParseUnverified(t *testing.T) {
	iat := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	exp := iat.Add(time.Hour)

	t.Run("full claims", func(t *testing.T) {
		raw := sign(t, jwtlib.MapClaims{
			"sub":   "user-1",
			"email": "john.doe@example.com",
			"iss":   "https://auth.example.com",
			"aud":   "mobile-app",
			"jti":   "token-id",
			"scope": "openid profile  email",
			"iat":   iat.Unix(),
			"exp":   exp.Unix(),
		})

		c, err := token.ParseUnverified(raw)
		require.NoError(t, err)
		require.Equal(t, "user-1", c.Subject)
		require.Equal(t, "john.doe@example.com", c.Email)
		require.Equal(t, "https://auth.example.com", c.Issuer)
		require.Equal(t, []string{"mobile-app"}, c.Audience)
		require.Equal(t, "token-id", c.ID)
		require.Equal(t, []string{"openid", "profile", "email"}, c.Scopes)
		require.True(t, c.IssuedAt.Equal(iat))
		require.True(t, c.ExpiresAt.Equal(exp))
	})

	t.Run("scp array", func(t *testing.T) {
		raw := sign(t, jwtlib.MapClaims{"sub": "user-1", "scp": []any{"read", 7, "write"}})
		c, err := token.ParseUnverified(raw)
		require.NoError(t, err)
		require.Equal(t, []string{"read", "write"}, c.Scopes)
		require.True(t, c.ExpiresAt.IsZero())
	})

	t.Run("expired token still parses", func(t *testing.T) {
		raw := sign(t, jwtlib.MapClaims{"sub": "user-1", "exp": time.Now().Add(-time.Hour).Unix()})
		c, err := token.ParseUnverified(raw)
		require.NoError(t, err)
		require.True(t, c.ExpiresAt.Before(time.Now()))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := token.ParseUnverified("  ")
		require.True(t, errors.Is(err, token.ErrMalformedToken))
	})

	t.Run("opaque token", func(t *testing.T) {
		_, err := token.ParseUnverified("tGzv3JOkF0XG5Qx2TlKWIA")
		require.True(t, errors.Is(err, token.ErrMalformedToken))
	})
}
