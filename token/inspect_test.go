package token_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/prompting-recipe/token"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("1234"))
	require.NoError(t, err)
	return raw
}

func TestInspect(t *testing.T) {
	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	iat := exp.Add(-time.Hour)

	t.Run("jwt", func(t *testing.T) {
		raw := signedToken(t, jwt.MapClaims{"sub": "user-1", "exp": exp.Unix(), "iat": iat.Unix()})
		claims, ok := token.Inspect(raw)
		require.True(t, ok)
		require.Equal(t, "user-1", claims.Subject)
		require.True(t, exp.Equal(claims.ExpiresAt))
		require.True(t, iat.Equal(claims.IssuedAt))
	})

	t.Run("expired jwt still decodes", func(t *testing.T) {
		raw := signedToken(t, jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})
		_, ok := token.Inspect(raw)
		require.True(t, ok)
	})

	t.Run("opaque", func(t *testing.T) {
		_, ok := token.Inspect("A1")
		require.False(t, ok)
	})

	t.Run("three garbage segments", func(t *testing.T) {
		_, ok := token.Inspect("a.b.c")
		require.False(t, ok)
	})
}

func TestNew(t *testing.T) {
	exp := time.Now().Add(10 * time.Minute).Truncate(time.Second)

	jwtTok := token.New(signedToken(t, jwt.MapClaims{"exp": exp.Unix()}), "R1")
	require.Equal(t, "Bearer", jwtTok.TokenType)
	require.Equal(t, "R1", jwtTok.RefreshToken)
	require.True(t, exp.Equal(jwtTok.Expiry))

	opaque := token.New("A1", "R1")
	require.True(t, opaque.Expiry.IsZero())
	require.True(t, opaque.Valid())
}

func TestExpiresWithin(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	tok := token.New("A1", "R1")
	require.False(t, token.ExpiresWithin(tok, time.Minute, now), "unknown expiry never triggers")

	tok.Expiry = now.Add(30 * time.Second)
	require.True(t, token.ExpiresWithin(tok, time.Minute, now))
	require.False(t, token.ExpiresWithin(tok, 10*time.Second, now))

	require.False(t, token.ExpiresWithin(nil, time.Minute, now))
}
