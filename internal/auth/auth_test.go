package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPasswordRoundTrip(t *testing.T) {
	svc := NewService("test-secret", time.Hour, 4)

	hash, err := svc.HashPassword("hunter22")
	require.NoError(t, err)
	require.NotEqual(t, "hunter22", hash)

	require.True(t, svc.VerifyPassword("hunter22", hash))
	require.False(t, svc.VerifyPassword("hunter23", hash))
}

func TestTokenRoundTrip(t *testing.T) {
	svc := NewService("test-secret", time.Hour, 4)

	token, err := svc.IssueToken(42, "ada")
	require.NoError(t, err)

	id, err := svc.VerifyToken(token)
	require.NoError(t, err)
	require.Equal(t, int64(42), id.UserID)
	require.Equal(t, "ada", id.Name)
}

func TestTokenExpired(t *testing.T) {
	svc := NewService("test-secret", time.Hour, 4)
	svc.ttl = -time.Minute // backdate expiry; NewService clamps non-positive TTLs

	token, err := svc.IssueToken(42, "ada")
	require.NoError(t, err)

	_, err = svc.VerifyToken(token)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenTampered(t *testing.T) {
	svc := NewService("test-secret", time.Hour, 4)

	token, err := svc.IssueToken(42, "ada")
	require.NoError(t, err)

	_, err = svc.VerifyToken(token + "x")
	require.ErrorIs(t, err, ErrInvalidToken)

	other := NewService("different-secret", time.Hour, 4)
	_, err = other.VerifyToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenGarbage(t *testing.T) {
	svc := NewService("test-secret", time.Hour, 4)

	for _, tok := range []string{"", "not-a-token", "a.b.c"} {
		_, err := svc.VerifyToken(tok)
		require.ErrorIs(t, err, ErrInvalidToken, "token %q", tok)
	}
}
