package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 15)

	signed, err := tm.GenerateToken("user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, signed.Token)
	assert.NotEmpty(t, signed.ID)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), signed.ExpiresAt, 5*time.Second)

	claims, err := tm.ParseToken(signed.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, signed.ID, claims.ID)
}

func TestTokenManager_UniqueIDs(t *testing.T) {
	tm := NewTokenManager("secret", 15)
	a, err := tm.GenerateToken("user-1")
	require.NoError(t, err)
	b, err := tm.GenerateToken("user-1")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.Token, b.Token)
}

func TestTokenManager_Rejects(t *testing.T) {
	tm := NewTokenManager("secret", 15)
	signed, err := tm.GenerateToken("user-1")
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewTokenManager("other", 15).ParseToken(signed.Token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tm.ParseToken("not-a-token")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		expired := NewTokenManager("secret", 1)
		expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		old, err := expired.GenerateToken("user-1")
		require.NoError(t, err)

		_, err = tm.ParseToken(old.Token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestNewTokenManager_DefaultTTL(t *testing.T) {
	assert.Equal(t, time.Hour, NewTokenManager("secret", 0).TTL())
}
