package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ts := NewTokenService([]byte("test-secret"), time.Hour, clock)
	userID := uuid.New()

	token, err := ts.Mint(userID, "alice")
	require.NoError(t, err)

	identity, err := ts.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID, identity.UserID)
	assert.Equal(t, "alice", identity.Username)
}

func TestTokenExpired(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ts := NewTokenService([]byte("test-secret"), time.Hour, clock)

	token, err := ts.Mint(uuid.New(), "alice")
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	_, err = ts.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenTampered(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ts := NewTokenService([]byte("test-secret"), time.Hour, clock)

	token, err := ts.Mint(uuid.New(), "alice")
	require.NoError(t, err)

	_, err = ts.Verify("x" + token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ts.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenWrongSecret(t *testing.T) {
	clock := clockwork.NewFakeClock()
	minted, err := NewTokenService([]byte("secret-a"), time.Hour, clock).Mint(uuid.New(), "alice")
	require.NoError(t, err)

	_, err = NewTokenService([]byte("secret-b"), time.Hour, clock).Verify(minted)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)
	assert.True(t, CheckPassword(hash, "hunter22"))
	assert.False(t, CheckPassword(hash, "hunter23"))
}
