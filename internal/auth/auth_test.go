package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("alice", testSecret, 30*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	username, err := ParseToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("alice", testSecret, 30*time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, "another-secret-another-secret-ab")
	assert.Error(t, err)
}

func TestParseTokenExpired(t *testing.T) {
	token, err := GenerateToken("alice", testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, testSecret)
	assert.Error(t, err)
}

func TestParseTokenGarbage(t *testing.T) {
	_, err := ParseToken("not.a.token", testSecret)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	assert.True(t, CheckPassword("s3cret", hash))
	assert.False(t, CheckPassword("wrong", hash))
	assert.False(t, CheckPassword("s3cret", "not-a-hash"))
}
