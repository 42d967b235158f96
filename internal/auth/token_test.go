package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyToken(t *testing.T) {
	manager := NewJWTManager("test-secret")

	token, err := manager.IssueToken("user-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	subject, err := manager.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", subject)
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewJWTManager("secret-a").IssueToken("user-1")
	require.NoError(t, err)

	_, err = NewJWTManager("secret-b").VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	_, err := NewJWTManager("test-secret").VerifyToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", hash)

	assert.True(t, CheckPassword(hash, "secret123"))
	assert.False(t, CheckPassword(hash, "wrong"))
}
