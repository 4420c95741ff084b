package jwtutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	token, err := GenerateToken("secret", time.Hour, 42, "ada")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.EqualValues(t, 42, claims.UserID)
	assert.Equal(t, "ada", claims.Username)
}

func TestParseWrongSecret(t *testing.T) {
	token, err := GenerateToken("secret", time.Hour, 42, "ada")
	require.NoError(t, err)

	_, err = ParseToken("other-secret", token)
	assert.Error(t, err)
}

func TestParseExpiredToken(t *testing.T) {
	token, err := GenerateToken("secret", -time.Minute, 42, "ada")
	require.NoError(t, err)

	_, err = ParseToken("secret", token)
	assert.Error(t, err)
}

func TestParseGarbage(t *testing.T) {
	_, err := ParseToken("secret", "not.a.token")
	assert.Error(t, err)
}

func TestGenerateEmptySecret(t *testing.T) {
	_, err := GenerateToken("", time.Hour, 1, "ada")
	assert.Error(t, err)
}
