package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"sendloop/models"
)

func TestJWTRoundTrip(t *testing.T) {
	user := &models.User{Model: gorm.Model{ID: 42}, Email: "u@example.com"}

	access, refresh, err := GenerateJWTTokens(user)
	require.NoError(t, err)
	assert.NotEqual(t, access, refresh)

	claims, err := ParseJWTToken(access)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)

	claims, err = ParseJWTToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
}

func TestParseJWTTokenRejectsTampered(t *testing.T) {
	user := &models.User{Model: gorm.Model{ID: 42}}
	access, _, err := GenerateJWTTokens(user)
	require.NoError(t, err)

	_, err = ParseJWTToken(access + "x")
	assert.Error(t, err)

	_, err = ParseJWTToken("not-a-token")
	assert.Error(t, err)
}
