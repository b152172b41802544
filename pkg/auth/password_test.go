package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPassword("SecurePassword123!")
	require.NoError(t, err)
	assert.NotEqual(t, "SecurePassword123!", hash)

	assert.NoError(t, ComparePassword(hash, "SecurePassword123!"))
	assert.Error(t, ComparePassword(hash, "wrong-password"))
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("longenough"))
	assert.Error(t, ValidatePassword("short"))
}
