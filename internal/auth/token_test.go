package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_Issue(t *testing.T) {
	issuer := NewTokenIssuer("test-secret-at-least-16", "client-1", 15*time.Minute)

	tokenString, record, err := issuer.Issue("user-1")
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, "user-1", record.UserID)
	assert.Equal(t, "client-1", record.ClientID)
	assert.Equal(t, []string{"*"}, record.Scopes)
	assert.False(t, record.Revoked)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), record.ExpiresAt, 5*time.Second)

	// The embedded jti must match the record id so the codec resolves the
	// same identifier both stores are keyed by.
	id, err := ExtractTokenID(tokenString)
	require.NoError(t, err)
	assert.Equal(t, record.ID, id)
}

func TestTokenIssuer_Issue_UniqueIDs(t *testing.T) {
	issuer := NewTokenIssuer("test-secret-at-least-16", "client-1", 15*time.Minute)

	_, first, err := issuer.Issue("user-1")
	require.NoError(t, err)
	_, second, err := issuer.Issue("user-1")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}
