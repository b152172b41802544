package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaxMateus/ms-auth/internal/auth"
	"github.com/MaxMateus/ms-auth/internal/database"
	"github.com/MaxMateus/ms-auth/internal/models"
)

func newTestIssuer() *auth.TokenIssuer {
	return auth.NewTokenIssuer("test-secret-that-is-long-enough-000", "test-client", time.Hour)
}

func TestTokenService_Issue_PersistsAndCaches(t *testing.T) {
	var created *models.AccessToken
	repo := &MockAccessTokenRepository{
		CreateFunc: func(ctx context.Context, q database.Querier, token *models.AccessToken) error {
			created = token
			return nil
		},
	}
	tokenCache := newFakeTokenCache()
	svc := NewTokenService(newTestIssuer(), repo, tokenCache, &fakeUnitOfWork{}, fakeQuerier{}, slog.Default())

	tokenString, record, err := svc.Issue(context.Background(), "user123")

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, record.ID, created.ID)
	assert.Equal(t, "user123", record.UserID)

	// Bearer string embeds the durable record's identifier
	tokenID, err := auth.ExtractTokenID(tokenString)
	require.NoError(t, err)
	assert.Equal(t, record.ID, tokenID)

	entry := tokenCache.Get(context.Background(), record.ID)
	require.NotNil(t, entry)
	assert.Equal(t, "user123", entry.UserID)
	assert.Equal(t, "test-client", entry.ClientID)
}

func TestTokenService_Validate_Malformed(t *testing.T) {
	svc := NewTokenService(newTestIssuer(), &MockAccessTokenRepository{}, newFakeTokenCache(), &fakeUnitOfWork{}, fakeQuerier{}, slog.Default())

	_, err := svc.Validate(context.Background(), "not-a-token")

	assert.ErrorIs(t, err, models.ErrMalformedToken)
}

func TestTokenService_Validate_UnknownToken(t *testing.T) {
	tokenString, _, err := newTestIssuer().Issue("user123")
	require.NoError(t, err)

	svc := NewTokenService(newTestIssuer(), &MockAccessTokenRepository{}, newFakeTokenCache(), &fakeUnitOfWork{}, fakeQuerier{}, slog.Default())

	_, err = svc.Validate(context.Background(), tokenString)

	assert.ErrorIs(t, err, models.ErrTokenInvalid)
}

func TestTokenService_Validate_CacheMissBackfills(t *testing.T) {
	issuer := newTestIssuer()
	tokenString, record, err := issuer.Issue("user123")
	require.NoError(t, err)

	lookups := 0
	repo := &MockAccessTokenRepository{
		FindActiveByIDFunc: func(ctx context.Context, id string) (*models.AccessToken, error) {
			lookups++
			if id == record.ID {
				return record, nil
			}
			return nil, models.ErrNotFound
		},
	}
	tokenCache := newFakeTokenCache()
	svc := NewTokenService(issuer, repo, tokenCache, &fakeUnitOfWork{}, fakeQuerier{}, slog.Default())

	got, err := svc.Validate(context.Background(), tokenString)

	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, 1, lookups)

	entry := tokenCache.Get(context.Background(), record.ID)
	require.NotNil(t, entry)
	assert.Equal(t, "user123", entry.UserID)
}

func TestTokenService_Validate_CacheHitStillChecksDurableStore(t *testing.T) {
	issuer := newTestIssuer()
	tokenString, record, err := issuer.Issue("user123")
	require.NoError(t, err)

	// Cached, but revoked durably since: the hit must not be trusted
	tokenCache := newFakeTokenCache()
	tokenCache.Put(context.Background(), cacheEntry(record))

	repo := &MockAccessTokenRepository{
		FindActiveByIDFunc: func(ctx context.Context, id string) (*models.AccessToken, error) {
			return nil, models.ErrNotFound
		},
	}
	svc := NewTokenService(issuer, repo, tokenCache, &fakeUnitOfWork{}, fakeQuerier{}, slog.Default())

	_, err = svc.Validate(context.Background(), tokenString)

	assert.ErrorIs(t, err, models.ErrTokenInvalid)
	assert.Nil(t, tokenCache.Get(context.Background(), record.ID), "stale entry should be evicted")
}

func TestTokenService_Rotate_IssuesReplacementAndRevokesOld(t *testing.T) {
	issuer := newTestIssuer()
	tokenString, record, err := issuer.Issue("user123")
	require.NoError(t, err)

	active := map[string]*models.AccessToken{record.ID: record}
	repo := &MockAccessTokenRepository{
		FindActiveByIDFunc: func(ctx context.Context, id string) (*models.AccessToken, error) {
			if token, ok := active[id]; ok {
				return token, nil
			}
			return nil, models.ErrNotFound
		},
		RevokeFunc: func(ctx context.Context, q database.Querier, id string) error {
			delete(active, id)
			return nil
		},
		CreateFunc: func(ctx context.Context, q database.Querier, token *models.AccessToken) error {
			active[token.ID] = token
			return nil
		},
	}
	tokenCache := newFakeTokenCache()
	tokenCache.Put(context.Background(), cacheEntry(record))
	svc := NewTokenService(issuer, repo, tokenCache, &fakeUnitOfWork{}, fakeQuerier{}, slog.Default())

	newTokenString, newRecord, err := svc.Rotate(context.Background(), tokenString)

	require.NoError(t, err)
	assert.NotEqual(t, record.ID, newRecord.ID)
	assert.Equal(t, "user123", newRecord.UserID)

	_, stillActive := active[record.ID]
	assert.False(t, stillActive, "old record should be revoked")
	assert.Nil(t, tokenCache.Get(context.Background(), record.ID))
	assert.NotNil(t, tokenCache.Get(context.Background(), newRecord.ID))

	// The old bearer string no longer rotates: single use
	_, _, err = svc.Rotate(context.Background(), tokenString)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)

	// The replacement does
	_, _, err = svc.Rotate(context.Background(), newTokenString)
	assert.NoError(t, err)
}

func TestTokenService_Rotate_UnknownTokenEvictsCache(t *testing.T) {
	issuer := newTestIssuer()
	tokenString, record, err := issuer.Issue("user123")
	require.NoError(t, err)

	tokenCache := newFakeTokenCache()
	tokenCache.Put(context.Background(), cacheEntry(record))

	svc := NewTokenService(issuer, &MockAccessTokenRepository{}, tokenCache, &fakeUnitOfWork{}, fakeQuerier{}, slog.Default())

	_, _, err = svc.Rotate(context.Background(), tokenString)

	assert.ErrorIs(t, err, models.ErrTokenInvalid)
	assert.Nil(t, tokenCache.Get(context.Background(), record.ID))
}

func TestTokenService_Revoke_Idempotent(t *testing.T) {
	issuer := newTestIssuer()
	tokenString, record, err := issuer.Issue("user123")
	require.NoError(t, err)

	revocations := 0
	repo := &MockAccessTokenRepository{
		RevokeFunc: func(ctx context.Context, q database.Querier, id string) error {
			revocations++
			return nil
		},
	}
	tokenCache := newFakeTokenCache()
	tokenCache.Put(context.Background(), cacheEntry(record))
	svc := NewTokenService(issuer, repo, tokenCache, &fakeUnitOfWork{}, fakeQuerier{}, slog.Default())

	require.NoError(t, svc.Revoke(context.Background(), tokenString))
	assert.Nil(t, tokenCache.Get(context.Background(), record.ID))

	// Second revoke of the same token is not an error
	require.NoError(t, svc.Revoke(context.Background(), tokenString))
	assert.Equal(t, 2, revocations)
}

func TestTokenService_Revoke_Malformed(t *testing.T) {
	svc := NewTokenService(newTestIssuer(), &MockAccessTokenRepository{}, newFakeTokenCache(), &fakeUnitOfWork{}, fakeQuerier{}, slog.Default())

	err := svc.Revoke(context.Background(), "???")

	assert.ErrorIs(t, err, models.ErrMalformedToken)
}
