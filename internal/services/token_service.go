package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MaxMateus/ms-auth/internal/auth"
	"github.com/MaxMateus/ms-auth/internal/cache"
	"github.com/MaxMateus/ms-auth/internal/database"
	"github.com/MaxMateus/ms-auth/internal/models"
)

// AccessTokenRepository defines the interface for durable token operations
type AccessTokenRepository interface {
	Create(ctx context.Context, q database.Querier, token *models.AccessToken) error
	FindActiveByID(ctx context.Context, id string) (*models.AccessToken, error)
	Revoke(ctx context.Context, q database.Querier, id string) error
}

// UnitOfWork runs a set of durable mutations atomically
type UnitOfWork interface {
	WithTransaction(ctx context.Context, fn func(q database.Querier) error) error
}

// TokenService orchestrates the token lifecycle across the durable store and
// the volatile cache. The cache is consulted first for latency, but every
// hit is re-checked against the durable store before being trusted, so a
// revoked-but-still-cached token is never accepted.
type TokenService struct {
	issuer *auth.TokenIssuer
	repo   AccessTokenRepository
	cache  cache.TokenCache
	uow    UnitOfWork
	q      database.Querier
	logger *slog.Logger
}

// NewTokenService creates a new TokenService. q is the pool-backed querier
// used for writes that stand alone outside a rotation transaction.
func NewTokenService(issuer *auth.TokenIssuer, repo AccessTokenRepository, tokenCache cache.TokenCache, uow UnitOfWork, q database.Querier, logger *slog.Logger) *TokenService {
	return &TokenService{
		issuer: issuer,
		repo:   repo,
		cache:  tokenCache,
		uow:    uow,
		q:      q,
		logger: logger,
	}
}

// Issue mints a token for a user, persists its record and caches the
// projection. Cache failures never surface; the durable write is the only
// one that can fail the operation.
func (s *TokenService) Issue(ctx context.Context, userID string) (string, *models.AccessToken, error) {
	tokenString, record, err := s.issuer.Issue(userID)
	if err != nil {
		return "", nil, err
	}

	if err := s.repo.Create(ctx, s.q, record); err != nil {
		return "", nil, err
	}

	s.cache.Put(ctx, cacheEntry(record))

	s.logger.Info("token issued",
		slog.String("token_id", record.ID),
		slog.String("user_id", userID))

	return tokenString, record, nil
}

// Validate resolves a bearer token string to its active durable record.
// Returns ErrMalformedToken for unparseable strings and ErrTokenInvalid
// uniformly for not-found, expired and revoked tokens.
func (s *TokenService) Validate(ctx context.Context, tokenString string) (*models.AccessToken, error) {
	tokenID, err := auth.ExtractTokenID(tokenString)
	if err != nil {
		return nil, models.ErrMalformedToken
	}

	if entry := s.cache.Get(ctx, tokenID); entry != nil {
		// A hit still needs the durable existence/revocation/expiry check:
		// the record may have been revoked after it was cached.
		record, err := s.repo.FindActiveByID(ctx, tokenID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				s.cache.Remove(ctx, tokenID)
				return nil, models.ErrTokenInvalid
			}
			return nil, err
		}
		return record, nil
	}

	record, err := s.repo.FindActiveByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrTokenInvalid
		}
		return nil, err
	}

	// Backfill so the next validation short-circuits
	s.cache.Put(ctx, cacheEntry(record))

	return record, nil
}

// Rotate revokes the presented token and issues a replacement for the same
// user in one transaction. Single-use: the old record is revoked before the
// new one exists, so rotating the same token twice fails the second time.
func (s *TokenService) Rotate(ctx context.Context, tokenString string) (string, *models.AccessToken, error) {
	tokenID, err := auth.ExtractTokenID(tokenString)
	if err != nil {
		return "", nil, models.ErrMalformedToken
	}

	cached := s.cache.Get(ctx, tokenID)

	active, err := s.repo.FindActiveByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.cache.Remove(ctx, tokenID)
			return "", nil, models.ErrTokenInvalid
		}
		return "", nil, err
	}

	userID := active.UserID
	if cached != nil && cached.UserID != "" {
		userID = cached.UserID
	}

	newTokenString, newRecord, err := s.issuer.Issue(userID)
	if err != nil {
		return "", nil, err
	}

	err = s.uow.WithTransaction(ctx, func(q database.Querier) error {
		if err := s.repo.Revoke(ctx, q, tokenID); err != nil {
			return err
		}
		return s.repo.Create(ctx, q, newRecord)
	})
	if err != nil {
		return "", nil, err
	}

	s.cache.Remove(ctx, tokenID)
	s.cache.Put(ctx, cacheEntry(newRecord))

	s.logger.Info("token rotated",
		slog.String("old_token_id", tokenID),
		slog.String("new_token_id", newRecord.ID),
		slog.String("user_id", userID))

	return newTokenString, newRecord, nil
}

// Revoke evicts the token from the cache and marks it revoked in the
// durable store. Idempotent: unknown or already-revoked identifiers are not
// an error.
func (s *TokenService) Revoke(ctx context.Context, tokenString string) error {
	tokenID, err := auth.ExtractTokenID(tokenString)
	if err != nil {
		return models.ErrMalformedToken
	}

	s.cache.Remove(ctx, tokenID)

	if err := s.repo.Revoke(ctx, s.q, tokenID); err != nil {
		return err
	}

	s.logger.Info("token revoked", slog.String("token_id", tokenID))
	return nil
}

func cacheEntry(record *models.AccessToken) *models.TokenCacheEntry {
	return &models.TokenCacheEntry{
		TokenID:   record.ID,
		UserID:    record.UserID,
		ClientID:  record.ClientID,
		Scopes:    record.Scopes,
		ExpiresAt: record.ExpiresAt,
	}
}
