package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/MaxMateus/ms-auth/internal/database"
	"github.com/MaxMateus/ms-auth/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccessTokenRepository owns the durable token records. It is the source of
// truth for every validation decision; the Redis cache only fronts it.
type AccessTokenRepository struct {
	pool *pgxpool.Pool
}

func NewAccessTokenRepository(db *database.DB) *AccessTokenRepository {
	return &AccessTokenRepository{pool: db.Pool}
}

func scanTokenRow(scanner rowScanner) (*models.AccessToken, error) {
	var token models.AccessToken

	err := scanner.Scan(
		&token.ID, &token.UserID, &token.ClientID, &token.Scopes,
		&token.Revoked, &token.ExpiresAt, &token.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &token, nil
}

// Create persists an issued token record
func (r *AccessTokenRepository) Create(ctx context.Context, q database.Querier, token *models.AccessToken) error {
	query := `
		INSERT INTO access_tokens (id, user_id, client_id, scopes, revoked, expires_at, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, $6)
	`

	_, err := q.Exec(ctx, query,
		token.ID, token.UserID, token.ClientID, token.Scopes,
		token.ExpiresAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create access token: %w", database.MapPostgresError(err))
	}

	return nil
}

// FindActiveByID returns the token only if it exists, is not revoked and has
// not expired. Returns models.ErrNotFound otherwise.
func (r *AccessTokenRepository) FindActiveByID(ctx context.Context, id string) (*models.AccessToken, error) {
	query := `
		SELECT id, user_id, client_id, scopes, revoked, expires_at, created_at
		FROM access_tokens
		WHERE id = $1 AND revoked = FALSE AND expires_at > NOW()
	`

	return scanTokenRow(r.pool.QueryRow(ctx, query, id))
}

// Revoke marks a token revoked. Idempotent: revoking an already-revoked or
// unknown id is not an error.
func (r *AccessTokenRepository) Revoke(ctx context.Context, q database.Querier, id string) error {
	query := `UPDATE access_tokens SET revoked = TRUE WHERE id = $1`

	if _, err := q.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to revoke access token: %w", database.MapPostgresError(err))
	}

	return nil
}

// CleanupExpired removes token rows past their expiry (call periodically)
func (r *AccessTokenRepository) CleanupExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM access_tokens WHERE expires_at < $1`

	result, err := r.pool.Exec(ctx, query, time.Now())
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}
