package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/MaxMateus/ms-auth/internal/database"
	"github.com/MaxMateus/ms-auth/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MfaCodeRepository handles one-time verification code data access
type MfaCodeRepository struct {
	pool *pgxpool.Pool
}

func NewMfaCodeRepository(db *database.DB) *MfaCodeRepository {
	return &MfaCodeRepository{pool: db.Pool}
}

func scanCodeRow(scanner rowScanner) (*models.MfaCode, error) {
	var code models.MfaCode

	err := scanner.Scan(
		&code.ID, &code.UserID, &code.Channel, &code.Destination,
		&code.Code, &code.Consumed, &code.ExpiresAt, &code.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &code, nil
}

// Create inserts a fresh code record for the tuple
func (r *MfaCodeRepository) Create(ctx context.Context, q database.Querier, userID string, channel models.Channel, destination, code string, expiresAt time.Time) (*models.MfaCode, error) {
	query := `
		INSERT INTO mfa_codes (id, user_id, channel, destination, code, consumed, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, NOW())
		RETURNING id, user_id, channel, destination, code, consumed, expires_at, created_at
	`

	record, err := scanCodeRow(q.QueryRow(ctx, query,
		uuid.New().String(), userID, channel, destination, code, expiresAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create mfa code: %w", err)
	}

	return record, nil
}

// InvalidateActive supersedes every unconsumed code for the tuple by marking
// it consumed, so at most the newest code can verify.
func (r *MfaCodeRepository) InvalidateActive(ctx context.Context, q database.Querier, userID string, channel models.Channel, destination string) error {
	query := `
		UPDATE mfa_codes
		SET consumed = TRUE
		WHERE user_id = $1 AND channel = $2 AND destination = $3 AND consumed = FALSE
	`

	if _, err := q.Exec(ctx, query, userID, channel, destination); err != nil {
		return fmt.Errorf("failed to invalidate active codes: %w", database.MapPostgresError(err))
	}

	return nil
}

// FindValid returns the unconsumed, unexpired code matching the tuple and
// code value, or models.ErrNotFound.
func (r *MfaCodeRepository) FindValid(ctx context.Context, userID string, channel models.Channel, destination, code string) (*models.MfaCode, error) {
	query := `
		SELECT id, user_id, channel, destination, code, consumed, expires_at, created_at
		FROM mfa_codes
		WHERE user_id = $1 AND channel = $2 AND destination = $3 AND code = $4
			AND consumed = FALSE AND expires_at > NOW()
		ORDER BY created_at DESC
		LIMIT 1
	`

	return scanCodeRow(r.pool.QueryRow(ctx, query, userID, channel, destination, code))
}

// MarkConsumed consumes a code by id
func (r *MfaCodeRepository) MarkConsumed(ctx context.Context, q database.Querier, id string) error {
	query := `UPDATE mfa_codes SET consumed = TRUE WHERE id = $1 AND consumed = FALSE`

	result, err := q.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark code consumed: %w", database.MapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// CleanupExpired deletes codes whose window closed (call periodically)
func (r *MfaCodeRepository) CleanupExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM mfa_codes WHERE expires_at < NOW() - INTERVAL '1 day'`

	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired codes: %w", database.MapPostgresError(err))
	}

	return result.RowsAffected(), nil
}
