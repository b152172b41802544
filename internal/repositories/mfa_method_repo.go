package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/MaxMateus/ms-auth/internal/database"
	"github.com/MaxMateus/ms-auth/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MfaMethodRepository handles verification method data access. One method
// row exists per (user, channel).
type MfaMethodRepository struct {
	pool *pgxpool.Pool
}

func NewMfaMethodRepository(db *database.DB) *MfaMethodRepository {
	return &MfaMethodRepository{pool: db.Pool}
}

func scanMethodRow(scanner rowScanner) (*models.MfaMethod, error) {
	var method models.MfaMethod

	err := scanner.Scan(
		&method.ID, &method.UserID, &method.Channel, &method.Destination,
		&method.Verified, &method.CreatedAt, &method.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &method, nil
}

// Upsert creates or updates the method row for (user, channel), enforcing
// the verified-flag invariant:
//   - a new row takes the given verified value
//   - verified=true always sticks
//   - an existing verified row only resets to false when the destination
//     changes; re-sending to the same destination never unverifies it
func (r *MfaMethodRepository) Upsert(ctx context.Context, q database.Querier, userID string, channel models.Channel, destination string, verified bool) (*models.MfaMethod, error) {
	selectQuery := `
		SELECT id, user_id, channel, destination, verified, created_at, updated_at
		FROM mfa_methods
		WHERE user_id = $1 AND channel = $2
	`

	existing, err := scanMethodRow(q.QueryRow(ctx, selectQuery, userID, channel))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to load mfa method: %w", err)
	}

	if existing == nil {
		insertQuery := `
			INSERT INTO mfa_methods (id, user_id, channel, destination, verified, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			RETURNING id, user_id, channel, destination, verified, created_at, updated_at
		`

		created, err := scanMethodRow(q.QueryRow(ctx, insertQuery,
			uuid.New().String(), userID, channel, destination, verified,
		))
		if err != nil {
			return nil, fmt.Errorf("failed to insert mfa method: %w", err)
		}
		return created, nil
	}

	destinationChanged := existing.Destination != destination

	newVerified := existing.Verified
	if verified {
		newVerified = true
	} else if destinationChanged {
		newVerified = false
	}

	updateQuery := `
		UPDATE mfa_methods
		SET destination = $1, verified = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING id, user_id, channel, destination, verified, created_at, updated_at
	`

	updated, err := scanMethodRow(q.QueryRow(ctx, updateQuery, destination, newVerified, existing.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to update mfa method: %w", err)
	}

	return updated, nil
}

// IsVerified reports whether the user has a verified method on the channel
func (r *MfaMethodRepository) IsVerified(ctx context.Context, userID string, channel models.Channel) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM mfa_methods
			WHERE user_id = $1 AND channel = $2 AND verified = TRUE
		)
	`

	var verified bool
	if err := r.pool.QueryRow(ctx, query, userID, channel).Scan(&verified); err != nil {
		return false, database.MapPostgresError(err)
	}

	return verified, nil
}

// ListForUser returns the user's methods ordered by creation
func (r *MfaMethodRepository) ListForUser(ctx context.Context, userID string) ([]*models.MfaMethod, error) {
	query := `
		SELECT id, user_id, channel, destination, verified, created_at, updated_at
		FROM mfa_methods
		WHERE user_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query mfa methods: %w", err)
	}

	return scanMethodRows(rows)
}

func scanMethodRows(rows pgx.Rows) ([]*models.MfaMethod, error) {
	defer rows.Close()

	methods := make([]*models.MfaMethod, 0)

	for rows.Next() {
		method, err := scanMethodRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mfa method: %w", err)
		}
		methods = append(methods, method)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return methods, nil
}
