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

const userColumns = `id, name, email, password_hash, cpf, phone, birthdate, gender, accept_terms,
		street, number, complement, neighborhood, city, state, zip_code,
		status, email_verified_at, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var cpf, gender, complement *string
	var birthdate, emailVerifiedAt *time.Time

	err := scanner.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&cpf, &user.Phone, &birthdate, &gender, &user.AcceptTerms,
		&user.Street, &user.Number, &complement, &user.Neighborhood,
		&user.City, &user.State, &user.ZipCode,
		&user.Status, &emailVerifiedAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if cpf != nil {
		user.Cpf = *cpf
	}
	if gender != nil {
		user.Gender = *gender
	}
	if complement != nil {
		user.Complement = *complement
	}
	user.Birthdate = birthdate
	user.EmailVerifiedAt = emailVerifiedAt

	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	return scanUserRow(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, email).Scan(&exists); err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

func (r *UserRepository) ExistsByCpf(ctx context.Context, cpf string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE cpf = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, cpf).Scan(&exists); err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

// Create inserts a new user. It takes a Querier so registration can run it
// inside a unit of work.
func (r *UserRepository) Create(ctx context.Context, q database.Querier, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.Status == "" {
		user.Status = models.StatusPendingVerification
	}

	var cpf, gender, complement *string
	if user.Cpf != "" {
		cpf = &user.Cpf
	}
	if user.Gender != "" {
		gender = &user.Gender
	}
	if user.Complement != "" {
		complement = &user.Complement
	}

	query := `
		INSERT INTO users (id, name, email, password_hash, cpf, phone, birthdate, gender, accept_terms,
			street, number, complement, neighborhood, city, state, zip_code,
			status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING ` + userColumns

	created, err := scanUserRow(q.QueryRow(ctx, query,
		user.ID, user.Name, user.Email, user.PasswordHash,
		cpf, user.Phone, user.Birthdate, gender, user.AcceptTerms,
		user.Street, user.Number, complement, user.Neighborhood,
		user.City, user.State, user.ZipCode,
		user.Status, user.CreatedAt, user.UpdatedAt,
	))
	if err != nil {
		return nil, err
	}

	return created, nil
}

// Activate flips the account to active and stamps email verification.
// Idempotent: activating an already-active account is a no-op update.
func (r *UserRepository) Activate(ctx context.Context, q database.Querier, userID string) error {
	query := `
		UPDATE users
		SET status = $1,
			email_verified_at = COALESCE(email_verified_at, NOW()),
			updated_at = NOW()
		WHERE id = $2
	`

	result, err := q.Exec(ctx, query, models.StatusActive, userID)
	if err != nil {
		return fmt.Errorf("failed to activate user: %w", database.MapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}
