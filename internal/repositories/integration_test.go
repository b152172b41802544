package repositories_test

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/MaxMateus/ms-auth/internal/database"
	"github.com/MaxMateus/ms-auth/internal/models"
	"github.com/MaxMateus/ms-auth/internal/repositories"
)

// testDB manages the PostgreSQL testcontainer shared by the tests in this package
type testDB struct {
	container testcontainers.Container
	db        *database.DB
}

var (
	sharedOnce sync.Once
	sharedDB   *testDB
	sharedErr  error
)

// setupTestDatabase starts one PostgreSQL container for the whole package and
// hands each test a truncated schema.
func setupTestDatabase(t *testing.T) *testDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed tests in short mode")
	}

	sharedOnce.Do(func() {
		sharedDB, sharedErr = startTestDatabase()
	})
	if sharedErr != nil {
		t.Skipf("postgres container unavailable: %v", sharedErr)
	}

	sharedDB.truncate(t)
	return sharedDB
}

func startTestDatabase() (*testDB, error) {
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("ms_auth"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	// Goose needs a database/sql connection
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	if err := database.MigrateDB(sqlDB); err != nil {
		return nil, err
	}
	if err := sqlDB.Close(); err != nil {
		return nil, err
	}

	return &testDB{
		container: container,
		db:        database.NewDB(pool, slog.Default()),
	}, nil
}

func (tdb *testDB) truncate(t *testing.T) {
	t.Helper()
	for _, table := range []string{"mfa_codes", "mfa_methods", "access_tokens", "users"} {
		_, err := tdb.db.Pool.Exec(context.Background(), fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		require.NoError(t, err)
	}
}

func seedUser(t *testing.T, tdb *testDB, email string) *models.User {
	t.Helper()
	userRepo := repositories.NewUserRepository(tdb.db)
	user, err := userRepo.Create(context.Background(), tdb.db.Pool, &models.User{
		Name:         "Jane Doe",
		Email:        email,
		PasswordHash: "$2a$12$irrelevantforthesetests00000000000000000000000000000",
		Phone:        "5511987654321",
		AcceptTerms:  true,
	})
	require.NoError(t, err)
	return user
}

func TestUserRepository_Lifecycle(t *testing.T) {
	tdb := setupTestDatabase(t)
	ctx := context.Background()
	userRepo := repositories.NewUserRepository(tdb.db)

	user := seedUser(t, tdb, "jane@example.com")
	assert.Equal(t, models.StatusPendingVerification, user.Status)
	assert.Nil(t, user.EmailVerifiedAt)

	found, err := userRepo.GetByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	exists, err := userRepo.ExistsByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = userRepo.GetByEmail(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, models.ErrNotFound)

	// Activation is idempotent and stamps verification exactly once
	require.NoError(t, userRepo.Activate(ctx, tdb.db.Pool, user.ID))
	activated, err := userRepo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, activated.Status)
	require.NotNil(t, activated.EmailVerifiedAt)
	firstStamp := *activated.EmailVerifiedAt

	require.NoError(t, userRepo.Activate(ctx, tdb.db.Pool, user.ID))
	again, err := userRepo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, again.EmailVerifiedAt)
	assert.WithinDuration(t, firstStamp, *again.EmailVerifiedAt, time.Millisecond)
}

func TestUserRepository_DuplicateEmailConflicts(t *testing.T) {
	tdb := setupTestDatabase(t)
	userRepo := repositories.NewUserRepository(tdb.db)

	seedUser(t, tdb, "jane@example.com")

	_, err := userRepo.Create(context.Background(), tdb.db.Pool, &models.User{
		Name:         "Other Jane",
		Email:        "jane@example.com",
		PasswordHash: "hash",
		Phone:        "5511987654322",
	})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestAccessTokenRepository_ActiveFiltering(t *testing.T) {
	tdb := setupTestDatabase(t)
	ctx := context.Background()
	tokenRepo := repositories.NewAccessTokenRepository(tdb.db)
	user := seedUser(t, tdb, "tokens@example.com")

	live := &models.AccessToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		ClientID:  "test-client",
		Scopes:    []string{"*"},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	expired := &models.AccessToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		ClientID:  "test-client",
		Scopes:    []string{"*"},
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, tokenRepo.Create(ctx, tdb.db.Pool, live))
	require.NoError(t, tokenRepo.Create(ctx, tdb.db.Pool, expired))

	found, err := tokenRepo.FindActiveByID(ctx, live.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.UserID)
	assert.Equal(t, []string{"*"}, found.Scopes)

	// Expired records are invisible to the active lookup
	_, err = tokenRepo.FindActiveByID(ctx, expired.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	// Revocation hides the record; revoking again is not an error
	require.NoError(t, tokenRepo.Revoke(ctx, tdb.db.Pool, live.ID))
	_, err = tokenRepo.FindActiveByID(ctx, live.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	require.NoError(t, tokenRepo.Revoke(ctx, tdb.db.Pool, live.ID))

	// Cleanup removes the expired row
	deleted, err := tokenRepo.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deleted, int64(1))
}

func TestMfaCodeRepository_SingleActiveCode(t *testing.T) {
	tdb := setupTestDatabase(t)
	ctx := context.Background()
	codeRepo := repositories.NewMfaCodeRepository(tdb.db)
	user := seedUser(t, tdb, "codes@example.com")

	expiry := time.Now().Add(5 * time.Minute)
	_, err := codeRepo.Create(ctx, tdb.db.Pool, user.ID, models.ChannelEmail, user.Email, "111111", expiry)
	require.NoError(t, err)

	// Issuing a replacement invalidates the first code
	require.NoError(t, codeRepo.InvalidateActive(ctx, tdb.db.Pool, user.ID, models.ChannelEmail, user.Email))
	second, err := codeRepo.Create(ctx, tdb.db.Pool, user.ID, models.ChannelEmail, user.Email, "222222", expiry)
	require.NoError(t, err)

	_, err = codeRepo.FindValid(ctx, user.ID, models.ChannelEmail, user.Email, "111111")
	assert.ErrorIs(t, err, models.ErrNotFound)

	found, err := codeRepo.FindValid(ctx, user.ID, models.ChannelEmail, user.Email, "222222")
	require.NoError(t, err)
	assert.Equal(t, second.ID, found.ID)

	// Consumption is single-shot
	require.NoError(t, codeRepo.MarkConsumed(ctx, tdb.db.Pool, found.ID))
	assert.ErrorIs(t, codeRepo.MarkConsumed(ctx, tdb.db.Pool, found.ID), models.ErrNotFound)

	_, err = codeRepo.FindValid(ctx, user.ID, models.ChannelEmail, user.Email, "222222")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMfaCodeRepository_ExpiredCodeInvisible(t *testing.T) {
	tdb := setupTestDatabase(t)
	ctx := context.Background()
	codeRepo := repositories.NewMfaCodeRepository(tdb.db)
	user := seedUser(t, tdb, "expired@example.com")

	_, err := codeRepo.Create(ctx, tdb.db.Pool, user.ID, models.ChannelSms, "5511987654321", "333333", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = codeRepo.FindValid(ctx, user.ID, models.ChannelSms, "5511987654321", "333333")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMfaMethodRepository_UpsertInvariant(t *testing.T) {
	tdb := setupTestDatabase(t)
	ctx := context.Background()
	methodRepo := repositories.NewMfaMethodRepository(tdb.db)
	user := seedUser(t, tdb, "methods@example.com")

	// First upsert creates the row unverified
	method, err := methodRepo.Upsert(ctx, tdb.db.Pool, user.ID, models.ChannelEmail, user.Email, false)
	require.NoError(t, err)
	assert.False(t, method.Verified)

	// Verification sticks
	method, err = methodRepo.Upsert(ctx, tdb.db.Pool, user.ID, models.ChannelEmail, user.Email, true)
	require.NoError(t, err)
	assert.True(t, method.Verified)

	// Re-sending to the same destination never unverifies
	method, err = methodRepo.Upsert(ctx, tdb.db.Pool, user.ID, models.ChannelEmail, user.Email, false)
	require.NoError(t, err)
	assert.True(t, method.Verified)

	verified, err := methodRepo.IsVerified(ctx, user.ID, models.ChannelEmail)
	require.NoError(t, err)
	assert.True(t, verified)

	// A new destination resets the verified flag
	method, err = methodRepo.Upsert(ctx, tdb.db.Pool, user.ID, models.ChannelEmail, "new@example.com", false)
	require.NoError(t, err)
	assert.False(t, method.Verified)
	assert.Equal(t, "new@example.com", method.Destination)

	// One row per user/channel
	methods, err := methodRepo.ListForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, methods, 1)
}
