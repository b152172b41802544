package services

import (
	"context"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaxMateus/ms-auth/internal/database"
	"github.com/MaxMateus/ms-auth/internal/models"
	pkglogger "github.com/MaxMateus/ms-auth/pkg/logger"
)

func newMfaService(users UserRepository, codes MfaCodeRepository, methods MfaMethodRepository, dispatcher Dispatcher) *MfaService {
	logger := slog.Default()
	return NewMfaService(users, codes, methods, &fakeUnitOfWork{}, dispatcher, logger, pkglogger.NewAuditLogger(logger))
}

func testUser(id, email string) *models.User {
	return &models.User{
		ID:     id,
		Name:   "Jane Doe",
		Email:  email,
		Status: models.StatusPendingVerification,
	}
}

func TestMfaService_Send_EmailResolvesOwnerByDestination(t *testing.T) {
	user := testUser("user123", "jane@example.com")
	users := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			assert.Equal(t, "jane@example.com", email)
			return user, nil
		},
	}

	var invalidated bool
	var storedCode string
	codes := &MockMfaCodeRepository{
		InvalidateActiveFunc: func(ctx context.Context, q database.Querier, userID string, channel models.Channel, destination string) error {
			invalidated = true
			assert.False(t, storedCode != "", "prior codes must be invalidated before the new insert")
			return nil
		},
		CreateFunc: func(ctx context.Context, q database.Querier, userID string, channel models.Channel, destination, code string, expiresAt time.Time) (*models.MfaCode, error) {
			storedCode = code
			assert.Equal(t, "user123", userID)
			assert.WithinDuration(t, time.Now().Add(5*time.Minute), expiresAt, 2*time.Second)
			return &models.MfaCode{ID: "code-1", Code: code}, nil
		},
	}

	var upserted bool
	methods := &MockMfaMethodRepository{
		UpsertFunc: func(ctx context.Context, q database.Querier, userID string, channel models.Channel, destination string, verified bool) (*models.MfaMethod, error) {
			upserted = true
			assert.False(t, verified, "sending a code never verifies the method")
			return &models.MfaMethod{ID: "method-1"}, nil
		},
	}

	dispatcher := &MockDispatcher{Dispatched: make(chan struct{}, 1)}
	svc := newMfaService(users, codes, methods, dispatcher)

	// No authenticated caller: email identifies the owner on its own
	err := svc.Send(context.Background(), models.ChannelEmail, "Jane@Example.com", "")
	require.NoError(t, err)

	assert.True(t, invalidated)
	assert.True(t, upserted)
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), storedCode)

	select {
	case <-dispatcher.Dispatched:
	case <-time.After(2 * time.Second):
		t.Fatal("code was never dispatched")
	}

	calls := dispatcher.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, models.ChannelEmail, calls[0].Channel)
	assert.Equal(t, "jane@example.com", calls[0].Destination, "destination should be normalized")
	assert.Equal(t, storedCode, calls[0].Code)
}

func TestMfaService_Send_UnknownEmailOwner(t *testing.T) {
	svc := newMfaService(&MockUserRepository{}, &MockMfaCodeRepository{}, &MockMfaMethodRepository{}, &MockDispatcher{})

	err := svc.Send(context.Background(), models.ChannelEmail, "ghost@example.com", "")

	assert.ErrorIs(t, err, models.ErrMethodOwnerNotFound)
}

func TestMfaService_Send_SmsRequiresAuthentication(t *testing.T) {
	svc := newMfaService(&MockUserRepository{}, &MockMfaCodeRepository{}, &MockMfaMethodRepository{}, &MockDispatcher{})

	err := svc.Send(context.Background(), models.ChannelSms, "11987654321", "")

	assert.ErrorIs(t, err, models.ErrAuthenticationRequired)
}

func TestMfaService_Send_SmsNormalizesPhoneForAuthenticatedUser(t *testing.T) {
	user := testUser("user123", "jane@example.com")
	users := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			assert.Equal(t, "user123", id)
			return user, nil
		},
	}

	var destination string
	codes := &MockMfaCodeRepository{
		CreateFunc: func(ctx context.Context, q database.Querier, userID string, channel models.Channel, dest, code string, expiresAt time.Time) (*models.MfaCode, error) {
			destination = dest
			return &models.MfaCode{ID: "code-1"}, nil
		},
	}

	dispatcher := &MockDispatcher{Dispatched: make(chan struct{}, 1)}
	svc := newMfaService(users, codes, &MockMfaMethodRepository{}, dispatcher)

	err := svc.Send(context.Background(), models.ChannelSms, "(11) 98765-4321", "user123")
	require.NoError(t, err)

	assert.Equal(t, "5511987654321", destination)

	select {
	case <-dispatcher.Dispatched:
	case <-time.After(2 * time.Second):
		t.Fatal("code was never dispatched")
	}
}

func TestMfaService_Send_UnsupportedChannel(t *testing.T) {
	svc := newMfaService(&MockUserRepository{}, &MockMfaCodeRepository{}, &MockMfaMethodRepository{}, &MockDispatcher{})

	err := svc.Send(context.Background(), models.Channel("carrier-pigeon"), "somewhere", "user123")

	assert.ErrorIs(t, err, models.ErrUnsupportedChannel)
}

func TestMfaService_Send_DispatchFailureDoesNotFailRequest(t *testing.T) {
	user := testUser("user123", "jane@example.com")
	users := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}
	dispatcher := &MockDispatcher{
		Dispatched: make(chan struct{}, 1),
		DispatchFunc: func(ctx context.Context, channel models.Channel, destination, code string) error {
			return assert.AnError
		},
	}
	svc := newMfaService(users, &MockMfaCodeRepository{}, &MockMfaMethodRepository{}, dispatcher)

	err := svc.Send(context.Background(), models.ChannelEmail, "jane@example.com", "")

	assert.NoError(t, err)
	select {
	case <-dispatcher.Dispatched:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch was never attempted")
	}
}

func TestMfaService_Verify_EmailActivatesAccount(t *testing.T) {
	user := testUser("user123", "jane@example.com")
	users := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
		ActivateFunc: func(ctx context.Context, q database.Querier, userID string) error {
			assert.Equal(t, "user123", userID)
			user.Status = models.StatusActive
			return nil
		},
	}

	var consumed bool
	codes := &MockMfaCodeRepository{
		FindValidFunc: func(ctx context.Context, userID string, channel models.Channel, destination, code string) (*models.MfaCode, error) {
			if code != "123456" {
				return nil, models.ErrNotFound
			}
			return &models.MfaCode{ID: "code-1", UserID: userID, Code: code}, nil
		},
		MarkConsumedFunc: func(ctx context.Context, q database.Querier, id string) error {
			consumed = true
			return nil
		},
	}

	methods := &MockMfaMethodRepository{
		UpsertFunc: func(ctx context.Context, q database.Querier, userID string, channel models.Channel, destination string, verified bool) (*models.MfaMethod, error) {
			assert.True(t, verified)
			return &models.MfaMethod{ID: "method-1", UserID: userID, Channel: channel, Destination: destination, Verified: true}, nil
		},
	}

	svc := newMfaService(users, codes, methods, &MockDispatcher{})

	method, err := svc.Verify(context.Background(), models.ChannelEmail, "jane@example.com", "123456", "")

	require.NoError(t, err)
	assert.True(t, method.Verified)
	assert.True(t, consumed)
	assert.Equal(t, models.StatusActive, user.Status)
}

func TestMfaService_Verify_SmsDoesNotActivateAccount(t *testing.T) {
	user := testUser("user123", "jane@example.com")
	users := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
		ActivateFunc: func(ctx context.Context, q database.Querier, userID string) error {
			t.Fatal("sms verification must not activate the account")
			return nil
		},
	}
	codes := &MockMfaCodeRepository{
		FindValidFunc: func(ctx context.Context, userID string, channel models.Channel, destination, code string) (*models.MfaCode, error) {
			return &models.MfaCode{ID: "code-1", UserID: userID, Code: code}, nil
		},
	}

	svc := newMfaService(users, codes, &MockMfaMethodRepository{}, &MockDispatcher{})

	method, err := svc.Verify(context.Background(), models.ChannelSms, "5511987654321", "123456", "user123")

	require.NoError(t, err)
	assert.True(t, method.Verified)
}

func TestMfaService_Verify_WrongCode(t *testing.T) {
	user := testUser("user123", "jane@example.com")
	users := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}

	svc := newMfaService(users, &MockMfaCodeRepository{}, &MockMfaMethodRepository{}, &MockDispatcher{})

	_, err := svc.Verify(context.Background(), models.ChannelEmail, "jane@example.com", "000000", "")

	assert.ErrorIs(t, err, models.ErrInvalidCode)
}

func TestMfaService_Verify_RacedConsumptionLooksLikeWrongCode(t *testing.T) {
	user := testUser("user123", "jane@example.com")
	users := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}
	codes := &MockMfaCodeRepository{
		FindValidFunc: func(ctx context.Context, userID string, channel models.Channel, destination, code string) (*models.MfaCode, error) {
			return &models.MfaCode{ID: "code-1", UserID: userID, Code: code}, nil
		},
		MarkConsumedFunc: func(ctx context.Context, q database.Querier, id string) error {
			// Another request consumed the code first
			return models.ErrNotFound
		},
	}

	svc := newMfaService(users, codes, &MockMfaMethodRepository{}, &MockDispatcher{})

	_, err := svc.Verify(context.Background(), models.ChannelEmail, "jane@example.com", "123456", "")

	assert.ErrorIs(t, err, models.ErrInvalidCode)
}

func TestMfaService_ListMethods(t *testing.T) {
	methods := &MockMfaMethodRepository{
		ListForUserFunc: func(ctx context.Context, userID string) ([]*models.MfaMethod, error) {
			return []*models.MfaMethod{
				{ID: "m1", UserID: userID, Channel: models.ChannelEmail, Verified: true},
				{ID: "m2", UserID: userID, Channel: models.ChannelSms, Verified: false},
			}, nil
		},
	}
	svc := newMfaService(&MockUserRepository{}, &MockMfaCodeRepository{}, methods, &MockDispatcher{})

	list, err := svc.ListMethods(context.Background(), "user123")

	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.ChannelEmail, list[0].Channel)
}

func TestGenerateCode_Format(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), code)
		seen[code] = true
	}
	// Zero padding keeps the length fixed; collisions over 50 draws from a
	// million-value space are close enough to impossible for a test.
	assert.Greater(t, len(seen), 45)
}
