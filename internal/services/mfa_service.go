package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/MaxMateus/ms-auth/internal/database"
	"github.com/MaxMateus/ms-auth/internal/models"
	"github.com/MaxMateus/ms-auth/pkg/logger"
)

const (
	codeLength     = 6
	codeExpiry     = 5 * time.Minute
	dispatchWindow = 15 * time.Second
)

// UserRepository defines the interface for user persistence
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByCpf(ctx context.Context, cpf string) (bool, error)
	Create(ctx context.Context, q database.Querier, user *models.User) (*models.User, error)
	Activate(ctx context.Context, q database.Querier, userID string) error
}

// MfaCodeRepository defines the interface for one-time code persistence
type MfaCodeRepository interface {
	Create(ctx context.Context, q database.Querier, userID string, channel models.Channel, destination, code string, expiresAt time.Time) (*models.MfaCode, error)
	InvalidateActive(ctx context.Context, q database.Querier, userID string, channel models.Channel, destination string) error
	FindValid(ctx context.Context, userID string, channel models.Channel, destination, code string) (*models.MfaCode, error)
	MarkConsumed(ctx context.Context, q database.Querier, id string) error
}

// MfaMethodRepository defines the interface for verification method persistence
type MfaMethodRepository interface {
	Upsert(ctx context.Context, q database.Querier, userID string, channel models.Channel, destination string, verified bool) (*models.MfaMethod, error)
	IsVerified(ctx context.Context, userID string, channel models.Channel) (bool, error)
	ListForUser(ctx context.Context, userID string) ([]*models.MfaMethod, error)
}

// Dispatcher delivers a verification code over a channel
type Dispatcher interface {
	Dispatch(ctx context.Context, channel models.Channel, destination, code string) error
}

// MfaService drives the one-time code verification flow: issuing codes,
// verifying them and tracking which contact methods a user has proven.
type MfaService struct {
	users      UserRepository
	codes      MfaCodeRepository
	methods    MfaMethodRepository
	uow        UnitOfWork
	dispatcher Dispatcher
	logger     *slog.Logger
	audit      *logger.AuditLogger
}

// NewMfaService creates a new MfaService
func NewMfaService(users UserRepository, codes MfaCodeRepository, methods MfaMethodRepository, uow UnitOfWork, dispatcher Dispatcher, log *slog.Logger, audit *logger.AuditLogger) *MfaService {
	return &MfaService{
		users:      users,
		codes:      codes,
		methods:    methods,
		uow:        uow,
		dispatcher: dispatcher,
		logger:     log,
		audit:      audit,
	}
}

// resolveOwner finds the user a code operation targets. Email destinations
// identify the user on their own, so the flow works for accounts that have
// never logged in. Every other channel requires an authenticated caller.
func (s *MfaService) resolveOwner(ctx context.Context, channel models.Channel, destination, authenticatedUserID string) (*models.User, error) {
	if !channel.RequiresAuthentication() {
		user, err := s.users.GetByEmail(ctx, destination)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil, models.ErrMethodOwnerNotFound
			}
			return nil, err
		}
		return user, nil
	}

	if authenticatedUserID == "" {
		return nil, models.ErrAuthenticationRequired
	}

	user, err := s.users.GetByID(ctx, authenticatedUserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrMethodOwnerNotFound
		}
		return nil, err
	}
	return user, nil
}

// Send issues a fresh one-time code for a channel/destination pair. Prior
// unconsumed codes for the same pair are invalidated in the same
// transaction, so only the newest code is ever accepted. Delivery happens
// asynchronously after commit and cannot fail the request.
func (s *MfaService) Send(ctx context.Context, channel models.Channel, destination, authenticatedUserID string) error {
	if !channel.Valid() {
		return models.ErrUnsupportedChannel
	}
	destination = channel.Normalize(destination)

	user, err := s.resolveOwner(ctx, channel, destination, authenticatedUserID)
	if err != nil {
		s.audit.LogAuthAttempt(logger.AuditEvent{
			EventType:     "mfa_send",
			UserID:        authenticatedUserID,
			Channel:       string(channel),
			Success:       false,
			FailureReason: err.Error(),
		})
		return err
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("failed to generate verification code: %w", err)
	}
	expiresAt := time.Now().Add(codeExpiry)

	err = s.uow.WithTransaction(ctx, func(q database.Querier) error {
		if _, err := s.methods.Upsert(ctx, q, user.ID, channel, destination, false); err != nil {
			return err
		}
		if err := s.codes.InvalidateActive(ctx, q, user.ID, channel, destination); err != nil {
			return err
		}
		_, err := s.codes.Create(ctx, q, user.ID, channel, destination, code, expiresAt)
		return err
	})
	if err != nil {
		return err
	}

	// The code is already persisted, so delivery runs detached from the
	// request context. Failures are the dispatcher's to log.
	go func() {
		dispatchCtx, cancel := context.WithTimeout(context.Background(), dispatchWindow)
		defer cancel()
		_ = s.dispatcher.Dispatch(dispatchCtx, channel, destination, code)
	}()

	s.audit.LogAuthAttempt(logger.AuditEvent{
		EventType: "mfa_send",
		UserID:    user.ID,
		Channel:   string(channel),
		Success:   true,
	})

	return nil
}

// Verify consumes a one-time code and marks the method verified. Email
// verifications also activate the account in the same transaction. Wrong,
// expired and consumed codes all come back as ErrInvalidCode.
func (s *MfaService) Verify(ctx context.Context, channel models.Channel, destination, code, authenticatedUserID string) (*models.MfaMethod, error) {
	if !channel.Valid() {
		return nil, models.ErrUnsupportedChannel
	}
	destination = channel.Normalize(destination)

	user, err := s.resolveOwner(ctx, channel, destination, authenticatedUserID)
	if err != nil {
		return nil, err
	}

	mfaCode, err := s.codes.FindValid(ctx, user.ID, channel, destination, code)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.audit.LogAuthAttempt(logger.AuditEvent{
				EventType:     "mfa_verify",
				UserID:        user.ID,
				Channel:       string(channel),
				Success:       false,
				FailureReason: "invalid code",
			})
			return nil, models.ErrInvalidCode
		}
		return nil, err
	}

	var method *models.MfaMethod
	err = s.uow.WithTransaction(ctx, func(q database.Querier) error {
		if err := s.codes.MarkConsumed(ctx, q, mfaCode.ID); err != nil {
			return err
		}
		method, err = s.methods.Upsert(ctx, q, user.ID, channel, destination, true)
		if err != nil {
			return err
		}
		if channel.ActivatesAccount() {
			return s.users.Activate(ctx, q, user.ID)
		}
		return nil
	})
	if err != nil {
		// A concurrent verify may have consumed the code between the
		// lookup and the update. Same answer as a wrong code.
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidCode
		}
		return nil, err
	}

	s.audit.LogAuthAttempt(logger.AuditEvent{
		EventType: "mfa_verify",
		UserID:    user.ID,
		Channel:   string(channel),
		Success:   true,
	})
	if channel.ActivatesAccount() {
		s.audit.LogAccountAction("account_activated", user.ID)
	}

	return method, nil
}

// ListMethods returns the verification methods registered for a user
func (s *MfaService) ListMethods(ctx context.Context, userID string) ([]*models.MfaMethod, error) {
	return s.methods.ListForUser(ctx, userID)
}

// generateCode produces a zero-padded numeric code from a CSPRNG
func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeLength; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeLength, n), nil
}
