package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/MaxMateus/ms-auth/internal/database"
	"github.com/MaxMateus/ms-auth/internal/models"
	pkgauth "github.com/MaxMateus/ms-auth/pkg/auth"
	"github.com/MaxMateus/ms-auth/pkg/contact"
	"github.com/MaxMateus/ms-auth/pkg/cpf"
	pkglogger "github.com/MaxMateus/ms-auth/pkg/logger"
)

// CodeIssuer starts a verification flow for a destination. Satisfied by
// MfaService; registration uses it to send the first email code.
type CodeIssuer interface {
	Send(ctx context.Context, channel models.Channel, destination, authenticatedUserID string) error
}

// RegisterInput carries the fields accepted at signup
type RegisterInput struct {
	Name         string
	Email        string
	Password     string
	Cpf          string
	Phone        string
	Birthdate    *time.Time
	Gender       string
	AcceptTerms  bool
	Street       string
	Number       string
	Complement   string
	Neighborhood string
	City         string
	State        string
	ZipCode      string
}

// RegisterService creates accounts and kicks off email verification
type RegisterService struct {
	users       UserRepository
	codeIssuer  CodeIssuer
	uow         UnitOfWork
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewRegisterService creates a new RegisterService
func NewRegisterService(users UserRepository, codeIssuer CodeIssuer, uow UnitOfWork, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *RegisterService {
	return &RegisterService{
		users:       users,
		codeIssuer:  codeIssuer,
		uow:         uow,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Register creates a pending account and sends the first email verification
// code. The account stays pending until that code is verified.
func (s *RegisterService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	input.Email = contact.NormalizeEmail(input.Email)
	input.Phone = contact.NormalizePhone(input.Phone)
	input.Cpf = cpf.Normalize(input.Cpf)
	input.ZipCode = contact.DigitsOnly(input.ZipCode)

	if !cpf.Valid(input.Cpf) {
		return nil, models.ErrInvalidCpf
	}
	if err := pkgauth.ValidatePassword(input.Password); err != nil {
		return nil, models.ErrBadRequest
	}

	if exists, err := s.users.ExistsByEmail(ctx, input.Email); err != nil {
		return nil, err
	} else if exists {
		return nil, models.ErrConflict
	}
	if exists, err := s.users.ExistsByCpf(ctx, input.Cpf); err != nil {
		return nil, err
	} else if exists {
		return nil, models.ErrConflict
	}

	passwordHash, err := pkgauth.HashPassword(input.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user := &models.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: passwordHash,
		Cpf:          input.Cpf,
		Phone:        input.Phone,
		Birthdate:    input.Birthdate,
		Gender:       input.Gender,
		AcceptTerms:  input.AcceptTerms,
		Street:       input.Street,
		Number:       input.Number,
		Complement:   input.Complement,
		Neighborhood: input.Neighborhood,
		City:         input.City,
		State:        input.State,
		ZipCode:      input.ZipCode,
		Status:       models.StatusPendingVerification,
	}

	var created *models.User
	err = s.uow.WithTransaction(ctx, func(q database.Querier) error {
		created, err = s.users.Create(ctx, q, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.auditLogger.LogAccountAction("user_registered", created.ID)

	// Email destinations resolve their own owner, so no authenticated
	// caller is needed for the first code.
	if err := s.codeIssuer.Send(ctx, models.ChannelEmail, created.Email, ""); err != nil {
		s.logger.Error("failed to send verification code after registration",
			slog.String("user_id", created.ID),
			slog.Any("error", err))
		return nil, err
	}

	return created, nil
}
