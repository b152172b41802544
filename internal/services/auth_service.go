package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MaxMateus/ms-auth/internal/models"
	pkgauth "github.com/MaxMateus/ms-auth/pkg/auth"
	"github.com/MaxMateus/ms-auth/pkg/contact"
	pkglogger "github.com/MaxMateus/ms-auth/pkg/logger"
)

// TokenLifecycle defines the token operations the auth flow depends on
type TokenLifecycle interface {
	Issue(ctx context.Context, userID string) (string, *models.AccessToken, error)
	Validate(ctx context.Context, tokenString string) (*models.AccessToken, error)
	Rotate(ctx context.Context, tokenString string) (string, *models.AccessToken, error)
	Revoke(ctx context.Context, tokenString string) error
}

// AuthService handles authentication business logic
type AuthService struct {
	users       UserRepository
	methods     MfaMethodRepository
	tokens      TokenLifecycle
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(users UserRepository, methods MfaMethodRepository, tokens TokenLifecycle, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		users:       users,
		methods:     methods,
		tokens:      tokens,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// AuthResponse represents the response from auth operations
type AuthResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresAt   string        `json:"expires_at"`
	User        *UserResponse `json:"user,omitempty"`
}

// NewUserResponse maps a user record to its response shape
func NewUserResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Phone:     user.Phone,
		Status:    user.Status,
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Login authenticates a user and returns a bearer token. Unknown emails and
// wrong passwords produce the same error; accounts whose email method is
// not yet verified are rejected after the password check.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	email = contact.NormalizeEmail(email)
	if email == "" {
		s.logger.Warn("login attempt with empty email")
		return nil, models.ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Log login failure without exposing email
			s.logger.Info("login failed: invalid credentials")
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				FailureReason: "invalid_credentials",
				Success:       false,
			})
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		s.logger.Info("login failed: invalid credentials")
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			FailureReason: "invalid_credentials",
			Success:       false,
		})
		return nil, models.ErrInvalidCredentials
	}

	verified, err := s.methods.IsVerified(ctx, user.ID, models.ChannelEmail)
	if err != nil {
		s.logger.Error("failed to check email verification", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if !verified {
		s.logger.Info("login blocked: email not verified", slog.String("user_id", user.ID))
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			FailureReason: "email_not_verified",
			Success:       false,
		})
		return nil, models.ErrAccountNotVerified
	}

	tokenString, record, err := s.tokens.Issue(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to issue token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		Success:   true,
	})

	return &AuthResponse{
		AccessToken: tokenString,
		TokenType:   "Bearer",
		ExpiresAt:   record.ExpiresAt.UTC().Format(time.RFC3339),
		User:        NewUserResponse(user),
	}, nil
}

// Logout revokes the presented token. Idempotent: logging out with an
// already-revoked token still succeeds.
func (s *AuthService) Logout(ctx context.Context, tokenString string) error {
	if err := s.tokens.Revoke(ctx, tokenString); err != nil {
		if errors.Is(err, models.ErrMalformedToken) {
			return models.ErrTokenInvalid
		}
		return err
	}
	return nil
}

// Refresh exchanges a live token for a fresh one. Any reason the exchange
// cannot happen, malformed input included, surfaces as ErrTokenInvalid so
// callers learn nothing about which check failed.
func (s *AuthService) Refresh(ctx context.Context, tokenString string) (*AuthResponse, error) {
	newTokenString, record, err := s.tokens.Rotate(ctx, tokenString)
	if err != nil {
		if errors.Is(err, models.ErrMalformedToken) || errors.Is(err, models.ErrTokenInvalid) {
			return nil, models.ErrTokenInvalid
		}
		s.logger.Error("failed to rotate token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "token_refreshed",
		UserID:    record.UserID,
		Success:   true,
	})

	return &AuthResponse{
		AccessToken: newTokenString,
		TokenType:   "Bearer",
		ExpiresAt:   record.ExpiresAt.UTC().Format(time.RFC3339),
	}, nil
}

// Me returns the profile of the token's owner
func (s *AuthService) Me(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return NewUserResponse(user), nil
}
