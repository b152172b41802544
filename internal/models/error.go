package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Token errors. ErrMalformedToken means the bearer string itself is
	// unparseable; ErrTokenInvalid covers not-found, expired and revoked
	// uniformly so callers cannot tell which check failed.
	ErrMalformedToken = errors.New("malformed token")
	ErrTokenInvalid   = errors.New("token invalid or expired")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountNotVerified = errors.New("account not verified")

	// Verification errors. ErrInvalidCode is deliberately undifferentiated:
	// wrong, expired and already-consumed codes all map to it.
	ErrInvalidCode            = errors.New("invalid verification code")
	ErrMethodOwnerNotFound    = errors.New("no account matches this destination")
	ErrAuthenticationRequired = errors.New("authentication required for this channel")
	ErrUnsupportedChannel     = errors.New("unsupported verification channel")
	ErrInvalidCpf             = errors.New("invalid cpf")
)
