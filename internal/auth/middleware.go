package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/MaxMateus/ms-auth/internal/models"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// tokenRecordKey is the key for the validated token record in context
	tokenRecordKey contextKey = "token_record"
	// rawTokenKey is the key for the raw bearer token string in context
	rawTokenKey contextKey = "raw_token"
)

// TokenValidator resolves a bearer token string to its durable record,
// checking existence, expiry and revocation.
type TokenValidator interface {
	Validate(ctx context.Context, tokenString string) (*models.AccessToken, error)
}

// Middleware validates bearer tokens and injects the token record into the
// request context. Unlike a pure JWT check, validation goes through the
// token lifecycle service, so revoked tokens are rejected even before their
// signed expiry.
func Middleware(validator TokenValidator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			tokenString := parts[1]

			record, err := validator.Validate(r.Context(), tokenString)
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), record, tokenString)))
		})
	}
}

// NewContext returns a context carrying a validated token record and its
// raw bearer string
func NewContext(ctx context.Context, record *models.AccessToken, tokenString string) context.Context {
	ctx = context.WithValue(ctx, tokenRecordKey, record)
	return context.WithValue(ctx, rawTokenKey, tokenString)
}

// TokenFromContext extracts the validated token record from request context
func TokenFromContext(r *http.Request) *models.AccessToken {
	record, ok := r.Context().Value(tokenRecordKey).(*models.AccessToken)
	if !ok {
		return nil
	}
	return record
}

// RawTokenFromContext extracts the raw bearer token string from request context
func RawTokenFromContext(r *http.Request) string {
	token, ok := r.Context().Value(rawTokenKey).(string)
	if !ok {
		return ""
	}
	return token
}
