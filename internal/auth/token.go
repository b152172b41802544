package auth

import (
	"fmt"
	"time"

	"github.com/MaxMateus/ms-auth/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// defaultScopes granted to personal access tokens.
var defaultScopes = []string{"*"}

// TokenIssuer mints signed bearer tokens. It is the token-issuing authority:
// the durable record for each token is written by the caller from the
// AccessToken it returns.
type TokenIssuer struct {
	secret      string
	clientID    string
	tokenExpiry time.Duration
}

// NewTokenIssuer creates a new TokenIssuer
func NewTokenIssuer(secret, clientID string, tokenExpiry time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:      secret,
		clientID:    clientID,
		tokenExpiry: tokenExpiry,
	}
}

// Issue creates a signed token for a user and the matching durable record.
// The jti doubles as the record id and the cache key.
func (ti *TokenIssuer) Issue(userID string) (string, *models.AccessToken, error) {
	now := time.Now()
	record := &models.AccessToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		ClientID:  ti.clientID,
		Scopes:    defaultScopes,
		ExpiresAt: now.Add(ti.tokenExpiry),
		CreatedAt: now,
	}

	claims := &models.TokenClaims{
		UserID:   userID,
		ClientID: ti.clientID,
		Scopes:   record.Scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        record.ID,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(record.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(ti.secret))
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, record, nil
}
