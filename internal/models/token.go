package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken is the durable record for an issued bearer token. The database
// row is the source of truth; the Redis projection (TokenCacheEntry) is a
// derived, expiring copy.
type AccessToken struct {
	ID        string // jti, also the cache key
	UserID    string
	ClientID  string
	Scopes    []string
	Revoked   bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired checks if the token has expired
func (t *AccessToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// TokenClaims are the JWT claims carried by issued bearer tokens.
type TokenClaims struct {
	UserID   string   `json:"user_id"`
	ClientID string   `json:"client_id,omitempty"`
	Scopes   []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// TokenCacheEntry is the serialized value stored in the token cache,
// keyed by token id. It never carries the revoked flag: revocation is
// observed by cache eviction or by the durable-store re-check.
type TokenCacheEntry struct {
	TokenID   string    `json:"token_id"`
	UserID    string    `json:"user_id"`
	ClientID  string    `json:"client_id"`
	Scopes    []string  `json:"scopes"`
	ExpiresAt time.Time `json:"expires_at"`
}
