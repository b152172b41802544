// Package cache holds the volatile, TTL-bounded token metadata cache. It is
// a lookup accelerator in front of the access_tokens table, never a source
// of truth: every operation degrades to a no-op or a miss when Redis is
// unavailable.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/MaxMateus/ms-auth/internal/models"
	"github.com/redis/go-redis/v9"
)

const tokenKeyPrefix = "auth:token:"

// TokenCache is the injected cache capability shared by every consumer of
// token metadata.
type TokenCache interface {
	Put(ctx context.Context, entry *models.TokenCacheEntry)
	Get(ctx context.Context, tokenID string) *models.TokenCacheEntry
	Remove(ctx context.Context, tokenID string)
}

// RedisTokenCache implements TokenCache on a Redis client.
type RedisTokenCache struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisTokenCache(client *redis.Client, logger *slog.Logger) *RedisTokenCache {
	return &RedisTokenCache{client: client, logger: logger}
}

// Put stores the entry with a TTL equal to the token's remaining lifetime,
// floored at one second so an already-expired token still gets a minimal
// entry instead of an error. Failures are logged and swallowed.
func (c *RedisTokenCache) Put(ctx context.Context, entry *models.TokenCacheEntry) {
	ttl := time.Until(entry.ExpiresAt)
	if ttl < time.Second {
		ttl = time.Second
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("failed to encode token cache entry",
			slog.String("token_id", entry.TokenID),
			slog.Any("error", err))
		return
	}

	if err := c.client.Set(ctx, c.key(entry.TokenID), payload, ttl).Err(); err != nil {
		c.logger.Warn("failed to cache token in redis",
			slog.String("token_id", entry.TokenID),
			slog.Any("error", err))
	}
}

// Get retrieves the entry for a token id. Any failure, including an
// undecodable value, is treated as a miss.
func (c *RedisTokenCache) Get(ctx context.Context, tokenID string) *models.TokenCacheEntry {
	value, err := c.client.Get(ctx, c.key(tokenID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("failed to read token from redis",
				slog.String("token_id", tokenID),
				slog.Any("error", err))
		}
		return nil
	}

	var entry models.TokenCacheEntry
	if err := json.Unmarshal(value, &entry); err != nil {
		c.logger.Warn("discarding undecodable token cache entry",
			slog.String("token_id", tokenID),
			slog.Any("error", err))
		return nil
	}

	return &entry
}

// Remove evicts the entry for a token id. Idempotent; failures are logged
// and swallowed.
func (c *RedisTokenCache) Remove(ctx context.Context, tokenID string) {
	if err := c.client.Del(ctx, c.key(tokenID)).Err(); err != nil {
		c.logger.Warn("failed to remove token from redis",
			slog.String("token_id", tokenID),
			slog.Any("error", err))
	}
}

func (c *RedisTokenCache) key(tokenID string) string {
	return tokenKeyPrefix + tokenID
}
