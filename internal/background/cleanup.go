package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/MaxMateus/ms-auth/internal/repositories"
)

// CleanupManager periodically purges expired access tokens and stale
// one-time codes from the database. Expiry is enforced at read time, so
// this only reclaims space.
type CleanupManager struct {
	tokenRepo *repositories.AccessTokenRepository
	codeRepo  *repositories.MfaCodeRepository
	logger    *slog.Logger
	interval  time.Duration
	stopCh    chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	tokenRepo *repositories.AccessTokenRepository,
	codeRepo *repositories.MfaCodeRepository,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		tokenRepo: tokenRepo,
		codeRepo:  codeRepo,
		logger:    logger,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tokensDeleted, err := cm.tokenRepo.CleanupExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to cleanup expired tokens", slog.Any("error", err))
	} else if tokensDeleted > 0 {
		cm.logger.Info("expired token cleanup completed", slog.Int64("rows_deleted", tokensDeleted))
	}

	codesDeleted, err := cm.codeRepo.CleanupExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to cleanup expired codes", slog.Any("error", err))
	} else if codesDeleted > 0 {
		cm.logger.Info("expired code cleanup completed", slog.Int64("rows_deleted", codesDeleted))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
