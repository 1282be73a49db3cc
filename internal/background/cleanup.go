package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/connectcrm/auth-service/internal/repositories"
)

// Retention windows for rows that have aged past any policy decision.
// Login attempts must outlive the throttle window by a wide margin so
// operators can still investigate incidents.
const (
	attemptRetention = 30 * 24 * time.Hour
	codeRetention    = 24 * time.Hour
)

// CleanupManager periodically prunes expired login attempts, challenge codes,
// and password reset tokens from the database
type CleanupManager struct {
	attempts    *repositories.LoginAttemptRepository
	codes       *repositories.EmailCodeRepository
	resetTokens *repositories.PasswordResetRepository
	logger      *slog.Logger
	interval    time.Duration
	stopCh      chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	attempts *repositories.LoginAttemptRepository,
	codes *repositories.EmailCodeRepository,
	resetTokens *repositories.PasswordResetRepository,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		attempts:    attempts,
		codes:       codes,
		resetTokens: resetTokens,
		logger:      logger,
		interval:    interval,
		stopCh:      make(chan struct{}),
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
	cm.logger.Info("starting auth data cleanup")

	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	attemptsDeleted, err := cm.attempts.DeleteOlderThan(cleanupCtx, time.Now().Add(-attemptRetention))
	if err != nil {
		cm.logger.Error("failed to prune login attempts", slog.Any("error", err))
	}

	codesDeleted, err := cm.codes.DeleteExpired(cleanupCtx, codeRetention)
	if err != nil {
		cm.logger.Error("failed to prune expired challenge codes", slog.Any("error", err))
	}

	tokensDeleted, err := cm.resetTokens.DeleteExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to prune expired reset tokens", slog.Any("error", err))
	}

	if attemptsDeleted+codesDeleted+tokensDeleted > 0 {
		cm.logger.Info("auth data cleanup completed",
			slog.Int64("attempts_deleted", attemptsDeleted),
			slog.Int64("codes_deleted", codesDeleted),
			slog.Int64("reset_tokens_deleted", tokensDeleted),
		)
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
