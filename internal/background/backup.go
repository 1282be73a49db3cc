package background

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/connectcrm/auth-service/internal/config"
	"github.com/connectcrm/auth-service/internal/models"
	"github.com/connectcrm/auth-service/internal/services"
)

const backupTimeout = 10 * time.Minute

// BackupManager runs scheduled pg_dump backups of the auth database.
// It also satisfies the admin handler's on-demand backup trigger.
type BackupManager struct {
	db       config.DatabaseConfig
	dir      string
	interval time.Duration
	audit    *services.AuditService
	logger   *slog.Logger
	stopCh   chan struct{}
}

// NewBackupManager creates a new backup manager
func NewBackupManager(
	db config.DatabaseConfig,
	cfg config.BackupConfig,
	audit *services.AuditService,
	logger *slog.Logger,
) *BackupManager {
	return &BackupManager{
		db:       db,
		dir:      cfg.Directory,
		interval: cfg.Interval,
		audit:    audit,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic backup task
func (bm *BackupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(bm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := bm.RunNow(ctx); err != nil {
				bm.logger.Error("scheduled backup failed", slog.Any("error", err))
			}
		case <-bm.stopCh:
			bm.logger.Info("backup manager stopped")
			return
		case <-ctx.Done():
			bm.logger.Info("backup manager context cancelled")
			return
		}
	}
}

// RunNow performs a full backup immediately and returns the archive path
func (bm *BackupManager) RunNow(ctx context.Context) (string, error) {
	if err := os.MkdirAll(bm.dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	path := filepath.Join(bm.dir, fmt.Sprintf("auth_%s.dump", time.Now().UTC().Format("20060102T150405Z")))

	dumpCtx, cancel := context.WithTimeout(ctx, backupTimeout)
	defer cancel()

	cmd := exec.CommandContext(dumpCtx, "pg_dump",
		"--format=custom",
		"--file="+path,
		"--host="+bm.db.Host,
		"--port="+fmt.Sprintf("%d", bm.db.Port),
		"--username="+bm.db.User,
		"--dbname="+bm.db.Name,
	)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+bm.db.Password)

	start := time.Now()
	if output, err := cmd.CombinedOutput(); err != nil {
		// Remove the partial archive so a failed run cannot be restored from
		os.Remove(path)
		return "", fmt.Errorf("pg_dump failed: %w: %s", err, output)
	}

	bm.logger.Info("database backup completed",
		slog.String("path", path),
		slog.String("duration", time.Since(start).String()),
	)

	bm.audit.RecordEvent(ctx, models.SecurityEventBackupCompleted, "",
		fmt.Sprintf("database backup written to %s", path), "", "")

	return path, nil
}

// Stop signals the backup manager to stop
func (bm *BackupManager) Stop() {
	close(bm.stopCh)
}
