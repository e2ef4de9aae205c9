package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frightclub/movie-night-hub/internal/application"
)

// ══════════════════════════════════════════════════════════════════════════════
// BACKUP JOB
// ══════════════════════════════════════════════════════════════════════════════

// BackupJob writes a timestamped copy of the durable snapshot.
type BackupJob struct {
	app    *application.App
	logger *slog.Logger
	config BackupConfig
}

// BackupConfig contains configuration for the backup job.
type BackupConfig struct {
	// Timeout is the maximum duration for one backup.
	Timeout time.Duration
}

// DefaultBackupConfig returns sensible defaults.
func DefaultBackupConfig() BackupConfig {
	return BackupConfig{
		Timeout: 5 * time.Minute,
	}
}

// NewBackupJob creates a new BackupJob.
func NewBackupJob(app *application.App, logger *slog.Logger, config BackupConfig) *BackupJob {
	if config.Timeout == 0 {
		config = DefaultBackupConfig()
	}
	return &BackupJob{
		app:    app,
		logger: logger.With("job", "backup"),
		config: config,
	}
}

// Name returns the job name.
func (j *BackupJob) Name() string {
	return "backup"
}

// Description returns a human-readable description.
func (j *BackupJob) Description() string {
	return "Creates a timestamped backup of the engine snapshot"
}

// Run executes one backup.
func (j *BackupJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	// Сначала сохраняется актуальное состояние, затем копия.
	if err := j.app.Save(ctx); err != nil {
		return fmt.Errorf("backup: %w", err)
	}

	label, err := j.app.Backup(ctx)
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}

	j.logger.Info("backup created", "label", label)
	return nil
}
