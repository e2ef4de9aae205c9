// Package jobs contains implementations of scheduled jobs for Movie Night Hub.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frightclub/movie-night-hub/internal/application"
	"github.com/frightclub/movie-night-hub/internal/application/command"
	"github.com/frightclub/movie-night-hub/internal/infrastructure/service"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUTOSAVE JOB
// Periodically refreshes the progress of every active session from live media
// server positions and persists the engine snapshot. Viewers who vanish from
// the media server keep their session open; the leave event closes it.
// ══════════════════════════════════════════════════════════════════════════════

// AutosaveJob refreshes progress from the media server and saves a snapshot.
type AutosaveJob struct {
	app    *application.App
	media  service.MediaServer
	logger *slog.Logger
	config AutosaveConfig
}

// AutosaveConfig contains configuration for the autosave job.
type AutosaveConfig struct {
	// Timeout is the maximum duration for one autosave pass.
	Timeout time.Duration
}

// DefaultAutosaveConfig returns sensible defaults.
func DefaultAutosaveConfig() AutosaveConfig {
	return AutosaveConfig{
		Timeout: 2 * time.Minute,
	}
}

// NewAutosaveJob creates a new AutosaveJob.
func NewAutosaveJob(app *application.App, media service.MediaServer, logger *slog.Logger, config AutosaveConfig) *AutosaveJob {
	if config.Timeout == 0 {
		config = DefaultAutosaveConfig()
	}
	return &AutosaveJob{
		app:    app,
		media:  media,
		logger: logger.With("job", "autosave"),
		config: config,
	}
}

// Name returns the job name.
func (j *AutosaveJob) Name() string {
	return "autosave"
}

// Description returns a human-readable description.
func (j *AutosaveJob) Description() string {
	return "Refreshes active session progress from the media server and persists the engine snapshot"
}

// Run executes one autosave pass.
func (j *AutosaveJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	updated := j.refreshProgress(ctx)

	if err := j.app.Save(ctx); err != nil {
		return fmt.Errorf("autosave: %w", err)
	}

	j.logger.Debug("autosave pass complete", "sessions_refreshed", updated)
	return nil
}

// refreshProgress pushes live playback positions into active sessions.
// Media server failures are logged and skipped: the engine keeps its last
// known progress and the snapshot still gets saved.
func (j *AutosaveJob) refreshProgress(ctx context.Context) int {
	active := j.app.Tracker.ActiveSessions()
	if len(active) == 0 {
		return 0
	}

	live, err := j.media.Sessions(ctx)
	if err != nil {
		j.logger.Warn("media server poll failed", "error", err)
		return 0
	}

	positions := make(map[int64]int64, len(live))
	for _, s := range live {
		positions[s.UserID] = s.PositionMS
	}

	now := time.Now().UTC()
	updated := 0
	for i := range active {
		session := active[i]
		pos, watching := positions[int64(session.UserID)]
		if !watching {
			continue
		}

		snap := session.Progress(now, pos)
		result, err := j.app.UpdateProgress.Handle(ctx, command.UpdateProgressCommand{
			UserID:          int64(session.UserID),
			DurationMinutes: snap.DurationMinutes,
			CompletionPct:   snap.CompletionPercentage,
		})
		if err != nil {
			j.logger.Warn("progress refresh failed",
				"user_id", int64(session.UserID),
				"movie_title", string(session.MovieTitle),
				"error", err,
			)
			continue
		}
		if result.Updated {
			updated++
		}
	}

	return updated
}
