package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/frightclub/movie-night-hub/internal/domain/leaderboard"
	"github.com/frightclub/movie-night-hub/internal/infrastructure/service"
)

// ══════════════════════════════════════════════════════════════════════════════
// WARM LEADERBOARD JOB
// ══════════════════════════════════════════════════════════════════════════════

// WarmLeaderboardJob rebuilds the Redis leaderboard cache for every metric so
// interactive reads stay hot.
type WarmLeaderboardJob struct {
	service *service.LeaderboardService
	logger  *slog.Logger
	config  WarmLeaderboardConfig
}

// WarmLeaderboardConfig contains configuration for the warm job.
type WarmLeaderboardConfig struct {
	// TopN is how many entries to warm per metric.
	TopN int

	// Timeout is the maximum duration for one warm pass.
	Timeout time.Duration
}

// DefaultWarmLeaderboardConfig returns sensible defaults.
func DefaultWarmLeaderboardConfig() WarmLeaderboardConfig {
	return WarmLeaderboardConfig{
		TopN:    25,
		Timeout: time.Minute,
	}
}

// NewWarmLeaderboardJob creates a new WarmLeaderboardJob.
func NewWarmLeaderboardJob(svc *service.LeaderboardService, logger *slog.Logger, config WarmLeaderboardConfig) *WarmLeaderboardJob {
	if config.TopN == 0 {
		config = DefaultWarmLeaderboardConfig()
	}
	return &WarmLeaderboardJob{
		service: svc,
		logger:  logger.With("job", "warm_leaderboard"),
		config:  config,
	}
}

// Name returns the job name.
func (j *WarmLeaderboardJob) Name() string {
	return "warm_leaderboard"
}

// Description returns a human-readable description.
func (j *WarmLeaderboardJob) Description() string {
	return "Rebuilds the Redis leaderboard cache for all ranking metrics"
}

// Run executes one warm pass. Metrics fail independently: a broken cache for
// one metric must not starve the others.
func (j *WarmLeaderboardJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	metrics := []leaderboard.Metric{
		leaderboard.MetricTotalMovies,
		leaderboard.MetricWatchTime,
		leaderboard.MetricCurrentStreak,
		leaderboard.MetricBadges,
	}

	j.service.Invalidate(ctx)

	for _, metric := range metrics {
		if _, err := j.service.Top(ctx, metric, j.config.TopN); err != nil {
			j.logger.Warn("leaderboard warm failed", "metric", string(metric), "error", err)
		}
	}

	return nil
}
