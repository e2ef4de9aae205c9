package service

import (
	"context"
	"errors"

	"github.com/frightclub/movie-night-hub/internal/domain/leaderboard"
	"github.com/frightclub/movie-night-hub/internal/domain/stats"
	rediscache "github.com/frightclub/movie-night-hub/internal/infrastructure/persistence/redis"
	"github.com/frightclub/movie-night-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CACHED LEADERBOARD SERVICE
// Serves leaderboard reads from Redis sorted sets, rebuilding from the stats
// registry on a cache miss. A dead cache degrades to direct computation.
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardService answers leaderboard queries through a Redis cache.
type LeaderboardService struct {
	registry *stats.Registry
	badges   leaderboard.BadgeCounter
	cache    *rediscache.LeaderboardCache
	log      *logger.Logger

	// excludeUsernames - псевдо-аккаунты, исключаемые из любой выдачи.
	excludeUsernames []string
}

// NewLeaderboardService creates a cached leaderboard service.
func NewLeaderboardService(
	registry *stats.Registry,
	badges leaderboard.BadgeCounter,
	cache *rediscache.LeaderboardCache,
	log *logger.Logger,
	excludeUsernames []string,
) *LeaderboardService {
	return &LeaderboardService{
		registry:         registry,
		badges:           badges,
		cache:            cache,
		log:              log.With(logger.Component("leaderboard_service")),
		excludeUsernames: excludeUsernames,
	}
}

// Top returns the top limit entries for a metric, cache first.
func (s *LeaderboardService) Top(ctx context.Context, metric leaderboard.Metric, limit int) ([]leaderboard.Entry, error) {
	if s.cache != nil {
		entries, err := s.cache.GetTop(ctx, metric, limit)
		if err == nil {
			return entries, nil
		}
		if !errors.Is(err, rediscache.ErrCacheMiss) && !errors.Is(err, rediscache.ErrLeaderboardEmpty) {
			s.log.Warn("leaderboard cache read failed", logger.Metric(string(metric)), logger.Err(err))
		}
	}

	entries, err := leaderboard.BuildRanking(s.registry.All(), s.badges, leaderboard.RankParams{
		Metric:           metric,
		Limit:            limit,
		ExcludeUsernames: s.excludeUsernames,
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Rebuild(ctx, metric, entries, rediscache.TTLLeaderboardCache); err != nil {
			s.log.Warn("leaderboard cache rebuild failed", logger.Metric(string(metric)), logger.Err(err))
		}
	}

	return entries, nil
}

// Invalidate drops every cached ranking. Called after finalized watches and
// badge grants change the standings.
func (s *LeaderboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.log.Warn("leaderboard cache invalidation failed", logger.Err(err))
	}
}
