// Package redis implements Redis caching and pub/sub functionality.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/frightclub/movie-night-hub/internal/domain/leaderboard"
	"github.com/frightclub/movie-night-hub/internal/domain/stats"
	"github.com/frightclub/movie-night-hub/internal/domain/watch"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrLeaderboardEmpty is returned when the leaderboard has no entries.
	ErrLeaderboardEmpty = errors.New("leaderboard_cache: leaderboard is empty")

	// ErrViewerNotInLeaderboard is returned when the viewer is not ranked.
	ErrViewerNotInLeaderboard = errors.New("leaderboard_cache: viewer not in leaderboard")

	// ErrInvalidMetric is returned when an unknown metric is provided.
	ErrInvalidMetric = errors.New("leaderboard_cache: invalid metric")
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD ENTRY STRUCTURE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardEntry represents a single entry in the cached leaderboard.
type LeaderboardEntry struct {
	// UserID is the viewer's account ID.
	UserID int64 `json:"user_id"`

	// Username is the viewer's display name.
	Username string `json:"username"`

	// Value is the metric value the entry is ranked by.
	Value int64 `json:"value"`

	// Rank is the position in the leaderboard (1-based).
	Rank int64 `json:"rank"`

	// TotalMovies is the viewer's finalized watch count.
	TotalMovies int `json:"total_movies"`

	// WatchTimeMinutes is the viewer's total watch time.
	WatchTimeMinutes int `json:"watch_time_minutes"`

	// CurrentStreak is the viewer's current daily streak.
	CurrentStreak int `json:"current_streak"`
}

// LeaderboardMeta holds cache metadata for one metric.
type LeaderboardMeta struct {
	UpdatedAt  time.Time `json:"updated_at"`
	TotalCount int64     `json:"total_count"`
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache provides high-performance leaderboard reads using Redis
// Sorted Sets.
//
// Architecture:
//   - Sorted Set "leaderboard:score:{metric}" stores userID -> metric value
//   - Hash "leaderboard:info:{metric}" stores userID -> LeaderboardEntry JSON
//   - String "leaderboard:meta:{metric}" stores metadata (last update, count)
//
// This design allows O(log N) rank lookups and O(log N + M) range queries.
type LeaderboardCache struct {
	cache *Cache
}

// Key patterns for leaderboard cache.
const (
	// keyLeaderboardScore is the sorted set for metric rankings.
	keyLeaderboardScore = "leaderboard:score:"

	// keyLeaderboardInfo is the hash for entry details.
	keyLeaderboardInfo = "leaderboard:info:"

	// keyLeaderboardMeta is the metadata key.
	keyLeaderboardMeta = "leaderboard:meta:"
)

// NewLeaderboardCache creates a new leaderboard cache.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{cache: cache}
}

func scoreKey(metric leaderboard.Metric) string { return keyLeaderboardScore + string(metric) }
func infoKey(metric leaderboard.Metric) string  { return keyLeaderboardInfo + string(metric) }
func metaKey(metric leaderboard.Metric) string  { return keyLeaderboardMeta + string(metric) }

// ─────────────────────────────────────────────────────────────────────────────
// Writes
// ─────────────────────────────────────────────────────────────────────────────

// Rebuild atomically replaces the cached ranking for one metric.
func (l *LeaderboardCache) Rebuild(ctx context.Context, metric leaderboard.Metric, entries []leaderboard.Entry, ttl time.Duration) error {
	if !metric.IsValid() {
		return ErrInvalidMetric
	}

	members := make([]redis.Z, 0, len(entries))
	info := make(map[string]interface{}, len(entries))
	for _, e := range entries {
		cached := fromDomainEntry(e)
		data, err := json.Marshal(cached)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		member := strconv.FormatInt(cached.UserID, 10)
		members = append(members, redis.Z{Score: float64(cached.Value), Member: member})
		info[member] = string(data)
	}

	meta, err := json.Marshal(LeaderboardMeta{
		UpdatedAt:  time.Now().UTC(),
		TotalCount: int64(len(entries)),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	pipe := l.cache.Client().TxPipeline()
	pipe.Del(ctx, scoreKey(metric), infoKey(metric), metaKey(metric))
	if len(members) > 0 {
		pipe.ZAdd(ctx, scoreKey(metric), members...)
		pipe.HSet(ctx, infoKey(metric), info)
	}
	pipe.Set(ctx, metaKey(metric), meta, ttl)
	pipe.Expire(ctx, scoreKey(metric), ttl)
	pipe.Expire(ctx, infoKey(metric), ttl)

	_, err = pipe.Exec(ctx)
	return err
}

// Invalidate drops the cached ranking for one metric.
func (l *LeaderboardCache) Invalidate(ctx context.Context, metric leaderboard.Metric) error {
	return l.cache.Delete(ctx, scoreKey(metric), infoKey(metric), metaKey(metric))
}

// InvalidateAll drops every cached ranking.
func (l *LeaderboardCache) InvalidateAll(ctx context.Context) error {
	return l.cache.DeleteByPattern(ctx, PrefixLeaderboard+"*")
}

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

// GetTop returns the top count entries for a metric, best first. A cold cache
// yields ErrCacheMiss so the caller can rebuild from the source of truth.
func (l *LeaderboardCache) GetTop(ctx context.Context, metric leaderboard.Metric, count int) ([]leaderboard.Entry, error) {
	if !metric.IsValid() {
		return nil, ErrInvalidMetric
	}

	exists, err := l.cache.Exists(ctx, metaKey(metric))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrCacheMiss
	}

	members, err := l.cache.Client().ZRevRange(ctx, scoreKey(metric), 0, int64(count-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, ErrLeaderboardEmpty
	}

	raw, err := l.cache.Client().HMGet(ctx, infoKey(metric), members...).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]leaderboard.Entry, 0, len(raw))
	for i, item := range raw {
		data, ok := item.(string)
		if !ok {
			continue
		}
		var cached LeaderboardEntry
		if err := json.Unmarshal([]byte(data), &cached); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		cached.Rank = int64(i + 1)
		entries = append(entries, toDomainEntry(cached))
	}

	return entries, nil
}

// GetRank returns the 1-based rank of a viewer for a metric.
func (l *LeaderboardCache) GetRank(ctx context.Context, metric leaderboard.Metric, userID int64) (int64, error) {
	if !metric.IsValid() {
		return 0, ErrInvalidMetric
	}

	rank, err := l.cache.Client().ZRevRank(ctx, scoreKey(metric), strconv.FormatInt(userID, 10)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrViewerNotInLeaderboard
	}
	if err != nil {
		return 0, err
	}

	return rank + 1, nil
}

// GetCount returns the number of ranked viewers for a metric.
func (l *LeaderboardCache) GetCount(ctx context.Context, metric leaderboard.Metric) (int64, error) {
	return l.cache.Client().ZCard(ctx, scoreKey(metric)).Result()
}

// GetMeta returns cache metadata for a metric.
func (l *LeaderboardCache) GetMeta(ctx context.Context, metric leaderboard.Metric) (*LeaderboardMeta, error) {
	var meta LeaderboardMeta
	if err := l.cache.Get(ctx, metaKey(metric), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Domain mapping
// ─────────────────────────────────────────────────────────────────────────────

// fromDomainEntry flattens a domain entry into its cacheable form.
func fromDomainEntry(e leaderboard.Entry) LeaderboardEntry {
	return LeaderboardEntry{
		UserID:           int64(e.Stats.UserID),
		Username:         e.Stats.Username,
		Value:            e.Value,
		Rank:             int64(e.Rank),
		TotalMovies:      e.Stats.TotalMovies,
		WatchTimeMinutes: e.Stats.TotalWatchTimeMinutes,
		CurrentStreak:    e.Stats.CurrentStreakDays,
	}
}

// toDomainEntry restores a domain entry from the cache. Only the fields the
// leaderboard surface renders survive the round trip.
func toDomainEntry(e LeaderboardEntry) leaderboard.Entry {
	u := stats.NewUserStats(watch.UserID(e.UserID), e.Username)
	u.TotalMovies = e.TotalMovies
	u.TotalWatchTimeMinutes = e.WatchTimeMinutes
	u.CurrentStreakDays = e.CurrentStreak

	return leaderboard.Entry{
		Stats: u,
		Rank:  leaderboard.Rank(e.Rank),
		Value: e.Value,
	}
}
