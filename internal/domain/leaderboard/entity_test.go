package leaderboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frightclub/movie-night-hub/internal/domain/shared"
	"github.com/frightclub/movie-night-hub/internal/domain/stats"
	"github.com/frightclub/movie-night-hub/internal/domain/watch"
)

type badgeCounts map[watch.UserID]int

func (b badgeCounts) Count(userID watch.UserID) int {
	return b[userID]
}

func user(id watch.UserID, name string, movies, minutes, streak int) *stats.UserStats {
	s := stats.NewUserStats(id, name)
	s.TotalMovies = movies
	s.TotalWatchTimeMinutes = minutes
	s.CurrentStreakDays = streak
	return s
}

func TestBuildRanking_ByTotalMovies(t *testing.T) {
	users := []*stats.UserStats{
		user(1, "sidney", 12, 900, 2),
		user(2, "gale", 30, 2400, 5),
		user(3, "dewey", 7, 500, 0),
	}

	entries, err := BuildRanking(users, nil, RankParams{Metric: MetricTotalMovies, Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "gale", entries[0].Stats.Username)
	assert.Equal(t, Rank(1), entries[0].Rank)
	assert.Equal(t, int64(30), entries[0].Value)
	assert.Equal(t, Rank(2), entries[1].Rank)
	assert.Equal(t, Rank(3), entries[2].Rank)
}

func TestBuildRanking_ExcludesPseudoAccounts(t *testing.T) {
	users := []*stats.UserStats{
		user(1, "FrightClub", 999, 99999, 99),
		user(2, "gale", 30, 2400, 5),
	}

	entries, err := BuildRanking(users, nil, RankParams{
		Metric:           MetricTotalMovies,
		Limit:            10,
		ExcludeUsernames: []string{"frightclub"},
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// Ранги непрерывны после исключения.
	assert.Equal(t, "gale", entries[0].Stats.Username)
	assert.Equal(t, Rank(1), entries[0].Rank)
}

func TestBuildRanking_StableTies(t *testing.T) {
	users := []*stats.UserStats{
		user(1, "first", 10, 0, 0),
		user(2, "second", 10, 0, 0),
		user(3, "third", 10, 0, 0),
	}

	entries, err := BuildRanking(users, nil, RankParams{Metric: MetricTotalMovies, Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Равные значения сохраняют входной порядок.
	assert.Equal(t, "first", entries[0].Stats.Username)
	assert.Equal(t, "second", entries[1].Stats.Username)
	assert.Equal(t, "third", entries[2].Stats.Username)
}

func TestBuildRanking_LimitTruncates(t *testing.T) {
	users := []*stats.UserStats{
		user(1, "a", 5, 0, 0),
		user(2, "b", 4, 0, 0),
		user(3, "c", 3, 0, 0),
	}

	entries, err := BuildRanking(users, nil, RankParams{Metric: MetricTotalMovies, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestBuildRanking_BadgeMetric(t *testing.T) {
	users := []*stats.UserStats{
		user(1, "sidney", 1, 0, 0),
		user(2, "gale", 1, 0, 0),
	}
	counts := badgeCounts{1: 3, 2: 8}

	entries, err := BuildRanking(users, counts, RankParams{Metric: MetricBadges, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, "gale", entries[0].Stats.Username)
	assert.Equal(t, int64(8), entries[0].Value)
}

func TestBuildRanking_BadgeMetricNilCounter(t *testing.T) {
	users := []*stats.UserStats{user(1, "sidney", 1, 0, 0)}

	entries, err := BuildRanking(users, nil, RankParams{Metric: MetricBadges, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(0), entries[0].Value)
}

func TestBuildRanking_UnknownMetric(t *testing.T) {
	_, err := BuildRanking(nil, nil, RankParams{Metric: "box_office", Limit: 10})
	assert.ErrorIs(t, err, shared.ErrUnknownMetric)
}

func TestBuildRanking_InvalidLimit(t *testing.T) {
	_, err := BuildRanking(nil, nil, RankParams{Metric: MetricTotalMovies, Limit: 0})
	assert.ErrorIs(t, err, shared.ErrInvalidLimit)
}

func TestRank_IsTop3(t *testing.T) {
	assert.True(t, Rank(1).IsTop3())
	assert.True(t, Rank(3).IsTop3())
	assert.False(t, Rank(4).IsTop3())
	assert.False(t, Rank(0).IsTop3())
}
