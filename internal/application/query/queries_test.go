package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frightclub/movie-night-hub/internal/domain/badge"
	"github.com/frightclub/movie-night-hub/internal/domain/leaderboard"
	"github.com/frightclub/movie-night-hub/internal/domain/rating"
	"github.com/frightclub/movie-night-hub/internal/domain/shared"
	"github.com/frightclub/movie-night-hub/internal/domain/stats"
	"github.com/frightclub/movie-night-hub/internal/domain/watch"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fixtures
// ──────────────────────────────────────────────────────────────────────────────

type queryEnv struct {
	tracker  *watch.Tracker
	registry *stats.Registry
	engine   *badge.Engine
	ratings  *rating.Store
}

func newQueryEnv() *queryEnv {
	tracker := watch.NewTracker()
	return &queryEnv{
		tracker:  tracker,
		registry: stats.NewRegistry(),
		engine:   badge.NewEngine(badge.DefaultCatalog()),
		ratings:  rating.NewStore(tracker),
	}
}

// seedWatch добавляет завершённый просмотр и применяет его к статистике.
func (e *queryEnv) seedWatch(t *testing.T, userID int64, username, title string, minutes int, meta watch.MovieMetadata) {
	t.Helper()
	rec := e.tracker.AddManualWatch(watch.ManualWatchParams{
		UserID:          watch.UserID(userID),
		Username:        username,
		MovieTitle:      watch.MovieTitle(title),
		DurationMinutes: minutes,
		Metadata:        meta,
	})
	require.NotNil(t, rec)
	e.registry.Apply(rec)
}

// ──────────────────────────────────────────────────────────────────────────────
// GetLeaderboard
// ──────────────────────────────────────────────────────────────────────────────

func TestGetLeaderboard_RanksByTotalMovies(t *testing.T) {
	env := newQueryEnv()
	env.seedWatch(t, 1, "laurie", "Halloween", 90, watch.MovieMetadata{})
	env.seedWatch(t, 1, "laurie", "Scream", 110, watch.MovieMetadata{})
	env.seedWatch(t, 2, "sidney", "The Thing", 105, watch.MovieMetadata{})

	h := NewGetLeaderboardHandler(env.registry, env.engine, nil)
	res, err := h.Handle(context.Background(), GetLeaderboardQuery{})

	require.NoError(t, err)
	assert.Equal(t, "total_movies", res.Metric)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, 1, res.Entries[0].Rank)
	assert.Equal(t, "laurie", res.Entries[0].Username)
	assert.Equal(t, int64(2), res.Entries[0].Value)
	assert.Equal(t, 2, res.Entries[1].Rank)
	assert.Equal(t, "sidney", res.Entries[1].Username)
}

func TestGetLeaderboard_ExcludesPseudoAccounts(t *testing.T) {
	env := newQueryEnv()
	env.seedWatch(t, 1, "laurie", "Halloween", 90, watch.MovieMetadata{})
	env.seedWatch(t, 99, "plexbot", "Halloween", 90, watch.MovieMetadata{})

	h := NewGetLeaderboardHandler(env.registry, env.engine, []string{"PlexBot"})
	res, err := h.Handle(context.Background(), GetLeaderboardQuery{})

	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "laurie", res.Entries[0].Username)
	assert.Equal(t, 1, res.Entries[0].Rank)
}

func TestGetLeaderboard_BadgesMetric(t *testing.T) {
	env := newQueryEnv()
	env.seedWatch(t, 1, "laurie", "Halloween", 90, watch.MovieMetadata{})
	env.seedWatch(t, 2, "sidney", "Scream", 110, watch.MovieMetadata{})
	require.True(t, env.engine.CheckAndAward(2, "bingo_master"))

	h := NewGetLeaderboardHandler(env.registry, env.engine, nil)
	res, err := h.Handle(context.Background(), GetLeaderboardQuery{Metric: "badges"})

	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "sidney", res.Entries[0].Username)
	assert.Equal(t, int64(1), res.Entries[0].Value)
}

// recordingRanker фиксирует параметры запроса и отдаёт заготовленную выдачу.
type recordingRanker struct {
	metric  leaderboard.Metric
	limit   int
	entries []leaderboard.Entry
}

func (r *recordingRanker) Top(ctx context.Context, metric leaderboard.Metric, limit int) ([]leaderboard.Entry, error) {
	r.metric = metric
	r.limit = limit
	return r.entries, nil
}

func TestGetLeaderboard_ReadsThroughInstalledRanker(t *testing.T) {
	// UseRanker переключает обработчик на кэширующий сервис: выдача берётся
	// из него, а не из прямого пересчёта по реестру.
	env := newQueryEnv()
	env.seedWatch(t, 1, "laurie", "Halloween", 90, watch.MovieMetadata{})

	cached := stats.NewUserStats(2, "sidney")
	cached.TotalMovies = 5
	ranker := &recordingRanker{entries: []leaderboard.Entry{{Rank: 1, Value: 5, Stats: cached}}}

	h := NewGetLeaderboardHandler(env.registry, env.engine, nil)
	h.UseRanker(ranker)

	res, err := h.Handle(context.Background(), GetLeaderboardQuery{Metric: "total_movies", Limit: 3})
	require.NoError(t, err)

	assert.Equal(t, leaderboard.MetricTotalMovies, ranker.metric)
	assert.Equal(t, 3, ranker.limit)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "sidney", res.Entries[0].Username)
	assert.Equal(t, int64(5), res.Entries[0].Value)
}

func TestGetLeaderboard_InvalidInput(t *testing.T) {
	env := newQueryEnv()
	h := NewGetLeaderboardHandler(env.registry, env.engine, nil)

	_, err := h.Handle(context.Background(), GetLeaderboardQuery{Metric: "charisma"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown leaderboard metric")

	_, err = h.Handle(context.Background(), GetLeaderboardQuery{Limit: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

// ──────────────────────────────────────────────────────────────────────────────
// GetUserStats
// ──────────────────────────────────────────────────────────────────────────────

func TestGetUserStats_ReturnsAggregates(t *testing.T) {
	env := newQueryEnv()
	env.seedWatch(t, 1, "laurie", "Halloween", 90,
		watch.MovieMetadata{Genres: []string{"slasher"}, Year: 1978, Director: "John Carpenter"})
	env.seedWatch(t, 1, "laurie", "The Fog", 85,
		watch.MovieMetadata{Genres: []string{"supernatural"}, Year: 1980, Director: "John Carpenter"})

	h := NewGetUserStatsHandler(env.registry, env.tracker)
	res, err := h.Handle(context.Background(), GetUserStatsQuery{UserID: 1})

	require.NoError(t, err)
	assert.Equal(t, "laurie", res.Username)
	assert.Equal(t, 2, res.TotalMovies)
	assert.Equal(t, 2, res.CompletedMovies)
	assert.InDelta(t, 175.0/60.0, res.WatchTimeHours, 0.01)
	assert.InDelta(t, 100.0, res.AverageCompletion, 0.01)
	assert.Equal(t, 1, res.DirectorsWatched)
	require.Len(t, res.TopGenres, 2)
	assert.Nil(t, res.ActiveSession)
}

func TestGetUserStats_IncludesActiveSession(t *testing.T) {
	env := newQueryEnv()
	env.seedWatch(t, 1, "laurie", "Halloween", 90, watch.MovieMetadata{})

	durationMS := int64(120 * 60 * 1000)
	zero := int64(0)
	_, _, err := env.tracker.StartSession(watch.StartParams{
		UserID:          1,
		Username:        "laurie",
		MovieTitle:      "The Thing",
		MovieDurationMS: &durationMS,
		JoinPositionMS:  &zero,
	})
	require.NoError(t, err)

	h := NewGetUserStatsHandler(env.registry, env.tracker)
	res, err := h.Handle(context.Background(), GetUserStatsQuery{UserID: 1})

	require.NoError(t, err)
	require.NotNil(t, res.ActiveSession)
	assert.Equal(t, "The Thing", res.ActiveSession.MovieTitle)
}

func TestGetUserStats_UnknownUser(t *testing.T) {
	env := newQueryEnv()
	h := NewGetUserStatsHandler(env.registry, env.tracker)

	_, err := h.Handle(context.Background(), GetUserStatsQuery{UserID: 42})

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrUserStatsNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// GetUserBadges
// ──────────────────────────────────────────────────────────────────────────────

func TestGetUserBadges_ReturnsEarnedInOrder(t *testing.T) {
	env := newQueryEnv()
	require.True(t, env.engine.CheckAndAward(1, "bingo_master"))
	require.True(t, env.engine.CheckAndAward(1, "first_blood"))

	h := NewGetUserBadgesHandler(env.engine)
	res, err := h.Handle(context.Background(), GetUserBadgesQuery{UserID: 1})

	require.NoError(t, err)
	require.Len(t, res.Badges, 2)
	assert.Equal(t, "bingo_master", res.Badges[0].ID)
	assert.Equal(t, "first_blood", res.Badges[1].ID)
	assert.NotEmpty(t, res.Badges[0].Name)
	assert.NotEmpty(t, res.Badges[0].Emoji)
	assert.False(t, res.Badges[0].EarnedDate.IsZero())
	assert.Equal(t, badge.DefaultCatalog().Len(), res.CatalogSize)
}

func TestGetUserBadges_EmptyForNewViewer(t *testing.T) {
	env := newQueryEnv()
	h := NewGetUserBadgesHandler(env.engine)

	res, err := h.Handle(context.Background(), GetUserBadgesQuery{UserID: 5})

	require.NoError(t, err)
	assert.Empty(t, res.Badges)
	assert.Equal(t, badge.DefaultCatalog().Len(), res.CatalogSize)
}

// ──────────────────────────────────────────────────────────────────────────────
// GetWatchHistory
// ──────────────────────────────────────────────────────────────────────────────

func TestGetWatchHistory_FreshestFirstWithLimit(t *testing.T) {
	env := newQueryEnv()
	env.seedWatch(t, 1, "laurie", "Halloween", 90, watch.MovieMetadata{})
	env.seedWatch(t, 1, "laurie", "Scream", 110, watch.MovieMetadata{})
	env.seedWatch(t, 1, "laurie", "The Thing", 105, watch.MovieMetadata{})

	h := NewGetWatchHistoryHandler(env.tracker)
	res, err := h.Handle(context.Background(), GetWatchHistoryQuery{UserID: 1, Limit: 2})

	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "The Thing", res.Records[0].MovieTitle)
	assert.Equal(t, "Scream", res.Records[1].MovieTitle)
	assert.False(t, res.Records[0].InProgress)
	assert.WithinDuration(t, time.Now().UTC(), res.Records[0].WatchDate, 24*time.Hour)
}

func TestGetWatchHistory_InvalidUser(t *testing.T) {
	env := newQueryEnv()
	h := NewGetWatchHistoryHandler(env.tracker)

	_, err := h.Handle(context.Background(), GetWatchHistoryQuery{UserID: 0})

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidUserID)
}

// ──────────────────────────────────────────────────────────────────────────────
// GetRatings
// ──────────────────────────────────────────────────────────────────────────────

func TestGetRatings_SummariesSortedByAverage(t *testing.T) {
	env := newQueryEnv()
	for _, user := range []struct {
		id   int64
		name string
	}{{1, "laurie"}, {2, "sidney"}} {
		env.seedWatch(t, user.id, user.name, "Halloween", 90, watch.MovieMetadata{})
		env.seedWatch(t, user.id, user.name, "Alien 3", 110, watch.MovieMetadata{})
	}

	rate := func(userID int64, username, title string, score int) {
		accepted, err := env.ratings.Rate(watch.UserID(userID), username, watch.MovieTitle(title), rating.Score(score))
		require.NoError(t, err)
		require.True(t, accepted)
	}
	rate(1, "laurie", "Halloween", 10)
	rate(2, "sidney", "Halloween", 9)
	rate(1, "laurie", "Alien 3", 5)
	rate(2, "sidney", "Alien 3", 6)

	h := NewGetRatingsHandler(env.ratings)
	res, err := h.Handle(context.Background(), GetRatingsQuery{})

	require.NoError(t, err)
	require.Len(t, res.Movies, 2)
	assert.Equal(t, "Halloween", res.Movies[0].MovieTitle)
	assert.InDelta(t, 9.5, res.Movies[0].Average, 0.01)
	assert.Equal(t, 2, res.Movies[0].Votes)
	assert.InDelta(t, 5.5, res.Movies[1].Average, 0.01)
}

func TestGetRatings_SingleTitleFilter(t *testing.T) {
	env := newQueryEnv()
	env.seedWatch(t, 1, "laurie", "Halloween", 90, watch.MovieMetadata{})
	accepted, err := env.ratings.Rate(1, "laurie", "Halloween", 8)
	require.NoError(t, err)
	require.True(t, accepted)

	h := NewGetRatingsHandler(env.ratings)

	res, err := h.Handle(context.Background(), GetRatingsQuery{MovieTitle: "Halloween"})
	require.NoError(t, err)
	require.Len(t, res.Movies, 1)
	assert.InDelta(t, 8.0, res.Movies[0].Average, 0.01)
	assert.Equal(t, 1, res.Movies[0].Votes)

	// Неоценённый фильм даёт пустую сводку, а не ошибку.
	res, err = h.Handle(context.Background(), GetRatingsQuery{MovieTitle: "Unrated Movie"})
	require.NoError(t, err)
	assert.Empty(t, res.Movies)
}
