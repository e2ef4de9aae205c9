package badge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frightclub/movie-night-hub/internal/domain/stats"
	"github.com/frightclub/movie-night-hub/internal/domain/watch"
)

func statsWith(movies, streak int) *stats.UserStats {
	s := stats.NewUserStats(1, "viewer")
	s.TotalMovies = movies
	s.CurrentStreakDays = streak
	return s
}

func TestEvaluate_MovieCountThresholds(t *testing.T) {
	e := NewEngine(DefaultCatalog())

	newly := e.Evaluate(1, EvalContext{Stats: statsWith(1, 1), Now: time.Now()})
	require.Len(t, newly, 1)
	assert.Equal(t, ID("first_blood"), newly[0].ID)

	// Пятый фильм открывает следующий порог, первый бейдж не выдаётся повторно.
	newly = e.Evaluate(1, EvalContext{Stats: statsWith(5, 1), Now: time.Now()})
	require.Len(t, newly, 1)
	assert.Equal(t, ID("rising_terror"), newly[0].ID)

	assert.Equal(t, 2, e.Count(1))
}

func TestEvaluate_Idempotent(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	ctx := EvalContext{Stats: statsWith(10, 1), Now: time.Now()}

	first := e.Evaluate(1, ctx)
	assert.NotEmpty(t, first)

	second := e.Evaluate(1, ctx)
	assert.Empty(t, second)
	assert.Equal(t, len(first), e.Count(1))
}

func TestEvaluate_StreakBadges(t *testing.T) {
	e := NewEngine(DefaultCatalog())

	newly := e.Evaluate(1, EvalContext{Stats: statsWith(0, 7), Now: time.Now()})

	ids := make([]ID, 0, len(newly))
	for _, b := range newly {
		ids = append(ids, b.ID)
	}
	assert.Contains(t, ids, ID("dedicated"))
	assert.Contains(t, ids, ID("marathon_runner"))
	assert.NotContains(t, ids, ID("unstoppable"))
}

func TestEvaluate_GenreSpecialist(t *testing.T) {
	e := NewEngine(DefaultCatalog())

	s := stats.NewUserStats(1, "viewer")
	s.FavoriteGenres["slasher"] = 10

	newly := e.Evaluate(1, EvalContext{Stats: s, Now: time.Now()})

	ids := make([]ID, 0, len(newly))
	for _, b := range newly {
		ids = append(ids, b.ID)
	}
	assert.Contains(t, ids, ID("slasher_expert"))
}

func TestEvaluate_LateNightFinish(t *testing.T) {
	e := NewEngine(DefaultCatalog())

	end := time.Date(2026, 2, 14, 1, 30, 0, 0, time.UTC)
	rec := &watch.Record{
		UserID:     1,
		MovieTitle: "It Follows (2014)",
		StartTime:  end.Add(-100 * time.Minute),
		EndTime:    &end,
	}

	newly := e.Evaluate(1, EvalContext{
		Stats:      stats.NewUserStats(1, "viewer"),
		LastRecord: rec,
		Now:        end,
	})

	ids := make([]ID, 0, len(newly))
	for _, b := range newly {
		ids = append(ids, b.ID)
	}
	assert.Contains(t, ids, ID("night_owl"))
}

func TestEvaluate_DirectorFilmography(t *testing.T) {
	e := NewEngine(DefaultCatalog())

	history := make([]*watch.Record, 0, 5)
	for i := 0; i < 5; i++ {
		history = append(history, &watch.Record{
			UserID:   1,
			Metadata: watch.MovieMetadata{Director: "John Carpenter"},
		})
	}

	newly := e.Evaluate(1, EvalContext{
		Stats:   stats.NewUserStats(1, "viewer"),
		History: history,
		Now:     time.Now(),
	})

	ids := make([]ID, 0, len(newly))
	for _, b := range newly {
		ids = append(ids, b.ID)
	}
	assert.Contains(t, ids, ID("directors_cut"))
}

func TestEvaluate_ManualGrantNeverAuto(t *testing.T) {
	e := NewEngine(DefaultCatalog())

	newly := e.Evaluate(1, EvalContext{Stats: statsWith(100, 30), Now: time.Now()})
	for _, b := range newly {
		assert.NotEqual(t, ID("bingo_master"), b.ID)
	}
}

func TestCheckAndAward(t *testing.T) {
	e := NewEngine(DefaultCatalog())

	assert.True(t, e.CheckAndAward(1, "bingo_master"))
	// Повторная выдача - no-op.
	assert.False(t, e.CheckAndAward(1, "bingo_master"))
	// Неизвестный бейдж не выдаётся.
	assert.False(t, e.CheckAndAward(1, "no_such_badge"))

	assert.Equal(t, 1, e.Count(1))
}

func TestUserBadges_PreservesOrder(t *testing.T) {
	fixed := time.Date(2026, 2, 13, 23, 0, 0, 0, time.UTC)
	e := NewEngine(DefaultCatalog(), WithClock(func() time.Time { return fixed }))

	e.Evaluate(1, EvalContext{Stats: statsWith(1, 0), Now: fixed})
	e.CheckAndAward(1, "bingo_master")

	earned := e.UserBadges(1)
	require.Len(t, earned, 2)
	assert.Equal(t, ID("first_blood"), earned[0].Badge.ID)
	assert.Equal(t, ID("bingo_master"), earned[1].Badge.ID)
	assert.Equal(t, fixed, earned[1].Earned.EarnedDate)
}

func TestRestore_ReplacesEarned(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	e.CheckAndAward(1, "bingo_master")

	e.Restore(map[watch.UserID][]UserBadge{
		2: {{BadgeID: "first_blood", EarnedDate: time.Now()}},
	})

	assert.Equal(t, 0, e.Count(1))
	assert.Equal(t, 1, e.Count(2))

	// Восстановленный бейдж не выдаётся повторно.
	newly := e.Evaluate(2, EvalContext{Stats: statsWith(1, 0), Now: time.Now()})
	assert.Empty(t, newly)
}

func TestCatalog_DuplicateIDsKeepOrder(t *testing.T) {
	c := NewCatalog(
		Badge{ID: "a", Name: "first"},
		Badge{ID: "a", Name: "second"},
		Badge{ID: "b", Name: "third"},
	)

	assert.Equal(t, 2, c.Len())
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "second", got.Name)
}
