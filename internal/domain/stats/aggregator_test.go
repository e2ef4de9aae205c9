package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frightclub/movie-night-hub/internal/domain/watch"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func closedRecord(userID watch.UserID, title string, minutes int, completion float64) *watch.Record {
	end := time.Now()
	return &watch.Record{
		ID:                   title,
		UserID:               userID,
		Username:             "viewer",
		MovieTitle:           watch.MovieTitle(title),
		StartTime:            end.Add(-time.Duration(minutes) * time.Minute),
		EndTime:              &end,
		WatchDurationMinutes: minutes,
		CompletionPercentage: completion,
	}
}

func TestApply_CountsMoviesAndTime(t *testing.T) {
	r := NewRegistry()

	s := r.Apply(closedRecord(1, "Scream (1996)", 111, 95))
	assert.Equal(t, 1, s.TotalMovies)
	assert.Equal(t, 111, s.TotalWatchTimeMinutes)
	assert.Equal(t, 1, s.CompletedMovies)

	s = r.Apply(closedRecord(1, "Scream 2 (1997)", 40, 35))
	assert.Equal(t, 2, s.TotalMovies)
	assert.Equal(t, 151, s.TotalWatchTimeMinutes)
	// 35% ниже порога в 80%.
	assert.Equal(t, 1, s.CompletedMovies)
}

func TestApply_RefinishedRecordCountedOnce(t *testing.T) {
	// Возобновлённый и повторно завершённый сеанс финализирует ту же запись
	// дважды: фильм засчитывается один раз, время и досмотренность
	// корректируются до итоговых значений.
	r := NewRegistry()

	s := r.Apply(closedRecord(1, "Halloween (1978)", 45, 37.5))
	assert.Equal(t, 1, s.TotalMovies)
	assert.Equal(t, 0, s.CompletedMovies)

	s = r.Apply(closedRecord(1, "Halloween (1978)", 130, 100))
	assert.Equal(t, 1, s.TotalMovies)
	assert.Equal(t, 130, s.TotalWatchTimeMinutes)
	assert.Equal(t, 1, s.CompletedMovies)
	assert.Equal(t, 1, s.CurrentStreakDays)
}

func TestMarkApplied_SurvivesRestore(t *testing.T) {
	// После рестарта повторная финализация записи из снапшота
	// не должна засчитать фильм заново.
	rec := closedRecord(1, "Halloween (1978)", 45, 37.5)

	r := NewRegistry()
	before := r.Apply(rec)

	restarted := NewRegistry()
	restarted.Restore([]*UserStats{before})
	restarted.MarkApplied([]*watch.Record{rec})

	rec.WatchDurationMinutes = 130
	rec.CompletionPercentage = 100
	s := restarted.Apply(rec)

	assert.Equal(t, 1, s.TotalMovies)
	assert.Equal(t, 130, s.TotalWatchTimeMinutes)
	assert.Equal(t, 1, s.CompletedMovies)
}

func TestApply_CustomCompletionThreshold(t *testing.T) {
	r := NewRegistry(WithCompletionThreshold(50))

	s := r.Apply(closedRecord(1, "Scream (1996)", 60, 55))
	assert.Equal(t, 1, s.CompletedMovies)
}

func TestApply_GenresDecadesDirectors(t *testing.T) {
	r := NewRegistry()

	rec := closedRecord(1, "The Thing (1982)", 109, 100)
	rec.Metadata = watch.MovieMetadata{
		Genres:   []string{"horror", "sci-fi"},
		Year:     1982,
		Director: "John Carpenter",
	}
	r.Apply(rec)

	rec2 := closedRecord(1, "Halloween (1978)", 91, 100)
	rec2.Metadata = watch.MovieMetadata{
		Genres:   []string{"horror"},
		Year:     1978,
		Director: "John Carpenter",
	}
	s := r.Apply(rec2)

	assert.Equal(t, 2, s.GenreCount("horror"))
	assert.Equal(t, 1, s.GenreCount("sci-fi"))
	assert.Equal(t, 1, s.FavoriteDecades["1980s"])
	assert.Equal(t, 1, s.FavoriteDecades["1970s"])
	assert.Len(t, s.DirectorsWatched, 1)
}

func TestStreak_ConsecutiveDaysExtend(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 2, 13, 21, 0, 0, 0, time.UTC)}
	r := NewRegistry(WithClock(clock.Now))

	s := r.Apply(closedRecord(1, "Friday the 13th (1980)", 95, 100))
	assert.Equal(t, 1, s.CurrentStreakDays)

	clock.Advance(24 * time.Hour)
	s = r.Apply(closedRecord(1, "Friday the 13th Part 2 (1981)", 87, 100))
	assert.Equal(t, 2, s.CurrentStreakDays)
	assert.Equal(t, 2, s.LongestStreakDays)

	clock.Advance(24 * time.Hour)
	s = r.Apply(closedRecord(1, "Friday the 13th Part III (1982)", 95, 100))
	assert.Equal(t, 3, s.CurrentStreakDays)
}

func TestStreak_SameDayDoesNotInflate(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 2, 13, 21, 0, 0, 0, time.UTC)}
	r := NewRegistry(WithClock(clock.Now))

	r.Apply(closedRecord(1, "Scream (1996)", 111, 100))
	clock.Advance(2 * time.Hour)
	s := r.Apply(closedRecord(1, "Scream 2 (1997)", 120, 100))

	assert.Equal(t, 1, s.CurrentStreakDays)
	assert.Equal(t, 2, s.TotalMovies)
}

func TestStreak_GapResets(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 2, 13, 21, 0, 0, 0, time.UTC)}
	r := NewRegistry(WithClock(clock.Now))

	r.Apply(closedRecord(1, "Scream (1996)", 111, 100))
	clock.Advance(24 * time.Hour)
	r.Apply(closedRecord(1, "Scream 2 (1997)", 120, 100))

	// Пропуск трёх дней рушит серию, рекорд остаётся.
	clock.Advance(72 * time.Hour)
	s := r.Apply(closedRecord(1, "Scream 3 (2000)", 116, 100))

	assert.Equal(t, 1, s.CurrentStreakDays)
	assert.Equal(t, 2, s.LongestStreakDays)
}

func TestSetTotalWatchTime_ReplacesValue(t *testing.T) {
	r := NewRegistry()

	r.Apply(closedRecord(1, "Scream (1996)", 60, 100))
	r.SetTotalWatchTime(1, "viewer", 200)

	s, ok := r.Get(1)
	require.True(t, ok)
	assert.Equal(t, 200, s.TotalWatchTimeMinutes)
}

func TestSocialCounters(t *testing.T) {
	r := NewRegistry()

	r.IncrementAIInteractions(5, "randy")
	r.IncrementAIInteractions(5, "randy")
	r.IncrementVotesCast(5, "randy")
	s := r.IncrementMoviesRequested(5, "randy")

	assert.Equal(t, 2, s.AIInteractions)
	assert.Equal(t, 1, s.VotesCast)
	assert.Equal(t, 1, s.MoviesRequested)
	assert.Equal(t, 0, s.TotalMovies)
}

func TestEnsure_UpdatesUsername(t *testing.T) {
	r := NewRegistry()

	r.Ensure(1, "old-name")
	r.Ensure(1, "new-name")

	s, ok := r.Get(1)
	require.True(t, ok)
	assert.Equal(t, "new-name", s.Username)
}

func TestGet_ReturnsClone(t *testing.T) {
	r := NewRegistry()
	r.Apply(closedRecord(1, "Scream (1996)", 60, 100))

	s, _ := r.Get(1)
	s.TotalMovies = 999
	s.FavoriteGenres["mutated"] = 1

	fresh, _ := r.Get(1)
	assert.Equal(t, 1, fresh.TotalMovies)
	assert.NotContains(t, fresh.FavoriteGenres, "mutated")
}

func TestAll_OrderedByUserID(t *testing.T) {
	// Детерминированный порядок нужен стабильной сортировке рейтинга.
	r := NewRegistry()
	for _, id := range []watch.UserID{42, 3, 17, 1} {
		r.Ensure(id, "viewer")
	}

	all := r.All()
	require.Len(t, all, 4)
	got := make([]int64, 0, len(all))
	for _, s := range all {
		got = append(got, int64(s.UserID))
	}
	assert.Equal(t, []int64{1, 3, 17, 42}, got)
}

func TestRestore_ReplacesState(t *testing.T) {
	r := NewRegistry()
	r.Apply(closedRecord(1, "Scream (1996)", 60, 100))

	restored := NewUserStats(2, "gale")
	restored.TotalMovies = 7
	r.Restore([]*UserStats{restored})

	_, ok := r.Get(1)
	assert.False(t, ok)

	s, ok := r.Get(2)
	require.True(t, ok)
	assert.Equal(t, 7, s.TotalMovies)
}

func TestAverageCompletionRate(t *testing.T) {
	s := NewUserStats(1, "viewer")
	assert.Equal(t, 0.0, s.AverageCompletionRate())

	s.TotalMovies = 4
	s.CompletedMovies = 3
	assert.InDelta(t, 75.0, s.AverageCompletionRate(), 0.01)
}
