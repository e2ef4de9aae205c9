package rating

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frightclub/movie-night-hub/internal/domain/shared"
	"github.com/frightclub/movie-night-hub/internal/domain/watch"
)

// watchedSet - проверка просмотра по фиксированному набору названий.
type watchedSet map[string]bool

func (w watchedSet) HasWatched(userID watch.UserID, title watch.MovieTitle) bool {
	return w[strings.ToLower(string(title))]
}

func TestRate_RequiresWatch(t *testing.T) {
	s := NewStore(watchedSet{})

	ok, err := s.Rate(1, "sidney", "Scream (1996)", 9)
	assert.False(t, ok)
	assert.ErrorIs(t, err, shared.ErrMovieNotWatched)
}

func TestRate_Accepted(t *testing.T) {
	s := NewStore(watchedSet{"scream (1996)": true})

	ok, err := s.Rate(1, "sidney", "Scream (1996)", 9)
	require.NoError(t, err)
	assert.True(t, ok)

	r, found := s.UserRating(1, "Scream (1996)")
	require.True(t, found)
	assert.Equal(t, Score(9), r.Score)
}

func TestRate_OneShot(t *testing.T) {
	s := NewStore(watchedSet{"scream (1996)": true})

	ok, err := s.Rate(1, "sidney", "Scream (1996)", 9)
	require.NoError(t, err)
	require.True(t, ok)

	// Повторная оценка - no-op, первоначальная сохраняется.
	ok, err = s.Rate(1, "sidney", "SCREAM (1996)", 3)
	require.NoError(t, err)
	assert.False(t, ok)

	r, _ := s.UserRating(1, "Scream (1996)")
	assert.Equal(t, Score(9), r.Score)
}

func TestRate_ScoreOutOfRange(t *testing.T) {
	s := NewStore(watchedSet{"scream (1996)": true})

	_, err := s.Rate(1, "sidney", "Scream (1996)", 0)
	assert.ErrorIs(t, err, shared.ErrRatingOutOfRange)

	_, err = s.Rate(1, "sidney", "Scream (1996)", 11)
	assert.ErrorIs(t, err, shared.ErrRatingOutOfRange)
}

func TestRate_NilCheckerAllowsAll(t *testing.T) {
	s := NewStore(nil)

	ok, err := s.Rate(1, "sidney", "Scream (1996)", 7)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAverage(t *testing.T) {
	s := NewStore(nil)
	s.Rate(1, "sidney", "Scream (1996)", 9)
	s.Rate(2, "gale", "scream (1996)", 6)

	avg, ok := s.Average("Scream (1996)")
	require.True(t, ok)
	assert.InDelta(t, 7.5, avg, 0.01)

	_, ok = s.Average("Unrated (2000)")
	assert.False(t, ok)
}

func TestAllRated_SortedByAverage(t *testing.T) {
	s := NewStore(nil)
	s.Rate(1, "sidney", "Scream (1996)", 9)
	s.Rate(2, "gale", "Scream (1996)", 7)
	s.Rate(1, "sidney", "Scream 3 (2000)", 5)

	summaries := s.AllRated()
	require.Len(t, summaries, 2)
	assert.Equal(t, watch.MovieTitle("Scream (1996)"), summaries[0].MovieTitle)
	assert.Equal(t, 2, summaries[0].TotalRatings)
	assert.InDelta(t, 8.0, summaries[0].Average, 0.01)
	assert.InDelta(t, 5.0, summaries[1].Average, 0.01)
}

func TestForUser(t *testing.T) {
	s := NewStore(nil)
	s.Rate(1, "sidney", "Scream (1996)", 9)
	s.Rate(1, "sidney", "Scream 2 (1997)", 8)
	s.Rate(2, "gale", "Scream (1996)", 6)

	assert.Len(t, s.ForUser(1), 2)
	assert.Len(t, s.ForUser(2), 1)
	assert.Empty(t, s.ForUser(3))
}

func TestRestore(t *testing.T) {
	s := NewStore(nil)
	s.Rate(1, "sidney", "Scream (1996)", 9)

	s.Restore([]*MovieRating{
		{UserID: 2, Username: "gale", MovieTitle: "Candyman (1992)", Score: 8},
	})

	assert.Len(t, s.All(), 1)
	_, found := s.UserRating(1, "Scream (1996)")
	assert.False(t, found)
	_, found = s.UserRating(2, "Candyman (1992)")
	assert.True(t, found)
}

func TestScore_Text(t *testing.T) {
	assert.Equal(t, "Masterpiece", Score(10).Text())
	assert.Equal(t, "Terrible", Score(1).Text())
	assert.Equal(t, "Unknown", Score(42).Text())
}
