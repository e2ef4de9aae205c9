// Package stats содержит статистику просмотров пользователя Movie Night Hub
// и агрегатор, сворачивающий финализированные записи истории в неё.
package stats

import (
	"fmt"
	"time"

	"github.com/frightclub/movie-night-hub/internal/domain/watch"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER STATS ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// UserStats - накопительная статистика просмотров одного пользователя.
// Мутируется только агрегатором, никогда - кодом сеансов напрямую.
type UserStats struct {
	UserID   watch.UserID
	Username string

	// TotalMovies - число финализированных просмотров.
	TotalMovies int

	// TotalWatchTimeMinutes - суммарное время просмотра.
	TotalWatchTimeMinutes int

	// CompletedMovies - число досмотренных фильмов (завершённость >= порога).
	CompletedMovies int

	// CurrentStreakDays - текущая серия календарных дней с просмотром.
	CurrentStreakDays int

	// LongestStreakDays - рекордная серия.
	LongestStreakDays int

	// LastWatchDate - дата последнего финализированного просмотра (начало дня).
	LastWatchDate *time.Time

	// FavoriteGenres - счётчики просмотров по жанрам.
	FavoriteGenres map[string]int

	// FavoriteDecades - счётчики просмотров по десятилетиям ("1980s").
	FavoriteDecades map[string]int

	// DirectorsWatched - множество режиссёров, чьи фильмы видел пользователь.
	DirectorsWatched map[string]struct{}

	// Социальные счётчики.
	AIInteractions  int
	VotesCast       int
	MoviesRequested int
}

// NewUserStats создаёт пустую статистику пользователя.
func NewUserStats(userID watch.UserID, username string) *UserStats {
	return &UserStats{
		UserID:           userID,
		Username:         username,
		FavoriteGenres:   make(map[string]int),
		FavoriteDecades:  make(map[string]int),
		DirectorsWatched: make(map[string]struct{}),
	}
}

// TotalWatchTimeHours возвращает суммарное время просмотра в часах.
func (s *UserStats) TotalWatchTimeHours() float64 {
	return float64(s.TotalWatchTimeMinutes) / 60.0
}

// AverageCompletionRate возвращает долю досмотренных фильмов в процентах.
func (s *UserStats) AverageCompletionRate() float64 {
	if s.TotalMovies == 0 {
		return 0
	}
	return float64(s.CompletedMovies) / float64(s.TotalMovies) * 100.0
}

// GenreCount возвращает число просмотров указанного жанра.
func (s *UserStats) GenreCount(genre string) int {
	return s.FavoriteGenres[genre]
}

// Clone создаёт глубокую копию статистики.
func (s *UserStats) Clone() *UserStats {
	if s == nil {
		return nil
	}

	clone := *s
	if s.LastWatchDate != nil {
		t := *s.LastWatchDate
		clone.LastWatchDate = &t
	}
	clone.FavoriteGenres = make(map[string]int, len(s.FavoriteGenres))
	for k, v := range s.FavoriteGenres {
		clone.FavoriteGenres[k] = v
	}
	clone.FavoriteDecades = make(map[string]int, len(s.FavoriteDecades))
	for k, v := range s.FavoriteDecades {
		clone.FavoriteDecades[k] = v
	}
	clone.DirectorsWatched = make(map[string]struct{}, len(s.DirectorsWatched))
	for k := range s.DirectorsWatched {
		clone.DirectorsWatched[k] = struct{}{}
	}
	return &clone
}

// String возвращает строковое представление для логирования.
func (s *UserStats) String() string {
	return fmt.Sprintf("UserStats{User: %d, Movies: %d, Hours: %.1f, Streak: %d}",
		s.UserID, s.TotalMovies, s.TotalWatchTimeHours(), s.CurrentStreakDays)
}
