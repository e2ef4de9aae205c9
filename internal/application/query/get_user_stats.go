package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/frightclub/movie-night-hub/internal/domain/shared"
	"github.com/frightclub/movie-night-hub/internal/domain/stats"
	"github.com/frightclub/movie-night-hub/internal/domain/watch"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER STATS QUERY
// Получает агрегированную статистику просмотров одного зрителя вместе с
// его активным сеансом, если он сейчас что-то смотрит.
// ══════════════════════════════════════════════════════════════════════════════

// GetUserStatsQuery содержит параметры запроса статистики.
type GetUserStatsQuery struct {
	// UserID - идентификатор зрителя.
	UserID int64
}

// Validate проверяет корректность параметров запроса.
func (q *GetUserStatsQuery) Validate() error {
	if !watch.UserID(q.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	return nil
}

// GenreCountDTO - счётчик просмотров по жанру.
type GenreCountDTO struct {
	Genre string `json:"genre"`
	Count int    `json:"count"`
}

// ActiveSessionDTO - активный сеанс зрителя.
type ActiveSessionDTO struct {
	// MovieTitle - название просматриваемого фильма.
	MovieTitle string `json:"movie_title"`

	// CompletionPct - текущий процент завершённости.
	CompletionPct float64 `json:"completion_pct"`

	// WatchedMinutes - накопленное время просмотра.
	WatchedMinutes int `json:"watched_minutes"`
}

// GetUserStatsResult содержит результат запроса статистики.
type GetUserStatsResult struct {
	// UserID - идентификатор зрителя.
	UserID int64 `json:"user_id"`

	// Username - отображаемое имя.
	Username string `json:"username"`

	// TotalMovies - число просмотренных фильмов.
	TotalMovies int `json:"total_movies"`

	// CompletedMovies - число досмотренных фильмов.
	CompletedMovies int `json:"completed_movies"`

	// WatchTimeHours - суммарное время просмотра в часах.
	WatchTimeHours float64 `json:"watch_time_hours"`

	// AverageCompletion - средняя доля досмотренных фильмов, в процентах.
	AverageCompletion float64 `json:"average_completion"`

	// CurrentStreak - текущая серия календарных дней с просмотром.
	CurrentStreak int `json:"current_streak"`

	// LongestStreak - рекордная серия.
	LongestStreak int `json:"longest_streak"`

	// TopGenres - жанры по убыванию числа просмотров.
	TopGenres []GenreCountDTO `json:"top_genres"`

	// DirectorsWatched - число режиссёров в фильмографии зрителя.
	DirectorsWatched int `json:"directors_watched"`

	// AIInteractions, VotesCast, MoviesRequested - социальные счётчики.
	AIInteractions  int `json:"ai_interactions"`
	VotesCast       int `json:"votes_cast"`
	MoviesRequested int `json:"movies_requested"`

	// ActiveSession - текущий сеанс (nil = зритель ничего не смотрит).
	ActiveSession *ActiveSessionDTO `json:"active_session,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetUserStatsHandler обрабатывает GetUserStatsQuery.
type GetUserStatsHandler struct {
	registry *stats.Registry
	tracker  *watch.Tracker
}

// NewGetUserStatsHandler создаёт новый GetUserStatsHandler.
func NewGetUserStatsHandler(registry *stats.Registry, tracker *watch.Tracker) *GetUserStatsHandler {
	return &GetUserStatsHandler{registry: registry, tracker: tracker}
}

// Handle выполняет запрос статистики.
func (h *GetUserStatsHandler) Handle(ctx context.Context, q GetUserStatsQuery) (*GetUserStatsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_user_stats: validation failed: %w", err)
	}

	userID := watch.UserID(q.UserID)

	userStats, ok := h.registry.Get(userID)
	if !ok {
		return nil, fmt.Errorf("get_user_stats: %w", shared.ErrUserStatsNotFound)
	}

	result := &GetUserStatsResult{
		UserID:            int64(userStats.UserID),
		Username:          userStats.Username,
		TotalMovies:       userStats.TotalMovies,
		CompletedMovies:   userStats.CompletedMovies,
		WatchTimeHours:    userStats.TotalWatchTimeHours(),
		AverageCompletion: userStats.AverageCompletionRate(),
		CurrentStreak:     userStats.CurrentStreakDays,
		LongestStreak:     userStats.LongestStreakDays,
		TopGenres:         topGenres(userStats),
		DirectorsWatched:  len(userStats.DirectorsWatched),
		AIInteractions:    userStats.AIInteractions,
		VotesCast:         userStats.VotesCast,
		MoviesRequested:   userStats.MoviesRequested,
	}

	if session, active := h.tracker.ActiveSession(userID); active {
		result.ActiveSession = &ActiveSessionDTO{
			MovieTitle:     string(session.MovieTitle),
			CompletionPct:  session.CompletionPercentage,
			WatchedMinutes: session.WatchDurationMinutes,
		}
	}

	return result, nil
}

// topGenres возвращает жанры по убыванию счётчика, при равенстве - по алфавиту.
func topGenres(s *stats.UserStats) []GenreCountDTO {
	genres := make([]GenreCountDTO, 0, len(s.FavoriteGenres))
	for genre, count := range s.FavoriteGenres {
		genres = append(genres, GenreCountDTO{Genre: genre, Count: count})
	}
	sort.Slice(genres, func(i, j int) bool {
		if genres[i].Count != genres[j].Count {
			return genres[i].Count > genres[j].Count
		}
		return genres[i].Genre < genres[j].Genre
	})
	return genres
}
