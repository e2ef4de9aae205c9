// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/frightclub/movie-night-hub/internal/domain/leaderboard"
	"github.com/frightclub/movie-night-hub/internal/domain/stats"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Получает топ-N зрителей по выбранной метрике. Псевдо-аккаунт стримингового
// сервиса исключается из любой выдачи.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery содержит параметры запроса рейтинга.
type GetLeaderboardQuery struct {
	// Metric - метрика ранжирования (по умолчанию total_movies).
	Metric string

	// Limit - количество записей (по умолчанию 10, максимум 100).
	Limit int
}

// Validate проверяет корректность параметров запроса.
func (q *GetLeaderboardQuery) Validate() error {
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Limit == 0 {
		q.Limit = 10
	}
	if q.Metric == "" {
		q.Metric = string(leaderboard.MetricTotalMovies)
	}
	if !leaderboard.Metric(q.Metric).IsValid() {
		return fmt.Errorf("unknown leaderboard metric: %s", q.Metric)
	}
	return nil
}

// LeaderboardEntryDTO - DTO для строки рейтинга (Data Transfer Object).
type LeaderboardEntryDTO struct {
	// Rank - позиция в рейтинге (начиная с 1).
	Rank int `json:"rank"`

	// UserID - идентификатор зрителя.
	UserID int64 `json:"user_id"`

	// Username - отображаемое имя.
	Username string `json:"username"`

	// Value - значение метрики, по которой отранжирована строка.
	Value int64 `json:"value"`

	// TotalMovies - число просмотренных фильмов.
	TotalMovies int `json:"total_movies"`

	// WatchTimeHours - суммарное время просмотра в часах.
	WatchTimeHours float64 `json:"watch_time_hours"`

	// CurrentStreak - текущая серия дней.
	CurrentStreak int `json:"current_streak"`
}

// GetLeaderboardResult содержит результат запроса рейтинга.
type GetLeaderboardResult struct {
	// Metric - метрика, по которой построен рейтинг.
	Metric string `json:"metric"`

	// Entries - строки рейтинга в порядке убывания.
	Entries []LeaderboardEntryDTO `json:"entries"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// Ranker строит топ по метрике. Прод-реализация обслуживает чтение через
// Redis-кэш; запасной вариант считает рейтинг напрямую из реестра.
type Ranker interface {
	Top(ctx context.Context, metric leaderboard.Metric, limit int) ([]leaderboard.Entry, error)
}

// directRanker считает рейтинг напрямую из реестра статистики, без кэша.
type directRanker struct {
	registry *stats.Registry
	badges   leaderboard.BadgeCounter

	// excludeUsernames - псевдо-аккаунты, навсегда исключённые из выдачи.
	excludeUsernames []string
}

func (d directRanker) Top(ctx context.Context, metric leaderboard.Metric, limit int) ([]leaderboard.Entry, error) {
	return leaderboard.BuildRanking(d.registry.All(), d.badges, leaderboard.RankParams{
		Metric:           metric,
		Limit:            limit,
		ExcludeUsernames: d.excludeUsernames,
	})
}

// GetLeaderboardHandler обрабатывает GetLeaderboardQuery.
type GetLeaderboardHandler struct {
	ranker Ranker
}

// NewGetLeaderboardHandler создаёт новый GetLeaderboardHandler,
// читающий рейтинг напрямую из реестра.
func NewGetLeaderboardHandler(registry *stats.Registry, badges leaderboard.BadgeCounter, excludeUsernames []string) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{
		ranker: directRanker{
			registry:         registry,
			badges:           badges,
			excludeUsernames: excludeUsernames,
		},
	}
}

// UseRanker подменяет источник рейтинга, например на кэширующий сервис.
// Вызывается при сборке приложения, до обработки запросов.
func (h *GetLeaderboardHandler) UseRanker(r Ranker) {
	if r != nil {
		h.ranker = r
	}
}

// Handle выполняет запрос рейтинга.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_leaderboard: validation failed: %w", err)
	}

	entries, err := h.ranker.Top(ctx, leaderboard.Metric(q.Metric), q.Limit)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	result := &GetLeaderboardResult{
		Metric:  q.Metric,
		Entries: make([]LeaderboardEntryDTO, 0, len(entries)),
	}
	for _, e := range entries {
		result.Entries = append(result.Entries, LeaderboardEntryDTO{
			Rank:           int(e.Rank),
			UserID:         int64(e.Stats.UserID),
			Username:       e.Stats.Username,
			Value:          e.Value,
			TotalMovies:    e.Stats.TotalMovies,
			WatchTimeHours: e.Stats.TotalWatchTimeHours(),
			CurrentStreak:  e.Stats.CurrentStreakDays,
		})
	}

	return result, nil
}
