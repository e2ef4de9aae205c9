package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frightclub/movie-night-hub/internal/domain/shared"
	"github.com/frightclub/movie-night-hub/internal/domain/watch"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET WATCH HISTORY QUERY
// Получает историю просмотров зрителя, самые свежие записи первыми.
// ══════════════════════════════════════════════════════════════════════════════

// GetWatchHistoryQuery содержит параметры запроса истории.
type GetWatchHistoryQuery struct {
	// UserID - идентификатор зрителя.
	UserID int64

	// Limit - количество записей (по умолчанию 25).
	Limit int
}

// Validate проверяет корректность параметров запроса.
func (q *GetWatchHistoryQuery) Validate() error {
	if !watch.UserID(q.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = 25
	}
	return nil
}

// WatchRecordDTO - DTO записи истории просмотра.
type WatchRecordDTO struct {
	// MovieTitle - название фильма.
	MovieTitle string `json:"movie_title"`

	// WatchDate - дата просмотра.
	WatchDate time.Time `json:"watch_date"`

	// DurationMinutes - время просмотра.
	DurationMinutes int `json:"duration_minutes"`

	// CompletionPct - итоговый процент завершённости.
	CompletionPct float64 `json:"completion_pct"`

	// InProgress - запись ещё открыта (сеанс не завершён).
	InProgress bool `json:"in_progress"`
}

// GetWatchHistoryResult содержит результат запроса истории.
type GetWatchHistoryResult struct {
	// UserID - идентификатор зрителя.
	UserID int64 `json:"user_id"`

	// Records - записи истории, самые свежие первыми.
	Records []WatchRecordDTO `json:"records"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetWatchHistoryHandler обрабатывает GetWatchHistoryQuery.
type GetWatchHistoryHandler struct {
	tracker *watch.Tracker
}

// NewGetWatchHistoryHandler создаёт новый GetWatchHistoryHandler.
func NewGetWatchHistoryHandler(tracker *watch.Tracker) *GetWatchHistoryHandler {
	return &GetWatchHistoryHandler{tracker: tracker}
}

// Handle выполняет запрос истории.
func (h *GetWatchHistoryHandler) Handle(ctx context.Context, q GetWatchHistoryQuery) (*GetWatchHistoryResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_watch_history: validation failed: %w", err)
	}

	records := h.tracker.UserHistory(watch.UserID(q.UserID))

	result := &GetWatchHistoryResult{
		UserID:  q.UserID,
		Records: make([]WatchRecordDTO, 0, len(records)),
	}
	// История хранится в порядке добавления; выдача - свежие первыми.
	for i := len(records) - 1; i >= 0 && len(result.Records) < q.Limit; i-- {
		rec := records[i]
		result.Records = append(result.Records, WatchRecordDTO{
			MovieTitle:      string(rec.MovieTitle),
			WatchDate:       rec.WatchDate(),
			DurationMinutes: rec.WatchDurationMinutes,
			CompletionPct:   rec.CompletionPercentage,
			InProgress:      rec.IsOpen(),
		})
	}

	return result, nil
}
