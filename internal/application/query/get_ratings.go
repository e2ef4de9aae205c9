package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/frightclub/movie-night-hub/internal/domain/rating"
	"github.com/frightclub/movie-night-hub/internal/domain/watch"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RATINGS QUERY
// Получает сводку оценок: либо по одному фильму, либо по всем оценённым
// фильмам в порядке убывания средней оценки.
// ══════════════════════════════════════════════════════════════════════════════

// GetRatingsQuery содержит параметры запроса оценок.
type GetRatingsQuery struct {
	// MovieTitle - фильтр по фильму (пустая строка = все фильмы).
	MovieTitle string

	// Limit - количество фильмов в сводке (по умолчанию 10).
	Limit int
}

// Validate проверяет корректность параметров запроса.
func (q *GetRatingsQuery) Validate() error {
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = 10
	}
	return nil
}

// MovieRatingDTO - сводка оценок одного фильма.
type MovieRatingDTO struct {
	// MovieTitle - название фильма.
	MovieTitle string `json:"movie_title"`

	// Average - средняя оценка по шкале 1-10.
	Average float64 `json:"average"`

	// Votes - число оценок.
	Votes int `json:"votes"`
}

// GetRatingsResult содержит результат запроса оценок.
type GetRatingsResult struct {
	// Movies - сводки по фильмам в порядке убывания средней оценки.
	Movies []MovieRatingDTO `json:"movies"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetRatingsHandler обрабатывает GetRatingsQuery.
type GetRatingsHandler struct {
	ratings *rating.Store
}

// NewGetRatingsHandler создаёт новый GetRatingsHandler.
func NewGetRatingsHandler(ratings *rating.Store) *GetRatingsHandler {
	return &GetRatingsHandler{ratings: ratings}
}

// Handle выполняет запрос оценок.
func (h *GetRatingsHandler) Handle(ctx context.Context, q GetRatingsQuery) (*GetRatingsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_ratings: validation failed: %w", err)
	}

	if q.MovieTitle != "" {
		title := watch.MovieTitle(q.MovieTitle)
		avg, ok := h.ratings.Average(title)
		if !ok {
			return &GetRatingsResult{Movies: []MovieRatingDTO{}}, nil
		}
		return &GetRatingsResult{Movies: []MovieRatingDTO{{
			MovieTitle: q.MovieTitle,
			Average:    avg,
			Votes:      len(h.ratings.ForMovie(title)),
		}}}, nil
	}

	summaries := h.ratings.AllRated()
	if len(summaries) > q.Limit {
		summaries = summaries[:q.Limit]
	}

	result := &GetRatingsResult{Movies: make([]MovieRatingDTO, 0, len(summaries))}
	for _, s := range summaries {
		result.Movies = append(result.Movies, MovieRatingDTO{
			MovieTitle: string(s.MovieTitle),
			Average:    s.Average,
			Votes:      s.TotalRatings,
		})
	}

	return result, nil
}
