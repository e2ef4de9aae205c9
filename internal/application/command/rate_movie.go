package command

import (
	"context"
	"fmt"

	"github.com/frightclub/movie-night-hub/internal/domain/rating"
	"github.com/frightclub/movie-night-hub/internal/domain/shared"
	"github.com/frightclub/movie-night-hub/internal/domain/watch"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE MOVIE COMMAND
// Записывает оценку фильма. Оценивать можно только просмотренные фильмы,
// и ровно один раз: повторная оценка не перезаписывает первую.
// ══════════════════════════════════════════════════════════════════════════════

// RateMovieCommand содержит данные оценки.
type RateMovieCommand struct {
	// UserID - идентификатор зрителя.
	UserID int64

	// Username - отображаемое имя зрителя.
	Username string

	// MovieTitle - название оцениваемого фильма.
	MovieTitle string

	// Score - оценка по шкале 1-10.
	Score int
}

// Validate проверяет корректность команды.
func (c RateMovieCommand) Validate() error {
	if !watch.UserID(c.UserID).IsValid() {
		return fmt.Errorf("rate_movie: %w", shared.ErrInvalidUserID)
	}
	if !watch.MovieTitle(c.MovieTitle).IsValid() {
		return fmt.Errorf("rate_movie: %w", shared.ErrEmptyMovieTitle)
	}
	if !rating.Score(c.Score).IsValid() {
		return fmt.Errorf("rate_movie: %w", shared.ErrRatingOutOfRange)
	}
	return nil
}

// RateMovieResult содержит результат оценки.
type RateMovieResult struct {
	// Accepted - оценка записана. False означает, что зритель уже
	// оценивал этот фильм.
	Accepted bool

	// Average - средняя оценка фильма после записи.
	Average float64

	// Votes - количество оценок фильма после записи.
	Votes int
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RateMovieHandler обрабатывает RateMovieCommand.
type RateMovieHandler struct {
	ratings *rating.Store
	bus     shared.EventBus
}

// NewRateMovieHandler создаёт новый RateMovieHandler.
// Шина событий опциональна: nil отключает публикацию.
func NewRateMovieHandler(ratings *rating.Store, bus shared.EventBus) *RateMovieHandler {
	return &RateMovieHandler{ratings: ratings, bus: bus}
}

// Handle выполняет команду оценки фильма.
func (h *RateMovieHandler) Handle(ctx context.Context, cmd RateMovieCommand) (*RateMovieResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("rate_movie: validation failed: %w", err)
	}

	title := watch.MovieTitle(cmd.MovieTitle)

	accepted, err := h.ratings.Rate(watch.UserID(cmd.UserID), cmd.Username, title, rating.Score(cmd.Score))
	if err != nil {
		return nil, fmt.Errorf("rate_movie: %w", err)
	}

	if accepted {
		publish(h.bus, rating.NewMovieRatedEvent(watch.UserID(cmd.UserID), cmd.Username, cmd.MovieTitle, cmd.Score))
	}

	avg, _ := h.ratings.Average(title)

	return &RateMovieResult{
		Accepted: accepted,
		Average:  avg,
		Votes:    len(h.ratings.ForMovie(title)),
	}, nil
}
