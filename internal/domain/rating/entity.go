// Package rating содержит оценки фильмов пользователями Movie Night Hub.
// Оценка возможна только после просмотра и выставляется один раз на пару
// (пользователь, фильм).
package rating

import (
	"fmt"
	"time"

	"github.com/frightclub/movie-night-hub/internal/domain/shared"
	"github.com/frightclub/movie-night-hub/internal/domain/watch"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Score представляет оценку фильма по шкале 1-10.
type Score int

// IsValid проверяет, что оценка в допустимом диапазоне.
func (s Score) IsValid() bool {
	return s >= 1 && s <= 10
}

// Text возвращает текстовое описание оценки.
func (s Score) Text() string {
	texts := map[Score]string{
		1: "Terrible", 2: "Awful", 3: "Boring", 4: "Meh", 5: "Okay",
		6: "Good", 7: "Great", 8: "Amazing", 9: "Incredible", 10: "Masterpiece",
	}
	if t, ok := texts[s]; ok {
		return t
	}
	return "Unknown"
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: MOVIE RATING
// ══════════════════════════════════════════════════════════════════════════════

// MovieRating - оценка фильма пользователем. Инвариант: не более одной
// оценки на пару (user_id, movie_title).
type MovieRating struct {
	UserID     watch.UserID
	Username   string
	MovieTitle watch.MovieTitle
	Score      Score
	RatedDate  time.Time
}

// NewMovieRating создаёт оценку с валидацией.
func NewMovieRating(userID watch.UserID, username string, title watch.MovieTitle, score Score, at time.Time) (*MovieRating, error) {
	if !userID.IsValid() {
		return nil, shared.ErrInvalidUserID
	}
	if !title.IsValid() {
		return nil, shared.ErrEmptyMovieTitle
	}
	if !score.IsValid() {
		return nil, shared.ErrRatingOutOfRange
	}

	return &MovieRating{
		UserID:     userID,
		Username:   username,
		MovieTitle: title,
		Score:      score,
		RatedDate:  at,
	}, nil
}

// String возвращает строковое представление оценки.
func (r *MovieRating) String() string {
	return fmt.Sprintf("MovieRating{User: %d, Movie: %s, Score: %d/10}",
		r.UserID, r.MovieTitle, r.Score)
}
