package rating

import (
	"strconv"

	"github.com/frightclub/movie-night-hub/internal/domain/shared"
	"github.com/frightclub/movie-night-hub/internal/domain/watch"
)

// MovieRatedEvent сообщает о принятой оценке фильма.
type MovieRatedEvent struct {
	shared.BaseEvent
}

// NewMovieRatedEvent создаёт событие принятой оценки.
func NewMovieRatedEvent(userID watch.UserID, username, movieTitle string, score int) MovieRatedEvent {
	return MovieRatedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventMovieRated,
			strconv.FormatInt(int64(userID), 10),
			map[string]interface{}{
				"user_id":     int64(userID),
				"username":    username,
				"movie_title": movieTitle,
				"score":       score,
			}),
	}
}
