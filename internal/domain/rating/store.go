package rating

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/frightclub/movie-night-hub/internal/domain/shared"
	"github.com/frightclub/movie-night-hub/internal/domain/watch"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATING STORE
// Append-only список оценок с агрегациями на чтение. Выставление оценки
// проверяется по членству в истории просмотров (WatchedChecker).
// ══════════════════════════════════════════════════════════════════════════════

// WatchedChecker сообщает, есть ли у пользователя запись просмотра фильма.
// Реализуется трекером сеансов.
type WatchedChecker interface {
	HasWatched(userID watch.UserID, title watch.MovieTitle) bool
}

// Store хранит все оценки фильмов.
type Store struct {
	mu sync.RWMutex

	ratings []*MovieRating

	watched WatchedChecker

	// now подменяется в тестах.
	now func() time.Time
}

// StoreOption настраивает Store.
type StoreOption func(*Store)

// WithClock задаёт источник времени (для тестов).
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore создаёт пустое хранилище оценок.
func NewStore(watched WatchedChecker, opts ...StoreOption) *Store {
	s := &Store{
		watched: watched,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rate выставляет оценку фильму.
// Возвращает ErrRatingOutOfRange при оценке вне [1,10], ErrMovieNotWatched
// при отсутствии записи просмотра; false без ошибки, если оценка уже есть
// (no-op, хранимая оценка не меняется).
func (s *Store) Rate(userID watch.UserID, username string, title watch.MovieTitle, score Score) (bool, error) {
	if !score.IsValid() {
		return false, shared.ErrRatingOutOfRange
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findLocked(userID, title) != nil {
		return false, nil
	}

	if s.watched != nil && !s.watched.HasWatched(userID, title) {
		return false, shared.ErrMovieNotWatched
	}

	r, err := NewMovieRating(userID, username, title, score, s.now())
	if err != nil {
		return false, err
	}

	s.ratings = append(s.ratings, r)
	return true, nil
}

func (s *Store) findLocked(userID watch.UserID, title watch.MovieTitle) *MovieRating {
	for _, r := range s.ratings {
		if r.UserID == userID && strings.EqualFold(string(r.MovieTitle), string(title)) {
			return r
		}
	}
	return nil
}

// UserRating возвращает оценку пользователя для фильма.
func (s *Store) UserRating(userID watch.UserID, title watch.MovieTitle) (*MovieRating, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := s.findLocked(userID, title)
	if r == nil {
		return nil, false
	}
	cp := *r
	return &cp, true
}

// ForMovie возвращает все оценки фильма.
func (s *Store) ForMovie(title watch.MovieTitle) []*MovieRating {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*MovieRating
	for _, r := range s.ratings {
		if strings.EqualFold(string(r.MovieTitle), string(title)) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}

// ForUser возвращает все оценки пользователя.
func (s *Store) ForUser(userID watch.UserID) []*MovieRating {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*MovieRating
	for _, r := range s.ratings {
		if r.UserID == userID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}

// Average возвращает среднюю оценку фильма, или false при отсутствии оценок.
func (s *Store) Average(title watch.MovieTitle) (float64, bool) {
	ratings := s.ForMovie(title)
	if len(ratings) == 0 {
		return 0, false
	}

	sum := 0
	for _, r := range ratings {
		sum += int(r.Score)
	}
	return float64(sum) / float64(len(ratings)), true
}

// MovieSummary - сводка оценок одного фильма.
type MovieSummary struct {
	MovieTitle   watch.MovieTitle
	TotalRatings int
	Average      float64
	Ratings      []*MovieRating
}

// AllRated возвращает сводки всех оценённых фильмов, отсортированные по
// убыванию средней оценки.
func (s *Store) AllRated() []MovieSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byTitle := make(map[string]*MovieSummary)
	var order []string
	for _, r := range s.ratings {
		key := strings.ToLower(string(r.MovieTitle))
		sum, ok := byTitle[key]
		if !ok {
			sum = &MovieSummary{MovieTitle: r.MovieTitle}
			byTitle[key] = sum
			order = append(order, key)
		}
		cp := *r
		sum.Ratings = append(sum.Ratings, &cp)
	}

	out := make([]MovieSummary, 0, len(order))
	for _, key := range order {
		sum := byTitle[key]
		total := 0
		for _, r := range sum.Ratings {
			total += int(r.Score)
		}
		sum.TotalRatings = len(sum.Ratings)
		sum.Average = float64(total) / float64(sum.TotalRatings)
		out = append(out, *sum)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Average > out[j].Average
	})
	return out
}

// All возвращает копии всех оценок в порядке добавления.
func (s *Store) All() []*MovieRating {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*MovieRating, 0, len(s.ratings))
	for _, r := range s.ratings {
		cp := *r
		out = append(out, &cp)
	}
	return out
}

// Restore восстанавливает оценки из загруженного снапшота.
func (s *Store) Restore(ratings []*MovieRating) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ratings = make([]*MovieRating, 0, len(ratings))
	for _, r := range ratings {
		cp := *r
		s.ratings = append(s.ratings, &cp)
	}
}
