package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/frightclub/movie-night-hub/internal/domain/watch"
	"github.com/frightclub/movie-night-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATS AGGREGATOR
// Сворачивает финализированные записи истории в статистику пользователей.
// Каждая финализированная запись засчитывается ровно один раз: реестр помнит
// применённые записи по ID, и повторная финализация возобновлённого сеанса
// корректирует время и досмотренность по дельте, не удваивая счётчик фильмов.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultCompletionThreshold - порог завершённости, при котором фильм
// считается досмотренным.
const DefaultCompletionThreshold = 80.0

// contribution фиксирует вклад применённой записи в статистику, чтобы
// повторная финализация той же записи корректировала её по дельте.
type contribution struct {
	minutes   int
	completed bool
}

// Registry хранит статистику всех пользователей и применяет к ней записи.
type Registry struct {
	mu sync.RWMutex

	users map[watch.UserID]*UserStats

	// applied - вклад уже применённых записей по их ID.
	applied map[string]contribution

	completionThreshold float64

	// now подменяется в тестах.
	now func() time.Time
}

// RegistryOption настраивает Registry.
type RegistryOption func(*Registry)

// WithCompletionThreshold задаёт порог досмотренности.
func WithCompletionThreshold(threshold float64) RegistryOption {
	return func(r *Registry) {
		r.completionThreshold = threshold
	}
}

// WithClock задаёт источник времени (для тестов).
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry создаёт пустой реестр статистики.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		users:               make(map[watch.UserID]*UserStats),
		applied:             make(map[string]contribution),
		completionThreshold: DefaultCompletionThreshold,
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ensure возвращает статистику пользователя, создавая её при первом обращении.
// Неизвестный пользователь создаётся неявно и всегда успешно.
func (r *Registry) Ensure(userID watch.UserID, username string) *UserStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ensureLocked(userID, username)
}

func (r *Registry) ensureLocked(userID watch.UserID, username string) *UserStats {
	s, ok := r.users[userID]
	if !ok {
		s = NewUserStats(userID, username)
		r.users[userID] = s
	}
	if username != "" {
		s.Username = username
	}
	return s
}

// Apply применяет финализированную запись к статистике её пользователя.
// Уже применённая запись (возобновлённый и повторно завершённый сеанс)
// не увеличивает счётчик фильмов: корректируются только время просмотра
// и флаг досмотренности, по дельте относительно прошлого применения.
func (r *Registry) Apply(rec *watch.Record) *UserStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.ensureLocked(rec.UserID, rec.Username)

	completed := rec.IsCompleted(r.completionThreshold)

	if prev, seen := r.applied[rec.ID]; seen {
		s.TotalWatchTimeMinutes += rec.WatchDurationMinutes - prev.minutes
		switch {
		case completed && !prev.completed:
			s.CompletedMovies++
		case !completed && prev.completed:
			s.CompletedMovies--
		}
		r.applied[rec.ID] = contribution{minutes: rec.WatchDurationMinutes, completed: completed}
		return s.Clone()
	}

	s.TotalMovies++
	s.TotalWatchTimeMinutes += rec.WatchDurationMinutes

	if completed {
		s.CompletedMovies++
	}

	r.applyStreakLocked(s)

	for _, genre := range rec.Metadata.Genres {
		s.FavoriteGenres[genre]++
	}
	if decade := rec.Metadata.Decade(); decade != "" {
		s.FavoriteDecades[decade]++
	}
	if rec.Metadata.Director != "" {
		s.DirectorsWatched[rec.Metadata.Director] = struct{}{}
	}

	if rec.ID != "" {
		r.applied[rec.ID] = contribution{minutes: rec.WatchDurationMinutes, completed: completed}
	}

	return s.Clone()
}

// applyStreakLocked пересчитывает серию календарных дней.
// Вчерашний просмотр продлевает серию; повторный просмотр в тот же день
// её не раздувает; иначе серия сбрасывается на 1.
func (r *Registry) applyStreakLocked(s *UserStats) {
	today := timeutil.StartOfDay(r.now())

	switch {
	case s.LastWatchDate == nil:
		s.CurrentStreakDays = 1
	case timeutil.SameDay(*s.LastWatchDate, today.AddDate(0, 0, -1)):
		s.CurrentStreakDays++
	case timeutil.SameDay(*s.LastWatchDate, today):
		// Тот же день: серия без изменений.
	default:
		s.CurrentStreakDays = 1
	}

	if s.CurrentStreakDays > s.LongestStreakDays {
		s.LongestStreakDays = s.CurrentStreakDays
	}
	s.LastWatchDate = &today
}

// SetTotalWatchTime выставляет суммарное время просмотра пользователя.
// Используется при обновлении прогресса: итог пересчитывается по всей
// истории трекером, чтобы исключить дрейф от инкрементальных обновлений.
func (r *Registry) SetTotalWatchTime(userID watch.UserID, username string, totalMinutes int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.ensureLocked(userID, username)
	s.TotalWatchTimeMinutes = totalMinutes
}

// ─────────────────────────────────────────────────────────────────────────────
// Social counters
// ─────────────────────────────────────────────────────────────────────────────

// IncrementAIInteractions увеличивает счётчик обращений к AI-ассистенту.
func (r *Registry) IncrementAIInteractions(userID watch.UserID, username string) *UserStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.ensureLocked(userID, username)
	s.AIInteractions++
	return s.Clone()
}

// IncrementVotesCast увеличивает счётчик голосов в опросах.
func (r *Registry) IncrementVotesCast(userID watch.UserID, username string) *UserStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.ensureLocked(userID, username)
	s.VotesCast++
	return s.Clone()
}

// IncrementMoviesRequested увеличивает счётчик заявок на фильмы.
func (r *Registry) IncrementMoviesRequested(userID watch.UserID, username string) *UserStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.ensureLocked(userID, username)
	s.MoviesRequested++
	return s.Clone()
}

// ─────────────────────────────────────────────────────────────────────────────
// Snapshots
// ─────────────────────────────────────────────────────────────────────────────

// Get возвращает копию статистики пользователя.
func (r *Registry) Get(userID watch.UserID) (*UserStats, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.users[userID]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// All возвращает копии статистики всех пользователей в порядке возрастания
// UserID. Детерминированный порядок нужен стабильной сортировке рейтинга:
// ничьи сохраняют взаимный порядок между вызовами.
func (r *Registry) All() []*UserStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*UserStats, 0, len(r.users))
	for _, s := range r.users {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Restore восстанавливает реестр из загруженного снапшота.
// Вызывается один раз на старте, до начала операций.
func (r *Registry) Restore(users []*UserStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users = make(map[watch.UserID]*UserStats, len(users))
	r.applied = make(map[string]contribution)
	for _, s := range users {
		r.users[s.UserID] = s.Clone()
	}
}

// MarkApplied отмечает закрытые записи истории как уже применённые.
// Вызывается после Restore, чтобы возобновление записи из снапшота
// не привело к повторному засчитыванию фильма.
func (r *Registry) MarkApplied(records []*watch.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range records {
		if rec.ID == "" || rec.IsOpen() {
			continue
		}
		r.applied[rec.ID] = contribution{
			minutes:   rec.WatchDurationMinutes,
			completed: rec.IsCompleted(r.completionThreshold),
		}
	}
}
