package watch

import (
	"strings"
	"sync"
	"time"

	"github.com/frightclub/movie-night-hub/internal/domain/shared"
	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION TRACKER
// Владеет активными сеансами (один на пользователя), историей просмотров и
// алгоритмом возобновления. Операции одного пользователя сериализуются
// per-user локом: гонка start/finish на одном слоте - источник исторического
// дефекта с дублированием записей.
// ══════════════════════════════════════════════════════════════════════════════

// Defaults for the resume-matching algorithm.
const (
	// DefaultResumeBuffer - буфер поверх длительности фильма (паузы, обсуждения).
	DefaultResumeBuffer = 15 * time.Minute

	// DefaultResumeWindow - окно возобновления, когда длительность неизвестна.
	DefaultResumeWindow = 150 * time.Minute
)

// StartOutcome описывает результат StartSession.
type StartOutcome string

const (
	// OutcomeStarted - создан новый сеанс и новая запись истории.
	OutcomeStarted StartOutcome = "started"

	// OutcomeResumed - переоткрыта существующая запись, дубликат не создан.
	OutcomeResumed StartOutcome = "resumed"
)

// StartParams содержит параметры начала сеанса.
type StartParams struct {
	UserID          UserID
	Username        string
	MovieTitle      MovieTitle
	MovieDurationMS *int64
	JoinPositionMS  *int64
	Metadata        MovieMetadata
}

// Validate проверяет параметры начала сеанса.
func (p StartParams) Validate() error {
	if !p.UserID.IsValid() {
		return shared.ErrInvalidUserID
	}
	if !p.MovieTitle.IsValid() {
		return shared.ErrEmptyMovieTitle
	}
	if p.MovieDurationMS != nil && *p.MovieDurationMS < 0 {
		return shared.ErrNegativeDuration
	}
	return nil
}

// recordKey - ключ индекса текущей записи по паре (пользователь, фильм).
type recordKey struct {
	userID UserID
	title  string
}

func newRecordKey(userID UserID, title MovieTitle) recordKey {
	return recordKey{userID: userID, title: strings.ToLower(string(title))}
}

// Tracker - in-memory хранилище активных сеансов и истории просмотров.
type Tracker struct {
	mu sync.RWMutex

	// active - активные сеансы: не более одного на пользователя.
	active map[UserID]*Session

	// history - append-only журнал записей просмотра.
	history []*Record

	// current - индекс последней записи пары (user, movie). Даёт O(1)
	// поиск при возобновлении вместо линейного скана истории.
	current map[recordKey]*Record

	// Окно возобновления.
	resumeBuffer  time.Duration
	resumeDefault time.Duration

	// Per-user локи: сериализация read-then-write последовательностей
	// одного пользователя.
	userMu map[UserID]*sync.Mutex
	lockMu sync.Mutex

	// now подменяется в тестах.
	now func() time.Time
}

// Option настраивает Tracker.
type Option func(*Tracker)

// WithResumeWindow задаёт буфер и дефолтное окно возобновления.
func WithResumeWindow(buffer, fallback time.Duration) Option {
	return func(t *Tracker) {
		t.resumeBuffer = buffer
		t.resumeDefault = fallback
	}
}

// WithClock задаёт источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker создаёт пустой Tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		active:        make(map[UserID]*Session),
		current:       make(map[recordKey]*Record),
		userMu:        make(map[UserID]*sync.Mutex),
		resumeBuffer:  DefaultResumeBuffer,
		resumeDefault: DefaultResumeWindow,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// lockUser возвращает мьютекс пользователя, создавая его при первом обращении.
func (t *Tracker) lockUser(id UserID) *sync.Mutex {
	t.lockMu.Lock()
	defer t.lockMu.Unlock()

	mu, ok := t.userMu[id]
	if !ok {
		mu = &sync.Mutex{}
		t.userMu[id] = mu
	}
	return mu
}

// ─────────────────────────────────────────────────────────────────────────────
// Start / Resume
// ─────────────────────────────────────────────────────────────────────────────

// StartSession начинает или возобновляет сеанс просмотра.
//
// Алгоритм: по индексу (user, movie) ищется последняя запись, чьё окно
// возобновления (runtime + буфер, либо дефолт) ещё не истекло от
// первоначального StartTime. Найденная запись - открытая или уже закрытая -
// переоткрывается и переиспользуется с сохранением исходного StartTime и
// накопленного прогресса; новая запись истории НЕ создаётся. Иначе создаются
// новый сеанс и параллельная открытая запись. Более старые открытые записи
// той же пары считаются заброшенными: выигрывает самая свежая.
func (t *Tracker) StartSession(p StartParams) (StartOutcome, *Record, error) {
	if err := p.Validate(); err != nil {
		return "", nil, err
	}

	mu := t.lockUser(p.UserID)
	mu.Lock()
	defer mu.Unlock()

	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	key := newRecordKey(p.UserID, p.MovieTitle)

	if rec, ok := t.current[key]; ok && rec.WithinResumeWindow(now, t.resumeBuffer, t.resumeDefault) {
		rec.Reopen()
		if p.MovieDurationMS != nil {
			rec.MovieDurationMS = p.MovieDurationMS
		}

		session := &Session{
			UserID:               p.UserID,
			Username:             p.Username,
			MovieTitle:           p.MovieTitle,
			StartTime:            rec.StartTime, // исходное время сохраняется
			Metadata:             mergeMetadata(p.Metadata, rec.Metadata),
			MovieDurationMS:      rec.MovieDurationMS,
			JoinPositionMS:       p.JoinPositionMS,
			WatchDurationMinutes: rec.WatchDurationMinutes,
			CompletionPercentage: rec.CompletionPercentage,
			PriorCompletionPct:   rec.CompletionPercentage,
		}
		t.active[p.UserID] = session

		return OutcomeResumed, rec.Clone(), nil
	}

	session := &Session{
		UserID:          p.UserID,
		Username:        p.Username,
		MovieTitle:      p.MovieTitle,
		StartTime:       now,
		Metadata:        p.Metadata,
		MovieDurationMS: p.MovieDurationMS,
		JoinPositionMS:  p.JoinPositionMS,
	}
	t.active[p.UserID] = session

	rec := &Record{
		ID:              uuid.NewString(),
		UserID:          p.UserID,
		Username:        p.Username,
		MovieTitle:      p.MovieTitle,
		StartTime:       now,
		Metadata:        p.Metadata,
		MovieDurationMS: p.MovieDurationMS,
		JoinPositionMS:  p.JoinPositionMS,
	}
	closeStale(t.current[key])
	t.history = append(t.history, rec)
	t.current[key] = rec

	return OutcomeStarted, rec.Clone(), nil
}

// closeStale закрывает вытесненную открытую запись на её последней известной
// позиции: EndTime = StartTime + накопленные минуты, прогресс не трогается.
func closeStale(rec *Record) {
	if rec == nil || !rec.IsOpen() {
		return
	}
	end := rec.StartTime.Add(time.Duration(rec.WatchDurationMinutes) * time.Minute)
	rec.EndTime = &end
}

// mergeMetadata дополняет свежие метаданные сохранёнными в записи.
func mergeMetadata(fresh, stored MovieMetadata) MovieMetadata {
	out := fresh
	if len(out.Genres) == 0 {
		out.Genres = stored.Genres
	}
	if out.Year == 0 {
		out.Year = stored.Year
	}
	if out.Director == "" {
		out.Director = stored.Director
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Progress
// ─────────────────────────────────────────────────────────────────────────────

// UpdateProgress обновляет прогресс активного сеанса и его открытой записи.
// Принимается только неубывающая длительность (monotonicity guard).
// Возвращает суммарное время просмотра пользователя, пересчитанное по всей
// истории, чтобы исключить дрейф. Отсутствие активного сеанса - no-op.
func (t *Tracker) UpdateProgress(userID UserID, durationMinutes int, completionPct float64) (totalMinutes int, updated bool, err error) {
	if durationMinutes < 0 {
		return 0, false, shared.ErrNegativeDuration
	}

	mu := t.lockUser(userID)
	mu.Lock()
	defer mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	session, ok := t.active[userID]
	if !ok {
		return t.userTotalMinutesLocked(userID), false, nil
	}

	if durationMinutes < session.WatchDurationMinutes {
		return t.userTotalMinutesLocked(userID), false, nil
	}

	session.WatchDurationMinutes = durationMinutes
	session.CompletionPercentage = float64(Percent(completionPct).Clamp())

	if rec, ok := t.current[newRecordKey(userID, session.MovieTitle)]; ok && rec.IsOpen() {
		rec.WatchDurationMinutes = durationMinutes
		rec.CompletionPercentage = session.CompletionPercentage
	}

	return t.userTotalMinutesLocked(userID), true, nil
}

func (t *Tracker) userTotalMinutesLocked(userID UserID) int {
	total := 0
	for _, rec := range t.history {
		if rec.UserID == userID {
			total += rec.WatchDurationMinutes
		}
	}
	return total
}

// ─────────────────────────────────────────────────────────────────────────────
// Finish
// ─────────────────────────────────────────────────────────────────────────────

// FinishParams содержит параметры завершения сеанса.
type FinishParams struct {
	UserID             UserID
	LeavePositionMS    *int64
	CompletionOverride *float64
	EndTime            time.Time // нулевое значение = now
}

// FinishSession завершает активный сеанс пользователя: вычисляет итоговую
// завершённость, проставляет EndTime в открытой записи (с фолбэком на
// добавление, если записи нет) и снимает активный слот. Завершение без
// активного сеанса - no-op, возвращающий nil: сигналы присутствия от внешнего
// мира по природе гоночные.
func (t *Tracker) FinishSession(p FinishParams) *Record {
	mu := t.lockUser(p.UserID)
	mu.Lock()
	defer mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	session, ok := t.active[p.UserID]
	if !ok {
		return nil
	}

	end := p.EndTime
	if end.IsZero() {
		end = t.now()
	}

	session.LeavePositionMS = p.LeavePositionMS
	session.WatchDurationMinutes = int(end.Sub(session.StartTime).Minutes())

	if p.CompletionOverride != nil {
		session.CompletionPercentage = float64(Percent(*p.CompletionOverride).Clamp())
	} else {
		// Позиционный расчёт покрывает только отрезок от последнего
		// присоединения; завершённость прежних отрезков прибавляется сверху.
		segment := Completion(CompletionInput{
			MovieDurationMS:      session.MovieDurationMS,
			JoinPositionMS:       session.JoinPositionMS,
			LeavePositionMS:      p.LeavePositionMS,
			FallbackMinutes:      session.WatchDurationMinutes,
			FallbackTotalMinutes: durationMinutes(session.MovieDurationMS),
		})
		session.CompletionPercentage = float64(Percent(session.PriorCompletionPct + segment).Clamp())
	}

	key := newRecordKey(p.UserID, session.MovieTitle)
	rec, found := t.current[key]
	if !found || !rec.IsOpen() {
		// Фолбэк: открытой записи нет, добавляем новую.
		rec = &Record{
			ID:              uuid.NewString(),
			UserID:          session.UserID,
			Username:        session.Username,
			MovieTitle:      session.MovieTitle,
			StartTime:       session.StartTime,
			Metadata:        session.Metadata,
			MovieDurationMS: session.MovieDurationMS,
			JoinPositionMS:  session.JoinPositionMS,
		}
		t.history = append(t.history, rec)
		t.current[key] = rec
	}

	rec.EndTime = &end
	rec.WatchDurationMinutes = session.WatchDurationMinutes
	rec.CompletionPercentage = session.CompletionPercentage
	rec.LeavePositionMS = p.LeavePositionMS
	rec.Username = session.Username
	rec.Metadata = mergeMetadata(session.Metadata, rec.Metadata)

	delete(t.active, p.UserID)

	return rec.Clone()
}

func durationMinutes(ms *int64) int {
	if ms == nil || *ms <= 0 {
		return 0
	}
	return int(*ms / (1000 * 60))
}

// ─────────────────────────────────────────────────────────────────────────────
// Manual backfill
// ─────────────────────────────────────────────────────────────────────────────

// ManualWatchParams - параметры ручного добавления просмотра в историю
// (фильмы, просмотренные до запуска трекинга).
type ManualWatchParams struct {
	UserID          UserID
	Username        string
	MovieTitle      MovieTitle
	WatchDate       time.Time
	Metadata        MovieMetadata
	DurationMinutes int     // 0 = средняя длительность 90 минут
	CompletionPct   float64 // 0 = считать досмотренным
}

// AddManualWatch добавляет закрытую запись задним числом. Возвращает nil,
// если у пользователя уже есть запись по этому фильму.
func (t *Tracker) AddManualWatch(p ManualWatchParams) *Record {
	mu := t.lockUser(p.UserID)
	mu.Lock()
	defer mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, rec := range t.history {
		if rec.UserID == p.UserID && strings.EqualFold(string(rec.MovieTitle), string(p.MovieTitle)) {
			return nil
		}
	}

	when := p.WatchDate
	if when.IsZero() {
		when = t.now()
	}
	duration := p.DurationMinutes
	if duration == 0 {
		duration = 90
	}
	completion := p.CompletionPct
	if completion == 0 {
		completion = 100
	}

	end := when
	rec := &Record{
		ID:                   uuid.NewString(),
		UserID:               p.UserID,
		Username:             p.Username,
		MovieTitle:           p.MovieTitle,
		StartTime:            when,
		EndTime:              &end,
		WatchDurationMinutes: duration,
		CompletionPercentage: float64(Percent(completion).Clamp()),
		Metadata:             p.Metadata,
	}
	t.history = append(t.history, rec)
	t.current[newRecordKey(p.UserID, p.MovieTitle)] = rec

	return rec.Clone()
}

// ─────────────────────────────────────────────────────────────────────────────
// Snapshots & queries
// ─────────────────────────────────────────────────────────────────────────────

// ActiveSession возвращает копию активного сеанса пользователя.
func (t *Tracker) ActiveSession(userID UserID) (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	session, ok := t.active[userID]
	if !ok {
		return Session{}, false
	}
	return *session, true
}

// ActiveSessions возвращает копии всех активных сеансов.
func (t *Tracker) ActiveSessions() []Session {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Session, 0, len(t.active))
	for _, s := range t.active {
		out = append(out, *s)
	}
	return out
}

// History возвращает копии всех записей истории в порядке добавления.
func (t *Tracker) History() []*Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Record, 0, len(t.history))
	for _, rec := range t.history {
		out = append(out, rec.Clone())
	}
	return out
}

// HistoryCount возвращает число записей истории.
func (t *Tracker) HistoryCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.history)
}

// UserHistory возвращает копии записей пользователя.
func (t *Tracker) UserHistory(userID UserID) []*Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []*Record
	for _, rec := range t.history {
		if rec.UserID == userID {
			out = append(out, rec.Clone())
		}
	}
	return out
}

// HasWatched проверяет наличие записи пары (user, movie) в истории.
func (t *Tracker) HasWatched(userID UserID, title MovieTitle) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, rec := range t.history {
		if rec.UserID == userID && strings.EqualFold(string(rec.MovieTitle), string(title)) {
			return true
		}
	}
	return false
}

// Restore восстанавливает историю из загруженного снапшота и перестраивает
// индекс текущих записей. Вызывается один раз на старте, до начала операций.
func (t *Tracker) Restore(records []*Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.history = make([]*Record, 0, len(records))
	t.current = make(map[recordKey]*Record, len(records))
	for _, rec := range records {
		clone := rec.Clone()
		if clone.ID == "" {
			clone.ID = uuid.NewString()
		}
		t.history = append(t.history, clone)
		// Последняя запись пары выигрывает: более старая открытая запись
		// считается заброшенной и закрывается на последней известной позиции.
		key := newRecordKey(clone.UserID, clone.MovieTitle)
		closeStale(t.current[key])
		t.current[key] = clone
	}
}
