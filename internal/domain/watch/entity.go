// Package watch содержит доменную модель сеансов просмотра Movie Night Hub.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package watch

import (
	"fmt"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// UserID представляет уникальный идентификатор пользователя чат-платформы.
type UserID int64

// IsValid проверяет, что UserID положительный.
func (u UserID) IsValid() bool {
	return u > 0
}

// MovieTitle представляет название фильма в формате "Title (Year)".
type MovieTitle string

// IsValid проверяет корректность названия фильма.
func (m MovieTitle) IsValid() bool {
	return strings.TrimSpace(string(m)) != ""
}

// String возвращает строковое представление названия.
func (m MovieTitle) String() string {
	return string(m)
}

// Percent представляет процент завершённости просмотра (0-100).
type Percent float64

// IsValid проверяет, что процент в допустимых пределах.
func (p Percent) IsValid() bool {
	return p >= 0 && p <= 100
}

// Clamp ограничивает значение диапазоном [0, 100].
func (p Percent) Clamp() Percent {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// ══════════════════════════════════════════════════════════════════════════════
// MOVIE METADATA
// ══════════════════════════════════════════════════════════════════════════════

// MovieMetadata содержит метаданные фильма от медиа-сервера.
// Все поля опциональны: коллаборатор работает в режиме best-effort.
type MovieMetadata struct {
	// Genres - жанры фильма (например, "slasher", "supernatural").
	Genres []string

	// Year - год выпуска (0 = неизвестен).
	Year int

	// Director - имя режиссёра (пусто = неизвестен).
	Director string
}

// Decade возвращает десятилетие выпуска в формате "1980s", или пустую строку.
func (m MovieMetadata) Decade() string {
	if m.Year == 0 {
		return ""
	}
	return fmt.Sprintf("%ds", (m.Year/10)*10)
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITIES: WATCH SESSION & WATCH RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Session - активный сеанс просмотра. Инвариант: не более одного активного
// сеанса на пользователя.
type Session struct {
	// UserID - идентификатор зрителя.
	UserID UserID

	// Username - отображаемое имя зрителя.
	Username string

	// MovieTitle - название просматриваемого фильма.
	MovieTitle MovieTitle

	// StartTime - время первого присоединения. Сохраняется при возобновлении.
	StartTime time.Time

	// Metadata - жанры, год, режиссёр (best-effort от медиа-сервера).
	Metadata MovieMetadata

	// MovieDurationMS - полная длительность фильма в миллисекундах (nil = неизвестна).
	MovieDurationMS *int64

	// JoinPositionMS - позиция воспроизведения при последнем присоединении.
	JoinPositionMS *int64

	// LeavePositionMS - позиция воспроизведения при уходе (ставится при завершении).
	LeavePositionMS *int64

	// WatchDurationMinutes - накопленное время просмотра. Монотонно неубывающее.
	WatchDurationMinutes int

	// CompletionPercentage - текущий процент завершённости. Монотонно неубывающий.
	CompletionPercentage float64

	// PriorCompletionPct - завершённость, накопленная прошлыми отрезками того же
	// просмотра до возобновления. У свежих сеансов равна нулю.
	PriorCompletionPct float64
}

// Record - долговременная запись истории просмотра. Инвариант: для пары
// (user_id, movie_title) в любой момент существует не более одной записи
// с EndTime = nil.
type Record struct {
	// ID - уникальный идентификатор записи.
	ID string

	UserID     UserID
	Username   string
	MovieTitle MovieTitle

	StartTime time.Time

	// EndTime - время завершения; nil пока соответствующий сеанс открыт.
	EndTime *time.Time

	WatchDurationMinutes int
	CompletionPercentage float64

	Metadata MovieMetadata

	MovieDurationMS *int64
	JoinPositionMS  *int64
	LeavePositionMS *int64
}

// IsOpen возвращает true, если запись ещё не завершена.
func (r *Record) IsOpen() bool {
	return r.EndTime == nil
}

// IsCompleted возвращает true, если фильм досмотрен (порог по умолчанию 80%).
func (r *Record) IsCompleted(threshold float64) bool {
	return r.CompletionPercentage >= threshold
}

// WatchDate возвращает календарную дату просмотра (по StartTime).
func (r *Record) WatchDate() time.Time {
	y, m, d := r.StartTime.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, r.StartTime.Location())
}

// ResumeWindow возвращает окно возобновления для записи: длительность фильма
// плюс буфер, если длительность известна, иначе окно по умолчанию.
func (r *Record) ResumeWindow(buffer, fallback time.Duration) time.Duration {
	if r.MovieDurationMS != nil && *r.MovieDurationMS > 0 {
		return time.Duration(*r.MovieDurationMS)*time.Millisecond + buffer
	}
	return fallback
}

// WithinResumeWindow проверяет, не истекло ли окно возобновления к моменту now.
// Окно отсчитывается от первоначального StartTime, а не от EndTime.
func (r *Record) WithinResumeWindow(now time.Time, buffer, fallback time.Duration) bool {
	return now.Sub(r.StartTime) <= r.ResumeWindow(buffer, fallback)
}

// Reopen снимает отметку завершения, делая запись снова открытой.
func (r *Record) Reopen() {
	r.EndTime = nil
	r.LeavePositionMS = nil
}

// Clone создаёт глубокую копию записи.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	clone := *r
	if r.EndTime != nil {
		t := *r.EndTime
		clone.EndTime = &t
	}
	clone.MovieDurationMS = cloneInt64(r.MovieDurationMS)
	clone.JoinPositionMS = cloneInt64(r.JoinPositionMS)
	clone.LeavePositionMS = cloneInt64(r.LeavePositionMS)
	clone.Metadata.Genres = append([]string(nil), r.Metadata.Genres...)
	return &clone
}

// String возвращает строковое представление записи для логирования.
func (r *Record) String() string {
	state := "open"
	if !r.IsOpen() {
		state = "closed"
	}
	return fmt.Sprintf("Record{User: %d, Movie: %s, Completion: %.1f%%, %s}",
		r.UserID, r.MovieTitle, r.CompletionPercentage, state)
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
