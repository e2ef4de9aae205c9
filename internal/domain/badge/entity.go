// Package badge содержит каталог достижений Movie Night Hub и движок их
// выдачи. Каталог неизменяем и внедряется при старте; оценка правил -
// чистая функция от статистики, истории и уже заработанных бейджей.
package badge

import (
	"fmt"
	"time"

	"github.com/frightclub/movie-night-hub/internal/domain/stats"
	"github.com/frightclub/movie-night-hub/internal/domain/watch"
	"github.com/frightclub/movie-night-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS & ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// ID представляет уникальный идентификатор бейджа в каталоге.
type ID string

// IsValid проверяет, что идентификатор непустой.
func (id ID) IsValid() bool {
	return id != ""
}

// String возвращает строковое представление идентификатора.
func (id ID) String() string {
	return string(id)
}

// Type определяет класс правила бейджа.
type Type string

const (
	TypeMovieCount         Type = "movie_count"
	TypeTimeBased          Type = "time_based"
	TypeGenreSpecialist    Type = "genre_specialist"
	TypeSocial             Type = "social"
	TypeSpecialAchievement Type = "special_achievement"
	TypeStreak             Type = "streak"
)

// Rarity определяет редкость бейджа.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// SocialMetric - социальный счётчик, с которым сравнивается порог.
type SocialMetric string

const (
	MetricVotesCast       SocialMetric = "votes_cast"
	MetricMoviesRequested SocialMetric = "movies_requested"
	MetricAIInteractions  SocialMetric = "ai_interactions"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUIREMENTS
// Типизированные варианты вместо нетипизированного requirement_data:
// каждое правило несёт ровно те поля, которые нужны его оценке.
// ══════════════════════════════════════════════════════════════════════════════

// EvalContext содержит всё, от чего может зависеть оценка правила.
type EvalContext struct {
	// Stats - текущая статистика пользователя.
	Stats *stats.UserStats

	// History - история просмотров пользователя.
	History []*watch.Record

	// LastRecord - только что финализированная запись (nil вне завершения).
	LastRecord *watch.Record

	// Now - момент оценки.
	Now time.Time
}

// Requirement - правило получения бейджа.
type Requirement interface {
	// Met возвращает true, если правило выполнено в данном контексте.
	Met(ctx EvalContext) bool
}

// MovieCount - просмотрено не менее Count фильмов.
type MovieCount struct {
	Count int
}

func (r MovieCount) Met(ctx EvalContext) bool {
	return ctx.Stats != nil && ctx.Stats.TotalMovies >= r.Count
}

// StreakDays - текущая серия не короче Days дней.
type StreakDays struct {
	Days int
}

func (r StreakDays) Met(ctx EvalContext) bool {
	return ctx.Stats != nil && ctx.Stats.CurrentStreakDays >= r.Days
}

// GenreSpecialist - просмотрено не менее Count фильмов жанра Genre.
type GenreSpecialist struct {
	Genre string
	Count int
}

func (r GenreSpecialist) Met(ctx EvalContext) bool {
	return ctx.Stats != nil && ctx.Stats.GenreCount(r.Genre) >= r.Count
}

// SocialCounter - социальный счётчик Metric достиг Count.
type SocialCounter struct {
	Metric SocialMetric
	Count  int
}

func (r SocialCounter) Met(ctx EvalContext) bool {
	if ctx.Stats == nil {
		return false
	}
	switch r.Metric {
	case MetricVotesCast:
		return ctx.Stats.VotesCast >= r.Count
	case MetricMoviesRequested:
		return ctx.Stats.MoviesRequested >= r.Count
	case MetricAIInteractions:
		return ctx.Stats.AIInteractions >= r.Count
	default:
		return false
	}
}

// HolidayWatch - оценка выпала на праздничную дату (месяц/день).
type HolidayWatch struct {
	Month time.Month
	Day   int
}

func (r HolidayWatch) Met(ctx EvalContext) bool {
	home := timeutil.ToHome(ctx.Now)
	return home.Month() == r.Month && home.Day() == r.Day
}

// DirectorFilmography - не менее Count просмотров фильмов одного режиссёра.
// Вычисляется по истории, а не по статистике: DirectorsWatched хранит только
// множество имён.
type DirectorFilmography struct {
	Count int
}

func (r DirectorFilmography) Met(ctx EvalContext) bool {
	counts := make(map[string]int)
	for _, rec := range ctx.History {
		if rec.Metadata.Director != "" {
			counts[rec.Metadata.Director]++
			if counts[rec.Metadata.Director] >= r.Count {
				return true
			}
		}
	}
	return false
}

// LateNightFinish - сеанс завершён после полуночи.
type LateNightFinish struct{}

func (r LateNightFinish) Met(ctx EvalContext) bool {
	return ctx.LastRecord != nil && ctx.LastRecord.EndTime != nil &&
		timeutil.IsLateNight(*ctx.LastRecord.EndTime)
}

// MarathonSession - одиночный сеанс длиной не менее Minutes минут.
type MarathonSession struct {
	Minutes int
}

func (r MarathonSession) Met(ctx EvalContext) bool {
	return ctx.LastRecord != nil && ctx.LastRecord.WatchDurationMinutes >= r.Minutes
}

// WeekendBinge - не менее Count просмотров за текущие выходные.
type WeekendBinge struct {
	Count int
}

func (r WeekendBinge) Met(ctx EvalContext) bool {
	if !timeutil.IsWeekend(ctx.Now) {
		return false
	}
	n := 0
	for _, rec := range ctx.History {
		if timeutil.IsWeekend(rec.StartTime) && timeutil.DaysBetween(rec.StartTime, ctx.Now) <= 2 {
			n++
		}
	}
	return n >= r.Count
}

// ManualGrant - бейдж выдаётся только внешним коллаборатором через
// CheckAndAward (например, завершение мини-игры). Автоматическая оценка
// его никогда не выдаёт.
type ManualGrant struct{}

func (r ManualGrant) Met(EvalContext) bool {
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITIES: BADGE & USER BADGE
// ══════════════════════════════════════════════════════════════════════════════

// Badge - статическое определение достижения в каталоге.
type Badge struct {
	ID          ID
	Name        string
	Description string
	Emoji       string
	Type        Type
	Rarity      Rarity

	// Requirement - типизированное правило получения.
	Requirement Requirement
}

// String возвращает строковое представление бейджа.
func (b Badge) String() string {
	return fmt.Sprintf("%s %s", b.Emoji, b.Name)
}

// UserBadge - факт получения бейджа пользователем. Append-only: пара
// (user, badge) выдаётся не более одного раза за всё время.
type UserBadge struct {
	BadgeID    ID
	EarnedDate time.Time
}
