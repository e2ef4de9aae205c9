// Package leaderboard содержит доменную модель рейтингов Movie Night Hub.
// Рейтинг считается по выбираемой метрике; сервисный стриминговый аккаунт
// всегда исключается, чтобы не засорять пользовательские таблицы.
package leaderboard

import (
	"sort"
	"strings"

	"github.com/frightclub/movie-night-hub/internal/domain/shared"
	"github.com/frightclub/movie-night-hub/internal/domain/stats"
	"github.com/frightclub/movie-night-hub/internal/domain/watch"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Metric определяет метрику ранжирования.
type Metric string

const (
	// MetricTotalMovies - по числу просмотренных фильмов.
	MetricTotalMovies Metric = "total_movies"

	// MetricWatchTime - по суммарному времени просмотра.
	MetricWatchTime Metric = "watch_time"

	// MetricCurrentStreak - по текущей серии дней.
	MetricCurrentStreak Metric = "current_streak"

	// MetricBadges - по числу заработанных бейджей.
	MetricBadges Metric = "badges"
)

// IsValid проверяет, что метрика известна.
func (m Metric) IsValid() bool {
	switch m {
	case MetricTotalMovies, MetricWatchTime, MetricCurrentStreak, MetricBadges:
		return true
	default:
		return false
	}
}

// Rank представляет позицию в рейтинге. Начинается с 1.
type Rank int

// IsTop3 возвращает true для призовых мест.
func (r Rank) IsTop3() bool {
	return r >= 1 && r <= 3
}

// Entry - строка рейтинга.
type Entry struct {
	// Stats - статистика пользователя.
	Stats *stats.UserStats

	// Rank - позиция после фильтрации исключений, 1-based и непрерывная.
	Rank Rank

	// Value - значение метрики, по которому отранжирована строка.
	Value int64
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING
// ══════════════════════════════════════════════════════════════════════════════

// BadgeCounter сообщает число бейджей пользователя. Реализуется движком
// достижений.
type BadgeCounter interface {
	Count(userID watch.UserID) int
}

// RankParams содержит параметры построения рейтинга.
type RankParams struct {
	Metric Metric
	Limit  int

	// ExcludeUsernames - псевдо-аккаунты, исключаемые из выдачи
	// (сравнение без учёта регистра).
	ExcludeUsernames []string
}

// BuildRanking строит рейтинг по метрике. Сортировка по убыванию значения;
// равные значения сохраняют исходный относительный порядок (stable);
// ранги непрерывны 1..limit после исключения псевдо-аккаунтов.
func BuildRanking(users []*stats.UserStats, badges BadgeCounter, p RankParams) ([]Entry, error) {
	if !p.Metric.IsValid() {
		return nil, shared.ErrUnknownMetric
	}
	if p.Limit <= 0 {
		return nil, shared.ErrInvalidLimit
	}

	excluded := make(map[string]struct{}, len(p.ExcludeUsernames))
	for _, name := range p.ExcludeUsernames {
		excluded[strings.ToLower(name)] = struct{}{}
	}

	eligible := make([]Entry, 0, len(users))
	for _, u := range users {
		if _, skip := excluded[strings.ToLower(u.Username)]; skip {
			continue
		}
		eligible = append(eligible, Entry{
			Stats: u,
			Value: metricValue(u, badges, p.Metric),
		})
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Value > eligible[j].Value
	})

	if len(eligible) > p.Limit {
		eligible = eligible[:p.Limit]
	}
	for i := range eligible {
		eligible[i].Rank = Rank(i + 1)
	}

	return eligible, nil
}

func metricValue(u *stats.UserStats, badges BadgeCounter, m Metric) int64 {
	switch m {
	case MetricTotalMovies:
		return int64(u.TotalMovies)
	case MetricWatchTime:
		return int64(u.TotalWatchTimeMinutes)
	case MetricCurrentStreak:
		return int64(u.CurrentStreakDays)
	case MetricBadges:
		if badges == nil {
			return 0
		}
		return int64(badges.Count(u.UserID))
	default:
		return 0
	}
}
