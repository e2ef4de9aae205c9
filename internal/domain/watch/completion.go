package watch

import "time"

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION CALCULATOR
// Чистые функции вычисления процента завершённости просмотра.
// Никаких побочных эффектов - тестируются изолированно от хранилища.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultRuntimeMinutes - длительность фильма по умолчанию, когда медиа-сервер
// не сообщил её. Используется только в time-based фолбэке.
const DefaultRuntimeMinutes = 120

// CompletionInput содержит все данные, необходимые для расчёта завершённости.
type CompletionInput struct {
	// MovieDurationMS - полная длительность фильма (nil = неизвестна).
	MovieDurationMS *int64

	// JoinPositionMS - позиция при присоединении (nil = неизвестна).
	JoinPositionMS *int64

	// LeavePositionMS - позиция при уходе (nil = считаем, что фильм доигран).
	LeavePositionMS *int64

	// FallbackMinutes - фактическое время присутствия, для time-based фолбэка.
	FallbackMinutes int

	// FallbackTotalMinutes - длительность фильма для фолбэка
	// (0 = использовать DefaultRuntimeMinutes).
	FallbackTotalMinutes int
}

// Completion вычисляет процент завершённости в диапазоне [0, 100].
//
// Основной путь - позиционный: доля контента фильма, реально увиденная
// зрителем. Поздно присоединившийся и досидевший до конца получает меньше
// 100%; присутствовавший весь фильм - ровно 100%.
//
// Фолбэк - временной: отношение времени присутствия к известной (или
// дефолтной) длительности фильма. Неполные данные никогда не приводят
// к ошибке, только к менее точному расчёту.
func Completion(in CompletionInput) float64 {
	if in.MovieDurationMS != nil && *in.MovieDurationMS > 0 && in.JoinPositionMS != nil {
		return positionCompletion(*in.MovieDurationMS, *in.JoinPositionMS, in.LeavePositionMS)
	}
	return timeCompletion(in.FallbackMinutes, in.FallbackTotalMinutes)
}

// positionCompletion - расчёт по позициям воспроизведения.
func positionCompletion(durationMS, joinMS int64, leaveMS *int64) float64 {
	endPosition := durationMS
	if leaveMS != nil {
		endPosition = *leaveMS
	}

	watchedMS := endPosition - joinMS
	if watchedMS < 0 {
		watchedMS = 0
	}

	return float64(Percent(float64(watchedMS) / float64(durationMS) * 100).Clamp())
}

// timeCompletion - фолбэк по настенным часам.
func timeCompletion(watchedMinutes, totalMinutes int) float64 {
	if watchedMinutes <= 0 {
		return 0
	}
	if totalMinutes <= 0 {
		totalMinutes = DefaultRuntimeMinutes
	}

	return float64(Percent(float64(watchedMinutes) / float64(totalMinutes) * 100).Clamp())
}

// ProgressSnapshot вычисляет текущий прогресс активного сеанса по текущей
// позиции воспроизведения. Используется периодической задачей автосохранения.
type ProgressSnapshot struct {
	DurationMinutes      int
	CompletionPercentage float64
}

// Progress возвращает прогресс сеанса на момент now при текущей позиции
// currentPositionMS. Позиционный расчёт предпочтителен; без позиции
// присоединения используется время с начала сеанса.
func (s *Session) Progress(now time.Time, currentPositionMS int64) ProgressSnapshot {
	var minutes int
	if s.JoinPositionMS != nil {
		watchedMS := currentPositionMS - *s.JoinPositionMS
		if watchedMS < 0 {
			watchedMS = 0
		}
		minutes = int(watchedMS / (1000 * 60))
	} else {
		minutes = int(now.Sub(s.StartTime).Minutes())
	}

	var completion float64
	if s.MovieDurationMS != nil && *s.MovieDurationMS > 0 {
		progressMS := currentPositionMS
		if s.JoinPositionMS != nil {
			progressMS = currentPositionMS - *s.JoinPositionMS
		}
		completion = float64(Percent(float64(progressMS) / float64(*s.MovieDurationMS) * 100).Clamp())
	}

	return ProgressSnapshot{
		DurationMinutes:      minutes,
		CompletionPercentage: completion,
	}
}
