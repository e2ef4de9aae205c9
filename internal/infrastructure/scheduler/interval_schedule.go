package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule запускает задачу с фиксированным шагом от предыдущего
// запуска. Используется для автосохранения и прочих фоновых задач, которым
// не нужна привязка к календарю.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule создаёт расписание с заданным шагом.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: interval}
}

// Next возвращает момент следующего запуска после t.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String возвращает представление расписания в духе cron-директивы @every.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval.String())
}
