package watch

import (
	"strconv"

	"github.com/frightclub/movie-night-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// WATCH EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// SessionStartedEvent сообщает о присоединении зрителя к просмотру.
type SessionStartedEvent struct {
	shared.BaseEvent
}

// NewSessionStartedEvent создаёт событие начала (или возобновления) сеанса.
func NewSessionStartedEvent(rec *Record, resumed bool) SessionStartedEvent {
	return SessionStartedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventSessionStarted,
			strconv.FormatInt(int64(rec.UserID), 10),
			map[string]interface{}{
				"user_id":     int64(rec.UserID),
				"username":    rec.Username,
				"movie_title": string(rec.MovieTitle),
				"resumed":     resumed,
			}),
	}
}

// WatchFinishedEvent сообщает о финализации записи истории.
type WatchFinishedEvent struct {
	shared.BaseEvent
}

// NewWatchFinishedEvent создаёт событие завершённого просмотра. manual = true
// для записей, добавленных вручную задним числом.
func NewWatchFinishedEvent(rec *Record, manual bool) WatchFinishedEvent {
	return WatchFinishedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventWatchFinished,
			strconv.FormatInt(int64(rec.UserID), 10),
			map[string]interface{}{
				"user_id":          int64(rec.UserID),
				"username":         rec.Username,
				"movie_title":      string(rec.MovieTitle),
				"duration_minutes": rec.WatchDurationMinutes,
				"completion_pct":   rec.CompletionPercentage,
				"manual":           manual,
			}),
	}
}
