package badge

import (
	"strconv"

	"github.com/frightclub/movie-night-hub/internal/domain/shared"
	"github.com/frightclub/movie-night-hub/internal/domain/watch"
)

// BadgeEarnedEvent сообщает о выдаче достижения зрителю.
type BadgeEarnedEvent struct {
	shared.BaseEvent
}

// NewBadgeEarnedEvent создаёт событие выдачи достижения.
func NewBadgeEarnedEvent(userID watch.UserID, b Badge) BadgeEarnedEvent {
	return BadgeEarnedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventBadgeEarned,
			strconv.FormatInt(int64(userID), 10),
			map[string]interface{}{
				"user_id":     int64(userID),
				"badge_id":    string(b.ID),
				"badge_name":  b.Name,
				"badge_emoji": b.Emoji,
			}),
	}
}
