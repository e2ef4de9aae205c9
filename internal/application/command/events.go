package command

import (
	"github.com/frightclub/movie-night-hub/internal/domain/shared"
)

// publish best-effort отправляет событие в шину. Команды не зависят от
// подписчиков: отказ шины не отменяет уже записанный факт.
func publish(bus shared.EventBus, event shared.Event) {
	if bus == nil {
		return
	}
	_ = bus.Publish(event)
}
