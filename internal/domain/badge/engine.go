package badge

import (
	"sync"
	"time"

	"github.com/frightclub/movie-night-hub/internal/domain/watch"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT ENGINE
// Оценивает каталог правил против статистики пользователя и идемпотентно
// выдаёт новые бейджи. Выдача append-only: сколько бы раз ни запускалась
// оценка, пара (user, badge) возникает не более одного раза.
// ══════════════════════════════════════════════════════════════════════════════

// Engine - движок достижений с реестром заработанных бейджей.
type Engine struct {
	mu sync.RWMutex

	catalog Catalog

	// earned - заработанные бейджи по пользователям, в порядке получения.
	earned map[watch.UserID][]UserBadge

	// now подменяется в тестах.
	now func() time.Time
}

// EngineOption настраивает Engine.
type EngineOption func(*Engine)

// WithClock задаёт источник времени (для тестов).
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine создаёт движок с указанным каталогом.
func NewEngine(catalog Catalog, opts ...EngineOption) *Engine {
	e := &Engine{
		catalog: catalog,
		earned:  make(map[watch.UserID][]UserBadge),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog возвращает каталог движка.
func (e *Engine) Catalog() Catalog {
	return e.catalog
}

// Evaluate прогоняет каталог против контекста пользователя и выдаёт все
// новые удовлетворённые бейджи. Уже заработанные пропускаются; повторный
// запуск с неизменной статистикой ничего не выдаёт.
func (e *Engine) Evaluate(userID watch.UserID, ctx EvalContext) []Badge {
	if ctx.Now.IsZero() {
		ctx.Now = e.now()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	earnedSet := make(map[ID]struct{}, len(e.earned[userID]))
	for _, ub := range e.earned[userID] {
		earnedSet[ub.BadgeID] = struct{}{}
	}

	var newly []Badge
	for _, b := range e.catalog.ordered {
		if _, has := earnedSet[b.ID]; has {
			continue
		}
		if b.Requirement == nil || !b.Requirement.Met(ctx) {
			continue
		}

		e.earned[userID] = append(e.earned[userID], UserBadge{
			BadgeID:    b.ID,
			EarnedDate: ctx.Now,
		})
		newly = append(newly, b)
	}

	return newly
}

// CheckAndAward - ручной путь выдачи для бейджей, контролируемых внешним
// коллаборатором (мини-игры и т.п.). Возвращает false без ошибки, если
// бейдж уже есть; false, если бейджа нет в каталоге. Идемпотентна.
func (e *Engine) CheckAndAward(userID watch.UserID, id ID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.catalog.byID[id]; !ok {
		return false
	}
	for _, ub := range e.earned[userID] {
		if ub.BadgeID == id {
			return false
		}
	}

	e.earned[userID] = append(e.earned[userID], UserBadge{
		BadgeID:    id,
		EarnedDate: e.now(),
	})
	return true
}

// UserBadges возвращает заработанные бейджи пользователя с определениями,
// в порядке получения.
func (e *Engine) UserBadges(userID watch.UserID) []EarnedBadge {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]EarnedBadge, 0, len(e.earned[userID]))
	for _, ub := range e.earned[userID] {
		if def, ok := e.catalog.byID[ub.BadgeID]; ok {
			out = append(out, EarnedBadge{Badge: def, Earned: ub})
		}
	}
	return out
}

// EarnedBadge - заработанный бейдж вместе с каталожным определением.
type EarnedBadge struct {
	Badge  Badge
	Earned UserBadge
}

// Count возвращает число заработанных бейджей пользователя.
func (e *Engine) Count(userID watch.UserID) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.earned[userID])
}

// All возвращает заработанные бейджи всех пользователей.
func (e *Engine) All() map[watch.UserID][]UserBadge {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[watch.UserID][]UserBadge, len(e.earned))
	for id, list := range e.earned {
		cp := make([]UserBadge, len(list))
		copy(cp, list)
		out[id] = cp
	}
	return out
}

// Restore восстанавливает реестр из загруженного снапшота.
// Вызывается один раз на старте, до начала операций.
func (e *Engine) Restore(earned map[watch.UserID][]UserBadge) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.earned = make(map[watch.UserID][]UserBadge, len(earned))
	for id, list := range earned {
		cp := make([]UserBadge, len(list))
		copy(cp, list)
		e.earned[id] = cp
	}
}
