package query

import (
	"context"
	"fmt"
	"time"

	"github.com/frightclub/movie-night-hub/internal/domain/badge"
	"github.com/frightclub/movie-night-hub/internal/domain/shared"
	"github.com/frightclub/movie-night-hub/internal/domain/watch"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER BADGES QUERY
// Получает заработанные бейджи зрителя в порядке получения, вместе с общим
// прогрессом по каталогу.
// ══════════════════════════════════════════════════════════════════════════════

// GetUserBadgesQuery содержит параметры запроса бейджей.
type GetUserBadgesQuery struct {
	// UserID - идентификатор зрителя.
	UserID int64
}

// Validate проверяет корректность параметров запроса.
func (q *GetUserBadgesQuery) Validate() error {
	if !watch.UserID(q.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	return nil
}

// BadgeDTO - DTO заработанного бейджа.
type BadgeDTO struct {
	// ID - идентификатор бейджа в каталоге.
	ID string `json:"id"`

	// Name - название бейджа.
	Name string `json:"name"`

	// Description - описание условия получения.
	Description string `json:"description"`

	// Emoji - эмодзи бейджа.
	Emoji string `json:"emoji"`

	// Rarity - редкость: common, rare, epic, legendary.
	Rarity string `json:"rarity"`

	// EarnedDate - когда бейдж был получен.
	EarnedDate time.Time `json:"earned_date"`
}

// GetUserBadgesResult содержит результат запроса бейджей.
type GetUserBadgesResult struct {
	// UserID - идентификатор зрителя.
	UserID int64 `json:"user_id"`

	// Badges - заработанные бейджи в порядке получения.
	Badges []BadgeDTO `json:"badges"`

	// CatalogSize - полный размер каталога достижений.
	CatalogSize int `json:"catalog_size"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetUserBadgesHandler обрабатывает GetUserBadgesQuery.
type GetUserBadgesHandler struct {
	engine *badge.Engine
}

// NewGetUserBadgesHandler создаёт новый GetUserBadgesHandler.
func NewGetUserBadgesHandler(engine *badge.Engine) *GetUserBadgesHandler {
	return &GetUserBadgesHandler{engine: engine}
}

// Handle выполняет запрос бейджей.
func (h *GetUserBadgesHandler) Handle(ctx context.Context, q GetUserBadgesQuery) (*GetUserBadgesResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_user_badges: validation failed: %w", err)
	}

	earned := h.engine.UserBadges(watch.UserID(q.UserID))

	result := &GetUserBadgesResult{
		UserID:      q.UserID,
		Badges:      make([]BadgeDTO, 0, len(earned)),
		CatalogSize: h.engine.Catalog().Len(),
	}
	for _, e := range earned {
		result.Badges = append(result.Badges, BadgeDTO{
			ID:          string(e.Badge.ID),
			Name:        e.Badge.Name,
			Description: e.Badge.Description,
			Emoji:       e.Badge.Emoji,
			Rarity:      string(e.Badge.Rarity),
			EarnedDate:  e.Earned.EarnedDate,
		})
	}

	return result, nil
}
