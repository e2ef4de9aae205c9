package command

import (
	"context"
	"fmt"

	"github.com/frightclub/movie-night-hub/internal/domain/badge"
	"github.com/frightclub/movie-night-hub/internal/domain/shared"
	"github.com/frightclub/movie-night-hub/internal/domain/watch"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD BADGE COMMAND
// Manually grants a catalog badge that has no automatic rule (game night
// prizes and similar one-offs). The grant is idempotent.
// ══════════════════════════════════════════════════════════════════════════════

// AwardBadgeCommand contains the data for a manual grant.
type AwardBadgeCommand struct {
	// UserID is the recipient's account ID.
	UserID int64

	// BadgeID is the catalog identifier of the badge.
	BadgeID string
}

// Validate validates the command.
func (c AwardBadgeCommand) Validate() error {
	if !watch.UserID(c.UserID).IsValid() {
		return fmt.Errorf("award_badge: %w", shared.ErrInvalidUserID)
	}
	if c.BadgeID == "" {
		return fmt.Errorf("award_badge: %w", shared.ErrEmptyValue)
	}
	return nil
}

// AwardBadgeResult contains the result of a manual grant.
type AwardBadgeResult struct {
	// Awarded indicates the badge was newly granted. False means the badge
	// is unknown or the recipient already has it.
	Awarded bool

	// Badge is the catalog entry, when the ID resolved.
	Badge *badge.Badge
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// AwardBadgeHandler handles the AwardBadgeCommand.
type AwardBadgeHandler struct {
	engine *badge.Engine
	bus    shared.EventBus
}

// NewAwardBadgeHandler creates a new AwardBadgeHandler.
// The event bus is optional; pass nil to disable event publishing.
func NewAwardBadgeHandler(engine *badge.Engine, bus shared.EventBus) *AwardBadgeHandler {
	return &AwardBadgeHandler{engine: engine, bus: bus}
}

// Handle executes the award badge command.
func (h *AwardBadgeHandler) Handle(ctx context.Context, cmd AwardBadgeCommand) (*AwardBadgeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("award_badge: validation failed: %w", err)
	}

	id := badge.ID(cmd.BadgeID)

	awarded := h.engine.CheckAndAward(watch.UserID(cmd.UserID), id)

	result := &AwardBadgeResult{Awarded: awarded}
	if b, ok := h.engine.Catalog().Get(id); ok {
		result.Badge = &b
		if awarded {
			publish(h.bus, badge.NewBadgeEarnedEvent(watch.UserID(cmd.UserID), b))
		}
	}

	return result, nil
}
