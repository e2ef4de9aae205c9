package command

import (
	"context"
	"fmt"
	"time"

	"github.com/frightclub/movie-night-hub/internal/domain/badge"
	"github.com/frightclub/movie-night-hub/internal/domain/shared"
	"github.com/frightclub/movie-night-hub/internal/domain/stats"
	"github.com/frightclub/movie-night-hub/internal/domain/watch"
)

// ══════════════════════════════════════════════════════════════════════════════
// FINISH SESSION COMMAND
// Closes the viewer's active session, folds the finalized record into their
// aggregate stats and runs a badge evaluation pass over the updated state.
// ══════════════════════════════════════════════════════════════════════════════

// FinishSessionCommand contains the data for a playback leave event.
type FinishSessionCommand struct {
	// UserID is the viewer's account ID.
	UserID int64

	// LeavePositionMS is the playback position at the moment of leaving.
	LeavePositionMS *int64

	// CompletionOverride, when set, bypasses the completion calculation.
	// Used by manual corrections and the media-server disconnect path.
	CompletionOverride *float64

	// EndTime is when the leave occurred (defaults to now if zero).
	EndTime time.Time
}

// Validate validates the command.
func (c FinishSessionCommand) Validate() error {
	if !watch.UserID(c.UserID).IsValid() {
		return fmt.Errorf("finish_session: %w", shared.ErrInvalidUserID)
	}
	if c.CompletionOverride != nil && (*c.CompletionOverride < 0 || *c.CompletionOverride > 100) {
		return fmt.Errorf("finish_session: %w", shared.ErrValueOutOfRange)
	}
	return nil
}

// FinishSessionResult contains the result of finishing a session.
type FinishSessionResult struct {
	// Finished indicates a session was actually closed. False means the
	// leave event arrived without an active session and was ignored.
	Finished bool

	// Record is a copy of the finalized history record.
	Record *watch.Record

	// Stats is the viewer's aggregate statistics after the update.
	Stats *stats.UserStats

	// NewBadges lists badges earned by this finish, in catalog order.
	NewBadges []badge.Badge
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// FinishSessionHandler handles the FinishSessionCommand.
type FinishSessionHandler struct {
	tracker  *watch.Tracker
	registry *stats.Registry
	engine   *badge.Engine
	bus      shared.EventBus

	now func() time.Time
}

// NewFinishSessionHandler creates a new FinishSessionHandler.
// The event bus is optional; pass nil to disable event publishing.
func NewFinishSessionHandler(tracker *watch.Tracker, registry *stats.Registry, engine *badge.Engine, bus shared.EventBus) *FinishSessionHandler {
	return &FinishSessionHandler{
		tracker:  tracker,
		registry: registry,
		engine:   engine,
		bus:      bus,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the finish session command.
func (h *FinishSessionHandler) Handle(ctx context.Context, cmd FinishSessionCommand) (*FinishSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("finish_session: validation failed: %w", err)
	}

	userID := watch.UserID(cmd.UserID)

	rec := h.tracker.FinishSession(watch.FinishParams{
		UserID:             userID,
		LeavePositionMS:    cmd.LeavePositionMS,
		CompletionOverride: cmd.CompletionOverride,
		EndTime:            cmd.EndTime,
	})
	if rec == nil {
		return &FinishSessionResult{Finished: false}, nil
	}

	userStats := h.registry.Apply(rec)

	newBadges := h.engine.Evaluate(userID, badge.EvalContext{
		Stats:      userStats,
		History:    h.tracker.UserHistory(userID),
		LastRecord: rec,
		Now:        h.now(),
	})

	publish(h.bus, watch.NewWatchFinishedEvent(rec, false))
	for _, b := range newBadges {
		publish(h.bus, badge.NewBadgeEarnedEvent(userID, b))
	}

	return &FinishSessionResult{
		Finished:  true,
		Record:    rec,
		Stats:     userStats,
		NewBadges: newBadges,
	}, nil
}
