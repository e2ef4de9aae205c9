package command

import (
	"context"
	"fmt"

	"github.com/frightclub/movie-night-hub/internal/domain/shared"
	"github.com/frightclub/movie-night-hub/internal/domain/stats"
	"github.com/frightclub/movie-night-hub/internal/domain/watch"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE PROGRESS COMMAND
// Pushes an intermediate progress reading into the viewer's active session and
// keeps the per-user total watch time in sync with the history ledger.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateProgressCommand contains an intermediate progress reading.
type UpdateProgressCommand struct {
	// UserID is the viewer's account ID.
	UserID int64

	// DurationMinutes is the watch time accumulated so far. Readings below
	// the stored value are rejected.
	DurationMinutes int

	// CompletionPct is the completion estimate for this reading.
	CompletionPct float64
}

// Validate validates the command.
func (c UpdateProgressCommand) Validate() error {
	if !watch.UserID(c.UserID).IsValid() {
		return fmt.Errorf("update_progress: %w", shared.ErrInvalidUserID)
	}
	if c.DurationMinutes < 0 {
		return fmt.Errorf("update_progress: %w", shared.ErrNegativeDuration)
	}
	return nil
}

// UpdateProgressResult contains the result of a progress update.
type UpdateProgressResult struct {
	// Updated indicates the reading was applied. False means there was no
	// active session, which is a legitimate no-op.
	Updated bool

	// TotalMinutes is the viewer's total watch time rederived from history.
	TotalMinutes int
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// UpdateProgressHandler handles the UpdateProgressCommand.
type UpdateProgressHandler struct {
	tracker  *watch.Tracker
	registry *stats.Registry
}

// NewUpdateProgressHandler creates a new UpdateProgressHandler.
func NewUpdateProgressHandler(tracker *watch.Tracker, registry *stats.Registry) *UpdateProgressHandler {
	return &UpdateProgressHandler{tracker: tracker, registry: registry}
}

// Handle executes the update progress command.
func (h *UpdateProgressHandler) Handle(ctx context.Context, cmd UpdateProgressCommand) (*UpdateProgressResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("update_progress: validation failed: %w", err)
	}

	userID := watch.UserID(cmd.UserID)

	total, updated, err := h.tracker.UpdateProgress(userID, cmd.DurationMinutes, cmd.CompletionPct)
	if err != nil {
		return nil, fmt.Errorf("update_progress: %w", err)
	}
	if !updated {
		return &UpdateProgressResult{Updated: false}, nil
	}

	// Чтобы накопленное время в статистике не дрейфовало, оно целиком
	// пересчитывается из журнала истории при каждом обновлении.
	if session, ok := h.tracker.ActiveSession(userID); ok {
		h.registry.SetTotalWatchTime(userID, session.Username, total)
	}

	return &UpdateProgressResult{Updated: true, TotalMinutes: total}, nil
}
