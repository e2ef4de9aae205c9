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
// ADD MANUAL WATCH COMMAND
// Backfills a completed watch into history for movies seen before tracking
// existed. A duplicate title for the same viewer is silently skipped.
// ══════════════════════════════════════════════════════════════════════════════

// AddManualWatchCommand contains the data for a manual history entry.
type AddManualWatchCommand struct {
	// UserID is the viewer's account ID.
	UserID int64

	// Username is the viewer's display name.
	Username string

	// MovieTitle is the title to backfill.
	MovieTitle string

	// WatchDate is when the movie was watched (defaults to now if zero).
	WatchDate time.Time

	// DurationMinutes is the watch time to credit (0 = 90 minute default).
	DurationMinutes int

	// CompletionPct is the completion to record (0 = counted as finished).
	CompletionPct float64

	// Metadata carries genre/year/director enrichment, if available.
	Metadata watch.MovieMetadata
}

// Validate validates the command.
func (c AddManualWatchCommand) Validate() error {
	if !watch.UserID(c.UserID).IsValid() {
		return fmt.Errorf("add_manual_watch: %w", shared.ErrInvalidUserID)
	}
	if !watch.MovieTitle(c.MovieTitle).IsValid() {
		return fmt.Errorf("add_manual_watch: %w", shared.ErrEmptyMovieTitle)
	}
	if c.DurationMinutes < 0 {
		return fmt.Errorf("add_manual_watch: %w", shared.ErrNegativeDuration)
	}
	return nil
}

// AddManualWatchResult contains the result of the backfill.
type AddManualWatchResult struct {
	// Added indicates a record was created. False means the viewer already
	// has this title in history.
	Added bool

	// Record is a copy of the created history record.
	Record *watch.Record

	// NewBadges lists badges earned by this backfill, in catalog order.
	NewBadges []badge.Badge
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// AddManualWatchHandler handles the AddManualWatchCommand.
type AddManualWatchHandler struct {
	tracker  *watch.Tracker
	registry *stats.Registry
	engine   *badge.Engine
	bus      shared.EventBus

	now func() time.Time
}

// NewAddManualWatchHandler creates a new AddManualWatchHandler.
// The event bus is optional; pass nil to disable event publishing.
func NewAddManualWatchHandler(tracker *watch.Tracker, registry *stats.Registry, engine *badge.Engine, bus shared.EventBus) *AddManualWatchHandler {
	return &AddManualWatchHandler{
		tracker:  tracker,
		registry: registry,
		engine:   engine,
		bus:      bus,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the add manual watch command.
func (h *AddManualWatchHandler) Handle(ctx context.Context, cmd AddManualWatchCommand) (*AddManualWatchResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("add_manual_watch: validation failed: %w", err)
	}

	userID := watch.UserID(cmd.UserID)

	rec := h.tracker.AddManualWatch(watch.ManualWatchParams{
		UserID:          userID,
		Username:        cmd.Username,
		MovieTitle:      watch.MovieTitle(cmd.MovieTitle),
		WatchDate:       cmd.WatchDate,
		Metadata:        cmd.Metadata,
		DurationMinutes: cmd.DurationMinutes,
		CompletionPct:   cmd.CompletionPct,
	})
	if rec == nil {
		return &AddManualWatchResult{Added: false}, nil
	}

	userStats := h.registry.Apply(rec)

	newBadges := h.engine.Evaluate(userID, badge.EvalContext{
		Stats:      userStats,
		History:    h.tracker.UserHistory(userID),
		LastRecord: rec,
		Now:        h.now(),
	})

	publish(h.bus, watch.NewWatchFinishedEvent(rec, true))
	for _, b := range newBadges {
		publish(h.bus, badge.NewBadgeEarnedEvent(userID, b))
	}

	return &AddManualWatchResult{
		Added:     true,
		Record:    rec,
		NewBadges: newBadges,
	}, nil
}
