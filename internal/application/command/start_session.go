// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/frightclub/movie-night-hub/internal/domain/shared"
	"github.com/frightclub/movie-night-hub/internal/domain/watch"
)

// ══════════════════════════════════════════════════════════════════════════════
// START SESSION COMMAND
// Opens a watch session when a viewer joins playback, or resumes the previous
// record for the same movie when the join lands inside the resume window.
// ══════════════════════════════════════════════════════════════════════════════

// StartSessionCommand contains the data for a playback join event.
type StartSessionCommand struct {
	// UserID is the viewer's account ID.
	UserID int64

	// Username is the viewer's display name.
	Username string

	// MovieTitle is the title being played.
	MovieTitle string

	// MovieDurationMS is the full runtime in milliseconds (nil = unknown).
	MovieDurationMS *int64

	// JoinPositionMS is the playback position at the moment of joining.
	JoinPositionMS *int64

	// Metadata carries genre/year/director enrichment, if available.
	Metadata watch.MovieMetadata
}

// Validate validates the command.
func (c StartSessionCommand) Validate() error {
	return watch.StartParams{
		UserID:          watch.UserID(c.UserID),
		MovieTitle:      watch.MovieTitle(c.MovieTitle),
		MovieDurationMS: c.MovieDurationMS,
	}.Validate()
}

// StartSessionResult contains the result of starting a session.
type StartSessionResult struct {
	// Resumed indicates the join was folded into an earlier record
	// instead of opening a fresh one.
	Resumed bool

	// Record is a copy of the history record backing the session.
	Record *watch.Record

	// OriginalStart is the start time attributed to the session. For a
	// resumed session this predates the join itself.
	OriginalStart time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// StartSessionHandler handles the StartSessionCommand.
type StartSessionHandler struct {
	tracker *watch.Tracker
	bus     shared.EventBus
}

// NewStartSessionHandler creates a new StartSessionHandler.
// The event bus is optional; pass nil to disable event publishing.
func NewStartSessionHandler(tracker *watch.Tracker, bus shared.EventBus) *StartSessionHandler {
	return &StartSessionHandler{tracker: tracker, bus: bus}
}

// Handle executes the start session command.
func (h *StartSessionHandler) Handle(ctx context.Context, cmd StartSessionCommand) (*StartSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("start_session: validation failed: %w", err)
	}

	outcome, rec, err := h.tracker.StartSession(watch.StartParams{
		UserID:          watch.UserID(cmd.UserID),
		Username:        cmd.Username,
		MovieTitle:      watch.MovieTitle(cmd.MovieTitle),
		MovieDurationMS: cmd.MovieDurationMS,
		JoinPositionMS:  cmd.JoinPositionMS,
		Metadata:        cmd.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("start_session: %w", err)
	}

	resumed := outcome == watch.OutcomeResumed
	publish(h.bus, watch.NewSessionStartedEvent(rec, resumed))

	return &StartSessionResult{
		Resumed:       resumed,
		Record:        rec,
		OriginalStart: rec.StartTime,
	}, nil
}
