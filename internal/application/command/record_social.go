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
// RECORD SOCIAL COMMAND
// Counts social activity around movie nights: AI chat interactions, votes in
// polls and movie requests. Social badges are checked after every increment.
// ══════════════════════════════════════════════════════════════════════════════

// SocialActivity defines the kind of social activity being counted.
type SocialActivity string

const (
	// SocialActivityAIChat - the viewer talked to the resident AI.
	SocialActivityAIChat SocialActivity = "ai_chat"

	// SocialActivityVote - the viewer voted in a movie poll.
	SocialActivityVote SocialActivity = "vote"

	// SocialActivityRequest - the viewer requested a movie.
	SocialActivityRequest SocialActivity = "request"
)

// RecordSocialCommand contains the data for a social activity event.
type RecordSocialCommand struct {
	// UserID is the viewer's account ID.
	UserID int64

	// Username is the viewer's display name.
	Username string

	// Activity is the kind of activity to count.
	Activity SocialActivity
}

// Validate validates the command.
func (c RecordSocialCommand) Validate() error {
	if !watch.UserID(c.UserID).IsValid() {
		return fmt.Errorf("record_social: %w", shared.ErrInvalidUserID)
	}
	switch c.Activity {
	case SocialActivityAIChat, SocialActivityVote, SocialActivityRequest:
		return nil
	default:
		return fmt.Errorf("record_social: unknown activity: %s", c.Activity)
	}
}

// RecordSocialResult contains the result of counting the activity.
type RecordSocialResult struct {
	// Stats is the viewer's aggregate statistics after the increment.
	Stats *stats.UserStats

	// NewBadges lists badges earned by this increment, in catalog order.
	NewBadges []badge.Badge
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordSocialHandler handles the RecordSocialCommand.
type RecordSocialHandler struct {
	tracker  *watch.Tracker
	registry *stats.Registry
	engine   *badge.Engine
	bus      shared.EventBus

	now func() time.Time
}

// NewRecordSocialHandler creates a new RecordSocialHandler.
// The event bus is optional; pass nil to disable event publishing.
func NewRecordSocialHandler(tracker *watch.Tracker, registry *stats.Registry, engine *badge.Engine, bus shared.EventBus) *RecordSocialHandler {
	return &RecordSocialHandler{
		tracker:  tracker,
		registry: registry,
		engine:   engine,
		bus:      bus,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the record social command.
func (h *RecordSocialHandler) Handle(ctx context.Context, cmd RecordSocialCommand) (*RecordSocialResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("record_social: validation failed: %w", err)
	}

	userID := watch.UserID(cmd.UserID)

	var userStats *stats.UserStats
	switch cmd.Activity {
	case SocialActivityAIChat:
		userStats = h.registry.IncrementAIInteractions(userID, cmd.Username)
	case SocialActivityVote:
		userStats = h.registry.IncrementVotesCast(userID, cmd.Username)
	case SocialActivityRequest:
		userStats = h.registry.IncrementMoviesRequested(userID, cmd.Username)
	}

	newBadges := h.engine.Evaluate(userID, badge.EvalContext{
		Stats:   userStats,
		History: h.tracker.UserHistory(userID),
		Now:     h.now(),
	})

	for _, b := range newBadges {
		publish(h.bus, badge.NewBadgeEarnedEvent(userID, b))
	}

	return &RecordSocialResult{
		Stats:     userStats,
		NewBadges: newBadges,
	}, nil
}
