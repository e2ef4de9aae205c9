// Package application wires the domain components of Movie Night Hub into
// use-case handlers and owns the persistence boundary around them.
package application

import (
	"context"
	"time"

	"github.com/frightclub/movie-night-hub/internal/domain/badge"
	"github.com/frightclub/movie-night-hub/internal/domain/rating"
	"github.com/frightclub/movie-night-hub/internal/domain/stats"
	"github.com/frightclub/movie-night-hub/internal/domain/watch"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERSISTENCE BOUNDARY
// The engine state lives in memory; a Store serializes it as one atomic
// snapshot. A failed save must never corrupt the previous snapshot.
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot is the full serializable state of the engine.
type Snapshot struct {
	// Stats holds per-user aggregate statistics.
	Stats []*stats.UserStats

	// Badges holds earned badges per user, in grant order.
	Badges map[watch.UserID][]badge.UserBadge

	// History holds the watch history ledger, oldest first.
	History []*watch.Record

	// Ratings holds all recorded movie ratings.
	Ratings []*rating.MovieRating

	// SavedAt is when the snapshot was taken.
	SavedAt time.Time
}

// Store is the durable home of engine snapshots.
type Store interface {
	// Load returns the latest snapshot. A missing snapshot (first run)
	// yields an empty snapshot, not an error.
	Load(ctx context.Context) (*Snapshot, error)

	// Save atomically replaces the latest snapshot.
	Save(ctx context.Context, snap *Snapshot) error

	// Backup writes a timestamped copy of the latest snapshot and returns
	// its label.
	Backup(ctx context.Context) (string, error)
}
