// Package service contains infrastructure adapters between external systems
// and the application layer.
package service

import (
	"context"

	"github.com/frightclub/movie-night-hub/internal/domain/watch"
	"github.com/frightclub/movie-night-hub/internal/infrastructure/external/plex"
)

// ══════════════════════════════════════════════════════════════════════════════
// MEDIA SERVER COLLABORATOR
// The watch engine only ever asks the media server two questions: who is
// watching what right now, and what do we know about this movie. Everything
// else stays behind this boundary.
// ══════════════════════════════════════════════════════════════════════════════

// MediaSession describes one live playback session on the media server.
type MediaSession struct {
	// UserID is the watching account's ID.
	UserID int64

	// Username is the account's display name.
	Username string

	// Title is the movie being played.
	Title string

	// DurationMS is the full runtime in milliseconds (0 = unknown).
	DurationMS int64

	// PositionMS is the current playback position in milliseconds.
	PositionMS int64

	// Paused reports whether playback is paused.
	Paused bool
}

// MediaServer is the collaborator interface the engine polls for live
// playback state and metadata enrichment.
type MediaServer interface {
	// Sessions returns all live movie sessions. An empty slice means nobody
	// is watching.
	Sessions(ctx context.Context) ([]MediaSession, error)

	// Metadata looks up genre/year/director enrichment for a title.
	// A miss yields an empty MovieMetadata, not an error.
	Metadata(ctx context.Context, title string) (watch.MovieMetadata, error)

	// Healthy reports whether the server is reachable.
	Healthy(ctx context.Context) bool
}

// ══════════════════════════════════════════════════════════════════════════════
// PLEX ADAPTER
// ══════════════════════════════════════════════════════════════════════════════

// PlexAdapter adapts the media server client to the MediaServer interface.
type PlexAdapter struct {
	client *plex.Client
}

// NewPlexAdapter creates a new PlexAdapter.
func NewPlexAdapter(client *plex.Client) *PlexAdapter {
	return &PlexAdapter{client: client}
}

// Sessions returns all live movie sessions.
func (a *PlexAdapter) Sessions(ctx context.Context) ([]MediaSession, error) {
	dtos, err := a.client.ActiveSessions(ctx)
	if err != nil {
		return nil, err
	}

	sessions := make([]MediaSession, 0, len(dtos))
	for _, dto := range dtos {
		sessions = append(sessions, MediaSession{
			UserID:     dto.AccountID,
			Username:   dto.AccountName,
			Title:      dto.Title,
			DurationMS: dto.DurationMS,
			PositionMS: dto.PositionMS,
			Paused:     dto.Paused,
		})
	}
	return sessions, nil
}

// Metadata looks up movie enrichment in the server library.
func (a *PlexAdapter) Metadata(ctx context.Context, title string) (watch.MovieMetadata, error) {
	meta, err := a.client.SearchMovie(ctx, title)
	if err == plex.ErrNotFound {
		return watch.MovieMetadata{}, nil
	}
	if err != nil {
		return watch.MovieMetadata{}, err
	}

	return watch.MovieMetadata{
		Genres:   meta.Genres,
		Year:     meta.Year,
		Director: meta.Director,
	}, nil
}

// Healthy reports server reachability.
func (a *PlexAdapter) Healthy(ctx context.Context) bool {
	return a.client.IsHealthy(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// UNAVAILABLE MEDIA SERVER
// ══════════════════════════════════════════════════════════════════════════════

// UnavailableMediaServer is the stand-in used when no media server is
// configured. It reports no sessions and no metadata, so join/leave events
// remain the only signal source.
type UnavailableMediaServer struct{}

// NewUnavailableMediaServer creates the stand-in.
func NewUnavailableMediaServer() *UnavailableMediaServer {
	return &UnavailableMediaServer{}
}

// Sessions reports nobody watching.
func (u *UnavailableMediaServer) Sessions(ctx context.Context) ([]MediaSession, error) {
	return nil, nil
}

// Metadata reports no enrichment.
func (u *UnavailableMediaServer) Metadata(ctx context.Context, title string) (watch.MovieMetadata, error) {
	return watch.MovieMetadata{}, nil
}

// Healthy always reports false.
func (u *UnavailableMediaServer) Healthy(ctx context.Context) bool {
	return false
}
