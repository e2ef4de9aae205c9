// Package plex implements a Plex Media Server API client.
// This package handles all communication with the media server, including
// live playback sessions and movie metadata lookups.
package plex

import (
	"strconv"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// WIRE FORMAT
// Plex wraps every payload in a MediaContainer. Only the fields the watch
// engine consumes are mapped.
// ══════════════════════════════════════════════════════════════════════════════

type sessionsEnvelope struct {
	MediaContainer struct {
		Size     int        `json:"size"`
		Metadata []videoDTO `json:"Metadata"`
	} `json:"MediaContainer"`
}

type searchEnvelope struct {
	MediaContainer struct {
		Metadata []videoDTO `json:"Metadata"`
	} `json:"MediaContainer"`
}

type videoDTO struct {
	Title      string   `json:"title"`
	Type       string   `json:"type"`
	Year       int      `json:"year"`
	DurationMS int64    `json:"duration"`
	ViewOffset int64    `json:"viewOffset"`
	Genre      []tagDTO `json:"Genre"`
	Director   []tagDTO `json:"Director"`

	User   userDTO   `json:"User"`
	Player playerDTO `json:"Player"`
}

type tagDTO struct {
	Tag string `json:"tag"`
}

type userDTO struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type playerDTO struct {
	State string `json:"state"`
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT-FACING DTOS
// ══════════════════════════════════════════════════════════════════════════════

// SessionDTO describes one live playback session.
type SessionDTO struct {
	// AccountID is the media server account watching this session.
	AccountID int64

	// AccountName is the account's display name.
	AccountName string

	// Title is the movie title being played.
	Title string

	// DurationMS is the full movie runtime in milliseconds (0 = unknown).
	DurationMS int64

	// PositionMS is the current playback position in milliseconds.
	PositionMS int64

	// Paused reports whether playback is currently paused.
	Paused bool
}

// MetadataDTO describes a movie in the library.
type MetadataDTO struct {
	Title    string
	Year     int
	Genres   []string
	Director string
}

// toSessionDTO maps a wire video entry to a SessionDTO. Non-movie entries
// yield false.
func toSessionDTO(v videoDTO) (SessionDTO, bool) {
	if !strings.EqualFold(v.Type, "movie") {
		return SessionDTO{}, false
	}

	accountID, err := strconv.ParseInt(v.User.ID, 10, 64)
	if err != nil {
		return SessionDTO{}, false
	}

	return SessionDTO{
		AccountID:   accountID,
		AccountName: v.User.Title,
		Title:       v.Title,
		DurationMS:  v.DurationMS,
		PositionMS:  v.ViewOffset,
		Paused:      strings.EqualFold(v.Player.State, "paused"),
	}, true
}

// toMetadataDTO maps a wire video entry to a MetadataDTO.
func toMetadataDTO(v videoDTO) MetadataDTO {
	genres := make([]string, 0, len(v.Genre))
	for _, g := range v.Genre {
		genres = append(genres, g.Tag)
	}
	director := ""
	if len(v.Director) > 0 {
		director = v.Director[0].Tag
	}
	return MetadataDTO{
		Title:    v.Title,
		Year:     v.Year,
		Genres:   genres,
		Director: director,
	}
}
