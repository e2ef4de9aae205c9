// Package http implements the REST API for Movie Night Hub.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/frightclub/movie-night-hub/internal/application/command"
	"github.com/frightclub/movie-night-hub/internal/application/query"
	"github.com/frightclub/movie-night-hub/internal/domain/shared"
	"github.com/frightclub/movie-night-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Movie Night Hub API",
		"version":     "v1",
		"description": "Watch sessions, viewer statistics and achievements for the movie club",
		"endpoints": map[string]string{
			"health":      "/health",
			"leaderboard": "/api/v1/leaderboard",
			"sessions":    "/api/v1/sessions",
			"ratings":     "/api/v1/ratings",
			"stats":       "/api/v1/viewers/{id}/stats",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "healthy",
		"uptime":          s.Uptime().String(),
		"active_sessions": len(s.deps.App.Tracker.ActiveSessions()),
		"version":         "v1",
	})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// READ HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboard serves GET /api/v1/leaderboard?metric=&limit=.
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.App.GetLeaderboard.Handle(r.Context(), query.GetLeaderboardQuery{
		Metric: getQueryParam(r, "metric", ""),
		Limit:  getQueryParamInt(r, "limit", 0),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetViewerStats serves GET /api/v1/viewers/{id}/stats.
func (s *Server) handleGetViewerStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	result, err := s.deps.App.GetUserStats.Handle(r.Context(), query.GetUserStatsQuery{UserID: userID})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetViewerBadges serves GET /api/v1/viewers/{id}/badges.
func (s *Server) handleGetViewerBadges(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	result, err := s.deps.App.GetUserBadges.Handle(r.Context(), query.GetUserBadgesQuery{UserID: userID})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetViewerHistory serves GET /api/v1/viewers/{id}/history?limit=.
func (s *Server) handleGetViewerHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	result, err := s.deps.App.GetWatchHistory.Handle(r.Context(), query.GetWatchHistoryQuery{
		UserID: userID,
		Limit:  getQueryParamInt(r, "limit", 0),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetRatings serves GET /api/v1/ratings?movie=&limit=.
func (s *Server) handleGetRatings(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.App.GetRatings.Handle(r.Context(), query.GetRatingsQuery{
		MovieTitle: getQueryParam(r, "movie", ""),
		Limit:      getQueryParamInt(r, "limit", 0),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// activeSessionResponse is the wire shape for one live session.
type activeSessionResponse struct {
	UserID               int64   `json:"user_id"`
	Username             string  `json:"username"`
	MovieTitle           string  `json:"movie_title"`
	StartTime            string  `json:"start_time"`
	WatchDurationMinutes int     `json:"watch_duration_minutes"`
	CompletionPercentage float64 `json:"completion_percentage"`
}

// handleGetActiveSessions serves GET /api/v1/sessions.
func (s *Server) handleGetActiveSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.deps.App.Tracker.ActiveSessions()

	out := make([]activeSessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, activeSessionResponse{
			UserID:               int64(sess.UserID),
			Username:             sess.Username,
			MovieTitle:           string(sess.MovieTitle),
			StartTime:            sess.StartTime.UTC().Format(time.RFC3339),
			WatchDurationMinutes: sess.WatchDurationMinutes,
			CompletionPercentage: sess.CompletionPercentage,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": out,
		"count":    len(out),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// rateMovieRequest is the body for POST /api/v1/ratings.
type rateMovieRequest struct {
	UserID     int64  `json:"user_id"`
	Username   string `json:"username"`
	MovieTitle string `json:"movie_title"`
	Score      int    `json:"score"`
}

// handleRateMovie serves POST /api/v1/ratings.
func (s *Server) handleRateMovie(w http.ResponseWriter, r *http.Request) {
	var req rateMovieRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.App.RateMovie.Handle(r.Context(), command.RateMovieCommand{
		UserID:     req.UserID,
		Username:   req.Username,
		MovieTitle: req.MovieTitle,
		Score:      req.Score,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	if !result.Accepted {
		writeJSONError(w, http.StatusConflict, "not_eligible", "Viewer has not watched this movie or already rated it")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// manualWatchRequest is the body for POST /api/v1/watches.
type manualWatchRequest struct {
	UserID          int64   `json:"user_id"`
	Username        string  `json:"username"`
	MovieTitle      string  `json:"movie_title"`
	WatchDate       string  `json:"watch_date,omitempty"`
	DurationMinutes int     `json:"duration_minutes,omitempty"`
	CompletionPct   float64 `json:"completion_percentage,omitempty"`
}

// handleAddManualWatch serves POST /api/v1/watches.
func (s *Server) handleAddManualWatch(w http.ResponseWriter, r *http.Request) {
	var req manualWatchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var watchDate time.Time
	if req.WatchDate != "" {
		parsed, err := time.Parse("2006-01-02", req.WatchDate)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_watch_date", "watch_date must be YYYY-MM-DD")
			return
		}
		watchDate = parsed
	}

	result, err := s.deps.App.AddManualWatch.Handle(r.Context(), command.AddManualWatchCommand{
		UserID:          req.UserID,
		Username:        req.Username,
		MovieTitle:      req.MovieTitle,
		WatchDate:       watchDate,
		DurationMinutes: req.DurationMinutes,
		CompletionPct:   req.CompletionPct,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	if result.Record == nil {
		writeJSONError(w, http.StatusConflict, "duplicate_watch", "A watch of this movie on this date is already recorded")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// pathUserID parses the {id} path segment, writing a 400 on failure.
func pathUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_viewer_id", "Viewer ID must be a positive integer")
		return 0, false
	}
	return id, true
}

// decodeBody decodes a JSON request body, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", "Request body is not valid JSON")
		return false
	}
	return true
}

// writeDomainError maps domain errors to HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrInvalidID),
		errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrValueOutOfRange):
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, shared.ErrInvalidState):
		writeJSONError(w, http.StatusConflict, "conflict", err.Error())
	default:
		s.logger.Error("request failed", logger.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
