// Package http implements the REST API for Movie Night Hub.
package http

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/frightclub/movie-night-hub/internal/application/command"
	"github.com/frightclub/movie-night-hub/internal/domain/watch"
	"github.com/frightclub/movie-night-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PLEX WEBHOOK
// ══════════════════════════════════════════════════════════════════════════════
// Plex delivers webhooks as multipart/form-data with a "payload" part holding
// the JSON event. Playback events are translated into session commands:
//
//	media.play, media.resume  -> start (or resume) a session
//	media.pause, media.scrobble -> record a progress reading
//	media.stop                -> finish the session

// plexWebhookPayload mirrors the relevant subset of the Plex webhook body.
type plexWebhookPayload struct {
	Event   string `json:"event"`
	Account struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
	} `json:"Account"`
	Metadata struct {
		Type       string `json:"type"`
		Title      string `json:"title"`
		Year       int    `json:"year"`
		DurationMS int64  `json:"duration"`
		ViewOffset int64  `json:"viewOffset"`
		Genres     []struct {
			Tag string `json:"tag"`
		} `json:"Genre"`
		Directors []struct {
			Tag string `json:"tag"`
		} `json:"Director"`
	} `json:"Metadata"`
}

// handlePlexWebhook serves POST /webhook/plex. With a configured secret the
// bare path is rejected; use /webhook/plex/{secret}.
func (s *Server) handlePlexWebhook(w http.ResponseWriter, r *http.Request) {
	if s.config.WebhookSecret != "" {
		writeJSONError(w, http.StatusUnauthorized, "webhook_secret_required", "Webhook secret path segment required")
		return
	}
	s.processPlexWebhook(w, r)
}

// handlePlexWebhookWithSecret serves POST /webhook/plex/{secret}.
func (s *Server) handlePlexWebhookWithSecret(w http.ResponseWriter, r *http.Request) {
	secret := r.PathValue("secret")
	if s.config.WebhookSecret == "" ||
		subtle.ConstantTimeCompare([]byte(secret), []byte(s.config.WebhookSecret)) != 1 {
		writeJSONError(w, http.StatusForbidden, "invalid_webhook_secret", "Webhook secret does not match")
		return
	}
	s.processPlexWebhook(w, r)
}

func (s *Server) processPlexWebhook(w http.ResponseWriter, r *http.Request) {
	payload, ok := s.parsePlexPayload(w, r)
	if !ok {
		return
	}

	// Non-movie playback (episodes, music) is none of our business.
	if payload.Metadata.Type != "movie" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "not a movie"})
		return
	}
	if payload.Account.ID <= 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_account", "Webhook payload has no account ID")
		return
	}

	log := s.logger.With(
		logger.UserID(payload.Account.ID),
		logger.Username(payload.Account.Title),
		logger.MovieTitle(payload.Metadata.Title),
	)

	switch payload.Event {
	case "media.play", "media.resume":
		s.webhookStartSession(w, r, payload, log)
	case "media.pause", "media.scrobble":
		s.webhookRecordProgress(w, r, payload, log)
	case "media.stop":
		s.webhookFinishSession(w, r, payload, log)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "unhandled event"})
	}
}

func (s *Server) parsePlexPayload(w http.ResponseWriter, r *http.Request) (*plexWebhookPayload, bool) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_multipart", "Webhook body is not valid multipart form data")
		return nil, false
	}

	raw := r.FormValue("payload")
	if raw == "" {
		writeJSONError(w, http.StatusBadRequest, "missing_payload", "Webhook form has no payload field")
		return nil, false
	}

	var payload plexWebhookPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_payload", "Webhook payload is not valid JSON")
		return nil, false
	}
	return &payload, true
}

func (s *Server) webhookStartSession(w http.ResponseWriter, r *http.Request, p *plexWebhookPayload, log *logger.Logger) {
	cmd := command.StartSessionCommand{
		UserID:     p.Account.ID,
		Username:   p.Account.Title,
		MovieTitle: p.Metadata.Title,
		Metadata:   webhookMetadata(p),
	}
	if p.Metadata.DurationMS > 0 {
		d := p.Metadata.DurationMS
		cmd.MovieDurationMS = &d
	}
	if p.Metadata.ViewOffset > 0 {
		off := p.Metadata.ViewOffset
		cmd.JoinPositionMS = &off
	}

	result, err := s.deps.App.StartSession.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	log.Info("webhook session started", logger.Bool("resumed", result.Resumed))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "session_started",
		"resumed": result.Resumed,
	})
}

func (s *Server) webhookRecordProgress(w http.ResponseWriter, r *http.Request, p *plexWebhookPayload, log *logger.Logger) {
	sess, ok := s.deps.App.Tracker.ActiveSession(watch.UserID(p.Account.ID))
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "no active session"})
		return
	}

	reading := sess.Progress(time.Now().UTC(), p.Metadata.ViewOffset)
	result, err := s.deps.App.UpdateProgress.Handle(r.Context(), command.UpdateProgressCommand{
		UserID:          p.Account.ID,
		DurationMinutes: reading.DurationMinutes,
		CompletionPct:   reading.CompletionPercentage,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	log.Info("webhook progress recorded",
		logger.Int("minutes", result.TotalMinutes),
		logger.Bool("updated", result.Updated),
	)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "progress_recorded",
		"total_minutes": result.TotalMinutes,
	})
}

func (s *Server) webhookFinishSession(w http.ResponseWriter, r *http.Request, p *plexWebhookPayload, log *logger.Logger) {
	cmd := command.FinishSessionCommand{
		UserID:  p.Account.ID,
		EndTime: time.Now().UTC(),
	}
	if p.Metadata.ViewOffset > 0 {
		off := p.Metadata.ViewOffset
		cmd.LeavePositionMS = &off
	}

	result, err := s.deps.App.FinishSession.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	if !result.Finished {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "no active session"})
		return
	}

	badges := make([]string, 0, len(result.NewBadges))
	for _, b := range result.NewBadges {
		badges = append(badges, string(b.ID))
	}

	log.Info("webhook session finished",
		logger.Completion(result.Record.CompletionPercentage),
		logger.Int("new_badges", len(badges)),
	)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "session_finished",
		"completion": result.Record.CompletionPercentage,
		"new_badges": badges,
	})
}

// webhookMetadata converts the Plex tag lists into domain metadata.
func webhookMetadata(p *plexWebhookPayload) watch.MovieMetadata {
	meta := watch.MovieMetadata{Year: p.Metadata.Year}
	for _, g := range p.Metadata.Genres {
		meta.Genres = append(meta.Genres, g.Tag)
	}
	if len(p.Metadata.Directors) > 0 {
		meta.Director = p.Metadata.Directors[0].Tag
	}
	return meta
}
