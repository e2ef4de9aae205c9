package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frightclub/movie-night-hub/internal/application"
	"github.com/frightclub/movie-night-hub/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fixtures
// ──────────────────────────────────────────────────────────────────────────────

// memStore keeps snapshots in memory for handler tests.
type memStore struct {
	snap *application.Snapshot
}

func (s *memStore) Load(ctx context.Context) (*application.Snapshot, error) {
	if s.snap == nil {
		return &application.Snapshot{}, nil
	}
	return s.snap, nil
}

func (s *memStore) Save(ctx context.Context, snap *application.Snapshot) error {
	s.snap = snap
	return nil
}

func (s *memStore) Backup(ctx context.Context) (string, error) {
	return "backup-test", nil
}

func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	cfg.APIKeys = []string{"test-key"}
	if mutate != nil {
		mutate(&cfg)
	}

	app := application.New(&memStore{}, logger.Default(), application.Options{})
	return NewServer(cfg, Dependencies{App: app, Logger: logger.Default()})
}

// do прогоняет запрос через полную цепочку middleware сервера.
func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return do(s, req)
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) JSONResponse {
	t.Helper()
	var resp JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func apiKey() map[string]string {
	return map[string]string{"X-API-Key": "test-key"}
}

// plexEvent собирает multipart-тело вебхука так, как его шлёт Plex.
func plexEvent(t *testing.T, event string, accountID int64, username, mediaType, title string, durationMS, offsetMS int64) *http.Request {
	t.Helper()

	payload := fmt.Sprintf(`{
		"event": %q,
		"Account": {"id": %d, "title": %q},
		"Metadata": {
			"type": %q,
			"title": %q,
			"year": 1982,
			"duration": %d,
			"viewOffset": %d,
			"Genre": [{"tag": "Horror"}, {"tag": "Sci-Fi"}],
			"Director": [{"tag": "John Carpenter"}]
		}
	}`, event, accountID, username, mediaType, title, durationMS, offsetMS)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("payload", payload))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/webhook/plex", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// ──────────────────────────────────────────────────────────────────────────────
// Health and status
// ──────────────────────────────────────────────────────────────────────────────

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doJSON(t, s, http.MethodGet, "/health", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "healthy", data["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRootEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doJSON(t, s, http.MethodGet, "/", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "Movie Night Hub API", data["name"])
}

// ──────────────────────────────────────────────────────────────────────────────
// Read endpoints
// ──────────────────────────────────────────────────────────────────────────────

func TestViewerStats_Errors(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/viewers/42/stats", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "not_found", resp.Error.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/viewers/zero/stats", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_viewer_id", decodeResponse(t, rec).Error.Code)
}

func TestLeaderboard_EmptyIsOK(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/leaderboard", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeResponse(t, rec).Success)
}

// ──────────────────────────────────────────────────────────────────────────────
// Write endpoints
// ──────────────────────────────────────────────────────────────────────────────

func TestWriteEndpoints_RequireAPIKey(t *testing.T) {
	s := newTestServer(t, nil)
	body := map[string]interface{}{"user_id": 1, "username": "laurie", "movie_title": "Halloween", "score": 8}

	rec := doJSON(t, s, http.MethodPost, "/api/v1/ratings", body, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing_api_key", decodeResponse(t, rec).Error.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/ratings", body, map[string]string{"X-API-Key": "wrong"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "invalid_api_key", decodeResponse(t, rec).Error.Code)
}

func TestManualWatchAndRatingFlow(t *testing.T) {
	s := newTestServer(t, nil)

	watchBody := map[string]interface{}{
		"user_id": 1, "username": "laurie", "movie_title": "Halloween",
		"duration_minutes": 91, "completion_percentage": 100,
	}

	rec := doJSON(t, s, http.MethodPost, "/api/v1/watches", watchBody, apiKey())
	require.Equal(t, http.StatusCreated, rec.Code)

	// Повторный ввод того же фильма отклоняется.
	rec = doJSON(t, s, http.MethodPost, "/api/v1/watches", watchBody, apiKey())
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_watch", decodeResponse(t, rec).Error.Code)

	rateBody := map[string]interface{}{"user_id": 1, "username": "laurie", "movie_title": "Halloween", "score": 9}
	rec = doJSON(t, s, http.MethodPost, "/api/v1/ratings", rateBody, apiKey())
	require.Equal(t, http.StatusCreated, rec.Code)

	// Вторая оценка того же фильма не проходит.
	rec = doJSON(t, s, http.MethodPost, "/api/v1/ratings", rateBody, apiKey())
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not_eligible", decodeResponse(t, rec).Error.Code)

	// Оценка непросмотренного фильма - конфликт состояния, не 500.
	rec = doJSON(t, s, http.MethodPost, "/api/v1/ratings",
		map[string]interface{}{"user_id": 1, "username": "laurie", "movie_title": "Unseen", "score": 5}, apiKey())
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/leaderboard", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestManualWatch_InvalidDate(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/watches", map[string]interface{}{
		"user_id": 1, "username": "laurie", "movie_title": "Halloween", "watch_date": "31/10/2026",
	}, apiKey())

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_watch_date", decodeResponse(t, rec).Error.Code)
}

// ──────────────────────────────────────────────────────────────────────────────
// Plex webhook
// ──────────────────────────────────────────────────────────────────────────────

func TestPlexWebhook_PlayProgressStop(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(s, plexEvent(t, "media.play", 7, "laurie", "movie", "The Thing", 120*60*1000, 0))
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeResponse(t, rec).Data.(map[string]interface{})
	assert.Equal(t, "session_started", data["status"])
	assert.Equal(t, false, data["resumed"])

	rec = doJSON(t, s, http.MethodGet, "/api/v1/sessions", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sessions := decodeResponse(t, rec).Data.(map[string]interface{})
	assert.Equal(t, float64(1), sessions["count"])

	rec = do(s, plexEvent(t, "media.scrobble", 7, "laurie", "movie", "The Thing", 120*60*1000, 30*60*1000))
	require.Equal(t, http.StatusOK, rec.Code)
	data = decodeResponse(t, rec).Data.(map[string]interface{})
	assert.Equal(t, "progress_recorded", data["status"])

	rec = do(s, plexEvent(t, "media.stop", 7, "laurie", "movie", "The Thing", 120*60*1000, 120*60*1000))
	require.Equal(t, http.StatusOK, rec.Code)
	data = decodeResponse(t, rec).Data.(map[string]interface{})
	assert.Equal(t, "session_finished", data["status"])
	assert.InDelta(t, 100.0, data["completion"].(float64), 0.01)
	assert.NotEmpty(t, data["new_badges"])

	rec = doJSON(t, s, http.MethodGet, "/api/v1/sessions", nil, nil)
	sessions = decodeResponse(t, rec).Data.(map[string]interface{})
	assert.Equal(t, float64(0), sessions["count"])
}

func TestPlexWebhook_IgnoresNonMovies(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(s, plexEvent(t, "media.play", 7, "laurie", "episode", "The X-Files", 45*60*1000, 0))

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeResponse(t, rec).Data.(map[string]interface{})
	assert.Equal(t, "ignored", data["status"])
}

func TestPlexWebhook_MissingAccount(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(s, plexEvent(t, "media.play", 0, "", "movie", "Halloween", 91*60*1000, 0))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_account", decodeResponse(t, rec).Error.Code)
}

func TestPlexWebhook_StopWithoutSessionIgnored(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(s, plexEvent(t, "media.stop", 7, "laurie", "movie", "Halloween", 91*60*1000, 0))

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeResponse(t, rec).Data.(map[string]interface{})
	assert.Equal(t, "ignored", data["status"])
}

func TestPlexWebhook_SecretPath(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.WebhookSecret = "october" })

	// Без секрета в пути запрос не проходит.
	rec := do(s, plexEvent(t, "media.play", 7, "laurie", "movie", "Halloween", 91*60*1000, 0))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Неверный секрет.
	req := plexEvent(t, "media.play", 7, "laurie", "movie", "Halloween", 91*60*1000, 0)
	req.URL.Path = "/webhook/plex/november"
	rec = do(s, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Верный секрет.
	req = plexEvent(t, "media.play", 7, "laurie", "movie", "Halloween", 91*60*1000, 0)
	req.URL.Path = "/webhook/plex/october"
	rec = do(s, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPlexWebhook_MalformedBody(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook/plex", bytes.NewBufferString("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	rec := do(s, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

// ──────────────────────────────────────────────────────────────────────────────
// Middleware
// ──────────────────────────────────────────────────────────────────────────────

func TestRateLimitMiddleware(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.RateLimitPerMinute = 2 })

	for i := 0; i < 2; i++ {
		rec := doJSON(t, s, http.MethodGet, "/health", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, s, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/leaderboard", nil)
	req.Header.Set("Origin", "https://frightclub.example")
	rec := do(s, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://frightclub.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
