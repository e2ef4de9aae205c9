// Package http implements the REST API for Movie Night Hub.
// The API exposes leaderboards, viewer statistics, badges, ratings and watch
// history, plus a Plex webhook that feeds join/leave events into the engine.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/frightclub/movie-night-hub/internal/application"
	"github.com/frightclub/movie-night-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Host string
	Port int

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	// EnableCORS adds CORS headers for origins listed in AllowedOrigins.
	EnableCORS     bool
	AllowedOrigins []string

	// RateLimitPerMinute caps requests per client IP, 0 disables limiting.
	RateLimitPerMinute int

	// APIKeyHeader names the header checked on write endpoints; APIKeys
	// lists accepted values. With no keys configured writes are rejected.
	APIKeyHeader string
	APIKeys      []string

	// WebhookSecret is the shared secret appended to the webhook path.
	WebhookSecret string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxHeaderBytes:     1 << 20,
		EnableCORS:         true,
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 100,
		APIKeyHeader:       "X-API-Key",
		APIKeys:            []string{},
	}
}

// Address returns the host:port string the server binds to.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Dependencies contains everything the HTTP handlers need.
type Dependencies struct {
	// App is the application container with command and query handlers.
	App *application.App

	Logger *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server is the REST and webhook front of the hub.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *http.Server
	router     *http.ServeMux
	logger     *logger.Logger

	limiter *rateLimiter

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer wires routes and middleware around the application container.
func NewServer(config Config, deps Dependencies) *Server {
	s := &Server{
		config: config,
		deps:   deps,
		router: http.NewServeMux(),
		logger: deps.Logger,
	}
	if s.logger == nil {
		s.logger = logger.Default()
	}
	if config.RateLimitPerMinute > 0 {
		s.limiter = newRateLimiter(config.RateLimitPerMinute, time.Minute)
	}

	s.routes()

	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        s.middleware(s.router),
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}
	return s
}

func (s *Server) routes() {
	// Health and liveness.
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /healthz", s.handleHealth) // Kubernetes alias
	s.router.HandleFunc("GET /live", s.handleLive)
	s.router.HandleFunc("GET /", s.handleRoot)

	// Read side.
	s.router.HandleFunc("GET /api/v1/leaderboard", s.handleGetLeaderboard)
	s.router.HandleFunc("GET /api/v1/viewers/{id}/stats", s.handleGetViewerStats)
	s.router.HandleFunc("GET /api/v1/viewers/{id}/badges", s.handleGetViewerBadges)
	s.router.HandleFunc("GET /api/v1/viewers/{id}/history", s.handleGetViewerHistory)
	s.router.HandleFunc("GET /api/v1/ratings", s.handleGetRatings)
	s.router.HandleFunc("GET /api/v1/sessions", s.handleGetActiveSessions)

	// Write side, API key required.
	s.router.HandleFunc("POST /api/v1/ratings", s.requireAPIKey(s.handleRateMovie))
	s.router.HandleFunc("POST /api/v1/watches", s.requireAPIKey(s.handleAddManualWatch))

	// Plex Media Server webhook.
	s.router.HandleFunc("POST /webhook/plex", s.handlePlexWebhook)
	s.router.HandleFunc("POST /webhook/plex/{secret}", s.handlePlexWebhookWithSecret)
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// middleware wraps the router. Order matters: the rate limiter and CORS run
// before recovery so a rejected request never reaches a handler, and the
// request ID runs innermost so logging sees it.
func (s *Server) middleware(h http.Handler) http.Handler {
	h = s.withRequestID(h)
	h = s.withLogging(h)
	h = s.withRecovery(h)
	if s.config.EnableCORS {
		h = s.withCORS(h)
	}
	if s.limiter != nil {
		h = s.withRateLimit(h)
	}
	return h
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKeyRequestID, id)))
	})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.logger.Info("http request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rw.status),
			logger.Int64("duration_ms", time.Since(start).Milliseconds()),
			logger.String("ip", getClientIP(r)),
			logger.String("request_id", getRequestID(r.Context())),
		)
	})
}

func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered",
					logger.Any("error", rec),
					logger.String("stack", string(debug.Stack())),
					logger.String("path", r.URL.Path),
					logger.String("request_id", getRequestID(r.Context())),
				)
				writeJSONError(w, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		for _, o := range s.config.AllowedOrigins {
			if o != "*" && o != origin {
				continue
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "86400")
			break
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(getClientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeJSONError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAPIKey guards write endpoints.
func (s *Server) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(s.config.APIKeyHeader)
		if key == "" {
			writeJSONError(w, http.StatusUnauthorized, "missing_api_key", "API key required")
			return
		}
		for _, valid := range s.config.APIKeys {
			if key == valid {
				next(w, r)
				return
			}
		}
		writeJSONError(w, http.StatusForbidden, "invalid_api_key", "API key is not valid")
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Address()))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// IsRunning reports whether Start has been called and not yet shut down.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns time since Start, zero when stopped.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// Address returns the configured bind address.
func (s *Server) Address() string {
	return s.config.Address()
}

// ══════════════════════════════════════════════════════════════════════════════
// JSON ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse is the envelope every endpoint answers with.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      interface{}   `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError carries a machine-readable code plus a human message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version,omitempty"`
	TotalCount int       `json:"total_count,omitempty"`
}

func writeEnvelope(w http.ResponseWriter, status int, resp JSONResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	writeEnvelope(w, status, JSONResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
		Meta:    &ResponseMeta{Timestamp: time.Now().UTC(), Version: "v1"},
	})
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeEnvelope(w, status, JSONResponse{
		Error: &APIError{Code: code, Message: message},
		Meta:  &ResponseMeta{Timestamp: time.Now().UTC()},
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

type contextKey string

const contextKeyRequestID contextKey = "request_id"

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// getClientIP prefers proxy headers over the socket address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

func getRequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}

func getQueryParam(r *http.Request, key, fallback string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return fallback
}

func getQueryParamInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER
// ══════════════════════════════════════════════════════════════════════════════

// rateLimiter is a fixed-window per-key counter. Window boundaries reset the
// count, which lets at most 2x the limit through across a boundary; that is
// acceptable for abuse protection on a community API.
type rateLimiter struct {
	mu      sync.Mutex
	seen    map[string]*windowCount
	limit   int
	window  time.Duration
	lastGC  time.Time
	gcEvery time.Duration
}

type windowCount struct {
	start time.Time
	n     int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		seen:    make(map[string]*windowCount),
		limit:   limit,
		window:  window,
		lastGC:  time.Now(),
		gcEvery: 5 * window,
	}
}

// Allow counts one request for the key and reports whether it is within the
// limit for the current window.
func (rl *rateLimiter) Allow(key string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastGC) >= rl.gcEvery {
		rl.gc(now)
	}

	wc := rl.seen[key]
	if wc == nil || now.Sub(wc.start) >= rl.window {
		rl.seen[key] = &windowCount{start: now, n: 1}
		return true
	}
	if wc.n >= rl.limit {
		return false
	}
	wc.n++
	return true
}

// gc drops keys whose window has long expired. Caller holds the lock.
func (rl *rateLimiter) gc(now time.Time) {
	for key, wc := range rl.seen {
		if now.Sub(wc.start) >= rl.window {
			delete(rl.seen, key)
		}
	}
	rl.lastGC = now
}
