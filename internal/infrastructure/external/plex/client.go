// Package plex implements a Plex Media Server API client.
package plex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/frightclub/movie-night-hub/pkg/circuitbreaker"
	"github.com/frightclub/movie-night-hub/pkg/logger"
	"github.com/frightclub/movie-night-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrUnauthorized indicates a missing or rejected server token.
	ErrUnauthorized = errors.New("plex: unauthorized")

	// ErrNotFound is returned when a title cannot be found in the library.
	ErrNotFound = errors.New("plex: title not found")

	// ErrServerUnavailable indicates the media server cannot be reached.
	ErrServerUnavailable = errors.New("plex: server unavailable")
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the media server client.
type ClientConfig struct {
	// BaseURL is the media server base URL, e.g. "http://localhost:32400".
	BaseURL string

	// Token is the X-Plex-Token used for authentication.
	Token string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// RateLimiterConfig controls the request rate.
	RateLimiterConfig RateLimiterConfig

	// Logger for structured logging.
	Logger *logger.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL, token string) ClientConfig {
	return ClientConfig{
		BaseURL:           strings.TrimRight(baseURL, "/"),
		Token:             token,
		Timeout:           15 * time.Second,
		RateLimiterConfig: DefaultRateLimiterConfig(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the media server API client.
type Client struct {
	config      ClientConfig
	httpClient  *http.Client
	log         *logger.Logger
	rateLimiter *RateLimiter
	breaker     *circuitbreaker.CircuitBreaker
	retrier     *retry.Retrier
}

// NewClient creates a new media server client.
func NewClient(config ClientConfig) *Client {
	log := config.Logger
	if log == nil {
		log = logger.Default()
	}
	log = log.With(logger.Component("plex_client"))

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		log:         log,
		rateLimiter: NewRateLimiter(config.RateLimiterConfig),
		breaker: circuitbreaker.MediaServerBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}),
		retrier: retry.MediaServerRetrier(),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Sessions
// ─────────────────────────────────────────────────────────────────────────────

// ActiveSessions returns all movie playback sessions currently running on the
// server.
func (c *Client) ActiveSessions(ctx context.Context) ([]SessionDTO, error) {
	var envelope sessionsEnvelope
	if err := c.get(ctx, "/status/sessions", nil, &envelope); err != nil {
		return nil, err
	}

	sessions := make([]SessionDTO, 0, len(envelope.MediaContainer.Metadata))
	for _, v := range envelope.MediaContainer.Metadata {
		if dto, ok := toSessionDTO(v); ok {
			sessions = append(sessions, dto)
		}
	}
	return sessions, nil
}

// SessionFor returns the playback session of one account, matched by name.
// Missing session yields (nil, nil): nobody is watching.
func (c *Client) SessionFor(ctx context.Context, accountName string) (*SessionDTO, error) {
	sessions, err := c.ActiveSessions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if strings.EqualFold(sessions[i].AccountName, accountName) {
			return &sessions[i], nil
		}
	}
	return nil, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Metadata
// ─────────────────────────────────────────────────────────────────────────────

// SearchMovie looks up library metadata for a movie title.
func (c *Client) SearchMovie(ctx context.Context, title string) (*MetadataDTO, error) {
	query := url.Values{"query": {title}}

	var envelope searchEnvelope
	if err := c.get(ctx, "/search", query, &envelope); err != nil {
		return nil, err
	}

	for _, v := range envelope.MediaContainer.Metadata {
		if strings.EqualFold(v.Type, "movie") && strings.EqualFold(v.Title, title) {
			meta := toMetadataDTO(v)
			return &meta, nil
		}
	}
	return nil, ErrNotFound
}

// IsHealthy reports whether the server answers the identity endpoint.
func (c *Client) IsHealthy(ctx context.Context) bool {
	var probe struct{}
	return c.get(ctx, "/identity", nil, &probe) == nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Transport
// ─────────────────────────────────────────────────────────────────────────────

// get performs a rate-limited GET through the circuit breaker with retries.
func (c *Client) get(ctx context.Context, path string, query url.Values, result interface{}) error {
	if err := c.rateLimiter.Allow(ctx); err != nil {
		return err
	}

	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			return c.doRequest(ctx, path, query, result)
		})
	})
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values, result interface{}) error {
	fullURL := c.config.BaseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("plex: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Token", c.config.Token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("media server request failed",
			logger.String("path", path),
			logger.Err(err),
		)
		return retry.Retryable(fmt.Errorf("%w: %v", ErrServerUnavailable, err))
	}
	defer resp.Body.Close()

	c.log.Debug("media server request",
		logger.String("path", path),
		logger.Int("status", resp.StatusCode),
		logger.Latency(time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 500:
		return retry.Retryable(fmt.Errorf("%w: status %d", ErrServerUnavailable, resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("plex: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("plex: decode response: %w", err)
	}
	return nil
}
