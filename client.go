// Package aiclient is the Go client for the Glowdesk AI insights
// service. It wraps every outbound call in the same resilience layer:
// a TTL cache, a sliding-window rate limiter, and, for push events, a
// reconnecting WebSocket manager. The AI inference itself lives behind
// the service's REST API; this package only makes talking to it cheap
// and predictable.
package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/glowdesk/aiclient/cache"
	"github.com/glowdesk/aiclient/internal/profile"
	"github.com/glowdesk/aiclient/ratelimit"
	"github.com/glowdesk/aiclient/realtime"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the root of the AI backend, e.g. https://ai.glowdesk.io.
	BaseURL string
	// APIKey is the bearer token attached to every request. Empty
	// means unauthenticated (local development backends).
	APIKey string
	// Timeout bounds each HTTP request (default 30s).
	Timeout time.Duration
	// RateLimit / RateWindow configure the client-side limiter
	// (default 30 requests per minute).
	RateLimit  int
	RateWindow time.Duration
	// CacheTTL is the default TTL endpoints use when they do not pick
	// their own (default 5m).
	CacheTTL time.Duration
	// ReconnectBaseDelay / MaxReconnectAttempts tune the realtime
	// manager (defaults 1s / 5).
	ReconnectBaseDelay   time.Duration
	MaxReconnectAttempts int
	// HTTPClient overrides the transport; nil builds one from Timeout.
	HTTPClient *http.Client
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:              "https://ai.glowdesk.io",
		Timeout:              30 * time.Second,
		RateLimit:            30,
		RateWindow:           time.Minute,
		CacheTTL:             5 * time.Minute,
		ReconnectBaseDelay:   time.Second,
		MaxReconnectAttempts: 5,
	}
}

// CachePolicy tells the orchestrator where and how long to cache a
// call's response. Nil policy means the call always goes out.
type CachePolicy struct {
	Key string
	TTL time.Duration
}

// Client talks to the AI backend. Construct with New and release with
// Close; instances are independent, so tests can hold several without
// cross-talk. Safe for concurrent use.
type Client struct {
	cfg     Config
	hc      *http.Client
	cache   cache.Service
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	flights singleflight.Group

	mu sync.Mutex
	rt *realtime.Manager
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("BaseURL required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.Wrap(err, "invalid BaseURL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 30
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.ReconnectBaseDelay <= 0 {
		cfg.ReconnectBaseDelay = time.Second
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = 5
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg:     cfg,
		hc:      hc,
		cache:   cache.New(),
		limiter: ratelimit.New(cfg.RateLimit, cfg.RateWindow),
		logger:  logger,
	}, nil
}

// NewFromProfile creates a client from a runtime profile.
func NewFromProfile(p *profile.Profile) (*Client, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return New(Config{
		BaseURL:              p.BaseURL,
		APIKey:               p.APIKey,
		Timeout:              p.RequestTimeout,
		RateLimit:            p.RateLimit,
		RateWindow:           p.RateWindow,
		CacheTTL:             p.CacheTTL,
		ReconnectBaseDelay:   p.ReconnectBaseDelay,
		MaxReconnectAttempts: p.MaxReconnectAttempts,
	})
}

// Close releases the client's background resources. The HTTP side
// holds none; the realtime manager, if started, is disconnected.
func (c *Client) Close() {
	c.mu.Lock()
	rt := c.rt
	c.mu.Unlock()
	if rt != nil {
		rt.Disconnect()
	}
}

// RateRemaining returns how many requests the client-side limiter
// still allows within the current window.
func (c *Client) RateRemaining() int {
	return c.limiter.Remaining()
}

// RateResetAfter returns the time until the limiter frees a slot.
func (c *Client) RateResetAfter() time.Duration {
	return c.limiter.ResetAfter()
}

// Realtime returns the push-event manager, constructing it on first
// use. The WebSocket URL is derived from BaseURL by swapping the
// scheme and carrying the bearer token as a query parameter.
func (c *Client) Realtime() *realtime.Manager {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rt == nil {
		c.rt = realtime.NewManager(realtime.Config{
			URL:         c.WebSocketURL(),
			BaseDelay:   c.cfg.ReconnectBaseDelay,
			MaxAttempts: c.cfg.MaxReconnectAttempts,
			Logger:      c.logger,
		})
	}
	return c.rt
}

// WebSocketURL derives the realtime endpoint from BaseURL.
func (c *Client) WebSocketURL() string {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/v1/realtime"
	if c.cfg.APIKey != "" {
		q := u.Query()
		q.Set("token", c.cfg.APIKey)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// do runs one orchestrated call. Side effects are strictly ordered:
// the limiter is consulted before anything else, rate accounting
// happens before the network call, and caching happens only after a
// successful response.
func (c *Client) do(ctx context.Context, method, path string, body, out any, policy *CachePolicy) error {
	if !c.limiter.Allow() {
		retryAfter := c.limiter.ResetAfter()
		c.logger.Debug("ai request denied by rate limiter", "path", path, "retry_after", retryAfter)
		return &RateLimitError{RetryAfter: retryAfter}
	}

	if policy == nil {
		data, err := c.fetch(ctx, method, path, body)
		if err != nil {
			return err
		}
		return decodeInto(data, out)
	}

	if data, ok := c.cache.Get(ctx, policy.Key); ok {
		c.logger.Debug("ai cache hit", "key", policy.Key)
		return decodeInto(data, out)
	}

	// Identical concurrent misses share one flight: one limiter record,
	// one network call, one cache fill.
	v, err, _ := c.flights.Do(policy.Key, func() (any, error) {
		data, err := c.fetch(ctx, method, path, body)
		if err != nil {
			return nil, err
		}
		_ = c.cache.Set(ctx, policy.Key, data, policy.TTL)
		return data, nil
	})
	if err != nil {
		return err
	}
	return decodeInto(v.([]byte), out)
}

// fetch records the request against the limiter and performs the HTTP
// call. Non-success statuses come back as *APIError.
func (c *Client) fetch(ctx context.Context, method, path string, body any) ([]byte, error) {
	c.limiter.Record()

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "marshal request body")
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "ai request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := newAPIError(resp)
		c.logger.Debug("ai request failed",
			"request_id", requestID,
			"path", path,
			"status", resp.StatusCode,
			"duration_ms", time.Since(start).Milliseconds())
		return nil, apiErr
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}

	c.logger.Debug("ai request complete",
		"request_id", requestID,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())
	return data, nil
}

func decodeInto(data []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "decode ai response")
	}
	return nil
}
