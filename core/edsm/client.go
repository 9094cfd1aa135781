package edsm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public EDSM API host.
	DefaultBaseURL = "https://www.edsm.net"
	// DefaultTimeout bounds each HTTP request.
	DefaultTimeout = 15 * time.Second
	// DefaultRateLimit paces live requests; cache hits bypass it.
	DefaultRateLimit = rate.Limit(1)

	bodiesPath = "/api-system-v1/bodies"
	infoPath   = "/api-v1/system"

	bodiesEndpoint = "bodies"
	infoEndpoint   = "info"
)

// ErrSystemNotKnown reports a system EDSM has no record of. Not-found
// responses are cached like any other payload, so repeat lookups stay
// off the network.
var ErrSystemNotKnown = errors.New("system not known to EDSM")

// httpStatusError reports a non-200 response.
type httpStatusError struct {
	code   int
	status string
}

func (e *httpStatusError) Error() string {
	return "unexpected status " + e.status
}

// retryableError decides whether a fetch failure is worth another attempt.
// Rate-limit and server-side statuses retry; other statuses and context
// cancellation fail immediately.
func retryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.code == http.StatusTooManyRequests ||
			statusErr.code >= http.StatusInternalServerError
	}
	return true
}

// Client fetches per-system enrichment from the EDSM web API through the
// two-tier cache. Only cache misses hit the network, and those pass
// through the rate limiter and the retry policy.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *Cache
	limiter    *rate.Limiter
	retry      RetryPolicy
	logger     *slog.Logger
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API host.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithRetryPolicy overrides the backoff policy.
func WithRetryPolicy(policy RetryPolicy) ClientOption {
	return func(c *Client) { c.retry = policy }
}

// WithRateLimit overrides the live-request rate.
func WithRateLimit(limit rate.Limit) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(limit, 1) }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a Client over the given cache.
func NewClient(cache *Cache, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		cache:      cache,
		limiter:    rate.NewLimiter(DefaultRateLimit, 1),
		retry:      DefaultRetryPolicy(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Bodies fetches the body catalogue for a system.
func (c *Client) Bodies(ctx context.Context, systemName string) (*BodiesResponse, error) {
	query := url.Values{"systemName": {systemName}}

	raw, err := c.fetch(ctx, bodiesEndpoint, bodiesPath, query, systemName)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if emptyPayload(trimmed) {
		return nil, notKnown(systemName)
	}

	var resp BodiesResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, fmt.Errorf("decode bodies for system %q: %w", systemName, err)
	}
	if !resp.known() {
		return nil, notKnown(systemName)
	}
	return &resp, nil
}

// SystemInfo fetches coordinates, political information and permit status
// for a system.
func (c *Client) SystemInfo(ctx context.Context, systemName string) (*SystemInfo, error) {
	query := url.Values{
		"systemName":      {systemName},
		"showCoordinates": {"1"},
		"showInformation": {"1"},
		"showPermit":      {"1"},
	}

	raw, err := c.fetch(ctx, infoEndpoint, infoPath, query, systemName)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if emptyPayload(trimmed) {
		return nil, notKnown(systemName)
	}

	var resp SystemInfo
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, fmt.Errorf("decode system info for %q: %w", systemName, err)
	}
	if !resp.known() {
		return nil, notKnown(systemName)
	}
	return &resp, nil
}

// System combines both endpoints into one enrichment result. A missing or
// failing info lookup degrades to a bodies-only result rather than failing
// the system.
func (c *Client) System(ctx context.Context, systemName string) (*System, error) {
	bodies, err := c.Bodies(ctx, systemName)
	if err != nil {
		return nil, err
	}

	sys := &System{BodiesResponse: *bodies}

	info, err := c.SystemInfo(ctx, systemName)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if !errors.Is(err, ErrSystemNotKnown) {
			c.logger.Warn("system info fetch failed",
				"system", systemName,
				"error", err)
		}
		return sys, nil
	}

	sys.Coords = info.Coords
	sys.Information = info.Information
	sys.RequirePermit = info.RequirePermit
	sys.PermitName = info.PermitName
	return sys, nil
}

// fetch returns the raw payload for one endpoint/system pair, consulting
// the cache first. Live responses are cached, including not-found markers.
func (c *Client) fetch(ctx context.Context, endpoint, path string, query url.Values, systemName string) ([]byte, error) {
	if raw, ok := c.cache.Get(endpoint, systemName); ok {
		return raw, nil
	}

	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		raw, err := c.doRequest(ctx, path, query)
		if err == nil {
			if cacheErr := c.cache.Put(endpoint, systemName, raw); cacheErr != nil {
				c.logger.Warn("cache write failed",
					"system", systemName,
					"endpoint", endpoint,
					"error", cacheErr)
			}
			return raw, nil
		}

		lastErr = err
		if !retryableError(err) {
			break
		}

		c.logger.Warn("enrichment request failed",
			"system", systemName,
			"endpoint", endpoint,
			"attempt", attempt,
			"error", err)

		if attempt < c.retry.MaxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(calculateDelay(c.retry, attempt)):
			}
		}
	}

	return nil, fmt.Errorf("fetch %s for system %q: %w", endpoint, systemName, lastErr)
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{code: resp.StatusCode, status: resp.Status}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return raw, nil
}

// emptyPayload matches the empty object/array EDSM returns for systems it
// has never heard of.
func emptyPayload(trimmed []byte) bool {
	return len(trimmed) == 0 ||
		bytes.Equal(trimmed, []byte("{}")) ||
		bytes.Equal(trimmed, []byte("[]"))
}

func notKnown(systemName string) error {
	return fmt.Errorf("system %q: %w", systemName, ErrSystemNotKnown)
}
