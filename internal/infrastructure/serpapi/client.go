package serpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/offerlens/backend/internal/domain"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// maxErrorBodyBytes bounds how much of an error response is kept for logging
const maxErrorBodyBytes = 2048

// ClientConfig holds SerpAPI client settings
type ClientConfig struct {
	APIKey            string
	BaseURL           string
	Engine            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
}

// Client fetches Google search result payloads from SerpAPI
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	engine      string
	maxRetries  int
	rateLimiter *rate.Limiter
	log         zerolog.Logger
	debug       bool
}

// NewClient creates a new SerpAPI client
func NewClient(cfg ClientConfig, log zerolog.Logger) *Client {
	if cfg.Engine == "" {
		cfg.Engine = "google"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		engine:      cfg.Engine,
		maxRetries:  cfg.MaxRetries,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		log:         log.With().Str("component", "serpapi").Logger(),
	}
}

// SetDebug enables verbose request logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// Search runs a Google search and returns the raw payload.
// 5xx and 429 responses are retried with exponential backoff; any other failure is
// returned wrapped in domain.ErrSearchAPIFailure.
func (c *Client) Search(ctx context.Context, query domain.SearchQuery) (domain.SearchPayload, error) {
	if query.Query == "" {
		return nil, domain.ErrInvalidRequest
	}

	reqURL := c.buildURL(query)
	c.log.Info().Str("query", query.Query).Str("gl", query.CountryCode).Str("location", query.Location).Msg("Search called")

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		body, status, err := c.doRequest(ctx, reqURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrSearchAPIFailure, ctx.Err())
			}
			c.log.Warn().Err(err).Int("attempt", attempt).Msg("Request error")
			lastErr = err
			if !c.sleep(ctx, attempt) {
				return nil, fmt.Errorf("%w: %v", domain.ErrSearchAPIFailure, ctx.Err())
			}
			continue
		}

		if status != http.StatusOK {
			message := providerError(body)
			c.log.Warn().Int("attempt", attempt).Int("status", status).Str("error", message).Msg("API error")
			lastErr = fmt.Errorf("%w: status %d: %s", domain.ErrSearchAPIFailure, status, message)
			if !isRetryable(status) {
				return nil, lastErr
			}
			if !c.sleep(ctx, attempt) {
				return nil, fmt.Errorf("%w: %v", domain.ErrSearchAPIFailure, ctx.Err())
			}
			continue
		}

		payload, err := decodePayload(body)
		if err != nil {
			c.log.Error().Err(err).Msg("Payload decode error")
			return nil, err
		}

		c.debugLog("received %d bytes for query %q", len(payload), query.Query)
		return payload, nil
	}

	c.log.Error().Str("query", query.Query).Msg("All retries failed")
	return nil, lastErr
}

// buildURL assembles the search endpoint URL with query parameters
func (c *Client) buildURL(query domain.SearchQuery) string {
	params := url.Values{}
	params.Add("engine", c.engine)
	params.Add("q", query.Query)
	if query.Location != "" {
		params.Add("location", query.Location)
	}
	if query.Language != "" {
		params.Add("hl", query.Language)
	}
	if query.CountryCode != "" {
		params.Add("gl", query.CountryCode)
	}
	if query.GoogleDomain != "" {
		params.Add("google_domain", query.GoogleDomain)
	}
	params.Add("api_key", c.apiKey)

	return fmt.Sprintf("%s/search.json?%s", c.baseURL, params.Encode())
}

// doRequest executes an HTTP GET request and returns the body and status code
func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to create request: %v", domain.ErrSearchAPIFailure, err)
	}
	req.Header.Set("User-Agent", "OfferLens/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrSearchAPIFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := readLimitedBody(resp.Body, maxErrorBodyBytes)
		if err != nil {
			return nil, resp.StatusCode, fmt.Errorf("%w: %v", domain.ErrSearchAPIFailure, err)
		}
		return body, resp.StatusCode, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: failed to read body: %v", domain.ErrSearchAPIFailure, err)
	}
	return body, resp.StatusCode, nil
}

// sleep waits for the backoff of the given attempt; it reports false if ctx ended first
func (c *Client) sleep(ctx context.Context, attempt int) bool {
	if attempt >= c.maxRetries {
		return true
	}
	timer := time.NewTimer(exponentialBackoff(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *Client) debugLog(format string, args ...any) {
	if c.debug {
		c.log.Debug().Msgf(format, args...)
	}
}

// decodePayload checks that the body is a JSON object without a provider error
func decodePayload(body []byte) (domain.SearchPayload, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: %w: failed to decode response", domain.ErrSearchAPIFailure, domain.ErrInvalidPayload)
	}
	result := gjson.ParseBytes(body)
	if !result.IsObject() {
		return nil, fmt.Errorf("%w: %w: response is not an object", domain.ErrSearchAPIFailure, domain.ErrInvalidPayload)
	}
	if msg := result.Get("error"); msg.Type == gjson.String && msg.Str != "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrSearchAPIFailure, msg.Str)
	}
	return domain.SearchPayload(body), nil
}

// providerError extracts SerpAPI's {"error": "..."} message, or the raw body
func providerError(body []byte) string {
	if msg := gjson.GetBytes(body, "error"); msg.Type == gjson.String {
		return msg.Str
	}
	return string(body)
}

func isRetryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// exponentialBackoff returns 500ms, 1s, 2s, ... for attempts 1, 2, 3, ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500*(1<<uint(attempt-1))) * time.Millisecond
}

// readLimitedBody reads at most limit bytes from r
func readLimitedBody(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}
