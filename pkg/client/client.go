// Package client performs authenticated GET requests against the WHOOP developer
// API: it attaches the bearer token, recovers once from a rejected token, and
// decodes JSON bodies into the error taxonomy of package apierror.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/whoop-cli/pkg/apierror"
	"github.com/Sternrassler/whoop-cli/pkg/metrics"
	"github.com/Sternrassler/whoop-cli/pkg/ratelimit"
)

// Prometheus metrics for WHOOP API requests.
var (
	requestsTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "whoop_requests_total",
		Help: "Total WHOOP API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.With(metrics.Registry).NewHistogramVec(prometheus.HistogramOpts{
		Name:    "whoop_request_duration_seconds",
		Help:    "WHOOP API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "whoop_errors_total",
		Help: "Total WHOOP client errors by kind",
	}, []string{"kind"})

	unauthorizedRetriesTotal = promauto.With(metrics.Registry).NewCounter(prometheus.CounterOpts{
		Name: "whoop_unauthorized_retries_total",
		Help: "Requests retried with a refreshed token after a 401",
	})
)

// DefaultBaseURL is the production WHOOP API host.
const DefaultBaseURL = "https://api.prod.whoop.com"

// HTTPDoer sends HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource supplies bearer tokens. *token.Manager satisfies it.
type TokenSource interface {
	EnsureAccessToken(ctx context.Context) (string, error)
	RefreshRejected(ctx context.Context, rejected string) (string, error)
}

// Client is the WHOOP API client.
type Client struct {
	baseURL    *url.URL
	httpClient HTTPDoer
	tokens     TokenSource
	userAgent  string
	quota      *ratelimit.Tracker
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the API, DefaultBaseURL when empty.
	BaseURL string

	// HTTPClient used for requests, an *http.Client with a 30s timeout when nil.
	HTTPClient HTTPDoer

	// UserAgent header sent with every request.
	UserAgent string

	// RateLimit records the quota headers of every response. A fresh tracker
	// is created when nil.
	RateLimit *ratelimit.Tracker
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		UserAgent:  "whoop-cli",
	}
}

// New creates a new WHOOP client.
func New(tokens TokenSource, cfg Config) (*Client, error) {
	if tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}

	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = def.HTTPClient
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}

	logger := log.With().Str("component", "whoop-client").Logger()
	if cfg.RateLimit == nil {
		cfg.RateLimit = ratelimit.NewTracker(logger)
	}

	return &Client{
		baseURL:    base,
		httpClient: cfg.HTTPClient,
		tokens:     tokens,
		userAgent:  cfg.UserAgent,
		quota:      cfg.RateLimit,
		logger:     logger,
	}, nil
}

// Quota returns the rate limit window reported by the most recent response.
func (c *Client) Quota() (ratelimit.State, bool) {
	return c.quota.State()
}

// Get requests path with query and returns the decoded JSON body. A 401 triggers
// one token refresh and one retry; a second 401 is returned as an API error.
// When another caller already replaced the rejected token, the retry uses that
// token and no second request reaches the token endpoint.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (any, error) {
	// Step 1: Obtain a token
	token, err := c.tokens.EnsureAccessToken(ctx)
	if err != nil {
		return nil, c.record(err)
	}

	// Step 2: First attempt
	status, body, err := c.send(ctx, path, query, token)
	if err != nil {
		return nil, c.record(err)
	}

	// Step 3: Refresh once on 401 and retry
	if status == http.StatusUnauthorized {
		unauthorizedRetriesTotal.Inc()
		c.logger.Info().Str("endpoint", path).Msg("Access token rejected, refreshing")

		token, err = c.tokens.RefreshRejected(ctx, token)
		if err != nil {
			return nil, c.record(err)
		}
		status, body, err = c.send(ctx, path, query, token)
		if err != nil {
			return nil, c.record(err)
		}
	}

	// Step 4: Decode
	payload, err := parseResponse(status, body, path)
	if err != nil {
		return nil, c.record(err)
	}
	return payload, nil
}

// GetObject requests path and requires a JSON object body.
func (c *Client) GetObject(ctx context.Context, path string) (Object, error) {
	payload, err := c.Get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	obj, ok := AsObject(payload)
	if !ok {
		return nil, c.record(apierror.Shape(path, "expected a JSON object"))
	}
	return obj, nil
}

// GetOptionalObject is GetObject with a 404 mapped to a nil object.
func (c *Client) GetOptionalObject(ctx context.Context, path string) (Object, error) {
	obj, err := c.GetObject(ctx, path)
	if apierror.IsStatus(err, http.StatusNotFound) {
		c.logger.Debug().Str("endpoint", path).Msg("Optional resource not found")
		return nil, nil
	}
	return obj, err
}

// GetOptionalRecord requests path and accepts either a single object or a
// collection, in which case the first record is returned. 404 and an empty
// collection both yield nil.
func (c *Client) GetOptionalRecord(ctx context.Context, path string) (Object, error) {
	payload, err := c.Get(ctx, path, nil)
	if apierror.IsStatus(err, http.StatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	obj, ok := AsObject(payload)
	if !ok {
		return nil, c.record(apierror.Shape(path, "expected a JSON object"))
	}
	if _, isCollection := obj["records"]; !isCollection {
		return obj, nil
	}

	records, err := Records(obj, path)
	if err != nil {
		return nil, c.record(err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// send performs a single GET and returns the status and raw body.
func (c *Client) send(ctx context.Context, path string, query url.Values, token string) (int, []byte, error) {
	endpoint := metrics.EndpointLabel(path)

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	u := c.baseURL.ResolveReference(&url.URL{Path: path})
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug().
		Str("endpoint", path).
		Str("query", u.RawQuery).
		Msg("Executing WHOOP request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", path).Msg("HTTP request failed")
		return 0, nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return 0, nil, fmt.Errorf("read %s response: %w", path, err)
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	if err := c.quota.Observe(resp.StatusCode, resp.Header); err != nil {
		c.logger.Debug().Err(err).Str("endpoint", path).Msg("Ignoring malformed rate limit headers")
	}
	if resp.StatusCode >= 400 {
		c.logger.Warn().
			Str("endpoint", path).
			Int("status", resp.StatusCode).
			Msg("WHOOP request error")
	}

	return resp.StatusCode, body, nil
}

// record counts err by kind and returns it unchanged.
func (c *Client) record(err error) error {
	kind := apierror.KindOf(err)
	if kind == "" {
		if errors.Is(err, context.Canceled) {
			return err
		}
		kind = "transport"
	}
	errorsTotal.WithLabelValues(string(kind)).Inc()
	return err
}

func parseResponse(status int, body []byte, path string) (any, error) {
	payload, err := decodeJSON(body)
	if err != nil {
		if status < 200 || status > 299 {
			return nil, apierror.API(status, path, "Expected JSON response.")
		}
		return nil, apierror.Shape(path, "expected JSON response")
	}

	if status < 200 || status > 299 {
		if s, ok := payload.(string); ok {
			return nil, apierror.API(status, path, s)
		}
		return nil, apierror.API(status, path, compact(body))
	}
	return payload, nil
}

// decodeJSON decodes exactly one JSON value, keeping numbers as json.Number.
func decodeJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return v, nil
}

func compact(body []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return strings.TrimSpace(string(body))
	}
	return buf.String()
}
