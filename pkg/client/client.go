// Package client provides the HTTP client used against the startup registry
// API, with request pacing, bounded retries and exponential backoff.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for registry client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "registry_requests_total",
		Help: "Total registry requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "registry_request_duration_seconds",
		Help:    "Registry request duration in seconds by endpoint, including retries",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "registry_errors_total",
		Help: "Total registry errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents bodies that are not valid JSON for the target.
	ErrorClassDecode ErrorClass = "decode"
)

// Pacer gates every logical request before it is sent.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Config holds the client configuration.
type Config struct {
	// UserAgent header sent with every request.
	UserAgent string

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// Retry is the policy for transient failures.
	Retry RetryPolicy

	// Pacer is applied once before each request. Nil disables pacing.
	Pacer Pacer

	// Transport overrides the HTTP transport (tests inject fakes here).
	Transport http.RoundTripper
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
		Retry:     DefaultRetryPolicy(),
	}
}

// Client is the registry HTTP client. It owns one connection pool for its
// lifetime; call Close when the run is finished.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Request describes one logical call.
type Request struct {
	// Endpoint is a stable name used for metrics and logs, e.g. "listing".
	Endpoint string
	Method   string
	URL      string
	Query    url.Values
	// Body is JSON-encoded when non-nil.
	Body any
}

// New creates a new registry client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Retry.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.Retry.MaxRetries)
	}

	if cfg.Retry.Multiplier != 0 && cfg.Retry.Multiplier < 1 {
		return nil, fmt.Errorf("backoff multiplier must be >= 1 (got %v)", cfg.Retry.Multiplier)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		config: cfg,
		logger: logger.With().Str("component", "registry-client").Logger(),
	}, nil
}

// Do performs a request with pacing and retries and returns the response body.
func (c *Client) Do(ctx context.Context, r Request) ([]byte, error) {
	endpoint := r.Endpoint
	if endpoint == "" {
		endpoint = "unknown"
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	target, err := buildURL(r.URL, r.Query)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if r.Body != nil {
		payload, err = json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	if c.config.Pacer != nil {
		if err := c.config.Pacer.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}
	}

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", method).
		Str("url", target).
		Msg("Executing registry request")

	var body []byte
	err = retryWithBackoff(ctx, c.config.Retry, c.logger, func() error {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", c.config.UserAgent)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("%w: %v", ErrContextCancelled, ctxErr)
			}
			c.logger.Debug().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return &retryableError{err: err, class: ErrorClassNetwork}
		}
		defer resp.Body.Close()

		requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			errClass := classifyStatus(resp.StatusCode)
			errorsTotal.WithLabelValues(string(errClass)).Inc()

			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Str("error_class", string(errClass)).
				Msg("Registry request error")

			statusErr := &StatusError{
				StatusCode: resp.StatusCode,
				ErrorClass: errClass,
				Message:    resp.Status,
			}
			if c.config.Retry.retryableStatus(resp.StatusCode) {
				return &retryableError{err: statusErr, class: errClass, after: parseRetryAfter(resp.Header)}
			}
			return statusErr
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("%w: %v", ErrContextCancelled, ctxErr)
			}
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return &retryableError{err: fmt.Errorf("read body: %w", err), class: ErrorClassNetwork}
		}

		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}

// DoJSON performs a request and decodes the JSON response into out.
func (c *Client) DoJSON(ctx context.Context, r Request, out any) error {
	body, err := c.Do(ctx, r)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		c.logger.Warn().Err(err).Str("endpoint", r.Endpoint).Msg("Failed to decode registry response")
		return fmt.Errorf("%w: %s: %v", ErrDecode, r.Endpoint, err)
	}

	return nil
}

// Get performs a GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, endpoint, rawURL string, query url.Values, out any) error {
	return c.DoJSON(ctx, Request{
		Endpoint: endpoint,
		Method:   http.MethodGet,
		URL:      rawURL,
		Query:    query,
	}, out)
}

// Post sends payload as JSON and decodes the JSON response into out.
func (c *Client) Post(ctx context.Context, endpoint, rawURL string, payload, out any) error {
	return c.DoJSON(ctx, Request{
		Endpoint: endpoint,
		Method:   http.MethodPost,
		URL:      rawURL,
		Body:     payload,
	}, out)
}

// Close releases idle connections held by the client.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// classifyStatus categorizes an HTTP status for observability and handling.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

func buildURL(rawURL string, query url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for key, values := range query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
