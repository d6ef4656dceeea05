package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dandantas/agenda/internal/metrics"
	"github.com/oliveagle/jsonpath"
	"github.com/sony/gobreaker"
)

// maxResponseBytes bounds how much of a rendered page is read
const maxResponseBytes = 10 << 20

// ErrInvalidResponse is returned when a render answer cannot be turned into a page
var ErrInvalidResponse = errors.New("invalid render response")

// Context is what the renderer knows about the request being rendered
type Context struct {
	Request       *http.Request
	CorrelationID string
}

// Service renders the page for path
type Service interface {
	Render(ctx context.Context, path string, rc Context) (string, error)
}

// StatusError is returned when the render server answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("render server returned status %d", e.StatusCode)
}

// retryable reports whether the request may succeed when sent again
func (e *StatusError) retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Config holds render client settings
type Config struct {
	ServerURL        string
	Timeout          time.Duration
	ResponsePath     string // JSONPath applied to JSON responses
	MaxAttempts      int
	InitialInterval  time.Duration
	MaxInterval      time.Duration
	BreakerFailures  uint32        // Consecutive failures that open the breaker
	BreakerOpenDelay time.Duration // Time the breaker stays open
}

// SetDefaults fills unset fields
func (c *Config) SetDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.ResponsePath == "" {
		c.ResponsePath = "$.html"
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 100 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 2 * time.Second
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerOpenDelay <= 0 {
		c.BreakerOpenDelay = 30 * time.Second
	}
}

// Client renders pages by calling the development render server over HTTP
type Client struct {
	cfg        Config
	endpoint   string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	pattern    *jsonpath.Compiled
}

// NewClient creates a render client
func NewClient(cfg Config) (*Client, error) {
	cfg.SetDefaults()

	if cfg.ServerURL == "" {
		return nil, errors.New("render server URL is required")
	}

	pattern, err := jsonpath.Compile(cfg.ResponsePath)
	if err != nil {
		return nil, fmt.Errorf("invalid render response path '%s': %w", cfg.ResponsePath, err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "render",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenDelay,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return !statusErr.retryable()
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		cfg:      cfg,
		endpoint: strings.TrimRight(cfg.ServerURL, "/") + "/__render",
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		breaker: breaker,
		pattern: pattern,
	}, nil
}

type renderRequest struct {
	Path          string            `json:"path"`
	URL           string            `json:"url"`
	Method        string            `json:"method"`
	Headers       map[string]string `json:"headers,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
}

// Render asks the render server for the page of the request in rc. Transport
// errors, 5xx and 429 answers are retried with exponential backoff.
func (c *Client) Render(ctx context.Context, path string, rc Context) (string, error) {
	start := time.Now()

	payload, err := json.Marshal(newRenderRequest(path, rc))
	if err != nil {
		return "", fmt.Errorf("failed to marshal render request: %w", err)
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.cfg.InitialInterval
	expBackoff.MaxInterval = c.cfg.MaxInterval
	expBackoff.MaxElapsedTime = 0

	bo := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(c.cfg.MaxAttempts-1)), ctx)

	attempt := 0
	html, err := backoff.RetryWithData(func() (string, error) {
		attempt++

		result, err := c.breaker.Execute(func() (interface{}, error) {
			html, err := c.send(ctx, payload)
			return html, err
		})
		if err != nil {
			if !isRetryable(err) {
				return "", backoff.Permanent(err)
			}

			slog.Warn("Render attempt failed",
				"correlation_id", rc.CorrelationID,
				"attempt", attempt,
				"max_attempts", c.cfg.MaxAttempts,
				"error", err,
			)
			return "", err
		}

		return result.(string), nil
	}, bo)

	metrics.RenderDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.RenderRequests.WithLabelValues(metrics.StatusFailed).Inc()
		slog.Error("Render failed",
			"correlation_id", rc.CorrelationID,
			"path", path,
			"attempts", attempt,
			"error", err,
		)
		return "", fmt.Errorf("render failed after %d attempts: %w", attempt, err)
	}

	metrics.RenderRequests.WithLabelValues(metrics.StatusSuccess).Inc()
	slog.Debug("Render completed",
		"correlation_id", rc.CorrelationID,
		"path", path,
		"attempts", attempt,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return html, nil
}

// send performs a single render request
func (c *Client) send(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/html, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read render response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return c.extract(resp.Header.Get("Content-Type"), body)
}

// extract returns the page from a render response. JSON answers are reduced
// with the configured path; anything else is the page itself.
func (c *Client) extract(contentType string, body []byte) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType != "application/json" {
		return string(body), nil
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	value, err := c.pattern.Lookup(data)
	if err != nil {
		return "", fmt.Errorf("%w: path '%s' returned no results: %v", ErrInvalidResponse, c.cfg.ResponsePath, err)
	}

	switch v := value.(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	default:
		return fmt.Sprint(v), nil
	}
}

func newRenderRequest(path string, rc Context) renderRequest {
	req := renderRequest{
		Path:          path,
		CorrelationID: rc.CorrelationID,
	}

	if r := rc.Request; r != nil {
		req.URL = r.URL.RequestURI()
		req.Method = r.Method
		req.Headers = make(map[string]string, len(r.Header))
		for key := range r.Header {
			req.Headers[strings.ToLower(key)] = r.Header.Get(key)
		}
	}

	return req
}

func isRetryable(err error) bool {
	if errors.Is(err, ErrInvalidResponse) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.retryable()
	}
	return true
}
