// Package client provides the HTTP transport used to talk to the search service.
// It issues exactly one request per call and never interprets response bodies;
// retry and decoding live in the pagination package.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/scroll-export/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for transport operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scroll_export_requests_total",
		Help: "Total search requests by operation and status",
	}, []string{"operation", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scroll_export_request_duration_seconds",
		Help:    "Search request duration in seconds by operation",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"operation"})
)

// Request is a single outbound call to the search service.
type Request struct {
	// Operation labels the call for logs and metrics (open, advance, close).
	Operation string
	Method    string
	URL       string
	Header    http.Header
	Body      []byte
}

// Response carries the status code separately from the raw body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Sender sends one request and returns the raw response.
type Sender interface {
	Send(ctx context.Context, req Request) (*Response, error)
}

// Config holds the transport configuration.
type Config struct {
	// User-Agent header sent with every request
	UserAgent string

	// Timeout bounds a single request including reading the body
	Timeout time.Duration

	// Authentication (both optional; APIKey wins when both are set)
	Username string
	Password string
	APIKey   string

	// Header is added to every request
	Header http.Header
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		UserAgent: "scroll-export/0.1.0",
		Timeout:   60 * time.Second,
	}
}

// Client is the HTTP implementation of Sender.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

var _ Sender = (*Client)(nil)

// New creates a new transport client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	logger := logging.NewLogger("transport")

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: logger,
	}, nil
}

// Send performs exactly one HTTP request. Any failure to obtain a status
// line and a complete body is reported as a *TransportError; non-2xx
// statuses are returned as ordinary responses for the caller to judge.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	operation := req.Operation
	if operation == "" {
		operation = "unknown"
	}

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(operation).Observe(time.Since(startTime).Seconds())
	}()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: req.URL, Err: fmt.Errorf("create request: %w", err)}
	}

	c.setHeaders(httpReq, req.Header)

	c.logger.Debug().
		Str("operation", operation).
		Str("method", req.Method).
		Str("url", req.URL).
		Msg("Sending search request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		requestsTotal.WithLabelValues(operation, "transport_error").Inc()
		return nil, &TransportError{Method: req.Method, URL: req.URL, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		requestsTotal.WithLabelValues(operation, "transport_error").Inc()
		return nil, &TransportError{Method: req.Method, URL: req.URL, Err: fmt.Errorf("read body: %w", err)}
	}

	requestsTotal.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()

	c.logger.Debug().
		Str("operation", operation).
		Int("status", resp.StatusCode).
		Int("bytes", len(data)).
		Dur("duration", time.Since(startTime)).
		Msg("Search request finished")

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func (c *Client) setHeaders(httpReq *http.Request, extra http.Header) {
	for key, values := range c.config.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	for key, values := range extra {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	httpReq.Header.Set("User-Agent", c.config.UserAgent)
	httpReq.Header.Set("Accept", "application/json")
	if httpReq.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	switch {
	case c.config.APIKey != "":
		httpReq.Header.Set("Authorization", "ApiKey "+c.config.APIKey)
	case c.config.Username != "":
		httpReq.SetBasicAuth(c.config.Username, c.config.Password)
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
