// Package upstream is the shared HTTP client for the synchronous lookups
// made while processing a fact. Every call is bounded by the caller's
// context and guarded by a circuit breaker.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"idstatus/pkg/platform/circuit"
)

const maxBodyBytes = 1 << 20

// Client performs JSON calls against one upstream service.
type Client struct {
	name    string
	baseURL string
	http    *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// WithLogger sets the logger used for breaker transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout sets the per-call timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// NewClient creates a client for the service called name at baseURL.
func NewClient(name, baseURL string, opts ...Option) *Client {
	c := &Client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
		breaker: circuit.New(name),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the service name used in errors and metrics.
func (c *Client) Name() string { return c.name }

// Breaker exposes the circuit breaker for health reporting.
func (c *Client) Breaker() *circuit.Breaker { return c.breaker }

// Response is a received HTTP response with its body read.
type Response struct {
	StatusCode int
	Body       []byte
}

// Do sends a JSON request. Responses of any status are returned as-is;
// network failures and an open breaker come back as *TransportError. A 5xx
// counts as a breaker failure.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	if !c.breaker.Allow() {
		return nil, &TransportError{Service: c.name, Err: ErrCircuitOpen}
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", c.name, err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.recordFailure(ctx)
		return nil, &TransportError{Service: c.name, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.recordFailure(ctx)
		return nil, &TransportError{Service: c.name, Err: err}
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		c.recordFailure(ctx)
	} else {
		c.recordSuccess(ctx)
	}
	return &Response{StatusCode: resp.StatusCode, Body: payload}, nil
}

// StatusError builds the TransportError for an unexpected status.
func (c *Client) StatusError(resp *Response) error {
	return &TransportError{
		Service:    c.name,
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("status %d", resp.StatusCode),
	}
}

// Decode unmarshals a 2xx body into v, reporting failures as
// *MalformedResponseError.
func (c *Client) Decode(resp *Response, v any) error {
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return &MalformedResponseError{Service: c.name, Err: err}
	}
	return nil
}

func (c *Client) recordFailure(ctx context.Context) {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "circuit breaker opened", "service", c.name)
	}
}

func (c *Client) recordSuccess(ctx context.Context) {
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "circuit breaker closed", "service", c.name)
	}
}
