package logicapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"row-analyzer/internal/classifier"
)

const (
	defaultMessageField = "message"
	defaultTimeout      = 600 * time.Second
	maxBodyBytes        = 8 << 20
)

// Client posts row text to an HTTP workflow trigger and returns its raw reply.
type Client struct {
	endpoint     string
	messageField string
	httpClient   *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithMessageField sets the JSON field that carries the text.
func WithMessageField(field string) Option {
	return func(c *Client) {
		if strings.TrimSpace(field) != "" {
			c.messageField = strings.TrimSpace(field)
		}
	}
}

// WithTimeout bounds each HTTP round trip.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient constructs a client for endpoint.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("CLASSIFIER_URL is required: %w", classifier.ErrNotConfigured)
	}
	c := &Client{
		endpoint:     endpoint,
		messageField: defaultMessageField,
		httpClient:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Classify sends {"<field>": text}. Non-2xx statuses are not errors here;
// the caller decides what is retryable.
func (c *Client) Classify(ctx context.Context, text string) (classifier.Response, error) {
	payload, err := json.Marshal(map[string]string{c.messageField: text})
	if err != nil {
		return classifier.Response{}, fmt.Errorf("encode classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return classifier.Response{}, fmt.Errorf("build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return classifier.Response{}, fmt.Errorf("classifier request timeout: %w", err)
		}
		return classifier.Response{}, fmt.Errorf("classifier request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return classifier.Response{StatusCode: resp.StatusCode}, fmt.Errorf("read classifier response: %w", err)
	}
	return classifier.Response{StatusCode: resp.StatusCode, Body: string(body)}, nil
}

var _ classifier.Client = (*Client)(nil)
