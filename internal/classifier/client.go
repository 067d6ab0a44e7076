// Package classifier calls the external per-message risk classification service.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wolfman30/safehug/internal/risk"
	"github.com/wolfman30/safehug/pkg/logging"
)

// ErrNotConfigured is returned when no base URL was provided.
var ErrNotConfigured = errors.New("classifier: base url not configured")

// AnalyzeRequest points the classifier at a transcript object in S3.
type AnalyzeRequest struct {
	S3Path     string `json:"s3_path"`
	BucketName string `json:"bucket_name"`
}

// Client is an HTTP client for the classification service.
type Client struct {
	baseURL    string
	bucket     string
	httpClient *http.Client
	logger     *logging.Logger
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout replaces the default request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logging.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a classifier client for the service at baseURL that
// reads transcripts from bucket.
func NewClient(baseURL, bucket string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		bucket:  bucket,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify asks the service to classify the transcript stored at key.
// A response without a messages field yields risk.ErrMissingClassification.
func (c *Client) Classify(ctx context.Context, key string) (*risk.ClassificationResponse, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	payload, err := json.Marshal(AnalyzeRequest{S3Path: key, BucketName: c.bucket})
	if err != nil {
		return nil, fmt.Errorf("classifier: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("classifier: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("classifier: analyze failed with status %d: %s", resp.StatusCode, string(body))
	}

	result, err := risk.DecodeClassification(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}

	c.logger.Info("classification received",
		"s3_key", key,
		"messages", len(result.Messages),
		"keywords", len(result.Keywords),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}
