package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/gaia/internal/observe"
	"github.com/MrWong99/gaia/pkg/types"
)

// maxResponseBytes caps how much of a remote response body is read.
const maxResponseBytes = 1 << 20

// Client is an [Analyzer] that delegates to a remote Gaia server's
// /analyze-opportunities endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	timeout  time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithClientTimeout bounds every request. Non-positive values select
// DefaultTimeout.
func WithClientTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient returns a Client for the server at baseURL, e.g.
// "http://localhost:8080".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: strings.TrimRight(baseURL, "/") + "/analyze-opportunities",
		http:     http.DefaultClient,
		timeout:  DefaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Analyze implements [Analyzer]. Any transport, status or decoding failure is
// logged and yields no cards.
func (c *Client) Analyze(ctx context.Context, transcript string) []types.OpportunityCard {
	if strings.TrimSpace(transcript) == "" {
		return nil
	}
	cards, err := c.fetch(ctx, transcript)
	if err != nil {
		observe.Logger(ctx).Warn("remote opportunity analysis failed", "endpoint", c.endpoint, "err", err)
		return nil
	}
	return cards
}

func (c *Client) fetch(ctx context.Context, transcript string) ([]types.OpportunityCard, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{"transcript": transcript})
	if err != nil {
		return nil, fmt.Errorf("analyzer: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("analyzer: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyzer: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analyzer: unexpected status %s", resp.Status)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("analyzer: read response: %w", err)
	}
	return Validate(raw)
}

var _ Analyzer = (*Client)(nil)
