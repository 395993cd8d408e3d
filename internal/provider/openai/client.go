package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/parleyhq/parley/internal/provider"
)

// maxResponseSize is the maximum response body size (10 MB).
// Protects against OOM from malformed or huge responses.
const maxResponseSize = 10 * 1024 * 1024

// streamChannelBuffer is the buffer size for the streaming channel.
const streamChannelBuffer = 64

// Client is an OpenAI-compatible chat completion provider.
type Client struct {
	config  Config
	headers provider.HeaderBuilder

	// client bounds non-streaming calls; streamClient has no timeout
	// because a stream legitimately outlives any fixed deadline.
	client       *http.Client
	streamClient *http.Client
}

// New creates a Client from the given config. A nil headers builder
// falls back to bearer auth from the config key.
func New(cfg Config, headers provider.HeaderBuilder) (*Client, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if headers == nil {
		headers = provider.BearerHeaders(cfg.APIKey)
	}
	return &Client{
		config:       cfg,
		headers:      headers,
		client:       &http.Client{Timeout: cfg.Timeout},
		streamClient: &http.Client{},
	}, nil
}

// buildChatRequest creates a wire request, merging request-level
// overrides with config defaults.
func (c *Client) buildChatRequest(req provider.CompletionRequest, stream bool) chatRequest {
	cr := chatRequest{
		Model:    c.config.Model,
		Messages: req.Messages,
		Stream:   stream,
	}

	if req.Model != "" {
		cr.Model = req.Model
	}

	switch {
	case req.MaxTokens > 0:
		cr.MaxTokens = req.MaxTokens
	case c.config.MaxTokens > 0:
		cr.MaxTokens = c.config.MaxTokens
	}

	if req.Temperature != nil {
		cr.Temperature = req.Temperature
	}

	return cr
}

// newHTTPRequest creates an authenticated HTTP request for the upstream API.
func (c *Client) newHTTPRequest(ctx context.Context, path string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}

	c.headers(httpReq.Header.Set)

	return httpReq, nil
}

// Complete sends a non-streaming completion request and returns the full response.
func (c *Client) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	httpReq, err := c.newHTTPRequest(ctx, "/chat/completions", c.buildChatRequest(req, false))
	if err != nil {
		return provider.CompletionResponse{}, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return provider.CompletionResponse{}, mapConnectionError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return provider.CompletionResponse{}, fmt.Errorf("openai: read response: %w", err)
	}

	if httpErr := mapHTTPError(resp.StatusCode, body); httpErr != nil {
		return provider.CompletionResponse{}, httpErr
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return provider.CompletionResponse{}, fmt.Errorf("openai: unmarshal response: %w", err)
	}

	return fromResponse(&parsed), nil
}

// Stream sends a streaming completion request and returns a channel of chunks.
// Initial connection errors are returned directly. Mid-stream errors are
// delivered via StreamChunk.Err.
func (c *Client) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	httpReq, err := c.newHTTPRequest(ctx, "/chat/completions", c.buildChatRequest(req, true))
	if err != nil {
		return nil, err
	}

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return nil, mapConnectionError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		return nil, mapHTTPError(resp.StatusCode, body)
	}

	ch := make(chan provider.StreamChunk, streamChannelBuffer)
	go readStream(ctx, resp.Body, ch)

	return ch, nil
}

// ModelName returns the configured model identifier.
func (c *Client) ModelName() string {
	return c.config.Model
}

// Compile-time interface check.
var _ provider.Provider = (*Client)(nil)
