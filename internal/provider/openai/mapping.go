package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/parleyhq/parley/internal/provider"
)

// chatRequest is the wire format for POST /chat/completions.
type chatRequest struct {
	Model       string                `json:"model"`
	Messages    []provider.LLMMessage `json:"messages"`
	MaxTokens   int                   `json:"max_tokens,omitempty"`
	Temperature *float64              `json:"temperature,omitempty"`
	Stream      bool                  `json:"stream,omitempty"`
}

// chatResponse is the wire format of a non-streaming completion response.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// chatStreamChunk is the wire format of one SSE data line.
type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// errorResponse is the wire format of an upstream error body.
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// fromResponse converts a wire response into a provider response.
func fromResponse(resp *chatResponse) provider.CompletionResponse {
	out := provider.CompletionResponse{}
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
	}
	if resp.Usage != nil {
		out.Usage = provider.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return out
}

// mapHTTPError maps a non-2xx status to a provider error, preserving the
// upstream message when the body parses.
func mapHTTPError(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	detail := ""
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		detail = ": " + parsed.Error.Message
	}

	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w%s", provider.ErrRateLimit, detail)
	case status == http.StatusBadRequest && isContextLength(parsed):
		return fmt.Errorf("%w%s", provider.ErrContextLength, detail)
	case status >= 500:
		return fmt.Errorf("%w: status %d%s", provider.ErrUpstreamDown, status, detail)
	default:
		return fmt.Errorf("openai: upstream status %d%s", status, detail)
	}
}

// isContextLength reports whether the parsed error indicates a context
// window overflow.
func isContextLength(resp errorResponse) bool {
	if code, ok := resp.Error.Code.(string); ok && code == "context_length_exceeded" {
		return true
	}
	return false
}

// mapConnectionError maps transport-level failures to provider errors.
// Context cancellation passes through unchanged so callers can tell a
// deliberate abort from a genuine upstream failure.
func mapConnectionError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", provider.ErrUpstreamDown, err)
	}
	return err
}
