// Package provider defines the interface for communicating with an
// OpenAI-compatible chat completion API. Concrete implementations live in
// subpackages (e.g. provider/openai).
package provider

import "context"

// Provider is the interface for communicating with an LLM.
type Provider interface {
	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// Stream sends a completion request and returns a channel of chunks.
	// Initial connection errors are returned directly. Mid-stream errors
	// are delivered via StreamChunk.Err. The channel is closed when the
	// stream ends; a close without a preceding Err chunk means success.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)

	// ModelName returns the identifier of the underlying model.
	ModelName() string
}

// HeaderBuilder supplies auth/identity headers for outbound requests.
// Callers invoke it once per request; its contents are opaque to them.
type HeaderBuilder func(set func(key, value string))

// BearerHeaders returns a HeaderBuilder that sets a JSON content type and,
// when the key is non-empty, a Bearer Authorization header.
func BearerHeaders(apiKey string) HeaderBuilder {
	return func(set func(key, value string)) {
		set("Content-Type", "application/json")
		if apiKey != "" {
			set("Authorization", "Bearer "+apiKey)
		}
	}
}
