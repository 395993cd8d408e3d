package provider

import (
	"context"
	"errors"
)

// Sentinel errors for provider operations.
var (
	// ErrRateLimit indicates the upstream returned a rate limit response.
	ErrRateLimit = errors.New("provider rate limited")

	// ErrContextLength indicates the request exceeded the model's context window.
	ErrContextLength = errors.New("context length exceeded")

	// ErrUpstreamDown indicates the upstream is temporarily unavailable.
	ErrUpstreamDown = errors.New("upstream unavailable")
)

// IsAbort reports whether the error stems from a deliberate caller-side
// abort (context cancellation) rather than a genuine upstream failure.
// Aborted responses keep their partial content and are not flagged as errors.
func IsAbort(err error) bool {
	return errors.Is(err, context.Canceled)
}
