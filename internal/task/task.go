// Package task manages asynchronous image-generation jobs: submission to
// the remote API, a fixed-delay polling loop, and the mapping of remote
// task status onto chat message content.
package task

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Supported task actions.
const (
	ActionImagine   = "IMAGINE"
	ActionDescribe  = "DESCRIBE"
	ActionBlend     = "BLEND"
	ActionUpscale   = "UPSCALE"
	ActionVariation = "VARIATION"
	ActionReroll    = "REROLL"
)

// Remote task statuses. Unknown strings are passed through as display
// states, not treated as errors.
const (
	StatusNotStart   = "NOT_START"
	StatusSubmitted  = "SUBMITTED"
	StatusInProgress = "IN_PROGRESS"
	StatusSuccess    = "SUCCESS"
	StatusFailure    = "FAILURE"
)

// Validation errors, surfaced as message content and never thrown to the
// caller.
var (
	ErrUnknownAction   = errors.New("task: unknown action")
	ErrBlendImageCount = errors.New("task: blend requires between 2 and 5 images")
	ErrMissingTarget   = errors.New("task: action requires an index and a task id")
	ErrEmptyPrompt     = errors.New("task: empty prompt")
)

// IsTerminal reports whether the status ends the polling loop.
func IsTerminal(status string) bool {
	return status == StatusSuccess || status == StatusFailure
}

// Request describes one submission.
type Request struct {
	Action string
	// Prompt is the text prompt for IMAGINE.
	Prompt string
	// Images carries base64 source images for DESCRIBE (one) and BLEND
	// (two to five).
	Images []string
	// Index and TargetTaskID reference an earlier task for UPSCALE,
	// VARIATION, and REROLL.
	Index        int
	TargetTaskID string
}

// Validate checks the request against the action allow-list before any
// network call.
func (r Request) Validate() error {
	switch r.Action {
	case ActionImagine:
		if strings.TrimSpace(r.Prompt) == "" {
			return ErrEmptyPrompt
		}
	case ActionDescribe:
		if len(r.Images) != 1 {
			return fmt.Errorf("task: describe requires exactly one image")
		}
	case ActionBlend:
		if len(r.Images) < 2 || len(r.Images) > 5 {
			return ErrBlendImageCount
		}
	case ActionUpscale, ActionVariation, ActionReroll:
		if r.Index < 1 || r.TargetTaskID == "" {
			return ErrMissingTarget
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, r.Action)
	}
	return nil
}

// ParseCommand parses the "ACTION::arg::arg" command syntax used by the
// chat input, e.g. "IMAGINE::a red bicycle" or "UPSCALE::2::1689231...".
// Images are attached separately and are not part of the command text.
func ParseCommand(raw string, images []string) (Request, error) {
	parts := strings.Split(strings.TrimSpace(raw), "::")
	action := strings.ToUpper(strings.TrimSpace(parts[0]))

	req := Request{Action: action, Images: images}

	switch action {
	case ActionImagine:
		if len(parts) > 1 {
			req.Prompt = strings.TrimSpace(strings.Join(parts[1:], "::"))
		}
	case ActionDescribe, ActionBlend:
		// No textual arguments.
	case ActionUpscale, ActionVariation, ActionReroll:
		if len(parts) < 3 {
			return req, ErrMissingTarget
		}
		index, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return req, fmt.Errorf("%w: bad index %q", ErrMissingTarget, parts[1])
		}
		req.Index = index
		req.TargetTaskID = strings.TrimSpace(parts[2])
	default:
		return req, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}
