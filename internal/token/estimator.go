// Package token provides fast, approximate token-count estimation used
// for context budget decisions. Callers treat results as a heuristic only.
package token

import "github.com/parleyhq/parley/pkg/chat"

// Estimator estimates the token count of a string.
type Estimator interface {
	Estimate(text string) int
}

// CharEstimator estimates tokens using a simple characters-per-token ratio.
// A ratio of ~4 works well for English; ~3 for other Latin languages.
type CharEstimator struct {
	CharsPerToken float64
}

// NewCharEstimator creates a CharEstimator with the given ratio.
// If charsPerToken is <= 0, defaults to 4.0.
func NewCharEstimator(charsPerToken float64) *CharEstimator {
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	return &CharEstimator{CharsPerToken: charsPerToken}
}

// Estimate returns the estimated token count for the given text.
// Rounds up so budgets are never underestimated.
func (e *CharEstimator) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := float64(len(text)) / e.CharsPerToken
	return int(tokens) + 1
}

// messageOverhead approximates per-message role and framing tokens.
const messageOverhead = 4

// EstimateMessage returns the estimated cost of one message including
// its framing overhead.
func EstimateMessage(est Estimator, msg chat.Message) int {
	return messageOverhead + est.Estimate(msg.Content)
}

// EstimateMessages returns the total estimated tokens for a message slice.
func EstimateMessages(est Estimator, messages []chat.Message) int {
	total := 0
	for i := range messages {
		total += EstimateMessage(est, messages[i])
	}
	return total
}
