// Package ctxengine builds the bounded message list sent to the model for
// a turn: system prompt injection, long-term memory, mask context, and a
// token-budgeted window of recent history.
package ctxengine

import (
	"time"

	"github.com/parleyhq/parley/internal/template"
	"github.com/parleyhq/parley/internal/token"
	"github.com/parleyhq/parley/pkg/chat"
)

// systemTemplate is the fixed template for the injected system prompt.
const systemTemplate = `You are a large language model assisting a user through a chat interface.
Current model: {{model}}
Current time: {{time}}
Reply in the user's language ({{lang}}) unless asked otherwise.`

// memoryPreamble labels the long-term memory message.
const memoryPreamble = "Here is a recap of the conversation so far, use it as context:\n"

// Assembler builds per-turn model contexts.
type Assembler struct {
	estimator token.Estimator
	lang      string

	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewAssembler creates an Assembler. lang is the locale identifier
// substituted into the system template.
func NewAssembler(estimator token.Estimator, lang string) *Assembler {
	return &Assembler{
		estimator: estimator,
		lang:      lang,
		now:       time.Now,
	}
}

// AssembleForTurn returns the exact payload for the session's next model
// call, in order: injected system prompt, long-term memory message, the
// mask's fixed context, then the most recent non-error messages that fit
// the token ceiling, in chronological order.
//
// Only the recent window is budget-limited; the other segments are sent
// unconditionally. That asymmetry is deliberate.
func (a *Assembler) AssembleForTurn(s *chat.Session) []chat.Message {
	cfg := s.Mask.ModelConfig
	clearIndex := s.ClearContextIndex
	if clearIndex < 0 {
		clearIndex = 0
	}

	var out []chat.Message

	if cfg.InjectSystemPrompts() {
		content := template.Fill("", template.Vars{
			Template: systemTemplate,
			Model:    cfg.Model,
			Lang:     a.lang,
			Now:      a.now(),
		})
		out = append(out, chat.Message{
			ID:      "system-prompt",
			Role:    chat.RoleSystem,
			Content: content,
			Kind:    chat.KindPlain,
		})
	}

	sendLongTerm := cfg.SendMemory && s.MemoryPrompt != "" && s.LastSummarizeIndex > clearIndex
	if sendLongTerm {
		out = append(out, chat.Message{
			ID:      "long-term-memory",
			Role:    chat.RoleSystem,
			Content: memoryPreamble + s.MemoryPrompt,
			Kind:    chat.KindPlain,
		})
	}

	out = append(out, s.Mask.Context...)

	out = append(out, a.recentWindow(s, clearIndex, sendLongTerm)...)

	return out
}

// recentWindow walks messages newest-first from the effective context
// start, skipping error-flagged messages and accumulating estimated cost,
// then restores chronological order. The accumulated cost never exceeds
// the model's token ceiling.
func (a *Assembler) recentWindow(s *chat.Session, clearIndex int, sendLongTerm bool) []chat.Message {
	cfg := s.Mask.ModelConfig
	total := len(s.Messages)

	shortTermStart := total - cfg.HistoryMessageCount
	if shortTermStart < 0 {
		shortTermStart = 0
	}

	memoryStart := shortTermStart
	if sendLongTerm && s.LastSummarizeIndex < memoryStart {
		memoryStart = s.LastSummarizeIndex
	}

	contextStart := memoryStart
	if clearIndex > contextStart {
		contextStart = clearIndex
	}

	maxTokens := cfg.MaxTokensOrDefault()

	var reversed []chat.Message
	tokenCount := 0
	for i := total - 1; i >= contextStart; i-- {
		msg := s.Messages[i]
		if msg.IsError {
			continue
		}
		cost := a.estimator.Estimate(msg.Content)
		if tokenCount+cost > maxTokens {
			break
		}
		tokenCount += cost
		reversed = append(reversed, msg)
	}

	window := make([]chat.Message, len(reversed))
	for i, msg := range reversed {
		window[len(reversed)-1-i] = msg
	}
	return window
}
