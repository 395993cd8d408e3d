// Package summarize decides when to name a session's topic and when to
// compress older history into the long-term memory prompt, and applies
// streamed results back into session state.
package summarize

import (
	"context"
	"log/slog"
	"strings"

	"github.com/parleyhq/parley/internal/provider"
	"github.com/parleyhq/parley/internal/token"
	"github.com/parleyhq/parley/pkg/chat"
)

// topicTokenThreshold is the minimum estimated session size before a
// topic name is generated.
const topicTokenThreshold = 50

const topicPrompt = "Summarize our conversation as a short topic of at most ten words. Output the topic only, with no punctuation, quotes, or explanation."

const summarizePrompt = "Summarize the discussion briefly in 200 words or less to use as a prompt for future context."

// Store is the slice of the session store the controller needs: fresh
// reads and addressed mutations.
type Store interface {
	Get(sessionID string) (*chat.Session, bool)
	Update(sessionID string, fn func(*chat.Session)) bool
}

// Controller reacts to committed assistant turns. All of its failures are
// logged and swallowed; they never touch the visible message stream.
type Controller struct {
	store     Store
	provider  provider.Provider
	estimator token.Estimator
	logger    *slog.Logger
	autoTitle bool
}

// NewController wires a Controller. autoTitle enables topic naming.
func NewController(store Store, p provider.Provider, estimator token.Estimator, logger *slog.Logger, autoTitle bool) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:     store,
		provider:  p,
		estimator: estimator,
		logger:    logger.With("component", "summarize"),
		autoTitle: autoTitle,
	}
}

// OnAssistantTurn runs both independent decisions for the session.
func (c *Controller) OnAssistantTurn(ctx context.Context, sessionID string) {
	c.nameTopic(ctx, sessionID)
	c.compressMemory(ctx, sessionID)
}

// nameTopic issues a one-shot non-streamed call asking for a short topic
// once the session has grown past the threshold.
func (c *Controller) nameTopic(ctx context.Context, sessionID string) {
	if !c.autoTitle {
		return
	}
	sess, ok := c.store.Get(sessionID)
	if !ok || sess.Topic != chat.DefaultTopic {
		return
	}
	if token.EstimateMessages(c.estimator, sess.Messages) < topicTokenThreshold {
		return
	}

	messages := toLLMMessages(sess.Messages)
	messages = append(messages, provider.LLMMessage{
		Role:    provider.MessageRoleUser,
		Content: topicPrompt,
	})

	resp, err := c.provider.Complete(ctx, provider.CompletionRequest{Messages: messages})
	if err != nil {
		c.logger.Warn("topic naming failed", "session", sessionID, "error", err)
		return
	}

	topic := strings.TrimSpace(resp.Content)
	if topic == "" {
		topic = chat.DefaultTopic
	}
	c.store.Update(sessionID, func(s *chat.Session) {
		s.Topic = topic
	})
}

// compressMemory summarizes history growth into the memory prompt. Each
// streamed update overwrites the prompt in place (last write wins); on
// completion the summarize index advances to the message count observed
// when compression was initiated, so messages appended mid-flight are not
// lost.
func (c *Controller) compressMemory(ctx context.Context, sessionID string) {
	sess, ok := c.store.Get(sessionID)
	if !ok {
		return
	}
	cfg := sess.Mask.ModelConfig

	start := sess.LastSummarizeIndex
	if sess.ClearContextIndex > start {
		start = sess.ClearContextIndex
	}
	if start > len(sess.Messages) {
		start = len(sess.Messages)
	}

	var tail []chat.Message
	for _, m := range sess.Messages[start:] {
		if !m.IsError {
			tail = append(tail, m)
		}
	}

	if token.EstimateMessages(c.estimator, tail) > cfg.MaxTokensOrDefault() {
		if keep := cfg.HistoryMessageCount; keep > 0 && len(tail) > keep {
			tail = tail[len(tail)-keep:]
		}
	}

	cost := token.EstimateMessages(c.estimator, tail)
	if cost <= cfg.CompressMessageLengthThreshold || !cfg.SendMemory {
		return
	}

	// Prepend the current memory prompt for continuity.
	if sess.MemoryPrompt != "" {
		tail = append([]chat.Message{{
			Role:    chat.RoleSystem,
			Content: sess.MemoryPrompt,
		}}, tail...)
	}

	initiatedCount := len(sess.Messages)

	messages := toLLMMessages(tail)
	messages = append(messages, provider.LLMMessage{
		Role:    provider.MessageRoleUser,
		Content: summarizePrompt,
	})

	ch, err := c.provider.Stream(ctx, provider.CompletionRequest{Messages: messages})
	if err != nil {
		c.logger.Warn("memory compression failed", "session", sessionID, "error", err)
		return
	}

	var b strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			c.logger.Warn("memory compression stream failed", "session", sessionID, "error", chunk.Err)
			return
		}
		b.WriteString(chunk.Content)
		summary := b.String()
		if !c.store.Update(sessionID, func(s *chat.Session) {
			s.MemoryPrompt = summary
		}) {
			return
		}
	}

	c.store.Update(sessionID, func(s *chat.Session) {
		s.MemoryPrompt = b.String()
		s.LastSummarizeIndex = initiatedCount
	})
}

func toLLMMessages(messages []chat.Message) []provider.LLMMessage {
	out := make([]provider.LLMMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, provider.LLMMessage{
			Role:    provider.MessageRole(m.Role),
			Content: m.Content,
		})
	}
	return out
}
