package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/parleyhq/parley/internal/ctxengine"
	"github.com/parleyhq/parley/internal/provider"
	"github.com/parleyhq/parley/internal/template"
	"github.com/parleyhq/parley/pkg/chat"
)

// Summarizer reacts to committed assistant turns (topic naming, memory
// compression). Its failures must never surface into the message stream.
type Summarizer interface {
	OnAssistantTurn(ctx context.Context, sessionID string)
}

// NopSummarizer disables summarization.
type NopSummarizer struct{}

// OnAssistantTurn implements Summarizer.
func (NopSummarizer) OnAssistantTurn(context.Context, string) {}

// Service runs chat turns against the current session: template fill,
// context assembly, the streamed model call, and state mutation.
type Service struct {
	store      *Store
	provider   provider.Provider
	assembler  *ctxengine.Assembler
	summarizer Summarizer
	logger     *slog.Logger
	lang       string
	now        func() time.Time
}

// NewService wires a Service. A nil summarizer disables summarization.
func NewService(store *Store, p provider.Provider, assembler *ctxengine.Assembler, summarizer Summarizer, logger *slog.Logger, lang string) *Service {
	if summarizer == nil {
		summarizer = NopSummarizer{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		provider:   p,
		assembler:  assembler,
		summarizer: summarizer,
		logger:     logger.With("component", "chat"),
		lang:       lang,
		now:        time.Now,
	}
}

// Store exposes the underlying session store.
func (s *Service) Store() *Store { return s.store }

// Send runs one user turn against the current session and blocks until
// the streamed response finishes. onDelta, when non-nil, receives the
// cumulative assistant text after each chunk.
//
// All failures terminate as mutated message content; Send itself only
// reports the message IDs involved. Cancelling ctx aborts the stream
// deliberately: the partial content is kept and the message is not
// flagged as an error.
func (s *Service) Send(ctx context.Context, input string, onDelta func(messageID, content string)) (userID, assistantID string) {
	cur := s.store.Current()
	cfg := cur.Mask.ModelConfig

	filled := template.Fill(input, template.Vars{
		Template: cfg.Template,
		Model:    cfg.Model,
		Lang:     s.lang,
		Now:      s.now(),
	})

	userMsg := chat.NewMessage(chat.RoleUser, filled)
	assistantMsg := chat.NewMessage(chat.RoleAssistant, "")
	assistantMsg.Streaming = true
	assistantMsg.Model = cfg.Model

	recent := s.assembler.AssembleForTurn(cur)

	s.store.Update(cur.ID, func(sess *chat.Session) {
		sess.Messages = append(sess.Messages, userMsg, assistantMsg)
		sess.AddCharStat(userMsg)
	})

	req := provider.CompletionRequest{
		Model:    cfg.Model,
		Messages: toLLMMessages(append(recent, userMsg)),
	}

	ch, err := s.provider.Stream(ctx, req)
	if err != nil {
		s.finishWithError(cur.ID, assistantMsg.ID, err)
		return userMsg.ID, assistantMsg.ID
	}

	content := ""
	for chunk := range ch {
		if chunk.Err != nil {
			if provider.IsAbort(chunk.Err) {
				s.finishTurn(cur.ID, assistantMsg.ID)
				return userMsg.ID, assistantMsg.ID
			}
			s.finishWithError(cur.ID, assistantMsg.ID, chunk.Err)
			return userMsg.ID, assistantMsg.ID
		}
		content += chunk.Content
		delivered := s.store.UpdateMessage(cur.ID, assistantMsg.ID, func(m *chat.Message) {
			m.Content = content
		})
		if !delivered {
			// Session was deleted mid-stream; drop the rest of the turn.
			s.logger.Debug("dropping stream for deleted session", "session", cur.ID)
			return userMsg.ID, assistantMsg.ID
		}
		if onDelta != nil {
			onDelta(assistantMsg.ID, content)
		}
	}

	s.finishTurn(cur.ID, assistantMsg.ID)
	go s.summarizer.OnAssistantTurn(context.WithoutCancel(ctx), cur.ID)
	return userMsg.ID, assistantMsg.ID
}

// PrepareTaskTurn appends a user command message and a streaming
// assistant placeholder for an image-generation task, returning the
// stable handles the task controller needs.
func (s *Service) PrepareTaskTurn(input string) (sessionID, messageID string) {
	cur := s.store.Current()

	userMsg := chat.NewMessage(chat.RoleUser, input)
	placeholder := chat.NewMessage(chat.RoleAssistant, "Submitting the generation task...")
	placeholder.Streaming = true
	placeholder.Kind = chat.KindGenerationTask
	placeholder.Task = &chat.TaskInfo{}

	s.store.Update(cur.ID, func(sess *chat.Session) {
		sess.Messages = append(sess.Messages, userMsg, placeholder)
		sess.AddCharStat(userMsg)
	})
	return cur.ID, placeholder.ID
}

// finishTurn commits a successfully (or deliberately aborted) streamed
// assistant message.
func (s *Service) finishTurn(sessionID, messageID string) {
	s.store.UpdateMessage(sessionID, messageID, func(m *chat.Message) {
		m.Streaming = false
		m.Date = s.now().Format(chat.DateLayout)
	})
	s.store.Update(sessionID, func(sess *chat.Session) {
		for i := range sess.Messages {
			if sess.Messages[i].ID == messageID {
				sess.AddCharStat(sess.Messages[i])
				return
			}
		}
	})
}

// finishWithError renders a failure into the assistant message.
func (s *Service) finishWithError(sessionID, messageID string, err error) {
	s.logger.Error("chat turn failed", "session", sessionID, "error", err)
	s.store.UpdateMessage(sessionID, messageID, func(m *chat.Message) {
		m.Content = "The request failed: " + err.Error()
		m.Streaming = false
		m.IsError = true
	})
}

// toLLMMessages converts chat messages to the upstream wire shape.
func toLLMMessages(messages []chat.Message) []provider.LLMMessage {
	out := make([]provider.LLMMessage, len(messages))
	for i, m := range messages {
		out[i] = provider.LLMMessage{
			Role:    provider.MessageRole(m.Role),
			Content: m.Content,
		}
	}
	return out
}
