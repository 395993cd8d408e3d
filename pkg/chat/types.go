// Package chat defines the conversation data contract shared by the
// session store, context engine, and gateway: messages, sessions, masks,
// and per-session model configuration.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the sender of a message.
type Role string

// Role constants for conversation messages.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageKind discriminates the variant carried by a Message.
type MessageKind string

// Supported message kinds.
const (
	// KindPlain is an ordinary chat message.
	KindPlain MessageKind = "plain"
	// KindGenerationTask is a message bound to a remote image-generation
	// task; its Task field is populated.
	KindGenerationTask MessageKind = "generationTask"
)

// TaskInfo holds the remote image-generation task state attached to a
// KindGenerationTask message.
type TaskInfo struct {
	TaskID   string `json:"task_id,omitempty"`
	Status   string `json:"status,omitempty"`
	Action   string `json:"action,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Finished bool   `json:"finished,omitempty"`
}

// DateLayout is the display format for message timestamps.
const DateLayout = "2006/01/02 15:04:05"

// Message is a single conversation entry. ID is set once at creation and
// never reassigned; Content is mutated in place while a response streams.
type Message struct {
	ID        string      `json:"id"`
	Role      Role        `json:"role"`
	Content   string      `json:"content"`
	Date      string      `json:"date"`
	Streaming bool        `json:"streaming,omitempty"`
	IsError   bool        `json:"is_error,omitempty"`
	Model     string      `json:"model,omitempty"`
	Kind      MessageKind `json:"kind,omitempty"`
	Task      *TaskInfo   `json:"task,omitempty"`
}

// NewMessage creates a plain message with a fresh collision-resistant ID
// and the current wall clock as its display timestamp.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:      uuid.NewString(),
		Role:    role,
		Content: content,
		Date:    time.Now().Format(DateLayout),
		Kind:    KindPlain,
	}
}

// ChatStat tracks rolling per-session counters. Only CharCount is
// actively maintained; TokenCount and WordCount are reserved fields.
type ChatStat struct {
	TokenCount int `json:"token_count"`
	WordCount  int `json:"word_count"`
	CharCount  int `json:"char_count"`
}

// ModelConfig holds the per-session model parameters.
type ModelConfig struct {
	Model                          string `json:"model"`
	Template                       string `json:"template,omitempty"`
	MaxTokens                      int    `json:"max_tokens"`
	HistoryMessageCount            int    `json:"history_message_count"`
	CompressMessageLengthThreshold int    `json:"compress_message_length_threshold"`
	SendMemory                     bool   `json:"send_memory"`

	// EnableInjectSystemPrompts is a pointer so that state migration can
	// distinguish "explicitly false" from "absent" in persisted sessions.
	EnableInjectSystemPrompts *bool `json:"enable_inject_system_prompts,omitempty"`
}

// fallbackMaxTokens is used when MaxTokens is unset.
const fallbackMaxTokens = 4000

// MaxTokensOrDefault returns MaxTokens, or 4000 when unset.
func (c ModelConfig) MaxTokensOrDefault() int {
	if c.MaxTokens <= 0 {
		return fallbackMaxTokens
	}
	return c.MaxTokens
}

// InjectSystemPrompts reports whether the system prompt should be
// injected, defaulting to true when the field was never set.
func (c ModelConfig) InjectSystemPrompts() bool {
	if c.EnableInjectSystemPrompts == nil {
		return true
	}
	return *c.EnableInjectSystemPrompts
}

// Bool returns a pointer to b, for optional config fields.
func Bool(b bool) *bool { return &b }

// DefaultModelConfig returns the global model defaults used to seed new
// sessions and to backfill migrated state.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Model:                          "gpt-4o-mini",
		MaxTokens:                      4000,
		HistoryMessageCount:            4,
		CompressMessageLengthThreshold: 1000,
		SendMemory:                     true,
		EnableInjectSystemPrompts:      Bool(true),
	}
}

// Mask is a named, reusable bundle of model configuration and fixed
// context messages, used as a template for new sessions.
type Mask struct {
	Name        string      `json:"name"`
	ModelConfig ModelConfig `json:"model_config"`
	Context     []Message   `json:"context,omitempty"`
}

// DefaultTopic is the placeholder title a session carries until the
// summarizer names it.
const DefaultTopic = "New Conversation"

// Session is one conversation thread. It exclusively owns its message
// list and mask; messages are kept in insertion order and never reordered.
type Session struct {
	ID                 string    `json:"id"`
	Topic              string    `json:"topic"`
	MemoryPrompt       string    `json:"memory_prompt"`
	Messages           []Message `json:"messages"`
	Stat               ChatStat  `json:"stat"`
	LastUpdate         time.Time `json:"last_update"`
	LastSummarizeIndex int       `json:"last_summarize_index"`
	ClearContextIndex  int       `json:"clear_context_index,omitempty"`
	Mask               Mask      `json:"mask"`
}

// NewSession creates an empty session seeded with the given defaults.
func NewSession(defaults ModelConfig) *Session {
	return &Session{
		ID:         uuid.NewString(),
		Topic:      DefaultTopic,
		Messages:   []Message{},
		LastUpdate: time.Now(),
		Mask: Mask{
			Name:        DefaultTopic,
			ModelConfig: defaults,
		},
	}
}

// NewSessionFromMask creates a session seeded from a mask template. The
// mask is deep-copied so the session owns its context messages.
func NewSessionFromMask(mask Mask) *Session {
	s := &Session{
		ID:         uuid.NewString(),
		Topic:      mask.Name,
		Messages:   []Message{},
		LastUpdate: time.Now(),
		Mask:       mask.Clone(),
	}
	return s
}

// Clone returns a deep copy of the mask.
func (m Mask) Clone() Mask {
	out := m
	out.Context = make([]Message, len(m.Context))
	copy(out.Context, m.Context)
	return out
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	out := *s
	out.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		out.Messages[i] = m
		if m.Task != nil {
			t := *m.Task
			out.Messages[i].Task = &t
		}
	}
	out.Mask = s.Mask.Clone()
	return &out
}

// AddCharStat updates the rolling character counter for a committed
// message. Token and word counters are intentionally left untouched.
func (s *Session) AddCharStat(msg Message) {
	s.Stat.CharCount += len(msg.Content)
}
