// Package config handles YAML configuration loading, environment
// variable expansion, and structural validation for parley.
package config

import (
	"github.com/parleyhq/parley/internal/gateway"
	"github.com/parleyhq/parley/internal/provider/openai"
	"github.com/parleyhq/parley/internal/task"
	"github.com/parleyhq/parley/internal/telemetry"
	"github.com/parleyhq/parley/pkg/chat"
)

// Config is the top-level configuration structure.
type Config struct {
	// Gateway configures the HTTP surface.
	Gateway gateway.Config `yaml:"gateway"`

	// LLM configures the chat completion backend.
	LLM openai.Config `yaml:"llm"`

	// Midjourney configures the image-generation backend. Optional; when
	// absent the task routes are disabled.
	Midjourney *task.ClientConfig `yaml:"midjourney,omitempty"`

	// Chat holds the conversation defaults applied to new sessions.
	Chat ChatConfig `yaml:"chat"`

	// Storage configures state persistence.
	Storage StorageConfig `yaml:"storage"`

	// Autosave configures the periodic state snapshot.
	Autosave AutosaveConfig `yaml:"autosave"`

	// Telemetry configures tracing.
	Telemetry telemetry.Config `yaml:"telemetry"`

	// Log configures logging.
	Log LogConfig `yaml:"log"`
}

// ChatConfig holds the global conversation defaults.
type ChatConfig struct {
	// Language is injected into prompt templates, e.g. "en".
	Language string `yaml:"language"`

	// AutoGenerateTitle enables model-generated session topics.
	AutoGenerateTitle *bool `yaml:"auto_generate_title"`

	// MaxTokens bounds the assembled context window.
	MaxTokens int `yaml:"max_tokens"`

	// HistoryMessageCount is the short-term window size.
	HistoryMessageCount int `yaml:"history_message_count"`

	// CompressMessageLengthThreshold is the token cost above which
	// history is compressed into long-term memory.
	CompressMessageLengthThreshold int `yaml:"compress_message_length_threshold"`

	// SendMemory includes compressed long-term memory in context.
	SendMemory *bool `yaml:"send_memory"`

	// InjectSystemPrompts injects the default system prompt.
	InjectSystemPrompts *bool `yaml:"inject_system_prompts"`

	// Template is the user input template; empty means passthrough.
	Template string `yaml:"template"`
}

// AutoTitle reports whether topic generation is on, defaulting to true.
func (c ChatConfig) AutoTitle() bool {
	return c.AutoGenerateTitle == nil || *c.AutoGenerateTitle
}

// ModelConfig converts the chat defaults into the per-session shape,
// filling unset fields from the built-in defaults.
func (c ChatConfig) ModelConfig(model string) chat.ModelConfig {
	out := chat.DefaultModelConfig()
	if model != "" {
		out.Model = model
	}
	if c.Template != "" {
		out.Template = c.Template
	}
	if c.MaxTokens > 0 {
		out.MaxTokens = c.MaxTokens
	}
	if c.HistoryMessageCount > 0 {
		out.HistoryMessageCount = c.HistoryMessageCount
	}
	if c.CompressMessageLengthThreshold > 0 {
		out.CompressMessageLengthThreshold = c.CompressMessageLengthThreshold
	}
	if c.SendMemory != nil {
		out.SendMemory = *c.SendMemory
	}
	if c.InjectSystemPrompts != nil {
		out.EnableInjectSystemPrompts = chat.Bool(*c.InjectSystemPrompts)
	}
	return out
}

// StorageConfig configures state persistence.
type StorageConfig struct {
	// Path is the SQLite database file.
	Path string `yaml:"path"`
}

// AutosaveConfig configures the periodic state snapshot.
type AutosaveConfig struct {
	// Schedule is a five-field cron expression. Empty uses the default.
	Schedule string `yaml:"schedule"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn, or error. Defaults to info.
	Level string `yaml:"level"`
}
