// Package openai implements the provider interface over any
// OpenAI-compatible chat completion endpoint.
package openai

import (
	"errors"
	"strings"
	"time"
)

// Config holds the upstream connection settings.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.openai.com/v1".
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates requests. May be empty for local upstreams.
	APIKey string `yaml:"api_key"`

	// Model is the default model identifier.
	Model string `yaml:"model"`

	// MaxTokens is the default completion token cap. Zero means unset.
	MaxTokens int `yaml:"max_tokens"`

	// Timeout bounds non-streaming requests. Defaults to 60s.
	Timeout time.Duration `yaml:"timeout"`
}

// defaults fills zero-valued fields in place.
func (c *Config) defaults() {
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
}

// validate reports configuration errors.
func (c *Config) validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("openai: base_url is required"))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("openai: model is required"))
	}
	return errors.Join(errs...)
}
