package gateway

import "time"

// Config holds the HTTP gateway settings.
type Config struct {
	// Bind is the listen address. Defaults to loopback.
	Bind string `yaml:"bind"`

	// AuthToken protects the API when non-empty. The /health and /metrics
	// endpoints stay public.
	AuthToken string `yaml:"auth_token"`

	// ReadTimeout bounds request reads. Zero disables it; the chat
	// websocket needs long-lived connections.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8998"
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}
