package config

import (
	"errors"
	"fmt"
	"log/slog"
)

// Validate checks the structural validity of a Config. All problems are
// reported at once.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LLM.BaseURL == "" {
		errs = append(errs, errors.New("config: llm.base_url is required"))
	}
	if cfg.LLM.Model == "" {
		errs = append(errs, errors.New("config: llm.model is required"))
	}
	if cfg.Midjourney != nil && cfg.Midjourney.BaseURL == "" {
		errs = append(errs, errors.New("config: midjourney.base_url is required when midjourney is configured"))
	}
	if cfg.Storage.Path == "" {
		errs = append(errs, errors.New("config: storage.path is required"))
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		errs = append(errs, errors.New("config: telemetry.endpoint is required when telemetry is enabled"))
	}
	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ParseLevel maps the configured log level onto slog. Empty means info.
func ParseLevel(level string) (slog.Level, error) {
	switch level {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("config: unknown log level %q", level)
	}
}
