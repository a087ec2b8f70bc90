package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flemzord/chatmem/internal/core"
)

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present, checks that
// all referenced module IDs exist in the registry, and that at most one
// persistence backend is configured.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	if backends := Backends(cfg); len(backends) > 1 {
		errs = append(errs, fmt.Errorf("config: only one persistence backend may be configured, got %s",
			strings.Join(backends, ", ")))
	}

	errs = append(errs, validateLog(cfg.Log)...)
	errs = append(errs, validateTelemetry(cfg.Telemetry)...)

	if err := cfg.Memory.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: memory: %w", err))
	}

	if err := cfg.Cron.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}

	return errors.Join(errs...)
}

func validateLog(c LogConfig) []error {
	var errs []error
	switch strings.ToLower(c.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("config: log.level %q is not one of debug, info, warn, error", c.Level))
	}
	switch strings.ToLower(c.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: log.format %q is not one of text, json", c.Format))
	}
	return errs
}

func validateTelemetry(c TelemetryConfig) []error {
	var errs []error
	if c.Enabled && c.Endpoint == "" {
		errs = append(errs, errors.New("config: telemetry.endpoint is required when telemetry is enabled"))
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("config: telemetry.sample_ratio must be within [0,1], got %g", c.SampleRatio))
	}
	return errs
}
