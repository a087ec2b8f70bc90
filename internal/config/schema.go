// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for chatmem.
package config

import (
	"gopkg.in/yaml.v3"

	"github.com/flemzord/chatmem/internal/cron"
	"github.com/flemzord/chatmem/internal/memory"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// DataDir holds file-backed stores. Defaults to $XDG_DATA_HOME/chatmem.
	DataDir string `yaml:"data_dir,omitempty"`

	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Memory configures the conversation memory manager.
	Memory memory.Config `yaml:"memory"`

	// Cron schedules the retention and compaction jobs.
	Cron cron.Config `yaml:"cron"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "memory.sqlite").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `yaml:"level"`

	// Format is text or json. Defaults to text.
	Format string `yaml:"format"`

	// Redact scrubs secrets and email addresses from log attributes.
	// Defaults to true.
	Redact *bool `yaml:"redact"`
}

// RedactEnabled reports whether log redaction is on.
func (c LogConfig) RedactEnabled() bool {
	return c.Redact == nil || *c.Redact
}

// TelemetryConfig configures OpenTelemetry trace export.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP/HTTP collector host:port.
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`

	// ServiceName defaults to "chatmem".
	ServiceName string `yaml:"service_name"`

	// SampleRatio is the fraction of traces kept, in [0,1]. Zero means 1.
	SampleRatio float64 `yaml:"sample_ratio"`
}
