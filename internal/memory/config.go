package memory

import (
	"errors"
	"fmt"
	"time"

	ctxengine "github.com/flemzord/chatmem/internal/context"
)

// Config holds the memory manager configuration.
type Config struct {
	// Context carries the compaction and usage knobs; its keys are inlined
	// into the memory section of the config file.
	Context ctxengine.Config `yaml:",inline"`

	// AutoCompress compresses synchronously inside AddMessage once the
	// token count crosses the threshold. Defaults to true.
	AutoCompress *bool `yaml:"auto_compress"`

	// Caps for the append-only context lists. The oldest entry is evicted
	// once a list is full. Zero means the default (50, or 20 for challenges).
	MaxInsights   int `yaml:"max_insights"`
	MaxActions    int `yaml:"max_actions"`
	MaxResearch   int `yaml:"max_research"`
	MaxChallenges int `yaml:"max_challenges"`

	// ArchiveAfterDays marks conversations idle this long as inactive.
	// Negative disables archiving.
	ArchiveAfterDays int `yaml:"archive_after_days"`

	// RetentionDays deletes archived conversations idle this long.
	// Negative disables deletion.
	RetentionDays int `yaml:"retention_days"`

	// DefaultListLimit bounds UserConversations when the caller passes 0.
	DefaultListLimit int `yaml:"default_list_limit"`

	// IncludeNextActions adds next actions to the rendered context block.
	IncludeNextActions bool `yaml:"include_next_actions"`

	// Breaker, when set, wraps the persistence backend in a circuit breaker.
	Breaker *BreakerConfig `yaml:"breaker"`
}

// withDefaults returns a copy of cfg with zero-valued fields replaced.
func (cfg Config) withDefaults() Config {
	cfg.Context = cfg.Context.WithDefaults()
	if cfg.AutoCompress == nil {
		t := true
		cfg.AutoCompress = &t
	}
	if cfg.MaxInsights == 0 {
		cfg.MaxInsights = 50
	}
	if cfg.MaxActions == 0 {
		cfg.MaxActions = 50
	}
	if cfg.MaxResearch == 0 {
		cfg.MaxResearch = 50
	}
	if cfg.MaxChallenges == 0 {
		cfg.MaxChallenges = 20
	}
	if cfg.ArchiveAfterDays == 0 {
		cfg.ArchiveAfterDays = 7
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = 30
	}
	if cfg.DefaultListLimit == 0 {
		cfg.DefaultListLimit = 50
	}
	return cfg
}

func (cfg Config) autoCompress() bool {
	return cfg.AutoCompress == nil || *cfg.AutoCompress
}

func (cfg Config) archiveAfter() time.Duration {
	return time.Duration(cfg.ArchiveAfterDays) * 24 * time.Hour
}

func (cfg Config) retention() time.Duration {
	return time.Duration(cfg.RetentionDays) * 24 * time.Hour
}

// Validate checks the configuration for values that cannot work.
func (cfg Config) Validate() error {
	var errs []error
	if err := cfg.Context.Validate(); err != nil {
		errs = append(errs, err)
	}
	for name, v := range map[string]int{
		"max_insights":       cfg.MaxInsights,
		"max_actions":        cfg.MaxActions,
		"max_research":       cfg.MaxResearch,
		"max_challenges":     cfg.MaxChallenges,
		"default_list_limit": cfg.DefaultListLimit,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("memory: %s must be non-negative, got %d", name, v))
		}
	}
	if cfg.ArchiveAfterDays > 0 && cfg.RetentionDays > 0 && cfg.RetentionDays < cfg.ArchiveAfterDays {
		errs = append(errs, fmt.Errorf("memory: retention_days (%d) must not be shorter than archive_after_days (%d)",
			cfg.RetentionDays, cfg.ArchiveAfterDays))
	}
	return errors.Join(errs...)
}
