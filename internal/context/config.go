// Package ctxengine implements conversation context management: token
// estimation, usage accounting, compaction of old turns into a summary, and
// rendering of the context block injected ahead of a model call.
package ctxengine

import "fmt"

// SummaryMode selects how a compaction treats the summary left by the
// previous compaction.
type SummaryMode string

const (
	// SummaryReplace overwrites the previous summary; only the most recent
	// generation of folded turns survives.
	SummaryReplace SummaryMode = "replace"

	// SummaryCumulative keeps the previous summary as the leading paragraph
	// and appends the newly folded turns.
	SummaryCumulative SummaryMode = "cumulative"
)

// Config holds the tuning knobs for compaction and usage accounting.
type Config struct {
	// MaxTokens is the context budget a conversation is measured against.
	MaxTokens int `yaml:"max_tokens"`

	// CompressionThreshold triggers auto-compression once a conversation's
	// token count exceeds it.
	CompressionThreshold int `yaml:"compression_threshold"`

	// RetainRecent is the number of most-recent messages kept verbatim.
	RetainRecent int `yaml:"retain_recent"`

	// ExcerptRunes truncates each folded message in the summary.
	ExcerptRunes int `yaml:"excerpt_length"`

	// UsageAlertRatio marks a conversation as needing compression once
	// TokenCount exceeds this fraction of MaxTokens.
	UsageAlertRatio float64 `yaml:"usage_alert_ratio"`

	// SummaryMode is "replace" or "cumulative".
	SummaryMode SummaryMode `yaml:"summary_mode"`

	// MaxSummaryRunes caps a cumulative summary; the oldest text is trimmed.
	MaxSummaryRunes int `yaml:"max_summary_runes"`
}

// WithDefaults returns a copy of cfg with zero-valued fields replaced by
// sensible defaults.
func (cfg Config) WithDefaults() Config {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4000
	}
	if cfg.CompressionThreshold == 0 {
		cfg.CompressionThreshold = 3000
	}
	if cfg.RetainRecent == 0 {
		cfg.RetainRecent = 10
	}
	if cfg.ExcerptRunes == 0 {
		cfg.ExcerptRunes = 100
	}
	if cfg.UsageAlertRatio == 0 {
		cfg.UsageAlertRatio = 0.85
	}
	if cfg.SummaryMode == "" {
		cfg.SummaryMode = SummaryCumulative
	}
	if cfg.MaxSummaryRunes == 0 {
		cfg.MaxSummaryRunes = 4000
	}
	return cfg
}

// Validate reports configuration values that cannot work.
func (cfg Config) Validate() error {
	switch {
	case cfg.MaxTokens < 0:
		return fmt.Errorf("ctxengine: max_tokens must be non-negative, got %d", cfg.MaxTokens)
	case cfg.CompressionThreshold < 0:
		return fmt.Errorf("ctxengine: compression_threshold must be non-negative, got %d", cfg.CompressionThreshold)
	case cfg.RetainRecent < 0:
		return fmt.Errorf("ctxengine: retain_recent must be non-negative, got %d", cfg.RetainRecent)
	case cfg.ExcerptRunes < 0:
		return fmt.Errorf("ctxengine: excerpt_length must be non-negative, got %d", cfg.ExcerptRunes)
	case cfg.UsageAlertRatio < 0 || cfg.UsageAlertRatio > 1:
		return fmt.Errorf("ctxengine: usage_alert_ratio must be within [0,1], got %g", cfg.UsageAlertRatio)
	}
	switch cfg.SummaryMode {
	case "", SummaryReplace, SummaryCumulative:
	default:
		return fmt.Errorf("ctxengine: unknown summary_mode %q", cfg.SummaryMode)
	}
	return nil
}
