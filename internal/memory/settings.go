package memory

import (
	"context"
	"encoding/json"
	"fmt"

	ctxengine "github.com/flemzord/chatmem/internal/context"
)

// Settings are the global, runtime-adjustable memory settings. They are
// persisted under a fixed key and override the file configuration once
// loaded. A nil AutoCompress or a zero RetentionDays keeps the value in
// effect.
type Settings struct {
	MaxTokens            int   `json:"maxTokens"`
	CompressionThreshold int   `json:"compressionThreshold"`
	AutoCompress         *bool `json:"autoCompress,omitempty"`
	RetentionDays        int   `json:"retentionDays"`
}

// Settings returns the settings currently in effect.
func (m *Manager) Settings() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return settingsFrom(m.config)
}

// UpdateSettings validates s, applies it, and persists it. Persistence
// failures are logged, not returned.
func (m *Manager) UpdateSettings(ctx context.Context, s Settings) error {
	m.mu.Lock()
	cfg, err := m.applySettings(s)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.setConfigLocked(cfg)

	var events []Event
	raw, err := json.Marshal(settingsFrom(cfg))
	if err == nil {
		err = m.kv.Set(ctx, settingsKey, string(raw))
	}
	if err != nil {
		events = append(events, m.persistFailed("", "set", err))
	}
	m.mu.Unlock()

	m.notify(events...)
	return nil
}

// LoadSettings applies persisted settings, if any. Missing or corrupt
// settings leave the file configuration in effect.
func (m *Manager) LoadSettings(ctx context.Context) error {
	raw, ok, err := m.kv.Get(ctx, settingsKey)
	if err != nil {
		m.logger.Warn("memory: load settings failed", "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	var s Settings
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		m.logger.Warn("memory: corrupt settings ignored", "error", err)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, err := m.applySettings(s)
	if err != nil {
		return fmt.Errorf("memory: persisted settings: %w", err)
	}
	m.setConfigLocked(cfg)
	m.logger.Info("memory: settings loaded", "max_tokens", s.MaxTokens, "compression_threshold", s.CompressionThreshold)
	return nil
}

func (m *Manager) applySettings(s Settings) (Config, error) {
	if s.MaxTokens <= 0 || s.CompressionThreshold <= 0 {
		return Config{}, fmt.Errorf("%w: max tokens and compression threshold must be positive", ErrInvalidInput)
	}
	cfg := m.config
	cfg.Context.MaxTokens = s.MaxTokens
	cfg.Context.CompressionThreshold = s.CompressionThreshold
	if s.AutoCompress != nil {
		auto := *s.AutoCompress
		cfg.AutoCompress = &auto
	}
	if s.RetentionDays != 0 {
		cfg.RetentionDays = s.RetentionDays
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return cfg, nil
}

func (m *Manager) setConfigLocked(cfg Config) {
	m.config = cfg
	m.compactor = ctxengine.NewCompactor(m.summarizer, cfg.Context)
}

func settingsFrom(cfg Config) Settings {
	auto := cfg.autoCompress()
	return Settings{
		MaxTokens:            cfg.Context.MaxTokens,
		CompressionThreshold: cfg.Context.CompressionThreshold,
		AutoCompress:         &auto,
		RetentionDays:        cfg.RetentionDays,
	}
}

// Reconfigure replaces the file configuration, for example after the config
// file changed on disk. Persisted settings are applied on top again. The
// breaker section is only read at startup and is ignored here.
func (m *Manager) Reconfigure(ctx context.Context, cfg Config) error {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	m.mu.Lock()
	cfg.Breaker = m.config.Breaker
	m.setConfigLocked(cfg)
	m.mu.Unlock()

	m.logger.Info("memory: configuration reloaded",
		"max_tokens", cfg.Context.MaxTokens,
		"compression_threshold", cfg.Context.CompressionThreshold,
	)
	return m.LoadSettings(ctx)
}
