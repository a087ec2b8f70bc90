package reload

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flemzord/chatmem/internal/config"
	"github.com/flemzord/chatmem/internal/memory"
)

// Target receives the reloaded memory configuration. *memory.Manager
// implements it.
type Target interface {
	Reconfigure(ctx context.Context, cfg memory.Config) error
}

var _ Target = (*memory.Manager)(nil)

// Handler loads the config file and hands its memory section to a Target.
type Handler struct {
	path   string
	target Target
	logger *slog.Logger
}

// NewHandler creates a handler for the config file at path.
func NewHandler(path string, target Target, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{path: path, target: target, logger: logger}
}

// HandleReload loads and validates the config file, then reconfigures the
// target. An invalid file leaves the running configuration untouched.
// Module sections are not reloaded; they need a restart.
func (h *Handler) HandleReload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	cfg, err := config.Load(h.path)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	if err := h.target.Reconfigure(ctx, cfg.Memory); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	h.logger.Info("configuration reloaded", "path", h.path)
	return nil
}
