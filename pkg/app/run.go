// Package app provides the shared entry point for the chatmem commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/flemzord/chatmem/internal/config"
	"github.com/flemzord/chatmem/internal/core"
	"github.com/flemzord/chatmem/internal/cron"
	"github.com/flemzord/chatmem/internal/logging"
	"github.com/flemzord/chatmem/internal/memory"
	"github.com/flemzord/chatmem/internal/telemetry"
)

const telemetryShutdownTimeout = 5 * time.Second

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides data_dir from the config file.
	DataDir string

	// LogOutput receives the process log. Defaults to os.Stderr.
	LogOutput io.Writer

	// BackendsOnly loads only the persistence modules, for commands that
	// drive the Manager directly instead of serving it.
	BackendsOnly bool

	// NoScheduler skips the retention and compaction jobs.
	NoScheduler bool
}

// Runtime is a loaded but not yet started application.
type Runtime struct {
	Config     *config.Config
	ConfigPath string
	Logger     *slog.Logger
	App        *core.App
	Manager    *memory.Manager
	Scheduler  *cron.Scheduler // nil when disabled

	telemetry *telemetry.Provider
	started   bool
}

// Run loads configuration, starts all modules, and blocks until ctx is
// cancelled or a shutdown signal is received.
func Run(ctx context.Context, params RunParams) error {
	rt, err := Build(ctx, params)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.shutdownTelemetry(); err != nil {
			rt.Logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	rt.Logger.Info("chatmem starting",
		"version", params.Version,
		"commit", params.Commit,
		"config", rt.ConfigPath,
	)
	return rt.App.Run(ctx)
}

// Build loads and validates the configuration, sets up logging and tracing,
// provisions the configured modules, and wires the memory manager.
func Build(ctx context.Context, params RunParams) (*Runtime, error) {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return nil, err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	out := params.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logger, err := logging.New(out, logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Redact: cfg.Log.RedactEnabled(),
	})
	if err != nil {
		return nil, err
	}

	tp, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		ServiceName: cfg.Telemetry.ServiceName,
		SampleRatio: cfg.Telemetry.SampleRatio,
		Version:     params.Version,
	}, logger)
	if err != nil {
		return nil, err
	}

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = cfg.DataDir
	}
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService("config.path", cfgPath)

	ids := config.Resolve(cfg)
	if params.BackendsOnly {
		ids = config.Backends(cfg)
	}

	application := core.NewApp(appCtx)
	if err := application.LoadModules(ids); err != nil {
		return nil, errors.Join(err, tp.Shutdown(context.Background()))
	}

	rt := &Runtime{
		Config:     cfg,
		ConfigPath: cfgPath,
		Logger:     logger,
		App:        application,
		telemetry:  tp,
	}

	// Wire the manager between LoadModules and Start so the gateway finds it
	// when it resolves its services.
	if err := rt.wire(ctx, appCtx, params); err != nil {
		return nil, errors.Join(err, rt.Close())
	}
	return rt, nil
}

// Start starts every loaded module.
func (rt *Runtime) Start() error {
	if err := rt.App.Start(); err != nil {
		return err
	}
	rt.started = true
	return nil
}

// Close stops started modules and flushes telemetry. Modules that were only
// provisioned are released as well.
func (rt *Runtime) Close() error {
	if rt.started {
		rt.App.Stop()
		rt.started = false
	} else {
		rt.App.Release()
	}
	return rt.shutdownTelemetry()
}

func (rt *Runtime) shutdownTelemetry() error {
	ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer cancel()
	if err := rt.telemetry.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry shutdown: %w", err)
	}
	return nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $CHATMEM_CONFIG, $XDG_CONFIG_HOME/chatmem/chatmem.yaml,
// ~/.config/chatmem/chatmem.yaml, ./chatmem.yaml.
func ResolveConfigPath() (string, error) {
	var candidates []string

	if explicit, ok := os.LookupEnv("CHATMEM_CONFIG"); ok && explicit != "" {
		candidates = append(candidates, explicit)
	}
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "chatmem", "chatmem.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "chatmem", "chatmem.yaml"))
	}

	candidates = append(candidates, "chatmem.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultConfigPath is where `chatmem init` writes a new config.
func DefaultConfigPath() string {
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		return filepath.Join(xdg, "chatmem", "chatmem.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "chatmem.yaml"
	}
	return filepath.Join(home, ".config", "chatmem", "chatmem.yaml")
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/chatmem if set, otherwise ~/.local/share/chatmem.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, "chatmem")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "chatmem")
}
