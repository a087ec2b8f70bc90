package reload

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flemzord/chatmem/internal/core"
)

// ModuleID is the lifecycle ID of the Reloader.
const ModuleID core.ModuleID = "config.reload"

// Reloader runs a Handler whenever the config file changes or the process
// receives SIGHUP. It implements core.Module, core.Starter and core.Stopper.
type Reloader struct {
	handler *Handler
	watcher *Watcher
	logger  *slog.Logger

	// signals is nil when SIGHUP handling is disabled.
	signals chan os.Signal
	cancel  context.CancelFunc
	done    chan struct{}
}

// ReloaderConfig configures a Reloader.
type ReloaderConfig struct {
	Path         string
	PollInterval time.Duration

	// HandleSIGHUP subscribes to SIGHUP.
	HandleSIGHUP bool
}

// NewReloader creates a Reloader applying changes to target.
func NewReloader(cfg ReloaderConfig, target Target, logger *slog.Logger) *Reloader {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "reload")
	r := &Reloader{
		handler: NewHandler(cfg.Path, target, logger),
		watcher: NewWatcher(WatcherConfig{ConfigPath: cfg.Path, PollInterval: cfg.PollInterval}),
		logger:  logger,
	}
	if cfg.HandleSIGHUP {
		r.signals = make(chan os.Signal, 1)
	}
	return r
}

// ModuleInfo implements core.Module.
func (r *Reloader) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: ModuleID}
}

// Start implements core.Starter.
func (r *Reloader) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	if r.signals != nil {
		signal.Notify(r.signals, syscall.SIGHUP)
	}
	r.watcher.Start(ctx)
	go r.loop(ctx)
	return nil
}

// Stop implements core.Stopper.
func (r *Reloader) Stop(_ context.Context) error {
	if r.cancel == nil {
		return nil
	}
	if r.signals != nil {
		signal.Stop(r.signals)
	}
	r.cancel()
	r.watcher.Stop()
	<-r.done
	return nil
}

func (r *Reloader) loop(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.signals:
			r.logger.Info("SIGHUP received, reloading configuration")
			r.reload(ctx)
		case evt := <-r.watcher.Events():
			r.logger.Info("config file changed, reloading", "path", evt.ConfigPath)
			r.reload(ctx)
		}
	}
}

func (r *Reloader) reload(ctx context.Context) {
	if err := r.handler.HandleReload(ctx); err != nil {
		r.logger.Error("reload failed", "error", err)
	}
}
