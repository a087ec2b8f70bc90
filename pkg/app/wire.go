package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/flemzord/chatmem/internal/core"
	"github.com/flemzord/chatmem/internal/cron"
	"github.com/flemzord/chatmem/internal/memory"
	"github.com/flemzord/chatmem/internal/reload"
)

// schedulerModuleID is the lifecycle ID of the maintenance scheduler.
const schedulerModuleID core.ModuleID = "memory.scheduler"

// schedulerModule wraps a *cron.Scheduler to satisfy core.Module,
// core.Starter, and core.Stopper, so the jobs follow the App lifecycle.
type schedulerModule struct {
	scheduler *cron.Scheduler
}

func (m *schedulerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: schedulerModuleID}
}

func (m *schedulerModule) Start() error {
	return m.scheduler.Start()
}

func (m *schedulerModule) Stop(ctx context.Context) error {
	return m.scheduler.Stop(ctx)
}

// wire builds the Manager over the KV registered by the persistence module,
// attaches every registered observer, registers the Manager as a service,
// and appends the maintenance scheduler and the config reloader to the app
// lifecycle. Must be called after LoadModules and before Start.
func (rt *Runtime) wire(ctx context.Context, appCtx *core.AppContext, params RunParams) error {
	logger := rt.Logger

	kv, ok := core.ServiceAs[memory.KV](appCtx, core.ServiceMemoryKV)
	if !ok {
		logger.Warn("no persistence module configured, conversations are kept in memory only")
		kv = memory.NewInMemoryKV()
	}
	if bc := rt.Config.Memory.Breaker; bc != nil {
		breaker := memory.NewBreakerKV(kv, *bc, logger)
		appCtx.RegisterService(core.ServiceMemoryBreaker, breaker)
		kv = breaker
	}

	observers := collectObservers(appCtx, logger)

	m, err := memory.NewManager(memory.Options{
		KV:       kv,
		Observer: observers,
		Logger:   logger,
		Config:   rt.Config.Memory,
	})
	if err != nil {
		return fmt.Errorf("creating memory manager: %w", err)
	}
	if err := m.LoadSettings(ctx); err != nil {
		return err
	}
	appCtx.RegisterService(core.ServiceMemoryManager, m)
	rt.Manager = m

	if !params.BackendsOnly {
		rt.App.AppendModule(reload.ModuleID, reload.NewReloader(reload.ReloaderConfig{
			Path:         rt.ConfigPath,
			HandleSIGHUP: true,
		}, m, logger))
	}

	if params.NoScheduler || rt.Config.Cron.Disabled {
		logger.Info("memory: maintenance scheduler disabled")
		return nil
	}

	scheduler := cron.NewScheduler(logger.With("component", "cron"))
	if err := cron.Register(scheduler, m, rt.Config.Cron, logger); err != nil {
		return fmt.Errorf("registering maintenance jobs: %w", err)
	}
	rt.App.AppendModule(schedulerModuleID, &schedulerModule{scheduler: scheduler})
	rt.Scheduler = scheduler

	logger.Info("memory: wired", "observers", len(observers), "jobs", scheduler.Jobs())
	return nil
}

// collectObservers returns every service registered under the observer
// prefix, in name order.
func collectObservers(appCtx *core.AppContext, logger *slog.Logger) memory.MultiObserver {
	prefix := core.ServiceMemoryObserver + "."
	var observers memory.MultiObserver
	for _, name := range appCtx.ServiceNames() {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		obs, ok := core.ServiceAs[memory.Observer](appCtx, name)
		if !ok {
			logger.Warn("service is not a memory observer", "service", name)
			continue
		}
		observers = append(observers, obs)
	}
	return observers
}
