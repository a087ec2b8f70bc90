// Package gateway serves the conversation memory over HTTP: a JSON API,
// Prometheus metrics, and a websocket stream of memory events. It binds to
// loopback by default and follows the module system pattern.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/flemzord/chatmem/internal/core"
	"github.com/flemzord/chatmem/internal/memory"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Observer service names registered by the gateway.
const (
	ServiceMetricsObserver = core.ServiceMemoryObserver + ".gateway.metrics"
	ServiceEventsObserver  = core.ServiceMemoryObserver + ".gateway.events"
)

var (
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)

// Gateway is the HTTP gateway module. It is a leaf module: nothing imports it.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	metrics   *Metrics
	events    *EventHub
	limiter   *remoteLimiter
	startedAt time.Time

	// Resolved lazily at Start() via service registry.
	manager *memory.Manager
	breaker breakerStater
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return fmt.Errorf("gateway: decode config: %w", err)
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner. The metrics collector and event
// hub are registered as memory observers so the Manager built after
// provisioning reports to them.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.metrics = NewMetrics()
	g.events = NewEventHub(g.config.AllowedOrigins, g.logger)
	if g.config.RateLimit.Enabled() {
		g.limiter = newRemoteLimiter(g.config.RateLimit)
	}

	ctx.RegisterService(ServiceMetricsObserver, g.metrics)
	ctx.RegisterService(ServiceEventsObserver, g.events)
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	return g.config.validate()
}

// Start implements core.Starter. It resolves the memory manager from the
// service registry and starts the HTTP server.
func (g *Gateway) Start() error {
	if err := g.resolve(); err != nil {
		return err
	}
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

func (g *Gateway) resolve() error {
	mgr, ok := core.ServiceAs[*memory.Manager](g.appCtx, core.ServiceMemoryManager)
	if !ok {
		return errors.New("gateway: memory manager service not registered")
	}
	g.manager = mgr
	if b, ok := core.ServiceAs[breakerStater](g.appCtx, core.ServiceMemoryBreaker); ok {
		g.breaker = b
	}
	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.events != nil {
		g.events.Close()
	}
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
