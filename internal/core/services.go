package core

import (
	"slices"
	"sync"
)

// Well-known service names shared between modules.
const (
	// ServiceMemoryKV is the persistence backend registered by memory.* modules.
	ServiceMemoryKV = "memory.kv"

	// ServiceMemoryManager is the conversation memory manager.
	ServiceMemoryManager = "memory.manager"

	// ServiceMemoryObserver prefixes the names of observers that want
	// Manager events, e.g. "memory.observer.gateway.metrics".
	ServiceMemoryObserver = "memory.observer"

	// ServiceMemoryBreaker is the circuit breaker guarding the KV, when
	// one is configured.
	ServiceMemoryBreaker = "memory.breaker"
)

// serviceRegistry is shared by an AppContext and every context derived
// from it, so services registered by one module are visible to the others.
type serviceRegistry struct {
	mu       sync.RWMutex
	services map[string]any
}

func newServiceRegistry() *serviceRegistry {
	return &serviceRegistry{services: make(map[string]any)}
}

// RegisterService makes svc available to other modules under name. A later
// registration under the same name replaces the earlier one.
func (ctx *AppContext) RegisterService(name string, svc any) {
	ctx.services.mu.Lock()
	defer ctx.services.mu.Unlock()
	if _, exists := ctx.services.services[name]; exists {
		ctx.Logger.Warn("service replaced", "service", name)
	}
	ctx.services.services[name] = svc
}

// Service returns the service registered under name.
func (ctx *AppContext) Service(name string) (any, bool) {
	ctx.services.mu.RLock()
	defer ctx.services.mu.RUnlock()
	svc, ok := ctx.services.services[name]
	return svc, ok
}

// ServiceNames returns the registered service names, sorted.
func (ctx *AppContext) ServiceNames() []string {
	ctx.services.mu.RLock()
	defer ctx.services.mu.RUnlock()
	names := make([]string, 0, len(ctx.services.services))
	for name := range ctx.services.services {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ServiceAs returns the service registered under name if it has type T.
func ServiceAs[T any](ctx *AppContext, name string) (T, bool) {
	var zero T
	svc, ok := ctx.Service(name)
	if !ok {
		return zero, false
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
