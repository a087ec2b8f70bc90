package core

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// registry holds every module compiled into the binary, keyed by ID.
var registry = struct {
	sync.RWMutex
	byID map[ModuleID]ModuleInfo
}{byID: make(map[ModuleID]ModuleInfo)}

// RegisterModule makes a module available to configuration. It is meant to
// be called from the module package's init function and panics on an empty
// ID, a nil constructor, or a duplicate ID.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	switch {
	case info.ID == "":
		panic("core: module ID must not be empty")
	case info.New == nil:
		panic(fmt.Sprintf("core: module %s has no constructor", info.ID))
	}

	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.byID[info.ID]; dup {
		panic(fmt.Sprintf("core: module %s registered twice", info.ID))
	}
	registry.byID[info.ID] = info
}

// GetModule looks up a registered module by ID.
func GetModule(id string) (ModuleInfo, bool) {
	registry.RLock()
	defer registry.RUnlock()
	info, ok := registry.byID[ModuleID(id)]
	return info, ok
}

// GetModules returns every registered module, sorted by ID.
func GetModules() []ModuleInfo {
	return modulesWhere(func(ModuleID) bool { return true })
}

// GetModulesByNamespace returns the modules directly under namespace, so
// "memory" yields memory.sqlite and memory.bolt, sorted by ID.
func GetModulesByNamespace(namespace string) []ModuleInfo {
	return modulesWhere(func(id ModuleID) bool { return id.Namespace() == namespace })
}

func modulesWhere(keep func(ModuleID) bool) []ModuleInfo {
	registry.RLock()
	var out []ModuleInfo
	for id, info := range registry.byID {
		if keep(id) {
			out = append(out, info)
		}
	}
	registry.RUnlock()

	slices.SortFunc(out, func(a, b ModuleInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// resetRegistry forgets every module. Tests only.
func resetRegistry() {
	registry.Lock()
	defer registry.Unlock()
	registry.byID = make(map[ModuleID]ModuleInfo)
}
