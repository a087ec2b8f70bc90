package core

import "strings"

// ModuleID is a dotted, namespaced module identifier such as
// "memory.sqlite" or "gateway.http".
type ModuleID string

// Namespace returns the part of the ID before the last dot.
func (id ModuleID) Namespace() string {
	s := string(id)
	if i := strings.LastIndex(s, "."); i >= 0 {
		return s[:i]
	}
	return ""
}

// Name returns the part of the ID after the last dot.
func (id ModuleID) Name() string {
	s := string(id)
	if i := strings.LastIndex(s, "."); i >= 0 {
		return s[i+1:]
	}
	return s
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	// ID is the unique, namespaced identifier of the module.
	ID ModuleID

	// New returns a fresh, unconfigured instance of the module.
	New func() Module
}

// Module is implemented by every module. Optional lifecycle behaviour is
// added by implementing the interfaces in lifecycle.go.
type Module interface {
	ModuleInfo() ModuleInfo
}
