package core

import (
	"slices"
	"testing"
)

func moduleIDs(infos []ModuleInfo) []ModuleID {
	ids := make([]ModuleID, len(infos))
	for i, info := range infos {
		ids[i] = info.ID
	}
	return ids
}

func TestRegistry_Lookup(t *testing.T) {
	t.Cleanup(resetRegistry)
	for _, id := range []ModuleID{"memory.sqlite", "gateway.http", "memory.bolt", "memory.sql.shard"} {
		RegisterModule(plainModule{id: id})
	}

	if _, ok := GetModule("memory.bolt"); !ok {
		t.Error("memory.bolt not found")
	}
	if _, ok := GetModule("memory.redis"); ok {
		t.Error("memory.redis found")
	}

	all := moduleIDs(GetModules())
	if want := []ModuleID{"gateway.http", "memory.bolt", "memory.sql.shard", "memory.sqlite"}; !slices.Equal(all, want) {
		t.Errorf("GetModules() = %v, want %v", all, want)
	}

	tests := []struct {
		namespace string
		want      []ModuleID
	}{
		{"memory", []ModuleID{"memory.bolt", "memory.sqlite"}},
		{"memory.sql", []ModuleID{"memory.sql.shard"}},
		{"gateway", []ModuleID{"gateway.http"}},
		{"mem", nil},
	}
	for _, tt := range tests {
		if got := moduleIDs(GetModulesByNamespace(tt.namespace)); !slices.Equal(got, tt.want) {
			t.Errorf("GetModulesByNamespace(%q) = %v, want %v", tt.namespace, got, tt.want)
		}
	}
}

func TestRegisterModule_Panics(t *testing.T) {
	t.Cleanup(resetRegistry)
	RegisterModule(plainModule{id: "memory.sqlite"})

	tests := []struct {
		name string
		mod  Module
	}{
		{"empty id", plainModule{}},
		{"nil constructor", noConstructor{}},
		{"duplicate", plainModule{id: "memory.sqlite"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			RegisterModule(tt.mod)
		})
	}
}

type noConstructor struct{}

func (noConstructor) ModuleInfo() ModuleInfo { return ModuleInfo{ID: "memory.broken"} }
