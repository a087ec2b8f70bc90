package config

import (
	"slices"
	"strings"
)

// memoryNamespace prefixes the persistence backend modules.
const memoryNamespace = "memory."

// Resolve returns the module IDs from the configuration in load order:
// persistence backends first, so the KV they register is available when
// the remaining modules provision, then everything else sorted by ID.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		am, bm := strings.HasPrefix(a, memoryNamespace), strings.HasPrefix(b, memoryNamespace)
		switch {
		case am && !bm:
			return -1
		case bm && !am:
			return 1
		}
		return strings.Compare(a, b)
	})
	return ids
}

// Backends returns the configured persistence backend module IDs, sorted.
func Backends(cfg *Config) []string {
	var ids []string
	for id := range cfg.Modules {
		if strings.HasPrefix(id, memoryNamespace) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}
