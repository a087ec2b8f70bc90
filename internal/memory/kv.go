// Package memory implements the conversation memory manager: it stores chat
// turns, keeps a bounded compressed context per conversation, and persists
// both through an injected key-value store.
package memory

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
)

// ErrKVUnavailable indicates the persistence backend rejected the call
// without attempting it (for example, an open circuit breaker).
var ErrKVUnavailable = errors.New("memory: kv backend unavailable")

// KV is the persistence substrate. Values are opaque strings (JSON
// snapshots). Implementations must be safe for concurrent use.
type KV interface {
	// Get returns the value stored under key. The bool is false when the key
	// does not exist.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// Lister is implemented by KV backends that can enumerate keys. The
// retention sweep uses it to reach conversations that are not resident.
type Lister interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// InMemoryKV is a thread-safe, map-backed KV.
type InMemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewInMemoryKV creates an empty in-memory KV.
func NewInMemoryKV() *InMemoryKV {
	return &InMemoryKV{data: make(map[string]string)}
}

// Compile-time interface checks.
var (
	_ KV     = (*InMemoryKV)(nil)
	_ Lister = (*InMemoryKV)(nil)
)

// Get implements KV.
func (s *InMemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

// Set implements KV.
func (s *InMemoryKV) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

// Remove implements KV.
func (s *InMemoryKV) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Keys implements Lister. Keys are returned sorted.
func (s *InMemoryKV) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// Len returns the number of stored keys.
func (s *InMemoryKV) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
