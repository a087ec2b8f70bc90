// Package memorytest provides test doubles for the memory package.
package memorytest

import (
	"context"
	"errors"
	"sync"

	"github.com/flemzord/chatmem/internal/memory"
	"github.com/flemzord/chatmem/pkg/conversation"
)

// ErrInjected is returned by FlakyKV while failing.
var ErrInjected = errors.New("memorytest: injected failure")

// FlakyKV wraps an in-memory KV and fails on demand. Reads and writes can be
// broken independently. All methods are safe for concurrent use.
type FlakyKV struct {
	*memory.InMemoryKV

	mu        sync.Mutex
	failRead  bool
	failWrite bool
	writes    int
}

// Compile-time interface checks.
var (
	_ memory.KV     = (*FlakyKV)(nil)
	_ memory.Lister = (*FlakyKV)(nil)
)

// NewFlakyKV creates a healthy FlakyKV.
func NewFlakyKV() *FlakyKV {
	return &FlakyKV{InMemoryKV: memory.NewInMemoryKV()}
}

// FailReads makes subsequent Get calls fail (or succeed again).
func (f *FlakyKV) FailReads(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failRead = fail
}

// FailWrites makes subsequent Set and Remove calls fail (or succeed again).
func (f *FlakyKV) FailWrites(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWrite = fail
}

// Writes returns the number of Set and Remove calls, failed or not.
func (f *FlakyKV) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

// Get implements memory.KV.
func (f *FlakyKV) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	fail := f.failRead
	f.mu.Unlock()
	if fail {
		return "", false, ErrInjected
	}
	return f.InMemoryKV.Get(ctx, key)
}

// Set implements memory.KV.
func (f *FlakyKV) Set(ctx context.Context, key, value string) error {
	if f.countWrite() {
		return ErrInjected
	}
	return f.InMemoryKV.Set(ctx, key, value)
}

// Remove implements memory.KV.
func (f *FlakyKV) Remove(ctx context.Context, key string) error {
	if f.countWrite() {
		return ErrInjected
	}
	return f.InMemoryKV.Remove(ctx, key)
}

func (f *FlakyKV) countWrite() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	return f.failWrite
}

// RecordingObserver captures every event it receives.
type RecordingObserver struct {
	mu     sync.Mutex
	events []memory.Event
}

// Compile-time interface check.
var _ memory.Observer = (*RecordingObserver)(nil)

// Observe implements memory.Observer.
func (r *RecordingObserver) Observe(e memory.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *RecordingObserver) Events() []memory.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]memory.Event(nil), r.events...)
}

// Count returns how many events of type t were recorded.
func (r *RecordingObserver) Count(t memory.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// MockExtractor is a configurable test double for memory.Extractor.
type MockExtractor struct {
	ExtractFunc func(ctx context.Context, msg conversation.Message) (memory.Extraction, error)
}

// Compile-time interface check.
var _ memory.Extractor = (*MockExtractor)(nil)

// Extract delegates to ExtractFunc.
func (m *MockExtractor) Extract(ctx context.Context, msg conversation.Message) (memory.Extraction, error) {
	return m.ExtractFunc(ctx, msg)
}
