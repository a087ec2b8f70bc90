// Package crontest provides test doubles for the cron package.
package crontest

import (
	"context"
	"sync"
	"time"

	"github.com/flemzord/chatmem/internal/cron"
	"github.com/flemzord/chatmem/internal/memory"
)

// MockJob is a configurable test double for cron.Job.
type MockJob struct {
	NameVal     string
	ScheduleVal string
	RunFunc     func(ctx context.Context) error

	mu       sync.Mutex
	calls    int
	lastCall time.Time
}

// Compile-time interface check.
var _ cron.Job = (*MockJob)(nil)

// Name implements cron.Job.
func (m *MockJob) Name() string { return m.NameVal }

// Schedule implements cron.Job.
func (m *MockJob) Schedule() string { return m.ScheduleVal }

// Run implements cron.Job and increments the call counter.
func (m *MockJob) Run(ctx context.Context) error {
	m.mu.Lock()
	m.calls++
	m.lastCall = time.Now()
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	return nil
}

// CallCount returns the number of times Run was called.
func (m *MockJob) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastCall returns the time of the last Run call.
func (m *MockJob) LastCall() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCall
}

// MockManager is a test double for the memory manager methods the
// maintenance jobs call.
type MockManager struct {
	SweepFunc    func(now time.Time) (memory.SweepResult, error)
	ResidentIDs  []string
	UsageFunc    func(id string) (memory.Usage, error)
	CompressFunc func(id string) (bool, error)

	mu         sync.Mutex
	compressed []string
}

var (
	_ cron.Sweeper    = (*MockManager)(nil)
	_ cron.Compressor = (*MockManager)(nil)
)

// Sweep implements cron.Sweeper.
func (m *MockManager) Sweep(_ context.Context, now time.Time) (memory.SweepResult, error) {
	if m.SweepFunc != nil {
		return m.SweepFunc(now)
	}
	return memory.SweepResult{}, nil
}

// Resident implements cron.Compressor.
func (m *MockManager) Resident() []string { return m.ResidentIDs }

// MemoryUsage implements cron.Compressor.
func (m *MockManager) MemoryUsage(_ context.Context, id string) (memory.Usage, error) {
	if m.UsageFunc != nil {
		return m.UsageFunc(id)
	}
	return memory.Usage{}, nil
}

// CompressConversation implements cron.Compressor and records id.
func (m *MockManager) CompressConversation(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	m.compressed = append(m.compressed, id)
	m.mu.Unlock()
	if m.CompressFunc != nil {
		return m.CompressFunc(id)
	}
	return true, nil
}

// Compressed returns the ids passed to CompressConversation.
func (m *MockManager) Compressed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.compressed...)
}
