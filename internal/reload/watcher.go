// Package reload re-applies the memory configuration while chatmem runs,
// when the config file changes on disk or the process receives SIGHUP.
package reload

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const defaultPollInterval = 5 * time.Second

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// ConfigPath is the file to watch.
	ConfigPath string

	// PollInterval defaults to 5 seconds.
	PollInterval time.Duration
}

func (c WatcherConfig) interval() time.Duration {
	if c.PollInterval > 0 {
		return c.PollInterval
	}
	return defaultPollInterval
}

// EventType describes a file change.
type EventType string

// EventModified is sent when the file's size or modification time changed.
const EventModified EventType = "modified"

// Event is a file change notification.
type Event struct {
	Type       EventType
	ConfigPath string
}

// fingerprint identifies one version of the watched file.
type fingerprint struct {
	modTime time.Time
	size    int64
}

// Watcher polls a file for changes. Bursts of changes between two reads of
// Events collapse into a single event.
type Watcher struct {
	cfg     WatcherConfig
	events  chan Event
	stop    chan struct{}
	stopped chan struct{}

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewWatcher creates a watcher. It does nothing until Start.
func NewWatcher(cfg WatcherConfig) *Watcher {
	return &Watcher{
		cfg:     cfg,
		events:  make(chan Event, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start begins polling. Only the first call has an effect.
func (w *Watcher) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.started.Store(true)
		go w.poll(ctx)
	})
}

// Events returns the change notifications.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Stop ends polling and waits for the poll goroutine to exit. Safe to call
// more than once and before Start.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	if w.started.Load() {
		<-w.stopped
	}
}

func (w *Watcher) poll(ctx context.Context) {
	defer close(w.stopped)

	ticker := time.NewTicker(w.cfg.interval())
	defer ticker.Stop()

	last, _ := w.stat()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
		}

		current, ok := w.stat()
		if !ok || current == last {
			continue
		}
		last = current
		select {
		case w.events <- Event{Type: EventModified, ConfigPath: w.cfg.ConfigPath}:
		default:
		}
	}
}

// stat returns the current fingerprint; false while the file is missing,
// e.g. during an editor's write-rename.
func (w *Watcher) stat() (fingerprint, bool) {
	info, err := os.Stat(w.cfg.ConfigPath)
	if err != nil {
		return fingerprint{}, false
	}
	return fingerprint{modTime: info.ModTime(), size: info.Size()}, true
}
