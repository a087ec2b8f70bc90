package memory

import (
	"time"

	"github.com/flemzord/chatmem/pkg/conversation"
)

// EventType identifies what happened to a conversation.
type EventType string

// Event types emitted by the Manager.
const (
	EventCreated       EventType = "conversation.created"
	EventMessageAdded  EventType = "message.added"
	EventCompressed    EventType = "conversation.compressed"
	EventArchived      EventType = "conversation.archived"
	EventDeleted       EventType = "conversation.deleted"
	EventPersistFailed EventType = "persist.failed"
)

// Event describes a single state change. Fields that do not apply to the
// event type are left zero.
type Event struct {
	Type           EventType         `json:"type"`
	ConversationID string            `json:"conversationId,omitempty"`
	UserID         string            `json:"userId,omitempty"`
	Role           conversation.Role `json:"role,omitempty"`
	TokenCount     int               `json:"tokenCount,omitempty"`
	Dropped        int               `json:"dropped,omitempty"`
	Op             string            `json:"op,omitempty"`
	Error          string            `json:"error,omitempty"`
	Time           time.Time         `json:"time"`
}

// Observer receives Manager events. Observe is called after the Manager
// releases its lock; implementations must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(e Event) { f(e) }

// MultiObserver fans an event out to several observers in order.
type MultiObserver []Observer

// Observe implements Observer.
func (m MultiObserver) Observe(e Event) {
	for _, o := range m {
		if o != nil {
			o.Observe(e)
		}
	}
}

type nopObserver struct{}

func (nopObserver) Observe(Event) {}
