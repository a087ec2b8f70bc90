package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// SweepResult summarises a retention sweep.
type SweepResult struct {
	Archived int `json:"archived"`
	Deleted  int `json:"deleted"`
}

// Archive marks a conversation inactive. Archived conversations keep their
// history and become active again on the next AddMessage.
func (m *Manager) Archive(ctx context.Context, id string) error {
	ctx, span := m.startSpan(ctx, "memory.Archive", attribute.String("conversation.id", id))
	defer span.End()

	m.mu.Lock()
	c, ok := m.loadLocked(ctx, id)
	if !ok {
		m.mu.Unlock()
		return m.fail(span, fmt.Errorf("%w: %s", ErrConversationNotFound, id))
	}
	events := m.archiveLocked(ctx, c.ID)
	m.mu.Unlock()

	m.notify(events...)
	return nil
}

// archiveLocked clears IsActive. LastUpdated is left alone so retention is
// measured from the last real activity.
func (m *Manager) archiveLocked(ctx context.Context, id string) []Event {
	c := m.conversations[id]
	if c == nil || !c.IsActive {
		return nil
	}
	c.IsActive = false
	c.Version++

	events := []Event{{Type: EventArchived, ConversationID: c.ID, UserID: c.UserID, Time: m.timestamp()}}
	return append(events, m.saveLocked(ctx, c)...)
}

// Sweep archives conversations idle for longer than the archive window and
// deletes archived conversations idle for longer than the retention window.
// Conversations that are not resident are reached through the KV when it
// implements Lister.
func (m *Manager) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	ctx, span := m.startSpan(ctx, "memory.Sweep")
	defer span.End()

	ids, err := m.sweepCandidates(ctx)
	if err != nil {
		return SweepResult{}, m.fail(span, err)
	}

	var res SweepResult
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		m.mu.Lock()
		archiveAfter, retention := m.config.archiveAfter(), m.config.retention()
		c, ok := m.loadLocked(ctx, id)
		if !ok {
			m.mu.Unlock()
			continue
		}

		idle := now.Sub(c.LastUpdated)
		var events []Event
		if c.IsActive && archiveAfter > 0 && idle > archiveAfter {
			events = append(events, m.archiveLocked(ctx, id)...)
			res.Archived++
		}
		if !c.IsActive && retention > 0 && idle > retention {
			events = append(events, m.deleteLocked(ctx, id, c.UserID)...)
			res.Deleted++
		}
		m.mu.Unlock()

		m.notify(events...)
	}

	if res.Archived > 0 || res.Deleted > 0 {
		m.logger.Info("retention sweep completed", "archived", res.Archived, "deleted", res.Deleted)
	}
	span.SetAttributes(attribute.Int("sweep.archived", res.Archived), attribute.Int("sweep.deleted", res.Deleted))
	return res, nil
}

func (m *Manager) sweepCandidates(ctx context.Context) ([]string, error) {
	ids := m.Resident()

	lister, ok := m.kv.(Lister)
	if !ok {
		return ids, nil
	}
	keys, err := lister.Keys(ctx, conversationKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("memory: list conversations: %w", err)
	}
	for _, key := range keys {
		if id, ok := idFromKey(key); ok && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}
