package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flemzord/chatmem/internal/memory"
	"github.com/flemzord/chatmem/internal/memory/memorytest"
	"github.com/flemzord/chatmem/pkg/conversation"
)

func TestArchive_ReactivatesOnMessage(t *testing.T) {
	t.Parallel()

	obs := &memorytest.RecordingObserver{}
	m := newManager(t, memory.Options{Observer: obs})
	id := mustCreate(t, m, "u1")

	if err := m.Archive(context.Background(), id); err != nil {
		t.Fatalf("Archive() error: %v", err)
	}
	if mustGet(t, m, id).IsActive {
		t.Fatal("conversation still active after Archive")
	}
	// Archiving twice emits a single event.
	if err := m.Archive(context.Background(), id); err != nil {
		t.Fatalf("second Archive() error: %v", err)
	}
	if n := obs.Count(memory.EventArchived); n != 1 {
		t.Errorf("archived events = %d, want 1", n)
	}

	mustAdd(t, m, id, conversation.RoleUser, "back again")
	if !mustGet(t, m, id).IsActive {
		t.Error("AddMessage should reactivate an archived conversation")
	}

	if err := m.Archive(context.Background(), "nope"); !errors.Is(err, memory.ErrConversationNotFound) {
		t.Errorf("unknown id error = %v", err)
	}
}

func TestSweep(t *testing.T) {
	t.Parallel()

	kv := memory.NewInMemoryKV()
	clock := newFakeClock()
	m := newManager(t, memory.Options{KV: kv, Now: clock.Now})

	idle := mustCreate(t, m, "u1")
	busy := mustCreate(t, m, "u1")

	clock.Advance(8 * 24 * time.Hour)
	mustAdd(t, m, busy, conversation.RoleUser, "still here")

	res, err := m.Sweep(context.Background(), clock.Now())
	if err != nil {
		t.Fatalf("Sweep() error: %v", err)
	}
	if res != (memory.SweepResult{Archived: 1}) {
		t.Errorf("first sweep = %+v, want 1 archived", res)
	}
	if mustGet(t, m, idle).IsActive {
		t.Error("idle conversation not archived")
	}
	if !mustGet(t, m, busy).IsActive {
		t.Error("busy conversation archived")
	}

	// A fresh manager reaches the persisted conversations through the KV.
	fresh := newManager(t, memory.Options{KV: kv})
	res, err = fresh.Sweep(context.Background(), t0.Add(45*24*time.Hour))
	if err != nil {
		t.Fatalf("Sweep() error: %v", err)
	}
	if res != (memory.SweepResult{Archived: 1, Deleted: 2}) {
		t.Errorf("second sweep = %+v, want 1 archived and 2 deleted", res)
	}
	if keys, _ := kv.Keys(context.Background(), "conversation_"); len(keys) != 0 {
		t.Errorf("conversations left after retention: %v", keys)
	}
	if list, _ := fresh.UserConversations(context.Background(), "u1", 0); len(list) != 0 {
		t.Errorf("user index still lists %d conversations", len(list))
	}
}

func TestSweep_Disabled(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	m := newManager(t, memory.Options{Now: clock.Now, Config: memory.Config{
		ArchiveAfterDays: -1,
		RetentionDays:    -1,
	}})
	mustCreate(t, m, "u1")

	res, err := m.Sweep(context.Background(), t0.Add(365*24*time.Hour))
	if err != nil {
		t.Fatalf("Sweep() error: %v", err)
	}
	if res != (memory.SweepResult{}) {
		t.Errorf("sweep = %+v, want nothing", res)
	}
}

func TestSweep_UnreadableConversationsAreSkipped(t *testing.T) {
	t.Parallel()

	kv := memorytest.NewFlakyKV()
	mustCreate(t, newManager(t, memory.Options{KV: kv}), "u1")

	fresh := newManager(t, memory.Options{KV: kv})
	kv.FailReads(true)
	res, err := fresh.Sweep(context.Background(), t0.Add(45*24*time.Hour))
	if err != nil {
		t.Fatalf("Sweep() error: %v", err)
	}
	if res != (memory.SweepResult{}) {
		t.Errorf("sweep = %+v, want nothing", res)
	}
}
