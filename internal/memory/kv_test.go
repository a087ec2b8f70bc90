package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flemzord/chatmem/internal/memory"
	"github.com/flemzord/chatmem/internal/memory/memorytest"
)

func TestInMemoryKV(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := memory.NewInMemoryKV()

	_, ok, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "conversation_b", "2"))
	require.NoError(t, kv.Set(ctx, "conversation_a", "1"))
	require.NoError(t, kv.Set(ctx, "memory_settings", "{}"))

	v, ok, err := kv.Get(ctx, "conversation_a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	keys, err := kv.Keys(ctx, "conversation_")
	require.NoError(t, err)
	assert.Equal(t, []string{"conversation_a", "conversation_b"}, keys)

	require.NoError(t, kv.Remove(ctx, "conversation_a"))
	require.NoError(t, kv.Remove(ctx, "conversation_a"))
	assert.Equal(t, 2, kv.Len())
}

func TestBreakerKV_PassesThrough(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := memory.NewBreakerKV(memory.NewInMemoryKV(), memory.BreakerConfig{}, nil)

	require.NoError(t, b.Set(ctx, "conversation_x", "v"))
	v, ok, err := b.Get(ctx, "conversation_x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	keys, err := b.Keys(ctx, "conversation_")
	require.NoError(t, err)
	assert.Equal(t, []string{"conversation_x"}, keys)

	require.NoError(t, b.Remove(ctx, "conversation_x"))
	assert.Equal(t, "closed", b.State())
}

func TestBreakerKV_OpensAfterFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	inner := memorytest.NewFlakyKV()
	b := memory.NewBreakerKV(inner, memory.BreakerConfig{MaxFailures: 2, Timeout: time.Hour}, nil)

	inner.FailWrites(true)
	for i := 0; i < 2; i++ {
		err := b.Set(ctx, "k", "v")
		require.ErrorIs(t, err, memorytest.ErrInjected)
	}
	assert.Equal(t, "open", b.State())

	writes := inner.Writes()
	err := b.Set(ctx, "k", "v")
	require.ErrorIs(t, err, memory.ErrKVUnavailable)
	assert.Equal(t, writes, inner.Writes(), "open breaker must not reach the backend")

	_, _, err = b.Get(ctx, "k")
	assert.True(t, errors.Is(err, memory.ErrKVUnavailable))
}

func TestBreakerKV_ManagerSwallowsOpenBreaker(t *testing.T) {
	t.Parallel()

	inner := memorytest.NewFlakyKV()
	obs := &memorytest.RecordingObserver{}
	b := memory.NewBreakerKV(inner, memory.BreakerConfig{MaxFailures: 1, Timeout: time.Hour}, nil)
	m := newManager(t, memory.Options{KV: b, Observer: obs})

	id := mustCreate(t, m, "u1")
	inner.FailWrites(true)
	inner.FailReads(true)

	for i := 0; i < 3; i++ {
		_, err := m.AddMessage(context.Background(), id, memory.MessageInput{Role: "user", Content: "hi"})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, obs.Count(memory.EventPersistFailed))
	assert.Equal(t, "open", b.State())
}
