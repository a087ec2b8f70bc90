package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/flemzord/chatmem/internal/core"
	"github.com/flemzord/chatmem/internal/memory"
	"github.com/flemzord/chatmem/modules/memory/sqlite"
	"gopkg.in/yaml.v3"
)

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "memory.db")

	store, db, err := sqlite.Open(ctx, sqlite.Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Set(ctx, memory.ConversationKey("c1"), `{"id":"c1"}`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	_ = db.Close()

	store, db, err = sqlite.Open(ctx, sqlite.Config{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = db.Close() }()

	v, ok, err := store.Get(ctx, memory.ConversationKey("c1"))
	if err != nil || !ok {
		t.Fatalf("Get = %q, %v, %v", v, ok, err)
	}
	if v != `{"id":"c1"}` {
		t.Errorf("value = %q", v)
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "dir", "memory.db")

	_, db, err := sqlite.Open(context.Background(), sqlite.Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestOpen_RejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	if _, _, err := sqlite.Open(context.Background(), sqlite.Config{}); err == nil {
		t.Error("expected error for empty path")
	}
	cfg := sqlite.Config{Path: filepath.Join(t.TempDir(), "x.db"), BusyTimeout: -1}
	if _, _, err := sqlite.Open(context.Background(), cfg); err == nil {
		t.Error("expected error for negative busy_timeout")
	}
}

func TestModule_RegistersKV(t *testing.T) {
	t.Parallel()

	var node yaml.Node
	if err := yaml.Unmarshal([]byte("wal: false\n"), &node); err != nil {
		t.Fatal(err)
	}

	app := core.NewAppContext(nil, t.TempDir()).
		WithModuleConfigs(map[string]yaml.Node{"memory.sqlite": *node.Content[0]})
	mod, err := app.LoadModule("memory.sqlite")
	if err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	defer func() { _ = mod.(core.Stopper).Stop(context.Background()) }()

	kv, ok := core.ServiceAs[memory.KV](app, core.ServiceMemoryKV)
	if !ok {
		t.Fatal("memory.kv service not registered")
	}
	if _, ok := kv.(memory.Lister); !ok {
		t.Error("sqlite KV should support key listing")
	}
	if _, err := os.Stat(filepath.Join(app.DataDir, "memory.db")); err != nil {
		t.Errorf("default database path not used: %v", err)
	}
}
