// Package sqlite implements the memory.sqlite module: a persistent KV
// backend for the conversation memory manager. It uses modernc.org/sqlite
// (pure Go, no CGO) in WAL mode.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/flemzord/chatmem/internal/core"
	"github.com/flemzord/chatmem/internal/kvsql"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module provides a SQLite-backed memory.KV.
type Module struct {
	config Config
	db     *sql.DB
	store  *kvsql.Store
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "memory.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}

	store, db, err := Open(context.Background(), m.config)
	if err != nil {
		return err
	}
	m.db = db
	m.store = store

	ctx.RegisterService(core.ServiceMemoryKV, store)

	m.logger.Info("sqlite memory backend provisioned",
		"path", m.config.Path,
		"wal", m.config.walEnabled(),
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}
	return m.store.Ping(context.Background())
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("sqlite memory backend stopping")
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// Store returns the KV store.
func (m *Module) Store() *kvsql.Store {
	return m.store
}
