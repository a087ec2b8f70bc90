// Package mysql implements the memory.mysql module, a KV backend stored in
// a MySQL table through go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/flemzord/chatmem/internal/core"
	"github.com/flemzord/chatmem/internal/kvsql"
	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module provides a MySQL-backed memory.KV.
type Module struct {
	config Config
	db     *sql.DB
	store  *kvsql.Store
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "memory.mysql",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("mysql: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.logger = ctx.Logger
	store, db, err := Open(context.Background(), m.config)
	if err != nil {
		return err
	}
	m.db = db
	m.store = store
	ctx.RegisterService(core.ServiceMemoryKV, store)
	m.logger.Info("mysql memory backend provisioned", "max_open_conns", m.config.MaxOpenConns)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.store.Ping(context.Background())
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("mysql memory backend stopping")
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// ParseDSN parses dsn and checks that it names a database.
func ParseDSN(dsn string) (*mysql.Config, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: parse dsn: %w", err)
	}
	if mc.DBName == "" {
		return nil, fmt.Errorf("mysql: dsn must name a database")
	}
	return mc, nil
}

// Open connects to cfg.DSN and returns a migrated KV store. The caller
// closes the returned *sql.DB.
func Open(ctx context.Context, cfg Config) (*kvsql.Store, *sql.DB, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}

	mc, err := ParseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql: connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("mysql: connect: %w", err)
	}

	store := kvsql.New(db, kvsql.MySQL)
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, db, nil
}
