// Package bolt implements the memory.bolt module, an embedded KV backend
// stored in a single bbolt file.
package bolt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/flemzord/chatmem/internal/core"
	"github.com/flemzord/chatmem/internal/memory"
	bolt "go.etcd.io/bbolt"
	"gopkg.in/yaml.v3"
)

const (
	defaultDBFile      = "memory.bolt"
	defaultOpenTimeout = time.Second
)

var bucketKV = []byte("kv")

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
	_ memory.KV         = (*Store)(nil)
	_ memory.Lister     = (*Store)(nil)
)

// Config holds the bolt memory module configuration.
type Config struct {
	// Path is the database file. Defaults to {DataDir}/memory.bolt.
	Path string `yaml:"path"`

	// Timeout bounds how long Open waits for the file lock.
	Timeout time.Duration `yaml:"timeout"`
}

// Module provides a bbolt-backed memory.KV.
type Module struct {
	config Config
	store  *Store
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "memory.bolt",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("bolt: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.logger = ctx.Logger
	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}
	store, err := Open(m.config)
	if err != nil {
		return err
	}
	m.store = store
	ctx.RegisterService(core.ServiceMemoryKV, store)
	m.logger.Info("bolt memory backend provisioned", "path", m.config.Path)
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("bolt memory backend stopping")
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}

// Store implements memory.KV on a single bbolt bucket.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the bolt file at cfg.Path.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("bolt: path is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultOpenTimeout
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
		return nil, fmt.Errorf("bolt: create directory: %w", err)
	}

	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("bolt: open %s: %w", cfg.Path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketKV)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt: create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get implements memory.KV.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketKV).Get([]byte(key))
		if v != nil {
			// v is only valid inside the transaction.
			value, found = string(v), true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("bolt: get %s: %w", key, err)
	}
	return value, found, nil
}

// Set implements memory.KV.
func (s *Store) Set(_ context.Context, key, value string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKV).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("bolt: set %s: %w", key, err)
	}
	return nil
}

// Remove implements memory.KV.
func (s *Store) Remove(_ context.Context, key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKV).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("bolt: remove %s: %w", key, err)
	}
	return nil
}

// Keys implements memory.Lister. Keys come back in byte order.
func (s *Store) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	p := []byte(prefix)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketKV).Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bolt: list keys: %w", err)
	}
	return keys, nil
}
