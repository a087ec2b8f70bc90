package kvsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flemzord/chatmem/internal/memory"
)

// Store implements memory.KV and memory.Lister on top of database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// Compile-time interface checks.
var (
	_ memory.KV     = (*Store)(nil)
	_ memory.Lister = (*Store)(nil)
)

// New wraps db. The caller owns db and closes it.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, now: time.Now}
}

// Dialect returns the dialect name.
func (s *Store) Dialect() string { return s.dialect.Name }

// Migrate creates the schema if the recorded version is older than the
// current one.
func (s *Store) Migrate(ctx context.Context) error {
	name := s.dialect.Name
	if _, err := s.db.ExecContext(ctx, s.dialect.VersionTable); err != nil {
		return fmt.Errorf("%s: create schema_version: %w", name, err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("%s: read schema version: %w", name, err)
	}
	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range s.dialect.Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: migrate: %w\nstatement: %s", name, err, stmt)
		}
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.RecordVersion, schemaVersion); err != nil {
		return fmt.Errorf("%s: record schema version: %w", name, err)
	}
	return nil
}

// Ping verifies the database is reachable and the KV table exists.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%s: ping: %w", s.dialect.Name, err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+Table).Scan(&n); err != nil {
		return fmt.Errorf("%s: kv table not available: %w", s.dialect.Name, err)
	}
	return nil
}

// Get implements memory.KV.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, s.dialect.Get, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%s: get %s: %w", s.dialect.Name, key, err)
	}
	return v, true, nil
}

// Set implements memory.KV.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.Upsert, key, value, s.now().UnixMilli()); err != nil {
		return fmt.Errorf("%s: set %s: %w", s.dialect.Name, key, err)
	}
	return nil
}

// Remove implements memory.KV.
func (s *Store) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.Delete, key); err != nil {
		return fmt.Errorf("%s: remove %s: %w", s.dialect.Name, key, err)
	}
	return nil
}

// Keys implements memory.Lister.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Keys, likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("%s: list keys: %w", s.dialect.Name, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("%s: scan key: %w", s.dialect.Name, err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: list keys: %w", s.dialect.Name, err)
	}
	return keys, nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// likePrefix turns prefix into a LIKE pattern matching it literally.
func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}
