// Package kvsql stores memory KV entries in a single SQL table. The same
// Store serves SQLite, PostgreSQL and MySQL; only the statements differ.
package kvsql

// Table is the name of the key-value table.
const Table = "chatmem_kv"

// schemaVersion is bumped whenever Dialect.Schema changes.
const schemaVersion = 1

// Dialect holds the statements for one SQL engine.
type Dialect struct {
	Name string

	// Schema creates the KV table. Every statement is idempotent.
	Schema []string

	// VersionTable creates the schema_version table.
	VersionTable string

	// RecordVersion inserts the schema version, ignoring duplicates.
	RecordVersion string

	Get    string
	Upsert string
	Delete string

	// Keys selects keys with a LIKE prefix pattern using '!' as escape.
	Keys string
}

// SQLite is the dialect for modernc.org/sqlite.
var SQLite = Dialect{
	Name: "sqlite",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS chatmem_kv (
			kv_key     TEXT    PRIMARY KEY,
			kv_value   TEXT    NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT 0
		)`,
	},
	VersionTable:  `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`,
	RecordVersion: `INSERT OR REPLACE INTO schema_version (version) VALUES (?)`,
	Get:           `SELECT kv_value FROM chatmem_kv WHERE kv_key = ?`,
	Upsert: `INSERT INTO chatmem_kv (kv_key, kv_value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(kv_key) DO UPDATE SET kv_value = excluded.kv_value, updated_at = excluded.updated_at`,
	Delete: `DELETE FROM chatmem_kv WHERE kv_key = ?`,
	Keys:   `SELECT kv_key FROM chatmem_kv WHERE kv_key LIKE ? ESCAPE '!' ORDER BY kv_key`,
}

// Postgres is the dialect for github.com/lib/pq.
var Postgres = Dialect{
	Name: "postgres",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS chatmem_kv (
			kv_key     TEXT   PRIMARY KEY,
			kv_value   TEXT   NOT NULL,
			updated_at BIGINT NOT NULL DEFAULT 0
		)`,
	},
	VersionTable:  `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`,
	RecordVersion: `INSERT INTO schema_version (version) VALUES ($1) ON CONFLICT DO NOTHING`,
	Get:           `SELECT kv_value FROM chatmem_kv WHERE kv_key = $1`,
	Upsert: `INSERT INTO chatmem_kv (kv_key, kv_value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (kv_key) DO UPDATE SET kv_value = EXCLUDED.kv_value, updated_at = EXCLUDED.updated_at`,
	Delete: `DELETE FROM chatmem_kv WHERE kv_key = $1`,
	Keys:   `SELECT kv_key FROM chatmem_kv WHERE kv_key LIKE $1 ESCAPE '!' ORDER BY kv_key`,
}

// MySQL is the dialect for github.com/go-sql-driver/mysql.
var MySQL = Dialect{
	Name: "mysql",
	Schema: []string{
		"CREATE TABLE IF NOT EXISTS `chatmem_kv` (" +
			"`kv_key` VARCHAR(255) NOT NULL PRIMARY KEY," +
			"`kv_value` LONGTEXT NOT NULL," +
			"`updated_at` BIGINT NOT NULL DEFAULT 0" +
			") DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin",
	},
	VersionTable:  "CREATE TABLE IF NOT EXISTS `schema_version` (`version` INT NOT NULL PRIMARY KEY)",
	RecordVersion: "INSERT IGNORE INTO `schema_version` (`version`) VALUES (?)",
	Get:           "SELECT `kv_value` FROM `chatmem_kv` WHERE `kv_key` = ?",
	Upsert: "INSERT INTO `chatmem_kv` (`kv_key`, `kv_value`, `updated_at`) VALUES (?, ?, ?) " +
		"ON DUPLICATE KEY UPDATE `kv_value` = VALUES(`kv_value`), `updated_at` = VALUES(`updated_at`)",
	Delete: "DELETE FROM `chatmem_kv` WHERE `kv_key` = ?",
	Keys:   "SELECT `kv_key` FROM `chatmem_kv` WHERE `kv_key` LIKE ? ESCAPE '!' ORDER BY `kv_key`",
}
