package store

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the newest migration this build understands.
const SchemaVersion = 1

type migration struct {
	version int
	sql     func(opts SQLiteOptions) string
}

var migrations = []migration{
	{
		version: 1,
		sql: func(o SQLiteOptions) string {
			return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL DEFAULT '',
  %[2]s TEXT NULL,
  %[3]s INTEGER NULL,
  parent_id INTEGER NULL
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_path ON %[1]s(%[2]s);
CREATE INDEX IF NOT EXISTS idx_%[1]s_depth ON %[1]s(%[3]s);
`, o.Table, o.PathColumn, o.DepthColumn)
		},
	},
}

func ensureSchema(db *sql.DB, opts SQLiteOptions) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema_migrations version: %w", err)
	}
	if current > SchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", current, SchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}

		if _, err := tx.Exec(m.sql(opts)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?)`, m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}

	return nil
}
