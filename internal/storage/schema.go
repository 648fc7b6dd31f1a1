package storage

import (
	"database/sql"
	"fmt"
)

const currentSchemaVersion = 1

// migrate creates the tables of a new database. Existing databases at the
// current version are left untouched.
func (db *DB) migrate() error {
	version, err := db.schemaVersion()
	if err != nil {
		return err
	}
	if version == currentSchemaVersion {
		db.logger.Debug("Database schema is up to date", "version", version)
		return nil
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	return db.WithTx(func(tx *sql.Tx) error {
		for _, stmt := range schemaV1 {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
		}
		if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
			return err
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", currentSchemaVersion); err != nil {
			return err
		}
		db.logger.Info("Database schema initialized", "version", currentSchemaVersion, "path", db.path)
		return nil
	})
}

func (db *DB) schemaVersion() (int, error) {
	var name string
	err := db.conn.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&name)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return version, err
}

var schemaV1 = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		scene TEXT NOT NULL,
		config_json TEXT NOT NULL,
		sources INTEGER NOT NULL,
		receivers INTEGER NOT NULL,
		bands_json TEXT NOT NULL,
		status TEXT NOT NULL CHECK(status IN ('running', 'completed', 'failed')),
		error TEXT,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		stats_json TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
	`CREATE TABLE IF NOT EXISTS receiver_levels (
		run_id TEXT NOT NULL,
		receiver_id INTEGER NOT NULL,
		power REAL NOT NULL,
		level REAL NOT NULL,
		processed INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		PRIMARY KEY (run_id, receiver_id),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS attenuation (
		run_id TEXT NOT NULL,
		receiver_id INTEGER NOT NULL,
		source_id INTEGER NOT NULL,
		levels_json TEXT NOT NULL,
		PRIMARY KEY (run_id, receiver_id, source_id),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS paths (
		run_id TEXT NOT NULL,
		receiver_id INTEGER NOT NULL,
		source_id INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		geometry BLOB NOT NULL,
		PRIMARY KEY (run_id, receiver_id, source_id, seq),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	)`,
}
