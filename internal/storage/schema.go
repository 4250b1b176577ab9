package storage

import (
	"context"
	"database/sql"
)

// Schema version tracking
const currentSchemaVersion = 1

var tables = []string{"ast_cache", "snapshots"}

// migrate creates the schema, or rebuilds it when the stored version differs.
func (db *DB) migrate() error {
	ctx := context.Background()
	version, err := db.getSchemaVersion(ctx)
	if err != nil {
		return err
	}
	if version == currentSchemaVersion {
		db.logger.Debug("Database schema is up to date", "version", version)
		return nil
	}

	if version != 0 {
		db.logger.Info("Rebuilding database schema", "from_version", version, "to_version", currentSchemaVersion)
	}

	return db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, t := range tables {
			if _, err := tx.Exec("DROP TABLE IF EXISTS " + t); err != nil {
				return err
			}
		}
		if err := createSchemaVersionTable(tx); err != nil {
			return err
		}
		if err := createASTCacheTable(tx); err != nil {
			return err
		}
		if err := createSnapshotsTable(tx); err != nil {
			return err
		}
		return setSchemaVersion(tx, currentSchemaVersion)
	})
}

// getSchemaVersion gets the current schema version, 0 for a new database
func (db *DB) getSchemaVersion(ctx context.Context) (int, error) {
	var tableName string
	err := db.QueryRowContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return version, err
}

func setSchemaVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

// createASTCacheTable creates the persistent parse cache tier.
// Timestamps are unix nanoseconds.
func createASTCacheTable(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE ast_cache (
			key          TEXT PRIMARY KEY,
			version      INTEGER NOT NULL,
			language     TEXT NOT NULL,
			payload      BLOB NOT NULL,
			compressed   INTEGER NOT NULL DEFAULT 0,
			size_bytes   INTEGER NOT NULL,
			created_at   INTEGER NOT NULL,
			expires_at   INTEGER NOT NULL,
			accessed_at  INTEGER NOT NULL
		)
	`); err != nil {
		return err
	}
	if _, err := tx.Exec(`CREATE INDEX idx_ast_cache_accessed ON ast_cache(accessed_at)`); err != nil {
		return err
	}
	_, err := tx.Exec(`CREATE INDEX idx_ast_cache_expires ON ast_cache(expires_at)`)
	return err
}

// createSnapshotsTable stores serialized project snapshots per root.
func createSnapshotsTable(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE snapshots (
			id          TEXT PRIMARY KEY,
			root        TEXT NOT NULL,
			created_at  INTEGER NOT NULL,
			payload     BLOB NOT NULL
		)
	`); err != nil {
		return err
	}
	_, err := tx.Exec(`CREATE INDEX idx_snapshots_root ON snapshots(root, created_at)`)
	return err
}
