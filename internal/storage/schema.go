package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const currentSchemaVersion = 2

func OpenDB(dbPath string) (*sql.DB, error) {
	parentDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		return nil, fmt.Errorf("creating parent directories: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := migrateSchema(db, dbPath); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func schemaVersion(db *sql.DB) (int, error) {
	var tableName string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)
	if err == sql.ErrNoRows {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("checking schema_version table: %w", err)
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

func migrateSchema(db *sql.DB, dbPath string) error {
	currentVersion, err := schemaVersion(db)
	if err != nil {
		return err
	}

	if currentVersion > currentSchemaVersion {
		return fmt.Errorf(
			"snapshot schema version %d is newer than this fa-top version supports (max: %d); upgrade fa-top or delete %s to start fresh",
			currentVersion, currentSchemaVersion, dbPath,
		)
	}

	if currentVersion < currentSchemaVersion {
		if err := applyMigrations(db, currentVersion); err != nil {
			return fmt.Errorf("applying migrations: %w", err)
		}
	}

	return nil
}

func applyMigrations(db *sql.DB, fromVersion int) error {
	if fromVersion < 1 {
		if err := migrateV0ToV1(db); err != nil {
			return fmt.Errorf("migration v0→v1: %w", err)
		}
	}
	if fromVersion < 2 {
		if err := migrateV1ToV2(db); err != nil {
			return fmt.Errorf("migration v1→v2: %w", err)
		}
	}
	return nil
}

func migrateV0ToV1(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	_, err = tx.Exec("INSERT INTO schema_version (version) VALUES (1)")
	if err != nil {
		return fmt.Errorf("inserting schema version: %w", err)
	}

	// payload holds the full trace JSON; the other columns exist for
	// filtering and pruning.
	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS traces (
			id TEXT PRIMARY KEY,
			timestamp TEXT NOT NULL,
			provider TEXT NOT NULL,
			model TEXT,
			session_id TEXT,
			latency_ms REAL NOT NULL,
			prompt_tokens INTEGER,
			completion_tokens INTEGER,
			rating_score INTEGER,
			payload TEXT NOT NULL,
			saved_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating traces table: %w", err)
	}

	_, err = tx.Exec("CREATE INDEX IF NOT EXISTS idx_traces_ts ON traces(timestamp)")
	if err != nil {
		return fmt.Errorf("creating idx_traces_ts: %w", err)
	}

	_, err = tx.Exec("CREATE INDEX IF NOT EXISTS idx_traces_session ON traces(session_id)")
	if err != nil {
		return fmt.Errorf("creating idx_traces_session: %w", err)
	}

	_, err = tx.Exec("CREATE INDEX IF NOT EXISTS idx_traces_provider ON traces(provider)")
	if err != nil {
		return fmt.Errorf("creating idx_traces_provider: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// migrateV1ToV2 adds the pulls table so a snapshot records where and when
// each batch of traces came from.
func migrateV1ToV2(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS pulls (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			pulled_at TEXT NOT NULL,
			source TEXT NOT NULL,
			trace_count INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating pulls table: %w", err)
	}

	_, err = tx.Exec("ALTER TABLE traces ADD COLUMN pull_id INTEGER REFERENCES pulls(id) ON DELETE SET NULL")
	if err != nil {
		return fmt.Errorf("adding traces.pull_id: %w", err)
	}

	_, err = tx.Exec("UPDATE schema_version SET version = 2")
	if err != nil {
		return fmt.Errorf("updating schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
