package storage

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
)

func TestSchema_CreateFresh(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "snap.db")

	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer func() { _ = db.Close() }()

	version, err := schemaVersion(db)
	if err != nil {
		t.Fatalf("reading schema version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("schema version: want %d, got %d", currentSchemaVersion, version)
	}

	for _, tableName := range []string{"schema_version", "traces", "pulls"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", tableName).Scan(&name)
		if err == sql.ErrNoRows {
			t.Errorf("table %q not found", tableName)
		} else if err != nil {
			t.Fatalf("error checking table %q: %v", tableName, err)
		}
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("failed to read journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode: want wal, got %s", journalMode)
	}
}

func TestSchema_MigrateV1ToV2(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "snap.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if err := migrateV0ToV1(db); err != nil {
		t.Fatalf("migrateV0ToV1: %v", err)
	}
	_, err = db.Exec(`INSERT INTO traces (id, timestamp, provider, latency_ms, payload, saved_at)
		VALUES ('t1', '2026-02-15T10:00:00.000000000Z', 'gemini', 12.5, '{"id":"t1"}', '2026-02-15T10:00:00.000000000Z')`)
	if err != nil {
		t.Fatalf("seeding v1 trace: %v", err)
	}
	_ = db.Close()

	db, err = OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB on v1 database: %v", err)
	}
	defer func() { _ = db.Close() }()

	version, err := schemaVersion(db)
	if err != nil {
		t.Fatal(err)
	}
	if version != 2 {
		t.Errorf("want version 2 after migration, got %d", version)
	}

	var pullID sql.NullInt64
	if err := db.QueryRow("SELECT pull_id FROM traces WHERE id = 't1'").Scan(&pullID); err != nil {
		t.Fatalf("v1 row lost or pull_id missing: %v", err)
	}
	if pullID.Valid {
		t.Errorf("want NULL pull_id for migrated row, got %d", pullID.Int64)
	}
}

func TestSchema_RejectsNewerVersion(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "snap.db")

	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bumping version: %v", err)
	}
	_ = db.Close()

	_, err = OpenDB(dbPath)
	if err == nil {
		t.Fatal("expected error for newer schema version")
	}
	if !strings.Contains(err.Error(), "newer than this fa-top version") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSchema_ReopenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "snap.db")
	for i := 0; i < 2; i++ {
		db, err := OpenDB(dbPath)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		var rows int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&rows); err != nil {
			t.Fatal(err)
		}
		if rows != 1 {
			t.Errorf("open %d: want one schema_version row, got %d", i, rows)
		}
		_ = db.Close()
	}
}
