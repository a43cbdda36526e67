package db

import (
	"path/filepath"
	"testing"
)

// openTestDB opens a migrated database in a temp directory.
func openTestDB(t *testing.T) *Database {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "data", "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestOpen_CreatesSchema(t *testing.T) {
	database := openTestDB(t)

	if err := database.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	for _, table := range []string{"runs", "factor_values"} {
		var name string
		err := database.DB().QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestDatabase_CloseTwice(t *testing.T) {
	database, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := database.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := database.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := database.Ping(); err == nil {
		t.Error("Ping after Close should fail")
	}
}

func TestNewSQLiteConnection_WAL(t *testing.T) {
	conn, err := NewSQLiteConnectionWithDefaults(filepath.Join(t.TempDir(), "wal.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	var fk int
	if err := conn.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil || fk != 1 {
		t.Errorf("foreign_keys = %d, err = %v", fk, err)
	}
}
