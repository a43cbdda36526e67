package db

import (
	"path/filepath"
	"testing"
)

func TestMigrations_UpDown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.db")

	version, dirty, err := MigrationVersionFromPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if version != 0 || dirty {
		t.Fatalf("fresh database at version %d dirty=%v", version, dirty)
	}

	if err := MigrateUpFromPath(path); err != nil {
		t.Fatalf("up: %v", err)
	}
	// Second run has nothing to do.
	if err := MigrateUpFromPath(path); err != nil {
		t.Fatalf("repeated up: %v", err)
	}

	version, dirty, err = MigrationVersionFromPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if version != SchemaVersion || dirty {
		t.Errorf("version = %d dirty=%v, want %d", version, dirty, SchemaVersion)
	}

	if err := MigrateDownFromPath(path, 1); err != nil {
		t.Fatalf("down 1: %v", err)
	}
	version, _, _ = MigrationVersionFromPath(path)
	if version != SchemaVersion-1 {
		t.Errorf("after one step down: version %d", version)
	}

	if err := MigrateDownFromPath(path, -1); err != nil {
		t.Fatalf("down all: %v", err)
	}
	version, _, _ = MigrationVersionFromPath(path)
	if version != 0 {
		t.Errorf("after full rollback: version %d", version)
	}
}

func TestMigrateUp_NilConnection(t *testing.T) {
	if err := MigrateUp(nil); err == nil {
		t.Error("expected error for nil connection")
	}
}
