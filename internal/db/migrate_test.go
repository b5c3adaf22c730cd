package db

import "testing"

func TestMigrationsApplyAndAreIdempotent(t *testing.T) {
	database, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer database.Close()

	migrator := NewMigrator(database.DB)
	if err := migrator.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	version, err := migrator.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if version != 0 {
		t.Errorf("fresh version = %d, want 0", version)
	}

	if err := migrator.Up(); err != nil {
		t.Fatalf("Up failed: %v", err)
	}

	version, err = migrator.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("version = %d, want %d", version, len(migrations))
	}

	// A second Up must be a no-op.
	if err := migrator.Up(); err != nil {
		t.Fatalf("second Up failed: %v", err)
	}
	again, _ := migrator.CurrentVersion()
	if again != version {
		t.Errorf("version after second Up = %d, want %d", again, version)
	}
}

func TestMigrationsCreateQueueTables(t *testing.T) {
	database, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer database.Close()

	migrator := NewMigrator(database.DB)
	if err := migrator.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := migrator.Up(); err != nil {
		t.Fatalf("Up failed: %v", err)
	}

	for _, table := range []string{"pending_operations", "cached_user", "schema_migrations"} {
		var name string
		err := database.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}
