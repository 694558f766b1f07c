package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	for _, table := range []string{"time_entry", "template", "schema_migrations"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}
}

func TestCheckDBMigrationStatus(t *testing.T) {
	t.Run("fresh database needs migration", func(t *testing.T) {
		db := openTestDB(t)

		err := CheckDBMigrationStatus(db)
		if err == nil {
			t.Fatal("CheckDBMigrationStatus() expected error for fresh database, got nil")
		}
		if err.Error() != "database has no schema version (needs migration)" {
			t.Errorf("CheckDBMigrationStatus() error = %q, want error about needing migration", err.Error())
		}
	})

	t.Run("ok after migration", func(t *testing.T) {
		db := openTestDB(t)
		if err := MigrateUp(db); err != nil {
			t.Fatalf("MigrateUp() failed: %v", err)
		}
		if err := CheckDBMigrationStatus(db); err != nil {
			t.Errorf("CheckDBMigrationStatus() after migration returned error: %v", err)
		}
	})
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}
	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after double migration returned error: %v", err)
	}
}

func TestLatestVersion(t *testing.T) {
	v, err := LatestVersion()
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if v != 2 {
		t.Errorf("LatestVersion() = %d, want 2", v)
	}
}

func TestSchema_RejectsZeroDuration(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec(`
		INSERT INTO time_entry (uloha, autor, datum, hodiny, minuty, created_at, modified_at)
		VALUES ('T-1', 'Jan', '2024-01-15', 0, 0, 'now', 'now')
	`)
	if err == nil {
		t.Error("Expected check constraint violation for zero duration, but insert succeeded")
	}
}

func TestSchema_RejectsHalfSubmittedEntry(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec(`
		INSERT INTO time_entry (uloha, autor, datum, hodiny, minuty, created_at, modified_at, submitted_to_metaapp_at)
		VALUES ('T-1', 'Jan', '2024-01-15', 1, 0, 'now', 'now', 'now')
	`)
	if err == nil {
		t.Error("Expected check constraint violation for timestamp without external id, but insert succeeded")
	}
}

func TestSchema_VykazIDUnique(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	insert := `
		INSERT INTO time_entry (uloha, autor, datum, hodiny, minuty, created_at, modified_at, submitted_to_metaapp_at, metaapp_vykaz_id)
		VALUES ('T-1', 'Jan', '2024-01-15', 1, 0, 'now', 'now', ?, ?)
	`
	if _, err := db.Exec(insert, "now", 77); err != nil {
		t.Fatalf("Failed to insert first entry: %v", err)
	}
	if _, err := db.Exec(insert, "now", 77); err == nil {
		t.Error("Expected unique constraint violation for duplicate vykaz id, but insert succeeded")
	}

	// Unsubmitted entries are not constrained.
	unsubmitted := `
		INSERT INTO time_entry (uloha, autor, datum, hodiny, minuty, created_at, modified_at)
		VALUES ('T-1', 'Jan', '2024-01-15', 1, 0, 'now', 'now')
	`
	for i := 0; i < 2; i++ {
		if _, err := db.Exec(unsubmitted); err != nil {
			t.Fatalf("Failed to insert unsubmitted entry %d: %v", i, err)
		}
	}
}

// openTestDB opens an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	return db
}
