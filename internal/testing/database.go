package testing

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/teranos/serveradmin/db"
)

// CreateTestDB creates a migrated SQLite database in the test's temp dir.
// A file is used rather than :memory: because every pooled connection of
// an in-memory database would see its own empty schema.
// Automatically registers cleanup via t.Cleanup().
func CreateTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.OpenWithMigrations(filepath.Join(t.TempDir(), "serveradmin.db"), nil)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		database.Close()
	})

	return database
}
