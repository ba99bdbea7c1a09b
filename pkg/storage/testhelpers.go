package storage

import (
	"context"
	"database/sql"
	"testing"
)

// OpenTestDB returns a migrated in-memory SQLite database that is closed when
// the test finishes
func OpenTestDB(t testing.TB) *sql.DB {
	t.Helper()

	cfg := DefaultConfig()
	cfg.URL = ":memory:"

	ctx := context.Background()
	db, dialect, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := Migrate(ctx, db, dialect); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}
