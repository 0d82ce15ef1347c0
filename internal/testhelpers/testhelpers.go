package testhelpers

import (
	"context"
	"database/sql"
	"testing"

	"github.com/johnwards/insights/internal/database"
	"github.com/johnwards/insights/internal/seed"
)

// NewTestDB returns an in-memory SQLite database configured the same way as
// production. The database is automatically closed when the test completes.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// NewSeededDB returns an in-memory database with every migration applied and
// the standard object types seeded.
func NewSeededDB(t *testing.T) *sql.DB {
	t.Helper()

	db := NewTestDB(t)
	ctx := context.Background()
	if err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := seed.Seed(ctx, db); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return db
}
