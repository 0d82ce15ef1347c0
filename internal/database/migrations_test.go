package database_test

import (
	"context"
	"testing"

	"github.com/johnwards/insights/internal/database"
	"github.com/johnwards/insights/internal/testhelpers"
)

func TestMigrationsCreateAllTables(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for _, table := range []string{
		"schema_migrations",
		"object_types",
		"objects",
		"property_values",
		"property_value_history",
		"schedule_runs",
	} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}

	for _, idx := range []string{"idx_objects_type", "idx_prop_history", "idx_schedule_runs"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&name)
		if err != nil {
			t.Errorf("index %q not found: %v", idx, err)
		}
	}
}

func TestMigrationsRecordEveryVersion(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := database.Migrate(ctx, db); err != nil {
			t.Fatalf("migrate (run %d): %v", i+1, err)
		}
	}

	var count, latest int
	if err := db.QueryRow("SELECT COUNT(*), MAX(version) FROM schema_migrations").Scan(&count, &latest); err != nil {
		t.Fatalf("query versions: %v", err)
	}
	if count != 2 || latest != 2 {
		t.Errorf("versions: count=%d latest=%d, want 2 and 2", count, latest)
	}
}

func TestMigrationsRecordNames(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	rows, err := db.Query("SELECT version, name FROM schema_migrations ORDER BY version")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer func() { _ = rows.Close() }()

	want := []string{"record store", "schedule runs"}
	var got []string
	for rows.Next() {
		var (
			version int
			name    string
		)
		if err := rows.Scan(&version, &name); err != nil {
			t.Fatalf("scan: %v", err)
		}
		if version != len(got)+1 {
			t.Errorf("version %d out of order", version)
		}
		got = append(got, name)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("names = %v, want %v", got, want)
	}
}
