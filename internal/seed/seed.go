package seed

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// Seed inserts the standard object types. It is idempotent; existing rows are
// left untouched.
func Seed(ctx context.Context, db *sql.DB) error {
	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	names := make([]string, 0, len(StandardTypes))
	for name := range StandardTypes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def := StandardTypes[name]
		_, err := db.ExecContext(ctx,
			`INSERT OR IGNORE INTO object_types (id, name, label_singular, label_plural, is_custom, created_at, updated_at)
			 VALUES (?, ?, ?, ?, FALSE, ?, ?)`,
			def.ID, name, def.Singular, def.Plural, ts, ts,
		)
		if err != nil {
			return fmt.Errorf("seed object type %s: %w", name, err)
		}
	}
	return nil
}
