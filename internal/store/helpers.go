package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/johnwards/insights/internal/domain"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

// now returns the current UTC time formatted as a stored timestamp.
func now() string {
	return time.Now().UTC().Format(timestampLayout)
}

// ResolveObjectType resolves an object type name like "deals" or an id like
// "0-3" to the id used in the database.
func ResolveObjectType(ctx context.Context, db *sql.DB, objectType string) (string, error) {
	var typeID string
	err := db.QueryRowContext(ctx,
		`SELECT id FROM object_types WHERE name = ? OR id = ?`,
		objectType, objectType,
	).Scan(&typeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", &domain.NotFoundError{Kind: "object type", ID: objectType}
		}
		return "", fmt.Errorf("resolve object type: %w", err)
	}
	return typeID, nil
}

// EnsureObjectType returns the id of objectType, registering it as a custom
// type when it does not exist yet.
func EnsureObjectType(ctx context.Context, db *sql.DB, objectType string) (string, error) {
	typeID, err := ResolveObjectType(ctx, db, objectType)
	if err == nil || !errors.Is(err, domain.ErrNotFound) {
		return typeID, err
	}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM object_types WHERE is_custom = TRUE`).Scan(&n); err != nil {
		return "", fmt.Errorf("count custom types: %w", err)
	}
	typeID = fmt.Sprintf("2-%d", n+1)
	ts := now()
	_, err = db.ExecContext(ctx,
		`INSERT INTO object_types (id, name, label_singular, label_plural, is_custom, created_at, updated_at)
		 VALUES (?, ?, ?, ?, TRUE, ?, ?)`,
		typeID, objectType, objectType, objectType, ts, ts,
	)
	if err != nil {
		return "", fmt.Errorf("create object type %s: %w", objectType, err)
	}
	return typeID, nil
}
