package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/johnwards/insights/internal/domain"
)

const objectKind = "object"

// ObjectStore defines the interface for record persistence.
type ObjectStore interface {
	Create(ctx context.Context, objectType string, properties map[string]string) (*domain.Object, error)
	BatchCreate(ctx context.Context, objectType string, inputs []domain.CreateInput) ([]*domain.Object, error)
	Get(ctx context.Context, objectType, id string) (*domain.Object, error)
	List(ctx context.Context, objectType string, opts domain.ListOpts) (*domain.ObjectPage, error)
	Update(ctx context.Context, objectType, id string, properties map[string]string) (*domain.Object, error)
	Archive(ctx context.Context, objectType, id string) error
	FetchRecords(ctx context.Context, objectType string) ([]domain.Record, error)
}

// SQLiteObjectStore implements ObjectStore backed by SQLite.
type SQLiteObjectStore struct {
	db *sql.DB
}

// NewSQLiteObjectStore creates a new SQLiteObjectStore.
func NewSQLiteObjectStore(db *sql.DB) *SQLiteObjectStore {
	return &SQLiteObjectStore{db: db}
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Create inserts an object with the given properties. Unknown object types
// are registered on first write.
func (s *SQLiteObjectStore) Create(ctx context.Context, objectType string, properties map[string]string) (*domain.Object, error) {
	objs, err := s.BatchCreate(ctx, objectType, []domain.CreateInput{{Properties: properties}})
	if err != nil {
		return nil, err
	}
	return objs[0], nil
}

// BatchCreate inserts every input in one transaction.
func (s *SQLiteObjectStore) BatchCreate(ctx context.Context, objectType string, inputs []domain.CreateInput) ([]*domain.Object, error) {
	typeID, err := EnsureObjectType(ctx, s.db, objectType)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin batch create: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ts := now()
	out := make([]*domain.Object, 0, len(inputs))
	for _, in := range inputs {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO objects (object_type_id, created_at, updated_at) VALUES (?, ?, ?)`,
			typeID, ts, ts,
		)
		if err != nil {
			return nil, fmt.Errorf("insert object: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		if err := setProperties(ctx, tx, id, in.Properties, ts); err != nil {
			return nil, err
		}

		props := make(map[string]string, len(in.Properties))
		for k, v := range in.Properties {
			props[k] = v
		}
		out = append(out, &domain.Object{
			ID:         strconv.FormatInt(id, 10),
			ObjectType: objectType,
			Properties: props,
			CreatedAt:  ts,
			UpdatedAt:  ts,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch create: %w", err)
	}
	return out, nil
}

// Get retrieves a single object with all of its properties.
func (s *SQLiteObjectStore) Get(ctx context.Context, objectType, id string) (*domain.Object, error) {
	typeID, err := ResolveObjectType(ctx, s.db, objectType)
	if err != nil {
		return nil, err
	}

	obj := domain.Object{ObjectType: objectType}
	var archivedAt sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT id, archived, archived_at, created_at, updated_at FROM objects WHERE id = ? AND object_type_id = ?`,
		id, typeID,
	).Scan(&obj.ID, &obj.Archived, &archivedAt, &obj.CreatedAt, &obj.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Kind: objectKind, ID: id}
		}
		return nil, fmt.Errorf("get object %s: %w", id, err)
	}
	if archivedAt.Valid {
		obj.ArchivedAt = archivedAt.String
	}

	obj.Properties, err = s.properties(ctx, obj.ID)
	if err != nil {
		return nil, err
	}
	return &obj, nil
}

// List returns a page of objects ordered by id.
func (s *SQLiteObjectStore) List(ctx context.Context, objectType string, opts domain.ListOpts) (*domain.ObjectPage, error) {
	typeID, err := ResolveObjectType(ctx, s.db, objectType)
	if err != nil {
		return nil, err
	}

	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}

	query := `SELECT id, archived, archived_at, created_at, updated_at FROM objects WHERE object_type_id = ? AND archived = ?`
	args := []any{typeID, opts.Archived}
	if opts.After != "" {
		query += ` AND id > ?`
		args = append(args, opts.After)
	}

	// Fetch one extra to determine if there is a next page.
	query += ` ORDER BY id ASC LIMIT ?`
	args = append(args, opts.Limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	page := &domain.ObjectPage{Results: []*domain.Object{}}
	for rows.Next() {
		obj := domain.Object{ObjectType: objectType}
		var archivedAt sql.NullString
		if err := rows.Scan(&obj.ID, &obj.Archived, &archivedAt, &obj.CreatedAt, &obj.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		if archivedAt.Valid {
			obj.ArchivedAt = archivedAt.String
		}
		page.Results = append(page.Results, &obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	_ = rows.Close()

	if len(page.Results) > opts.Limit {
		page.HasMore = true
		page.After = page.Results[opts.Limit-1].ID
		page.Results = page.Results[:opts.Limit]
	}

	for _, obj := range page.Results {
		obj.Properties, err = s.properties(ctx, obj.ID)
		if err != nil {
			return nil, err
		}
	}
	return page, nil
}

// Update merges properties into an existing, non-archived object.
func (s *SQLiteObjectStore) Update(ctx context.Context, objectType, id string, properties map[string]string) (*domain.Object, error) {
	obj, err := s.Get(ctx, objectType, id)
	if err != nil {
		return nil, err
	}
	if obj.Archived {
		return nil, &domain.NotFoundError{Kind: objectKind, ID: id}
	}

	objID, err := strconv.ParseInt(obj.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse object id %s: %w", obj.ID, err)
	}
	ts := now()
	if err := setProperties(ctx, s.db, objID, properties, ts); err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE objects SET updated_at = ? WHERE id = ?`, ts, objID); err != nil {
		return nil, fmt.Errorf("touch object %s: %w", id, err)
	}
	return s.Get(ctx, objectType, id)
}

// Archive soft-deletes an object. Archived objects are excluded from
// FetchRecords.
func (s *SQLiteObjectStore) Archive(ctx context.Context, objectType, id string) error {
	typeID, err := ResolveObjectType(ctx, s.db, objectType)
	if err != nil {
		return err
	}
	ts := now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE objects SET archived = TRUE, archived_at = ?, updated_at = ? WHERE id = ? AND object_type_id = ? AND archived = FALSE`,
		ts, ts, id, typeID,
	)
	if err != nil {
		return fmt.Errorf("archive object %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return &domain.NotFoundError{Kind: objectKind, ID: id}
	}
	return nil
}

// FetchRecords returns every non-archived object of objectType flattened into
// records: all properties plus id, createdAt and updatedAt. It reads the
// whole type in a single query.
func (s *SQLiteObjectStore) FetchRecords(ctx context.Context, objectType string) ([]domain.Record, error) {
	typeID, err := ResolveObjectType(ctx, s.db, objectType)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT o.id, o.created_at, o.updated_at, pv.property_name, pv.value
		 FROM objects o
		 LEFT JOIN property_values pv ON pv.object_id = o.id
		 WHERE o.object_type_id = ? AND o.archived = FALSE
		 ORDER BY o.id ASC`,
		typeID,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch %s records: %w", objectType, err)
	}
	defer func() { _ = rows.Close() }()

	records := []domain.Record{}
	var (
		cur   *domain.Object
		curID int64 = -1
	)
	for rows.Next() {
		var (
			id                 int64
			createdAt, updated string
			name, value        sql.NullString
		)
		if err := rows.Scan(&id, &createdAt, &updated, &name, &value); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if id != curID {
			if cur != nil {
				records = append(records, cur.Record())
			}
			curID = id
			cur = &domain.Object{
				ID:         strconv.FormatInt(id, 10),
				ObjectType: objectType,
				Properties: map[string]string{},
				CreatedAt:  createdAt,
				UpdatedAt:  updated,
			}
		}
		if name.Valid {
			cur.Properties[name.String] = value.String
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	if cur != nil {
		records = append(records, cur.Record())
	}
	return records, nil
}

// properties fetches every property value of an object.
func (s *SQLiteObjectStore) properties(ctx context.Context, objectID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT property_name, value FROM property_values WHERE object_id = ?`, objectID,
	)
	if err != nil {
		return nil, fmt.Errorf("get properties: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]string)
	for rows.Next() {
		var name string
		var value sql.NullString
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		result[name] = value.String
	}
	return result, rows.Err()
}

// setProperties upserts property values and records history.
func setProperties(ctx context.Context, db execer, objectID int64, props map[string]string, ts string) error {
	for name, value := range props {
		_, err := db.ExecContext(ctx,
			`INSERT INTO property_values (object_id, property_name, value, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(object_id, property_name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			objectID, name, value, ts,
		)
		if err != nil {
			return fmt.Errorf("set property %s: %w", name, err)
		}

		_, err = db.ExecContext(ctx,
			`INSERT INTO property_value_history (object_id, property_name, value, timestamp) VALUES (?, ?, ?, ?)`,
			objectID, name, value, ts,
		)
		if err != nil {
			return fmt.Errorf("record property history %s: %w", name, err)
		}
	}
	return nil
}
