package store

import "database/sql"

// Store holds all sub-stores used by the application.
type Store struct {
	DB      *sql.DB
	Objects *SQLiteObjectStore
	Runs    *SQLiteRunStore
}

// New creates a Store with all sub-stores initialized.
func New(db *sql.DB) *Store {
	return &Store{
		DB:      db,
		Objects: NewSQLiteObjectStore(db),
		Runs:    NewSQLiteRunStore(db),
	}
}
