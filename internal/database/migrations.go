package database

// migration is a named group of statements applied in one transaction.
type migration struct {
	name  string
	stmts []string
}

// migrations are applied in order; a migration's version is its 1-based
// index. Append only.
var migrations = []migration{
	{"record store", []string{
		`CREATE TABLE object_types (
			id TEXT PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			label_singular TEXT NOT NULL,
			label_plural TEXT NOT NULL,
			is_custom BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE objects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			object_type_id TEXT NOT NULL,
			archived BOOLEAN NOT NULL DEFAULT FALSE,
			archived_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (object_type_id) REFERENCES object_types(id)
		)`,
		`CREATE INDEX idx_objects_type ON objects(object_type_id, archived)`,

		`CREATE TABLE property_values (
			object_id INTEGER NOT NULL,
			property_name TEXT NOT NULL,
			value TEXT,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (object_id, property_name),
			FOREIGN KEY (object_id) REFERENCES objects(id)
		)`,

		`CREATE TABLE property_value_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			object_id INTEGER NOT NULL,
			property_name TEXT NOT NULL,
			value TEXT,
			timestamp TEXT NOT NULL,
			FOREIGN KEY (object_id) REFERENCES objects(id)
		)`,
		`CREATE INDEX idx_prop_history ON property_value_history(object_id, property_name, timestamp)`,
	}},

	{"schedule runs", []string{
		`CREATE TABLE schedule_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			schedule_id TEXT NOT NULL,
			report_id TEXT NOT NULL,
			ran_at TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			rows INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX idx_schedule_runs ON schedule_runs(schedule_id, ran_at)`,
	}},
}
