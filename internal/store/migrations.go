package store

import "database/sql"

// migrate runs all database migrations
func migrate(db *sql.DB) error {
	migrations := []string{
		// Activities
		`CREATE TABLE IF NOT EXISTS activities (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			start_time INTEGER NOT NULL,
			recording INTEGER NOT NULL DEFAULT 0,
			gradient TEXT,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_activities_start_time ON activities(start_time)`,

		// Continuous sensor samples, one row per reading
		`CREATE TABLE IF NOT EXISTS samples (
			activity_id TEXT NOT NULL,
			sensor TEXT NOT NULL,
			ts_ms INTEGER NOT NULL,
			value REAL,
			text_value TEXT,
			FOREIGN KEY (activity_id) REFERENCES activities(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_samples_sensor ON samples(activity_id, sensor, ts_ms)`,

		// Structured records (lap events, accelerometer) kept as JSON
		`CREATE TABLE IF NOT EXISTS records (
			activity_id TEXT NOT NULL,
			sensor TEXT NOT NULL,
			ts_ms INTEGER NOT NULL,
			payload TEXT NOT NULL,
			FOREIGN KEY (activity_id) REFERENCES activities(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_records_sensor ON records(activity_id, sensor, ts_ms)`,

		// Last access token issued to the API client (single row)
		`CREATE TABLE IF NOT EXISTS api_token (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			access_token TEXT NOT NULL,
			token_type TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}

	return nil
}
