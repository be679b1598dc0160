package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Calibrations table - one row per accepted keyboard model
		`CREATE TABLE IF NOT EXISTS calibrations (
			id TEXT PRIMARY KEY,
			strategy TEXT NOT NULL CHECK(strategy IN ('touch', 'tape', 'imported')),
			orientation TEXT NOT NULL CHECK(orientation IN ('inverted', 'upright')),
			quad TEXT NOT NULL,
			perimeter TEXT NOT NULL,
			boundaries TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Key polygons table - the 88 key outlines of a calibration
		`CREATE TABLE IF NOT EXISTS key_polygons (
			calibration_id TEXT NOT NULL REFERENCES calibrations(id) ON DELETE CASCADE,
			key_number INTEGER NOT NULL CHECK(key_number BETWEEN 0 AND 87),
			color TEXT NOT NULL CHECK(color IN ('white', 'black')),
			vertices TEXT NOT NULL,
			PRIMARY KEY (calibration_id, key_number)
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_calibrations_created_at ON calibrations(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
