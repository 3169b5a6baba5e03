package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS risk_profiles (
    repository TEXT NOT NULL,
    issue_number INTEGER NOT NULL,
    risk_level TEXT NOT NULL,
    risk_score REAL NOT NULL,
    metrics TEXT NOT NULL,
    evidence TEXT,
    drivers TEXT,
    lookback_days INTEGER NOT NULL,
    label_filters TEXT,
    calculated_at TEXT NOT NULL,
    keywords TEXT,
    issue_title TEXT,
    issue_summary TEXT,
    issue_labels TEXT,
    issue_state TEXT,
    change_summary TEXT,
    file_changes TEXT,
    comment_id INTEGER DEFAULT 0,
    updated_at TEXT DEFAULT (datetime('now')),
    PRIMARY KEY (repository, issue_number)
);

CREATE INDEX IF NOT EXISTS idx_risk_profiles_repo ON risk_profiles(repository);
CREATE INDEX IF NOT EXISTS idx_risk_profiles_level ON risk_profiles(repository, risk_level);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
