package sqlite

import "github.com/steveyegge/gripes/internal/storage/migrations"

// schemaMigrations are applied in order on open. Append new versions; never edit old ones.
var schemaMigrations = []migrations.Migration{
	{
		Version:     1,
		Description: "Latest complaint clusters, without embeddings",
		Up: `
			CREATE TABLE complaints (
				position INTEGER PRIMARY KEY,
				summary TEXT NOT NULL,
				count INTEGER NOT NULL CHECK(count > 0),
				feature TEXT NOT NULL DEFAULT 'other',
				feedback_type TEXT NOT NULL DEFAULT 'unknown',
				sources TEXT NOT NULL DEFAULT '{}',
				examples TEXT NOT NULL DEFAULT '[]',
				saved_at TEXT NOT NULL
			);
			CREATE INDEX idx_complaints_feature ON complaints(feature);
		`,
		Down: `DROP TABLE complaints;`,
	},
	{
		Version:     2,
		Description: "One row per pipeline run",
		Up: `
			CREATE TABLE runs (
				id TEXT PRIMARY KEY,
				product TEXT NOT NULL,
				started_at TEXT NOT NULL,
				finished_at TEXT NOT NULL,
				fetched INTEGER NOT NULL DEFAULT 0,
				submitted INTEGER NOT NULL DEFAULT 0,
				created INTEGER NOT NULL DEFAULT 0,
				merged INTEGER NOT NULL DEFAULT 0,
				skipped INTEGER NOT NULL DEFAULT 0,
				partial INTEGER NOT NULL DEFAULT 0,
				error TEXT NOT NULL DEFAULT '',
				report TEXT NOT NULL DEFAULT '{}'
			);
			CREATE INDEX idx_runs_started_at ON runs(started_at);
		`,
		Down: `DROP TABLE runs;`,
	},
	{
		Version:     3,
		Description: "Progress events emitted during runs",
		Up: `
			CREATE TABLE run_events (
				id TEXT PRIMARY KEY,
				type TEXT NOT NULL,
				timestamp TEXT NOT NULL,
				run_id TEXT NOT NULL DEFAULT '',
				severity TEXT NOT NULL,
				message TEXT NOT NULL DEFAULT '',
				data TEXT NOT NULL DEFAULT '{}'
			);
			CREATE INDEX idx_run_events_run ON run_events(run_id);
			CREATE INDEX idx_run_events_timestamp ON run_events(timestamp);
			CREATE INDEX idx_run_events_type ON run_events(type);
		`,
		Down: `DROP TABLE run_events;`,
	},
	{
		Version:     4,
		Description: "Severity index for retention cleanup",
		Up:          `CREATE INDEX idx_run_events_severity_timestamp ON run_events(severity, timestamp);`,
		Down:        `DROP INDEX idx_run_events_severity_timestamp;`,
	},
}
