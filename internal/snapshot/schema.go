package snapshot

// SchemaVersion is the current schema version of the snapshot store.
const SchemaVersion = 1

// CoreSchema creates the tables the snapshot store depends on: one row per
// named model holding its most recent serialized irm.Snapshot, and a
// history of sampler runs performed against it.
const CoreSchema = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS model_snapshots (
	model_id TEXT PRIMARY KEY,
	definition TEXT NOT NULL,
	snapshot TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sampler_runs (
	id TEXT PRIMARY KEY,
	model_id TEXT NOT NULL REFERENCES model_snapshots(model_id) ON DELETE CASCADE,
	started_at DATETIME NOT NULL,
	completed_at DATETIME,
	status TEXT NOT NULL CHECK (status IN ('running', 'completed', 'failed', 'cancelled')),
	iterations INTEGER NOT NULL,
	seed INTEGER NOT NULL,
	final_log_joint REAL,
	error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_sampler_runs_model ON sampler_runs(model_id);
CREATE INDEX IF NOT EXISTS idx_sampler_runs_started ON sampler_runs(started_at);
`
