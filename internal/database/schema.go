package database

// Schema contains the SQLite database schema.
const Schema = `
-- Sites: one row per monitored site, holding the resolved run
-- configuration handed to the scanner.
CREATE TABLE IF NOT EXISTS sites (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    config TEXT NOT NULL,        -- run-configuration JSON
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Scan executions: one row per scan run, with its lifecycle status and
-- the captured result JSON.
CREATE TABLE IF NOT EXISTS executions (
    id TEXT PRIMARY KEY,
    site_id TEXT NOT NULL,
    status TEXT NOT NULL,        -- 'pending', 'running', 'completed', 'failed'
    config TEXT NOT NULL,        -- config snapshot at trigger time
    result TEXT,                 -- scan-result JSON, set on completion
    error TEXT,                  -- failure diagnostic, set on failure
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    started_at DATETIME,
    finished_at DATETIME,
    FOREIGN KEY (site_id) REFERENCES sites(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_executions_site ON executions(site_id);
CREATE INDEX IF NOT EXISTS idx_executions_status ON executions(status);
CREATE INDEX IF NOT EXISTS idx_executions_created ON executions(created_at);

-- Schema version for migrations
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// Migrations contains SQL migrations indexed by version.
// Each migration upgrades from version N-1 to version N.
var Migrations = map[int]string{
	1: Schema, // Initial schema
}
