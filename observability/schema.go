package observability

import "database/sql"

// Schema contains the DDL for the defense observability tables. Call
// Init(db) to apply it, or embed the constant in your own schema management.
const Schema = `
-- Defense events: one row per notable engine action.
CREATE TABLE IF NOT EXISTS defense_event_logs (
    event_id TEXT PRIMARY KEY,
    event_type TEXT NOT NULL,
    site TEXT NOT NULL,
    session_id TEXT,
    xpath TEXT,
    detail TEXT,
    success INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_defense_events_type
    ON defense_event_logs(event_type, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_defense_events_site
    ON defense_event_logs(site, created_at DESC);

-- Metrics Timeseries
CREATE TABLE IF NOT EXISTS metrics_timeseries (
    metric_id TEXT PRIMARY KEY DEFAULT ('met_' || hex(randomblob(16))),
    metric_name TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    value REAL NOT NULL,
    labels TEXT,
    unit TEXT,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_metrics_name_time
    ON metrics_timeseries(metric_name, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_metrics_timestamp
    ON metrics_timeseries(timestamp DESC);
`

// Init applies the observability schema to the given database.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
