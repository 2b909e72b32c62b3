package settings

// SchemaVersion is the current persisted schema. Migration is additive:
// older databases gain the missing columns with defaults, never lose data,
// and a full backup is written before any migration runs.
const SchemaVersion = 2

// Schema creates the current shape. CREATE IF NOT EXISTS keeps it safe on a
// database that is already current; older shapes are handled by migrate.
const Schema = `
CREATE TABLE IF NOT EXISTS site_settings (
    site               TEXT PRIMARY KEY,
    mode               TEXT NOT NULL DEFAULT 'standard',
    classification_off INTEGER NOT NULL DEFAULT 0,
    interception_off   INTEGER NOT NULL DEFAULT 0,
    breakage_count     INTEGER NOT NULL DEFAULT 0,
    relax_until        INTEGER NOT NULL DEFAULT 0,
    note               TEXT NOT NULL DEFAULT '',
    updated_at         INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
