package store

// metaSchema is applied to every dataset on open. Dynamic tables created at
// upload time live alongside these bookkeeping tables.
const metaSchema = `
-- One row per ingested table
CREATE TABLE IF NOT EXISTS table_metadata (
    table_name          TEXT PRIMARY KEY,
    original_sheet_name TEXT,
    original_filename   TEXT,
    column_count        INTEGER NOT NULL DEFAULT 0,
    row_count           INTEGER NOT NULL DEFAULT 0,
    created_date        TEXT NOT NULL
);

-- Saved join-designer configurations (JSON payloads)
CREATE TABLE IF NOT EXISTS relationship_configs (
    name        TEXT PRIMARY KEY,
    config_json TEXT NOT NULL,
    created_date TEXT NOT NULL,
    updated_date TEXT NOT NULL
);
`
