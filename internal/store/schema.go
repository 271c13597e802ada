package store

// SchemaVersion is the current local database schema version. It is sent
// with every pull request so the server can refuse incompatible clients.
const SchemaVersion = 1

const schema = `
-- Domain records with sync metadata. One generic table keyed by
-- (collection, local_id); entity fields live in the data JSON blob.
CREATE TABLE IF NOT EXISTS records (
    collection TEXT NOT NULL,
    local_id TEXT NOT NULL,
    server_id TEXT,
    data TEXT NOT NULL DEFAULT '{}',
    sync_status TEXT NOT NULL DEFAULT 'pending',
    last_modified INTEGER NOT NULL,
    is_deleted INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (collection, local_id)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_records_server
    ON records(collection, server_id) WHERE server_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_records_status ON records(collection, sync_status);

-- Singleton pull watermark; advanced in the same transaction that applied
-- the pulled changes.
CREATE TABLE IF NOT EXISTS sync_cursor (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    last_pulled_at INTEGER NOT NULL DEFAULT 0,
    schema_version INTEGER NOT NULL
);

-- Local edits discarded by a server_wins resolution, retained for manual
-- review.
CREATE TABLE IF NOT EXISTS sync_shadows (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    collection TEXT NOT NULL,
    local_id TEXT NOT NULL,
    local_data TEXT NOT NULL,
    server_data TEXT NOT NULL DEFAULT 'null',
    overwritten_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Pending network operations captured while offline. FIFO by rowid.
CREATE TABLE IF NOT EXISTS mutation_queue (
    id TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL,
    method TEXT NOT NULL,
    resource TEXT NOT NULL,
    payload BLOB,
    sensitive INTEGER NOT NULL DEFAULT 0,
    retry_count INTEGER NOT NULL DEFAULT 0
);
`
