// Package serverdb is the storage layer of the reference sync server. It
// keeps the authoritative copy of every record and implements the pull/push
// reconciliation the clients converge on.
package serverdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS server_records (
    collection TEXT NOT NULL,
    server_id TEXT NOT NULL,
    local_id TEXT NOT NULL DEFAULT '',
    data TEXT NOT NULL DEFAULT '{}',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    deleted INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (collection, server_id)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_server_records_local
    ON server_records(collection, local_id) WHERE local_id != '';
CREATE INDEX IF NOT EXISTS idx_server_records_updated ON server_records(updated_at);
`

// ServerDB wraps the server database connection.
type ServerDB struct {
	conn *sql.DB
}

// Open opens (creating if needed) the server database.
func Open(path string) (*ServerDB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open server db: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &ServerDB{conn: conn}, nil
}

// OpenConn wraps an already-open connection (tests use an in-memory database).
func OpenConn(conn *sql.DB) (*ServerDB, error) {
	if _, err := conn.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &ServerDB{conn: conn}, nil
}

// Close closes the database.
func (db *ServerDB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying connection.
func (db *ServerDB) Conn() *sql.DB {
	return db.conn
}

// nowMillis is the server clock, overridable in tests.
var nowMillis = func() int64 {
	return time.Now().UnixMilli()
}
