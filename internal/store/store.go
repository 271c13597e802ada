// Package store implements the offline-capable local durable store. It is the
// only writer of the per-record sync columns (sync_status, last_modified,
// is_deleted, server_id) and owns the pull cursor and conflict shadow copies.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const dbFile = "aurasync.db"

// Store wraps the local database connection.
type Store struct {
	conn    *sql.DB
	baseDir string
}

// Open opens an existing local database and applies any missing schema.
func Open(baseDir string) (*Store, error) {
	dbPath := filepath.Join(baseDir, dbFile)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: run 'aurasync init' first")
	}
	return open(baseDir, dbPath)
}

// Initialize creates the local database, its directory, and the schema.
func Initialize(baseDir string) (*Store, error) {
	dbPath := filepath.Join(baseDir, dbFile)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return open(baseDir, dbPath)
}

func open(baseDir, dbPath string) (*Store, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL allows concurrent reads while writes stay serialized
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	conn.Exec("PRAGMA synchronous=NORMAL")
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &Store{conn: conn, baseDir: baseDir}
	if err := s.ensureCursor(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// OpenConn wraps an already-open connection (tests use this with an
// in-memory database).
func OpenConn(conn *sql.DB) (*Store, error) {
	if _, err := conn.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	s := &Store{conn: conn}
	if err := s.ensureCursor(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Conn returns the underlying connection for components that share the
// database file (the mutation queue) and for transactions.
func (s *Store) Conn() *sql.DB {
	return s.conn
}

// BaseDir returns the directory holding the database file.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// nowMillis is the monotonic-enough local clock used for last_modified.
// Overridable in tests.
var nowMillis = func() int64 {
	return time.Now().UnixMilli()
}
