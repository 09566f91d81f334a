package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - empty database
// 1 - sessions, programs, frames
const currentSchemaVersion = 1

// MemoryPath opens a private in-memory trace.
const MemoryPath = ":memory:"

// Store is a SQLite frame trace.
type Store struct {
	db *sql.DB
}

// Open creates or opens a trace database at path. Use MemoryPath for a
// throwaway trace.
//
// Connection settings travel in the DSN so the driver applies them to every
// connection it opens: WAL journal (file databases only), NORMAL sync, a 5s
// busy timeout and foreign keys.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open trace %s: %w", path, err)
	}

	// One connection: SQLite has a single writer, and an in-memory database
	// lives only as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open trace %s: %w", path, err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open trace %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func dsn(path string) string {
	params := url.Values{}
	params.Set("_synchronous", "NORMAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_foreign_keys", "1")
	if path != MemoryPath {
		params.Set("_journal_mode", "WAL")
	}
	return path + "?" + params.Encode()
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// migrate brings the schema to currentSchemaVersion. The schema statements
// are idempotent, so reopening a current trace rewrites nothing.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	switch {
	case version > currentSchemaVersion:
		return fmt.Errorf("trace schema version %d is newer than supported version %d", version, currentSchemaVersion)
	case version == currentSchemaVersion:
		return nil
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
