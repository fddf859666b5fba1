package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

// Connect opens (creating if needed) the SQLite database at path.
// ":memory:" is accepted for tests. The pool is pinned to a single
// connection: SQLite has one writer anyway and the pin keeps session
// pragmas and in-memory databases stable.
func Connect(path string) (*DB, error) {
	if !strings.Contains(path, ":memory:") {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
	}
	database, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	database.SetMaxOpenConns(1)
	if err := database.Ping(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{database}, nil
}

func dsn(path string) string {
	params := "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if !strings.Contains(path, ":memory:") {
		params += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}
	return "file:" + path + params
}
