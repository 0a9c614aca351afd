package shared

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// dsnParams are go-sqlite3 connection parameters, applied to every connection in the pool.
//
// WAL for concurrent reads during writes, NORMAL sync, a 5s busy timeout and enforced foreign keys.
const dsnParams = "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=1"

// NewDatabase opens a connection to a SQLite database at the specified path.
// The path can be ":memory:" for an in-memory database.
//
// The pool starts with a single connection: SQLite allows one writer, and an in-memory
// database only exists on the connection that created it.
// Code running inside a transaction must therefore use the transaction handle, never the pool.
func NewDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// DSN appends the connection parameters to path.
func DSN(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + dsnParams
	}
	return path + "?" + dsnParams
}

// ConfigureDatabase sets connection pool settings for a file-backed database.
//
// Values below one are ignored, and in-memory databases keep the single connection from [NewDatabase].
func ConfigureDatabase(db *sql.DB, path string, maxOpenConns, maxIdleConns int) {
	if strings.HasPrefix(path, ":memory:") {
		return
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
}
