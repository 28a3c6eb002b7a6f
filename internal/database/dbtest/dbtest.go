// Package dbtest provides migrated SQLite databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"blackroad.io/operator/internal/database"
)

var counter atomic.Int64

// New returns a migrated in-memory database that is closed when the test ends.
// Each call gets its own shared-cache database so parallel tests stay isolated.
func New(t testing.TB) *sql.DB {
	t.Helper()

	name := fmt.Sprintf("file:operator-test-%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", counter.Add(1))
	db, err := sql.Open("sqlite", name)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// A single connection keeps the in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := database.Migrate(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// NewFile returns a migrated file-backed database in a temp directory, for
// tests that need VACUUM or several connections.
func NewFile(t testing.TB) (*sql.DB, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "operator.db")
	db, err := database.Open(context.Background(), path, database.DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := database.Migrate(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db, path
}

// MustExec executes a statement and fails the test if it errors.
func MustExec(t testing.TB, db *sql.DB, query string, args ...interface{}) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("MustExec failed: %v\nQuery: %s", err, query)
	}
}
