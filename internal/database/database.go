// Package database opens and maintains the Operator SQLite store.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Options configures the connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration
}

// DefaultOptions returns the pool settings used by the server.
func DefaultOptions() Options {
	return Options{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		BusyTimeout:     5 * time.Second,
	}
}

// DSN builds a modernc.org/sqlite connection string with WAL, a busy
// timeout and foreign keys enabled.
//
// Transactions begin IMMEDIATE so they take the write lock up front. A
// deferred transaction that reads and then writes gets SQLITE_BUSY without
// waiting when another connection committed in between.
func DSN(path string, busyTimeout time.Duration) string {
	return fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_txlock=immediate",
		path, busyTimeout.Milliseconds(),
	)
}

// Open opens the database at path, applies pool settings and verifies the
// connection.
func Open(ctx context.Context, path string, opts Options, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("sqlite", DSN(path, opts.BusyTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if logger != nil {
		logger.Info("database connection established", zap.String("path", path))
	}
	return db, nil
}

// TimeLayout is the fixed-width UTC layout used for stored timestamps.
// Fixed width keeps lexical order equal to chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a stored timestamp.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		// Rows written by older tools may carry RFC 3339 text.
		if t2, err2 := time.Parse(time.RFC3339Nano, s); err2 == nil {
			return t2.UTC(), nil
		}
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t, nil
}

// IsUniqueConstraint reports whether err is a SQLite UNIQUE or PRIMARY KEY violation.
func IsUniqueConstraint(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

// BoolToInt converts a bool to SQLite's integer representation.
func BoolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
