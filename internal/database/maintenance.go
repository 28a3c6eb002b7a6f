package database

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// CompactResult reports the effect of Compact.
type CompactResult struct {
	PageSize    int64 `json:"page_size"`
	PagesBefore int64 `json:"pages_before"`
	PagesAfter  int64 `json:"pages_after"`
	Analyzed    bool  `json:"analyzed"`
}

// SizeBefore returns the database size in bytes before VACUUM.
func (r CompactResult) SizeBefore() int64 { return r.PagesBefore * r.PageSize }

// SizeAfter returns the database size in bytes after VACUUM.
func (r CompactResult) SizeAfter() int64 { return r.PagesAfter * r.PageSize }

// Reclaimed returns the number of bytes freed.
func (r CompactResult) Reclaimed() int64 { return r.SizeBefore() - r.SizeAfter() }

// Compact runs VACUUM and, when analyze is set, ANALYZE.
func Compact(ctx context.Context, db *sql.DB, analyze bool, logger *zap.Logger) (*CompactResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var res CompactResult
	if err := db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&res.PageSize); err != nil {
		return nil, fmt.Errorf("failed to get page size: %w", err)
	}
	if err := db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&res.PagesBefore); err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}

	logger.Info("running VACUUM", zap.Int64("size_before", res.SizeBefore()))
	if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
		return nil, fmt.Errorf("VACUUM failed: %w", err)
	}

	if err := db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&res.PagesAfter); err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}

	if analyze {
		if _, err := db.ExecContext(ctx, "ANALYZE"); err != nil {
			return nil, fmt.Errorf("ANALYZE failed: %w", err)
		}
		res.Analyzed = true
	}

	logger.Info("database compacted",
		zap.Int64("size_before", res.SizeBefore()),
		zap.Int64("size_after", res.SizeAfter()),
		zap.Int64("saved", res.Reclaimed()),
		zap.Bool("analyzed", res.Analyzed),
	)
	return &res, nil
}

// TableCount is the row count of one table.
type TableCount struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

// Stats returns row counts for every table in Tables. Tables that cannot be
// counted are skipped and logged.
func Stats(ctx context.Context, db *sql.DB, logger *zap.Logger) []TableCount {
	if logger == nil {
		logger = zap.NewNop()
	}

	counts := make([]TableCount, 0, len(Tables))
	for _, table := range Tables {
		var n int64
		// Table names come from the fixed Tables list.
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
		if err := db.QueryRowContext(ctx, query).Scan(&n); err != nil {
			logger.Warn("failed to count table rows", zap.String("table", table), zap.Error(err))
			continue
		}
		counts = append(counts, TableCount{Table: table, Rows: n})
	}
	return counts
}
