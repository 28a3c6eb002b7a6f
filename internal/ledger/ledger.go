// Package ledger stores the roadchain witnessing ledger: an append-only
// SQLite hash chain with one entry per scaffold transition.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"blackroad.io/operator/internal/logging"
	"blackroad.io/operator/internal/metrics"
	"blackroad.io/operator/models"
	"blackroad.io/operator/pkg/witness"
)

const (
	// DefaultListLimit is used when List is called without a limit.
	DefaultListLimit = 100

	// MaxListLimit caps a single List call.
	MaxListLimit = 1000
)

// Ledger appends and verifies chain entries. It is safe for concurrent use
// within one process.
type Ledger struct {
	mu     sync.Mutex
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// New creates a ledger over a migrated database.
func New(db *sql.DB, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{db: db, logger: logger, now: time.Now}
}

// Append links a new entry onto the chain head.
func (l *Ledger) Append(ctx context.Context, taskID, step string, status models.StepStatus, witnessHash string) (*models.LedgerEntry, error) {
	start := time.Now()
	entry, err := l.append(ctx, taskID, step, status, witnessHash)
	metrics.ObserveQuery("ledger_append", start, err)
	if err != nil {
		metrics.LedgerAppends.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.LedgerAppends.WithLabelValues("success").Inc()
	metrics.LedgerHeight.Set(float64(entry.Seq))
	l.logger.Debug("ledger entry appended",
		zap.Int64(logging.FieldSeq, entry.Seq),
		zap.String(logging.FieldTaskID, taskID),
		zap.String(logging.FieldStep, step),
		zap.String("entry_hash", entry.EntryHash),
	)
	return entry, nil
}

func (l *Ledger) append(ctx context.Context, taskID, step string, status models.StepStatus, witnessHash string) (*models.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin ledger transaction: %w", err)
	}
	defer tx.Rollback()

	entry := &models.LedgerEntry{
		TaskID:      taskID,
		Step:        step,
		Status:      status,
		WitnessHash: witnessHash,
		PrevHash:    witness.Genesis,
		Seq:         1,
		// Stored as RFC 3339 text, so drop the monotonic reading.
		RecordedAt: l.now().UTC().Round(0),
	}

	var lastSeq int64
	var lastHash string
	err = tx.QueryRowContext(ctx, "SELECT seq, entry_hash FROM ledger_entries ORDER BY seq DESC LIMIT 1").Scan(&lastSeq, &lastHash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to read ledger head: %w", err)
	default:
		entry.Seq = lastSeq + 1
		entry.PrevHash = lastHash
	}
	entry.EntryHash = witness.EntryHash(entry)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (seq, task_id, step, status, witness_hash, prev_hash, entry_hash, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.Seq, entry.TaskID, entry.Step, string(entry.Status), entry.WitnessHash,
		entry.PrevHash, entry.EntryHash, entry.RecordedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit ledger entry: %w", err)
	}
	return entry, nil
}

// List returns entries in chain order. A non-empty taskID restricts the
// result to that task. afterSeq skips entries up to and including it.
func (l *Ledger) List(ctx context.Context, taskID string, afterSeq int64, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	query := `
		SELECT seq, task_id, step, status, witness_hash, prev_hash, entry_hash, recorded_at
		FROM ledger_entries
		WHERE seq > ?
	`
	args := []interface{}{afterSeq}
	if taskID != "" {
		query += " AND task_id = ?"
		args = append(args, taskID)
	}
	query += " ORDER BY seq ASC LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	entries := []models.LedgerEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger: %w", err)
	}
	return entries, nil
}

// Head returns the newest entry, or nil for an empty ledger.
func (l *Ledger) Head(ctx context.Context) (*models.LedgerEntry, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT seq, task_id, step, status, witness_hash, prev_hash, entry_hash, recorded_at
		FROM ledger_entries
		ORDER BY seq DESC
		LIMIT 1
	`)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// Verify walks the whole chain and recomputes every link. A broken chain
// returns the report together with models.ErrLedgerCorrupted.
func (l *Ledger) Verify(ctx context.Context) (*models.LedgerVerification, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT seq, task_id, step, status, witness_hash, prev_hash, entry_hash, recorded_at
		FROM ledger_entries
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	report := &models.LedgerVerification{Valid: true}
	prev := witness.Genesis
	var expectSeq int64 = 1

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		report.Checked++

		if reason := checkLink(e, expectSeq, prev); reason != "" {
			report.Valid = false
			report.BrokenAt = e.Seq
			report.Reason = reason
			break
		}
		prev = e.EntryHash
		report.HeadHash = e.EntryHash
		expectSeq++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger: %w", err)
	}

	if !report.Valid {
		l.logger.Error("ledger verification failed",
			zap.Int64(logging.FieldSeq, report.BrokenAt),
			zap.String("reason", report.Reason),
		)
		return report, fmt.Errorf("%w at seq %d: %s", models.ErrLedgerCorrupted, report.BrokenAt, report.Reason)
	}
	return report, nil
}

// checkLink returns why e does not extend the chain, or "" when it does.
func checkLink(e *models.LedgerEntry, expectSeq int64, prevHash string) string {
	switch {
	case e.Seq != expectSeq:
		return fmt.Sprintf("expected seq %d, found %d", expectSeq, e.Seq)
	case e.PrevHash != prevHash:
		return "prev_hash does not match the previous entry"
	case witness.EntryHash(e) != e.EntryHash:
		return "entry_hash does not match entry contents"
	}
	return ""
}

func scanEntry(row interface{ Scan(...interface{}) error }) (*models.LedgerEntry, error) {
	var (
		e          models.LedgerEntry
		status     string
		recordedAt string
	)
	if err := row.Scan(&e.Seq, &e.TaskID, &e.Step, &status, &e.WitnessHash, &e.PrevHash, &e.EntryHash, &recordedAt); err != nil {
		return nil, err
	}
	e.Status = models.StepStatus(status)

	t, err := time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid recorded_at on entry %d: %w", e.Seq, err)
	}
	e.RecordedAt = t.UTC()
	return &e, nil
}
