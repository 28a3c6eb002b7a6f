package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackroad.io/operator/internal/database/dbtest"
	"blackroad.io/operator/models"
	"blackroad.io/operator/pkg/witness"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	return New(dbtest.New(t), nil)
}

func appendN(t *testing.T, l *Ledger, taskID string, n int) []*models.LedgerEntry {
	t.Helper()
	var out []*models.LedgerEntry
	for i := 0; i < n; i++ {
		e, err := l.Append(context.Background(), taskID, "INITIAL_REVIEWER", models.StepCompleted, fmt.Sprintf("%064d", i))
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func TestAppend_LinksEntries(t *testing.T) {
	l := newTestLedger(t)

	entries := appendN(t, l, "task-1", 3)

	assert.Equal(t, int64(1), entries[0].Seq)
	assert.Equal(t, witness.Genesis, entries[0].PrevHash)
	assert.Equal(t, entries[0].EntryHash, entries[1].PrevHash)
	assert.Equal(t, entries[1].EntryHash, entries[2].PrevHash)
	for _, e := range entries {
		assert.Equal(t, witness.EntryHash(e), e.EntryHash)
	}
}

func TestHead(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	head, err := l.Head(ctx)
	require.NoError(t, err)
	assert.Nil(t, head)

	entries := appendN(t, l, "task-1", 2)
	head, err = l.Head(ctx)
	require.NoError(t, err)
	require.NotNil(t, head)
	assert.Equal(t, entries[1].EntryHash, head.EntryHash)
	assert.True(t, head.RecordedAt.Equal(entries[1].RecordedAt))
}

func TestList(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	appendN(t, l, "task-a", 2)
	appendN(t, l, "task-b", 3)
	appendN(t, l, "task-a", 1)

	all, err := l.List(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 6)

	a, err := l.List(ctx, "task-a", 0, 0)
	require.NoError(t, err)
	require.Len(t, a, 3)
	assert.Equal(t, int64(6), a[2].Seq)

	page, err := l.List(ctx, "", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(3), page[0].Seq)
	assert.Equal(t, int64(4), page[1].Seq)

	none, err := l.List(ctx, "task-z", 0, 10)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestVerify_Valid(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	report, err := l.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Zero(t, report.Checked)

	entries := appendN(t, l, "task-1", 4)
	report, err = l.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, int64(4), report.Checked)
	assert.Equal(t, entries[3].EntryHash, report.HeadHash)
}

func TestVerify_DetectsTampering(t *testing.T) {
	tests := []struct {
		name     string
		tamper   string
		brokenAt int64
		reason   string
	}{
		{
			name:     "rewritten status",
			tamper:   "UPDATE ledger_entries SET status = 'failed' WHERE seq = 2",
			brokenAt: 2,
			reason:   "entry_hash",
		},
		{
			name:     "rewritten prev hash",
			tamper:   "UPDATE ledger_entries SET prev_hash = 'x' WHERE seq = 3",
			brokenAt: 3,
			reason:   "prev_hash",
		},
		{
			name:     "removed entry",
			tamper:   "DELETE FROM ledger_entries WHERE seq = 2",
			brokenAt: 3,
			reason:   "expected seq 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger(t)
			appendN(t, l, "task-1", 4)
			dbtest.MustExec(t, l.db, tt.tamper)

			report, err := l.Verify(context.Background())
			require.ErrorIs(t, err, models.ErrLedgerCorrupted)
			require.NotNil(t, report)
			assert.False(t, report.Valid)
			assert.Equal(t, tt.brokenAt, report.BrokenAt)
			assert.Contains(t, report.Reason, tt.reason)
		})
	}
}

func TestAppend_Concurrent(t *testing.T) {
	l := newTestLedger(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.Append(context.Background(), fmt.Sprintf("task-%d", i), "TASK_TO_TEAM", models.StepFailed, "w")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	report, err := l.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), report.Checked)
}

func TestAppend_ConcurrentWithOtherWriters(t *testing.T) {
	db, _ := dbtest.NewFile(t)
	l := New(db, nil)
	ctx := context.Background()

	dbtest.MustExec(t, db, `INSERT INTO policies (rule_id, name, condition, action, priority, created_at)
		VALUES ('deny_all', 'Deny all', 'true', 'deny', 1, '2026-01-01T00:00:00.000000000Z')`)

	const appends = 300
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				_, err := db.ExecContext(ctx, `INSERT INTO policy_violations
					(violation_id, rule_id, timestamp, subject, resource, severity)
					VALUES (?, 'deny_all', '2026-01-01T00:00:00.000000000Z', 'agent:x', 'task:y', 'HIGH')`,
					fmt.Sprintf("v-%d-%d", w, i))
				assert.NoError(t, err)
			}
		}(w)
	}

	var failures int
	var firstErr error
	for i := 0; i < appends; i++ {
		if _, err := l.Append(ctx, fmt.Sprintf("task-%d", i), "TASK_TO_TEAM", models.StepCompleted, "w"); err != nil {
			failures++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	close(stop)
	wg.Wait()

	require.Zero(t, failures, "first error: %v", firstErr)
	report, err := l.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, int64(appends), report.Checked)
}

func TestAppend_RecordedAtRoundTrips(t *testing.T) {
	l := newTestLedger(t)
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 123456789, time.FixedZone("CEST", 2*3600))
	l.now = func() time.Time { return fixed }

	e, err := l.Append(context.Background(), "t", "TASK_TO_DRIVE", models.StepCompleted, "w")
	require.NoError(t, err)

	stored, err := l.Head(context.Background())
	require.NoError(t, err)
	assert.True(t, stored.RecordedAt.Equal(fixed))
	assert.Equal(t, e.EntryHash, witness.EntryHash(stored))
}
