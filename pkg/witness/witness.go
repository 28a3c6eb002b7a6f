// Package witness computes the SHA-256 digests behind the roadchain
// witnessing ledger.
//
// A task witness hash commits to a task's identity and every step
// transition recorded so far. A link hash chains ledger entries together so
// that rewriting any earlier entry changes every later one.
package witness

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"blackroad.io/operator/models"
)

// Genesis is the previous-hash value of the first ledger entry.
var Genesis = strings.Repeat("0", sha256.Size*2)

// Field order below is alphabetical so the encoding is canonical.
type transition struct {
	CompletedAt *string `json:"completed_at"`
	Status      string  `json:"status"`
	Step        string  `json:"step"`
}

type taskPayload struct {
	Intent string       `json:"intent"`
	Steps  []transition `json:"steps"`
	TaskID string       `json:"task_id"`
}

// TaskPayload returns the canonical bytes a task witness hash is taken over:
// compact JSON, keys in alphabetical order, no HTML escaping, UTF-8 left as
// is, and no trailing newline. completed_at is RFC 3339 in UTC or null.
func TaskPayload(task *models.TaskRecord) ([]byte, error) {
	payload := taskPayload{
		Intent: task.Intent,
		Steps:  make([]transition, 0, len(task.Steps)),
		TaskID: task.TaskID,
	}
	for _, s := range task.Steps {
		t := transition{Status: string(s.Status), Step: s.StepName}
		if s.CompletedAt != nil {
			ts := s.CompletedAt.UTC().Format(time.RFC3339Nano)
			t.CompletedAt = &ts
		}
		payload.Steps = append(payload.Steps, t)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, fmt.Errorf("failed to encode witness payload: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// TaskHash returns the hex SHA-256 of TaskPayload.
func TaskHash(task *models.TaskRecord) (string, error) {
	b, err := TaskPayload(task)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// LinkHash returns the hash of a ledger entry chained onto prevHash.
func LinkHash(prevHash string, seq int64, taskID, step string, status models.StepStatus, witnessHash string, recordedAt time.Time) string {
	h := sha256.New()
	for i, part := range []string{
		prevHash,
		strconv.FormatInt(seq, 10),
		taskID,
		step,
		string(status),
		witnessHash,
		recordedAt.UTC().Format(time.RFC3339Nano),
	} {
		if i > 0 {
			h.Write([]byte{'|'})
		}
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// EntryHash recomputes the link hash of a stored ledger entry.
func EntryHash(e *models.LedgerEntry) string {
	return LinkHash(e.PrevHash, e.Seq, e.TaskID, e.Step, e.Status, e.WitnessHash, e.RecordedAt)
}
