package models

import "time"

// LedgerEntry is one link in the witnessing ledger hash chain.
type LedgerEntry struct {
	// Seq is the 1-based position in the chain
	Seq int64 `json:"seq" db:"seq"`

	TaskID string     `json:"task_id" db:"task_id"`
	Step   string     `json:"step" db:"step"`
	Status StepStatus `json:"status" db:"status"`

	// WitnessHash is the task witness hash after the transition
	WitnessHash string `json:"witness_hash" db:"witness_hash"`

	// PrevHash is the previous entry's EntryHash (64 zeros for the first entry)
	PrevHash string `json:"prev_hash" db:"prev_hash"`

	// EntryHash commits to PrevHash and every field of this entry
	EntryHash string `json:"entry_hash" db:"entry_hash"`

	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
}

// LedgerVerification is the result of walking the chain.
type LedgerVerification struct {
	Checked  int64  `json:"checked"`
	Valid    bool   `json:"valid"`
	BrokenAt int64  `json:"broken_at,omitempty"`
	HeadHash string `json:"head_hash,omitempty"`
	Reason   string `json:"reason,omitempty"`
}
