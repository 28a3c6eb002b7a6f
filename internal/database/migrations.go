package database

import (
	"context"
	"database/sql"
	"fmt"
)

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{
		name: "001_create_policies",
		sql: `
			CREATE TABLE IF NOT EXISTS policies (
				rule_id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				condition TEXT NOT NULL,
				action TEXT NOT NULL,
				priority INTEGER NOT NULL,
				enabled INTEGER NOT NULL DEFAULT 1,
				created_at TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_policies_priority ON policies(priority);
			CREATE INDEX IF NOT EXISTS idx_policies_enabled ON policies(enabled);
		`,
	},
	{
		name: "002_create_policy_violations",
		sql: `
			CREATE TABLE IF NOT EXISTS policy_violations (
				violation_id TEXT PRIMARY KEY,
				rule_id TEXT NOT NULL,
				timestamp TEXT NOT NULL,
				subject TEXT NOT NULL,
				resource TEXT NOT NULL,
				details TEXT,
				severity TEXT NOT NULL,
				FOREIGN KEY (rule_id) REFERENCES policies(rule_id) ON DELETE CASCADE
			);
			CREATE INDEX IF NOT EXISTS idx_violations_timestamp ON policy_violations(timestamp);
			CREATE INDEX IF NOT EXISTS idx_violations_subject ON policy_violations(subject);
			CREATE INDEX IF NOT EXISTS idx_violations_severity ON policy_violations(severity);
		`,
	},
	{
		name: "003_create_policy_exemptions",
		sql: `
			CREATE TABLE IF NOT EXISTS policy_exemptions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				rule_id TEXT NOT NULL,
				subject TEXT NOT NULL,
				expires_at TEXT,
				reason TEXT NOT NULL DEFAULT '',
				FOREIGN KEY (rule_id) REFERENCES policies(rule_id) ON DELETE CASCADE
			);
			CREATE INDEX IF NOT EXISTS idx_exemptions_rule_subject ON policy_exemptions(rule_id, subject);
		`,
	},
	{
		name: "004_create_ledger_entries",
		sql: `
			CREATE TABLE IF NOT EXISTS ledger_entries (
				seq INTEGER PRIMARY KEY,
				task_id TEXT NOT NULL,
				step TEXT NOT NULL,
				status TEXT NOT NULL,
				witness_hash TEXT NOT NULL,
				prev_hash TEXT NOT NULL,
				entry_hash TEXT NOT NULL UNIQUE,
				recorded_at TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_ledger_task ON ledger_entries(task_id);
		`,
	},
}

// Tables lists every table created by Migrate, in creation order.
var Tables = []string{"policies", "policy_violations", "policy_exemptions", "ledger_entries"}

// Migrate applies every schema migration. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.name, err)
		}
	}
	return nil
}
