// Package logging provides structured logging for the Operator control plane.
package logging

// Standard field names so log queries work across components.
const (
	FieldRequestID    = "request_id"
	FieldInstanceID   = "instance_id"
	FieldTaskID       = "task_id"
	FieldStep         = "step"
	FieldRuleID       = "rule_id"
	FieldSubject      = "subject"
	FieldResource     = "resource"
	FieldDecision     = "decision"
	FieldOrganization = "organization"
	FieldDomain       = "domain"
	FieldSeq          = "seq"

	// FieldDuration is the duration of an operation in milliseconds.
	FieldDuration   = "duration_ms"
	FieldStatusCode = "status_code"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldRemoteAddr = "remote_addr"
	FieldUserAgent  = "user_agent"
	FieldError      = "error"

	// FieldComponent identifies the subsystem emitting the entry
	// (policy, routing, scaffold, ledger, api).
	FieldComponent = "component"
	FieldOperation = "operation"
)
