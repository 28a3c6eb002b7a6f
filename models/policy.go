package models

import "time"

// PolicyAction is the enforcement action a matching rule produces.
type PolicyAction string

const (
	// ActionAllow permits the request.
	ActionAllow PolicyAction = "allow"

	// ActionDeny rejects the request and records a violation.
	ActionDeny PolicyAction = "deny"

	// ActionAudit permits the request but flags it for review.
	ActionAudit PolicyAction = "audit"

	// ActionRequireMFA requires a second factor before access.
	ActionRequireMFA PolicyAction = "require_mfa"

	// ActionRequireApproval requires a manual approval before access.
	ActionRequireApproval PolicyAction = "require_approval"
)

// Valid reports whether a is one of the known policy actions.
func (a PolicyAction) Valid() bool {
	switch a {
	case ActionAllow, ActionDeny, ActionAudit, ActionRequireMFA, ActionRequireApproval:
		return true
	}
	return false
}

// SeverityHigh is the severity recorded for deny violations.
const SeverityHigh = "HIGH"

// PolicyRule is a security policy rule evaluated against access requests.
type PolicyRule struct {
	// RuleID is the unique rule identifier (e.g., "admin_access")
	RuleID string `json:"rule_id" db:"rule_id"`

	// Name is the human-readable rule name
	Name string `json:"name" db:"name"`

	// Description explains what the rule enforces
	Description string `json:"description" db:"description"`

	// Condition is a boolean expression over subject, resource and request context.
	// Example: resource startsWith "/admin" and not (subject contains "admin")
	Condition string `json:"condition" db:"condition"`

	// Action is applied when the condition matches
	Action PolicyAction `json:"action" db:"action"`

	// Priority orders evaluation; higher values are evaluated first
	Priority int `json:"priority" db:"priority"`

	// Enabled rules take part in evaluation
	Enabled bool `json:"enabled" db:"enabled"`

	// CreatedAt is when the rule was added
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PolicyRuleCreateRequest is the request body for adding a rule.
type PolicyRuleCreateRequest struct {
	RuleID      string       `json:"rule_id" binding:"required,min=1,max=128"`
	Name        string       `json:"name" binding:"required,min=1,max=255"`
	Description string       `json:"description"`
	Condition   string       `json:"condition" binding:"required"`
	Action      PolicyAction `json:"action" binding:"required"`
	Priority    int          `json:"priority"`
}

// PolicyRuleUpdateRequest toggles a rule on or off.
type PolicyRuleUpdateRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// PolicyViolation records a deny decision.
type PolicyViolation struct {
	ViolationID string                 `json:"violation_id" db:"violation_id"`
	RuleID      string                 `json:"rule_id" db:"rule_id"`
	Timestamp   time.Time              `json:"timestamp" db:"timestamp"`
	Subject     string                 `json:"subject" db:"subject"`
	Resource    string                 `json:"resource" db:"resource"`
	Details     map[string]interface{} `json:"details,omitempty" db:"details"`
	Severity    string                 `json:"severity" db:"severity"`
}

// PolicyExemption exempts a subject from a single rule, optionally until ExpiresAt.
type PolicyExemption struct {
	ID        int64      `json:"id" db:"id"`
	RuleID    string     `json:"rule_id" db:"rule_id"`
	Subject   string     `json:"subject" db:"subject"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	Reason    string     `json:"reason,omitempty" db:"reason"`
}

// PolicyExemptionRequest is the request body for granting an exemption.
type PolicyExemptionRequest struct {
	Subject   string     `json:"subject" binding:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
	Reason    string     `json:"reason"`
}

// AccessRequest is a single access evaluation input.
type AccessRequest struct {
	Subject  string                 `json:"subject" binding:"required"`
	Resource string                 `json:"resource" binding:"required"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

// BatchAccessRequest evaluates several requests in one call.
type BatchAccessRequest struct {
	Requests []AccessRequest `json:"requests" binding:"required,min=1,max=256,dive"`
}

// RuleDecision is one matching rule's contribution to an access decision.
type RuleDecision struct {
	RuleID   string       `json:"rule_id"`
	Action   PolicyAction `json:"action"`
	Priority int          `json:"priority"`
}

// AccessDecision is the outcome of evaluating an access request.
type AccessDecision struct {
	// Decision is the final action
	Decision PolicyAction `json:"decision"`

	Subject  string `json:"subject"`
	Resource string `json:"resource"`

	// Decisions lists matching rules in evaluation order
	Decisions []RuleDecision `json:"decisions"`

	// Violations lists the IDs of violations recorded by this evaluation
	Violations []string `json:"violations"`

	// Timestamp is when the evaluation completed (UTC)
	Timestamp time.Time `json:"timestamp"`
}

// ViolationListResponse wraps a violation query result.
type ViolationListResponse struct {
	Subject    string            `json:"subject,omitempty"`
	Hours      int               `json:"hours"`
	Violations []PolicyViolation `json:"violations"`
}
