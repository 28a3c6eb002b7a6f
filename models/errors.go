package models

import "errors"

// Common error types used throughout the Operator control plane.
// Services return these (possibly wrapped with %w) so the API layer can map
// them to HTTP statuses with errors.Is.

var (
	// ErrNotFound indicates the requested resource does not exist.
	// HTTP equivalent: 404 Not Found
	ErrNotFound = errors.New("resource not found")

	// ErrRuleNotFound indicates the requested policy rule does not exist.
	// HTTP equivalent: 404 Not Found
	ErrRuleNotFound = errors.New("policy rule not found")

	// ErrTaskNotFound indicates the requested scaffold task does not exist.
	// HTTP equivalent: 404 Not Found
	ErrTaskNotFound = errors.New("task not found")

	// ErrOrganizationNotFound indicates the organization is not in the registry.
	// HTTP equivalent: 404 Not Found
	ErrOrganizationNotFound = errors.New("organization not found")

	// ErrStrategyNotFound indicates no rate-limit strategy exists for a provider.
	// HTTP equivalent: 404 Not Found
	ErrStrategyNotFound = errors.New("rate limit strategy not found")

	// ErrDuplicateRule indicates a rule with this rule_id already exists.
	// HTTP equivalent: 409 Conflict
	ErrDuplicateRule = errors.New("policy rule already exists")

	// ErrInvalidRequest indicates the request body or parameters are invalid.
	// HTTP equivalent: 400 Bad Request
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidAction indicates an unknown policy action.
	// HTTP equivalent: 400 Bad Request
	ErrInvalidAction = errors.New("invalid policy action")

	// ErrInvalidCondition indicates a rule condition failed to compile.
	// HTTP equivalent: 400 Bad Request
	ErrInvalidCondition = errors.New("invalid policy condition")

	// ErrScaffoldComplete indicates every scaffold step already completed.
	// HTTP equivalent: 409 Conflict
	ErrScaffoldComplete = errors.New("all scaffold steps already complete")

	// ErrAwaitingApproval indicates the current step is paused for manual approval.
	// HTTP equivalent: 409 Conflict
	ErrAwaitingApproval = errors.New("scaffold step is awaiting approval")

	// ErrNotAwaitingApproval indicates an approval was submitted for a step that is not paused.
	// HTTP equivalent: 409 Conflict
	ErrNotAwaitingApproval = errors.New("scaffold step is not awaiting approval")

	// ErrInvalidApproval indicates the approval token is malformed, expired, or for another step.
	// HTTP equivalent: 403 Forbidden
	ErrInvalidApproval = errors.New("invalid approval token")

	// ErrUnauthorized indicates the request lacks valid authentication credentials.
	// HTTP equivalent: 401 Unauthorized
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller lacks permission for this operation.
	// HTTP equivalent: 403 Forbidden
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimitExceeded indicates too many requests from this client.
	// HTTP equivalent: 429 Too Many Requests
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrLedgerCorrupted indicates the witnessing ledger hash chain does not verify.
	// HTTP equivalent: 500 Internal Server Error
	ErrLedgerCorrupted = errors.New("witness ledger chain is broken")

	// ErrInternalError indicates an unexpected server-side error.
	// HTTP equivalent: 500 Internal Server Error
	ErrInternalError = errors.New("internal server error")

	// ErrDatabaseError indicates a database operation failed.
	// HTTP equivalent: 500 Internal Server Error
	ErrDatabaseError = errors.New("database error")
)

// HealthResponse represents the response for health check endpoints.
type HealthResponse struct {
	// Status indicates the service health ("ok" or "degraded")
	Status string `json:"status"`

	// Timestamp is the current server time
	Timestamp string `json:"timestamp,omitempty"`
}
