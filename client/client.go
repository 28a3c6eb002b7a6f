// Package sdk is a Go client for the operator HTTP API.
package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"blackroad.io/operator/models"
)

// Client is the main SDK client for interacting with an operator deployment.
// It tries each base URL in order and remembers the last one that answered.
type Client struct {
	// BaseURLs is the list of operator URLs.
	BaseURLs []string

	// AdminToken is the token for policy and task mutations (optional).
	AdminToken string

	// HTTPClient is the HTTP client used for requests.
	HTTPClient *http.Client

	// RetryAttempts is the number of times to retry failed requests.
	RetryAttempts int

	// RetryWaitMin is the minimum wait time between retries.
	RetryWaitMin time.Duration

	// RetryWaitMax is the maximum wait time between retries.
	RetryWaitMax time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// preferredURL is the last instance that answered (protected by mutex).
	preferredURL string

	mu sync.RWMutex
}

// NewClient creates a new SDK client with the given configuration.
func NewClient(config ClientConfig) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		BaseURLs:      config.BaseURLs,
		AdminToken:    config.AdminToken,
		HTTPClient:    config.HTTPClient,
		RetryAttempts: config.RetryAttempts,
		RetryWaitMin:  config.RetryWaitMin,
		RetryWaitMax:  config.RetryWaitMax,
		UserAgent:     config.UserAgent,
	}, nil
}

func (c *Client) getPreferredURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.preferredURL
}

func (c *Client) setPreferredURL(u string) {
	c.mu.Lock()
	c.preferredURL = u
	c.mu.Unlock()
}

// buildURLList returns the base URLs with the preferred instance first.
func (c *Client) buildURLList() []string {
	preferred := c.getPreferredURL()
	if preferred == "" {
		return c.BaseURLs
	}
	urls := []string{preferred}
	for _, u := range c.BaseURLs {
		if u != preferred {
			urls = append(urls, u)
		}
	}
	return urls
}

// doRequest performs a request with automatic failover. Any HTTP response
// other than a retryable 5xx ends the walk and is returned to the caller.
// Under retryUnsent the walk also ends once a request may have been received.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte, authType AuthType, policy retryPolicy) (*http.Response, error) {
	if authType == AuthTypeAdmin && c.AdminToken == "" {
		return nil, ErrMissingAuth
	}

	urls := c.buildURLList()
	if len(urls) == 0 {
		return nil, ErrNoBaseURLs
	}

	var lastErr error
	for _, baseURL := range urls {
		resp, err := c.doRequestWithRetry(ctx, policy, c.requestFactory(ctx, method, baseURL+path, body, authType))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, ErrOutcomeUnknown) {
				return nil, err
			}
			lastErr = err
			if baseURL == c.getPreferredURL() {
				c.setPreferredURL("")
			}
			continue
		}

		c.setPreferredURL(baseURL)
		return resp, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrAllInstancesFailed, lastErr)
}

// parseErrorResponse converts a non-2xx response into an *APIError. When
// dest is non-nil the envelope's data is decoded into it as well.
func parseErrorResponse(resp *http.Response, dest interface{}) error {
	defer drainAndCloseBody(resp)

	apiErr := &APIError{StatusCode: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
	if ra, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
		apiErr.RetryAfter = ra
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apiErr
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return apiErr
	}
	if env.Error != "" {
		apiErr.Code = env.Error
	}
	apiErr.Message = env.Message
	apiErr.RequestID = env.RequestID

	if dest != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		_ = json.Unmarshal(env.Data, dest)
	}
	return apiErr
}

// doJSONRequest sends reqBody as JSON and decodes the response envelope's
// data into respBody. A nil respBody discards the response.
func (c *Client) doJSONRequest(ctx context.Context, method, path string, reqBody, respBody interface{}, authType AuthType) error {
	return c.sendJSON(ctx, method, path, reqBody, respBody, authType, retryTransient)
}

// doTaskMutation is doJSONRequest for scaffold transitions. Each one moves a
// task forward, so it is sent at most once to a server that accepted the
// connection.
func (c *Client) doTaskMutation(ctx context.Context, path string, reqBody, respBody interface{}) error {
	return c.sendJSON(ctx, http.MethodPost, path, reqBody, respBody, AuthTypeAdmin, retryUnsent)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, reqBody, respBody interface{}, authType AuthType, policy retryPolicy) error {
	var body []byte
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = data
	}

	resp, err := c.doRequest(ctx, method, path, body, authType, policy)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseErrorResponse(resp, nil)
	}
	return decodeData(resp, respBody)
}

func decodeData(resp *http.Response, dest interface{}) error {
	defer drainAndCloseBody(resp)
	if dest == nil {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}

// ============================================================================
// Health
// ============================================================================

// Health calls the liveness probe on the first instance that answers.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.doJSONRequest(ctx, http.MethodGet, "/health/live", nil, &status, AuthTypeNone); err != nil {
		return nil, fmt.Errorf("failed to check health: %w", err)
	}
	return &status, nil
}

// ============================================================================
// Routing Methods
// ============================================================================

// Route asks the routing matrix which organization should own intent.
//
// Parameters:
//   - ctx: Request context for cancellation and timeouts
//   - intent: Free-text task description
//
// Returns:
//   - *models.RouteDecision: Organization, domain, confidence and reasoning
//   - error: ErrBadRequest if intent is empty, or network errors
func (c *Client) Route(ctx context.Context, intent string) (*models.RouteDecision, error) {
	var decision models.RouteDecision
	req := models.RouteRequest{Intent: intent}
	if err := c.doJSONRequest(ctx, http.MethodPost, "/api/v1/route", req, &decision, AuthTypeNone); err != nil {
		return nil, fmt.Errorf("failed to route intent: %w", err)
	}
	return &decision, nil
}

// ListOrganizations returns the organization registry in catalog order.
func (c *Client) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	var orgs []models.Organization
	if err := c.doJSONRequest(ctx, http.MethodGet, "/api/v1/organizations", nil, &orgs, AuthTypeNone); err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return orgs, nil
}

// GetOrganization returns a single organization. Unknown names return ErrNotFound.
func (c *Client) GetOrganization(ctx context.Context, name string) (*models.Organization, error) {
	var org models.Organization
	path := "/api/v1/organizations/" + url.PathEscape(name)
	if err := c.doJSONRequest(ctx, http.MethodGet, path, nil, &org, AuthTypeNone); err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

// ListDomains returns the registered internet domains.
func (c *Client) ListDomains(ctx context.Context) ([]models.DomainEntry, error) {
	var domains []models.DomainEntry
	if err := c.doJSONRequest(ctx, http.MethodGet, "/api/v1/domains", nil, &domains, AuthTypeNone); err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	return domains, nil
}

// ListStrategies returns the upstream rate-limit strategies.
func (c *Client) ListStrategies(ctx context.Context) ([]StrategyInfo, error) {
	var strategies []StrategyInfo
	if err := c.doJSONRequest(ctx, http.MethodGet, "/api/v1/strategies", nil, &strategies, AuthTypeNone); err != nil {
		return nil, fmt.Errorf("failed to list strategies: %w", err)
	}
	return strategies, nil
}

// ============================================================================
// Policy Methods
// ============================================================================

// CreatePolicy adds a policy rule. Requires the admin token.
//
// Returns:
//   - *models.PolicyRule: The stored rule
//   - error: ErrConflict if the rule ID exists, ErrBadRequest for an invalid
//     condition or action, ErrUnauthorized for a rejected token
func (c *Client) CreatePolicy(ctx context.Context, req *models.PolicyRuleCreateRequest) (*models.PolicyRule, error) {
	var rule models.PolicyRule
	if err := c.doJSONRequest(ctx, http.MethodPost, "/api/v1/policies", req, &rule, AuthTypeAdmin); err != nil {
		return nil, fmt.Errorf("failed to create policy: %w", err)
	}
	return &rule, nil
}

// ListPolicies returns rules in evaluation order.
func (c *Client) ListPolicies(ctx context.Context, includeDisabled bool) ([]models.PolicyRule, error) {
	path := "/api/v1/policies"
	if includeDisabled {
		path += "?include_disabled=true"
	}
	var rules []models.PolicyRule
	if err := c.doJSONRequest(ctx, http.MethodGet, path, nil, &rules, AuthTypeNone); err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	return rules, nil
}

// SetPolicyEnabled enables or disables a rule. Requires the admin token.
func (c *Client) SetPolicyEnabled(ctx context.Context, ruleID string, enabled bool) (*models.PolicyRule, error) {
	var rule models.PolicyRule
	path := "/api/v1/policies/" + url.PathEscape(ruleID)
	req := models.PolicyRuleUpdateRequest{Enabled: &enabled}
	if err := c.doJSONRequest(ctx, http.MethodPatch, path, req, &rule, AuthTypeAdmin); err != nil {
		return nil, fmt.Errorf("failed to update policy: %w", err)
	}
	return &rule, nil
}

// DeletePolicy removes a rule and its exemptions. Requires the admin token.
func (c *Client) DeletePolicy(ctx context.Context, ruleID string) error {
	path := "/api/v1/policies/" + url.PathEscape(ruleID)
	if err := c.doJSONRequest(ctx, http.MethodDelete, path, nil, nil, AuthTypeAdmin); err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}
	return nil
}

// AddExemption exempts a subject from a rule. Requires the admin token.
func (c *Client) AddExemption(ctx context.Context, ruleID string, req *models.PolicyExemptionRequest) (*models.PolicyExemption, error) {
	var exemption models.PolicyExemption
	path := "/api/v1/policies/" + url.PathEscape(ruleID) + "/exemptions"
	if err := c.doJSONRequest(ctx, http.MethodPost, path, req, &exemption, AuthTypeAdmin); err != nil {
		return nil, fmt.Errorf("failed to add exemption: %w", err)
	}
	return &exemption, nil
}

// Evaluate runs a single access request through the policy engine.
//
// Parameters:
//   - ctx: Request context for cancellation and timeouts
//   - subject: Who is asking (e.g., "user:alice", "agent:planner")
//   - resource: What is being accessed (e.g., "/admin/panel")
//   - attrs: Optional request context visible to rule conditions
func (c *Client) Evaluate(ctx context.Context, subject, resource string, attrs map[string]interface{}) (*models.AccessDecision, error) {
	var decision models.AccessDecision
	req := models.AccessRequest{Subject: subject, Resource: resource, Context: attrs}
	if err := c.doJSONRequest(ctx, http.MethodPost, "/api/v1/evaluate", req, &decision, AuthTypeNone); err != nil {
		return nil, fmt.Errorf("failed to evaluate access: %w", err)
	}
	return &decision, nil
}

// EvaluateBatch evaluates several requests; decisions are in input order.
func (c *Client) EvaluateBatch(ctx context.Context, requests []models.AccessRequest) ([]models.AccessDecision, error) {
	var decisions []models.AccessDecision
	req := models.BatchAccessRequest{Requests: requests}
	if err := c.doJSONRequest(ctx, http.MethodPost, "/api/v1/evaluate/batch", req, &decisions, AuthTypeNone); err != nil {
		return nil, fmt.Errorf("failed to evaluate batch: %w", err)
	}
	return decisions, nil
}

// Violations lists violations from the last hours, newest first. An empty
// subject lists every subject; hours <= 0 uses the server default.
func (c *Client) Violations(ctx context.Context, subject string, hours int) (*models.ViolationListResponse, error) {
	q := url.Values{}
	if subject != "" {
		q.Set("subject", subject)
	}
	if hours > 0 {
		q.Set("hours", strconv.Itoa(hours))
	}
	path := "/api/v1/violations"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp models.ViolationListResponse
	if err := c.doJSONRequest(ctx, http.MethodGet, path, nil, &resp, AuthTypeNone); err != nil {
		return nil, fmt.Errorf("failed to list violations: %w", err)
	}
	return &resp, nil
}

// ============================================================================
// Task Methods
// ============================================================================

// CreateTask starts a task at INITIAL_REVIEWER. Requires the admin token.
func (c *Client) CreateTask(ctx context.Context, intent, requestedBy string) (*models.TaskRecord, error) {
	var task models.TaskRecord
	req := models.TaskCreateRequest{Intent: intent, RequestedBy: requestedBy}
	if err := c.doTaskMutation(ctx, "/api/v1/tasks", req, &task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return &task, nil
}

// AdvanceTask completes the task's current step with output. A step that
// pauses for approval returns a transition carrying an ApprovalToken.
// Requires the admin token.
func (c *Client) AdvanceTask(ctx context.Context, taskID string, output map[string]interface{}) (*models.StepTransition, error) {
	var transition models.StepTransition
	path := "/api/v1/tasks/" + url.PathEscape(taskID) + "/advance"
	req := models.TaskAdvanceRequest{Output: output}
	if err := c.doTaskMutation(ctx, path, req, &transition); err != nil {
		return nil, fmt.Errorf("failed to advance task: %w", err)
	}
	return &transition, nil
}

// FailTask records a failure on the task's current step. Requires the admin token.
func (c *Client) FailTask(ctx context.Context, taskID, reason string) (*models.StepTransition, error) {
	var transition models.StepTransition
	path := "/api/v1/tasks/" + url.PathEscape(taskID) + "/fail"
	req := models.TaskFailRequest{Error: reason}
	if err := c.doTaskMutation(ctx, path, req, &transition); err != nil {
		return nil, fmt.Errorf("failed to fail task step: %w", err)
	}
	return &transition, nil
}

// ApproveTask resumes a paused step with the approval token from the pause.
// Requires the admin token.
//
// Returns:
//   - error: ErrForbidden if the approval token is invalid or spent,
//     ErrConflict if the task is not awaiting approval
func (c *Client) ApproveTask(ctx context.Context, taskID string, req *models.TaskApproveRequest) (*models.StepTransition, error) {
	var transition models.StepTransition
	path := "/api/v1/tasks/" + url.PathEscape(taskID) + "/approve"
	if err := c.doTaskMutation(ctx, path, req, &transition); err != nil {
		return nil, fmt.Errorf("failed to approve task: %w", err)
	}
	return &transition, nil
}

// GetTask returns the full task record.
func (c *Client) GetTask(ctx context.Context, taskID string) (*models.TaskRecord, error) {
	var task models.TaskRecord
	path := "/api/v1/tasks/" + url.PathEscape(taskID)
	if err := c.doJSONRequest(ctx, http.MethodGet, path, nil, &task, AuthTypeNone); err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

// TaskStatus returns the task summary.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (*models.TaskStatus, error) {
	var status models.TaskStatus
	path := "/api/v1/tasks/" + url.PathEscape(taskID) + "?view=status"
	if err := c.doJSONRequest(ctx, http.MethodGet, path, nil, &status, AuthTypeNone); err != nil {
		return nil, fmt.Errorf("failed to get task status: %w", err)
	}
	return &status, nil
}

// PendingApprovals lists tasks paused for approval, oldest first.
func (c *Client) PendingApprovals(ctx context.Context) ([]models.TaskStatus, error) {
	var pending []models.TaskStatus
	if err := c.doJSONRequest(ctx, http.MethodGet, "/api/v1/tasks?awaiting_approval=true", nil, &pending, AuthTypeNone); err != nil {
		return nil, fmt.Errorf("failed to list pending approvals: %w", err)
	}
	return pending, nil
}

// ============================================================================
// Ledger Methods
// ============================================================================

// ListLedger returns ledger entries in chain order.
func (c *Client) ListLedger(ctx context.Context, query LedgerQuery) ([]models.LedgerEntry, error) {
	q := url.Values{}
	if query.TaskID != "" {
		q.Set("task_id", query.TaskID)
	}
	if query.After > 0 {
		q.Set("after", strconv.FormatInt(query.After, 10))
	}
	if query.Limit > 0 {
		q.Set("limit", strconv.Itoa(query.Limit))
	}
	path := "/api/v1/ledger"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var entries []models.LedgerEntry
	if err := c.doJSONRequest(ctx, http.MethodGet, path, nil, &entries, AuthTypeNone); err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	return entries, nil
}

// VerifyLedger walks the hash chain on the server.
//
// Returns:
//   - *models.LedgerVerification: The report, also when the chain is broken
//   - error: ErrServerError wrapping code "ledger_corrupted" when the chain is
//     broken, or network errors
func (c *Client) VerifyLedger(ctx context.Context) (*models.LedgerVerification, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/v1/ledger/verify", nil, AuthTypeNone, retryTransient)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ledger: %w", err)
	}

	var report models.LedgerVerification
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := parseErrorResponse(resp, &report)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == "ledger_corrupted" {
			return &report, fmt.Errorf("ledger verification failed: %w", err)
		}
		return nil, fmt.Errorf("failed to verify ledger: %w", err)
	}
	if err := decodeData(resp, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
