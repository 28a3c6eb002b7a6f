package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"blackroad.io/operator/internal/approval"
	"blackroad.io/operator/internal/logging"
	"blackroad.io/operator/internal/scaffold"
	"blackroad.io/operator/models"
)

// AnonymousRequester is the subject suffix used when a task has no requester.
const AnonymousRequester = "anonymous"

// AccessEvaluator evaluates a subject's access to a resource.
type AccessEvaluator interface {
	EvaluateAccess(ctx context.Context, subject, resource string, attrs map[string]interface{}) (*models.AccessDecision, error)
}

// Router routes task intents to organizations.
type Router interface {
	Route(intent string) models.RouteDecision
	GetOrganization(name string) (models.Organization, bool)
}

// Witness appends scaffold transitions to the witnessing ledger.
type Witness interface {
	Append(ctx context.Context, taskID, step string, status models.StepStatus, witnessHash string) (*models.LedgerEntry, error)
}

// TaskService drives tasks through the scaffold.
//
// Every recorded transition is appended to the ledger. Step 1 is gated by
// the policy engine, step 2 is filled in by the routing matrix, and paused
// steps resume only with a signed approval token.
type TaskService struct {
	mu        sync.Mutex
	scaffold  *scaffold.Engine
	router    Router
	policies  AccessEvaluator
	witness   Witness
	approvals *approval.Manager
	logger    *zap.Logger
}

// NewTaskService creates a new TaskService.
//
// Parameters:
//   - engine: Scaffold engine holding task state
//   - router: Routing matrix used for TASK_TO_ORGANIZATION
//   - policies: Policy engine used for INITIAL_REVIEWER
//   - witness: Ledger receiving every transition
//   - approvals: Approval token manager
//   - logger: Zap logger for structured logging
func NewTaskService(engine *scaffold.Engine, router Router, policies AccessEvaluator, witness Witness, approvals *approval.Manager, logger *zap.Logger) *TaskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskService{
		scaffold:  engine,
		router:    router,
		policies:  policies,
		witness:   witness,
		approvals: approvals,
		logger:    logger,
	}
}

// CreateTask registers a new task at INITIAL_REVIEWER.
func (s *TaskService) CreateTask(ctx context.Context, req *models.TaskCreateRequest) (*models.TaskRecord, error) {
	task, err := s.scaffold.CreateTask(req.Intent, strings.TrimSpace(req.RequestedBy))
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("task accepted",
		zap.String(logging.FieldTaskID, task.TaskID),
		zap.Int("intent_length", len(task.Intent)),
	)
	return task, nil
}

// GetTask returns the task with its full step history.
func (s *TaskService) GetTask(taskID string) (*models.TaskRecord, error) {
	return s.scaffold.GetTask(taskID)
}

// ListTasks returns every task, oldest first.
func (s *TaskService) ListTasks() []*models.TaskRecord {
	return s.scaffold.ListTasks()
}

// Status summarizes a task's progress.
func (s *TaskService) Status(taskID string) (*models.TaskStatus, error) {
	return s.scaffold.Status(taskID)
}

// Advance executes the task's current step.
//
// Parameters:
//   - ctx: Request context
//   - taskID: Task to advance
//   - output: Caller-supplied step output (may be nil)
//
// Returns:
//   - *models.StepTransition with the recorded result, new status and ledger entry
//   - error: ErrTaskNotFound, ErrScaffoldComplete, ErrAwaitingApproval,
//     ErrOrganizationNotFound, or a wrapped storage failure
func (s *TaskService) Advance(ctx context.Context, taskID string, output map[string]interface{}) (*models.StepTransition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, step, err := s.current(taskID)
	if err != nil {
		return nil, err
	}
	if scaffold.AwaitingApproval(task) {
		return nil, fmt.Errorf("%w: %s", models.ErrAwaitingApproval, step)
	}

	out := copyMap(output)
	log := logging.FromContext(ctx).With(
		zap.String(logging.FieldTaskID, taskID),
		zap.String(logging.FieldStep, step.String()),
	)

	switch step {
	case scaffold.StepInitialReviewer:
		return s.review(ctx, task, out, log)

	case scaffold.StepTaskToOrganization:
		if err := s.assignOrganization(task, out, log); err != nil {
			return nil, err
		}

	case scaffold.StepTaskToTeam:
		if highRisk(out) {
			log.Info("high risk task paused for approval")
			return s.pause(ctx, taskID, step, "high risk task requires approval", out)
		}
	}

	result, err := s.scaffold.Advance(taskID, out)
	if err != nil {
		return nil, err
	}
	return s.witnessed(ctx, taskID, result)
}

// FailStep records a failed attempt at the current step.
func (s *TaskService) FailStep(ctx context.Context, taskID, reason string) (*models.StepTransition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: error is required", models.ErrInvalidRequest)
	}

	result, err := s.scaffold.FailStep(taskID, reason)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Warn("scaffold step failed",
		zap.String(logging.FieldTaskID, taskID),
		zap.String(logging.FieldStep, result.StepName),
		zap.String("reason", reason),
	)
	return s.witnessed(ctx, taskID, result)
}

// Approve resumes a paused step.
//
// The token must have been issued for this task's current step while the
// task had its current witness hash, so each token resumes exactly one pause.
func (s *TaskService) Approve(ctx context.Context, taskID string, req *models.TaskApproveRequest) (*models.StepTransition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	approver := strings.TrimSpace(req.Approver)
	if approver == "" {
		return nil, fmt.Errorf("%w: approver is required", models.ErrInvalidRequest)
	}

	task, step, err := s.current(taskID)
	if err != nil {
		return nil, err
	}
	if !scaffold.AwaitingApproval(task) {
		return nil, fmt.Errorf("%w: %s", models.ErrNotAwaitingApproval, step)
	}

	log := logging.FromContext(ctx).With(
		zap.String(logging.FieldTaskID, taskID),
		zap.String(logging.FieldStep, step.String()),
	)

	claims, err := s.approvals.Verify(req.Token, taskID, step.String(), task.WitnessHash)
	if err != nil {
		log.Warn("approval rejected", zap.Error(err))
		return nil, err
	}

	out := copyMap(req.Output)
	out["approved_by"] = approver
	out["approval_id"] = claims.ID

	if step == scaffold.StepTaskToOrganization {
		if err := s.assignOrganization(task, out, log); err != nil {
			return nil, err
		}
	}

	result, err := s.scaffold.Approve(taskID, out)
	if err != nil {
		return nil, err
	}
	log.Info("scaffold step approved", zap.String("approved_by", approver))
	return s.witnessed(ctx, taskID, result)
}

// review runs the INITIAL_REVIEWER policy gate.
func (s *TaskService) review(ctx context.Context, task *models.TaskRecord, out map[string]interface{}, log *zap.Logger) (*models.StepTransition, error) {
	requester := task.RequestedBy
	if requester == "" {
		requester = AnonymousRequester
	}
	subject := "agent:" + requester
	resource := "task:" + task.Intent

	// Step output cannot stand in for the task's own subject or resource.
	attrs := copyMap(out)
	delete(attrs, "subject")
	delete(attrs, "resource")
	attrs["task_id"] = task.TaskID

	decision, err := s.policies.EvaluateAccess(ctx, subject, resource, attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate task policy: %w", err)
	}

	ruleIDs := make([]string, 0, len(decision.Decisions))
	for _, d := range decision.Decisions {
		ruleIDs = append(ruleIDs, d.RuleID)
	}
	out["policy_decision"] = string(decision.Decision)
	out["policy_rules"] = ruleIDs
	if len(decision.Violations) > 0 {
		out["policy_violations"] = decision.Violations
	}

	log = log.With(
		zap.String(logging.FieldSubject, subject),
		zap.String(logging.FieldDecision, string(decision.Decision)),
	)

	switch decision.Decision {
	case models.ActionDeny:
		log.Warn("task denied by policy", zap.Strings("rules", ruleIDs))
		result, err := s.scaffold.FailStep(task.TaskID, "denied by policy: "+strings.Join(ruleIDs, ", "))
		if err != nil {
			return nil, err
		}
		return s.witnessed(ctx, task.TaskID, result)

	case models.ActionRequireApproval:
		log.Info("task requires approval")
		return s.pause(ctx, task.TaskID, scaffold.StepInitialReviewer, "policy requires approval", out)
	}

	result, err := s.scaffold.Advance(task.TaskID, out)
	if err != nil {
		return nil, err
	}
	return s.witnessed(ctx, task.TaskID, result)
}

// assignOrganization validates a caller-chosen organization or routes the
// intent when none was given.
func (s *TaskService) assignOrganization(task *models.TaskRecord, out map[string]interface{}, log *zap.Logger) error {
	if name, _ := out["organization"].(string); name != "" {
		if _, ok := s.router.GetOrganization(name); !ok {
			return fmt.Errorf("%w: %s", models.ErrOrganizationNotFound, name)
		}
		return nil
	}

	decision := s.router.Route(task.Intent)
	out["organization"] = decision.Organization
	out["route"] = map[string]interface{}{
		"organization": decision.Organization,
		"domain":       string(decision.Domain),
		"confidence":   decision.Confidence,
		"reasoning":    decision.Reasoning,
	}
	log.Info("task routed",
		zap.String(logging.FieldOrganization, decision.Organization),
		zap.String(logging.FieldDomain, string(decision.Domain)),
		zap.Float64("confidence", decision.Confidence),
	)
	return nil
}

// pause records an awaiting_approval result and issues a token bound to the
// task's new witness hash.
func (s *TaskService) pause(ctx context.Context, taskID string, step scaffold.Step, reason string, out map[string]interface{}) (*models.StepTransition, error) {
	result, err := s.scaffold.PauseForApproval(taskID, reason, out)
	if err != nil {
		return nil, err
	}
	transition, err := s.witnessed(ctx, taskID, result)
	if err != nil {
		return nil, err
	}

	tok, expires, err := s.approvals.Issue(taskID, step.String(), transition.Status.WitnessHash, reason)
	if err != nil {
		return nil, err
	}
	transition.ApprovalToken = tok
	transition.ApprovalExpiresAt = &expires
	return transition, nil
}

// witnessed appends result to the ledger and builds the transition response.
// The scaffold state is kept when the append fails.
func (s *TaskService) witnessed(ctx context.Context, taskID string, result *models.StepResult) (*models.StepTransition, error) {
	status, err := s.scaffold.Status(taskID)
	if err != nil {
		return nil, err
	}

	entry, err := s.witness.Append(ctx, taskID, result.StepName, result.Status, status.WitnessHash)
	if err != nil {
		s.logger.Error("failed to witness scaffold transition",
			zap.String(logging.FieldTaskID, taskID),
			zap.String(logging.FieldStep, result.StepName),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to witness transition: %w", err)
	}

	return &models.StepTransition{
		Result:      *result,
		Status:      *status,
		LedgerEntry: entry,
	}, nil
}

func (s *TaskService) current(taskID string) (*models.TaskRecord, scaffold.Step, error) {
	task, err := s.scaffold.GetTask(taskID)
	if err != nil {
		return nil, 0, err
	}
	step, ok := scaffold.CurrentStep(task)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", models.ErrScaffoldComplete, taskID)
	}
	return task, step, nil
}

func highRisk(out map[string]interface{}) bool {
	switch v := out["high_risk"].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}

func copyMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// PendingApprovals lists tasks whose current step is paused, oldest first.
func (s *TaskService) PendingApprovals() []*models.TaskStatus {
	var out []*models.TaskStatus
	for _, task := range s.scaffold.ListTasks() {
		if scaffold.AwaitingApproval(task) {
			out = append(out, scaffold.StatusOf(task))
		}
	}
	return out
}
