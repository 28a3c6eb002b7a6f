// Package scaffold implements the deca-layered task scaffold: every task
// moves through ten ordered steps, and each recorded result updates the
// task's witness hash.
package scaffold

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"blackroad.io/operator/internal/logging"
	"blackroad.io/operator/internal/metrics"
	"blackroad.io/operator/internal/util"
	"blackroad.io/operator/models"
	"blackroad.io/operator/pkg/witness"
)

// StatusComplete is reported as the current step once all steps are done.
const StatusComplete = "COMPLETE"

// Engine holds tasks in memory and records their step results.
// It is safe for concurrent use.
type Engine struct {
	mu     sync.Mutex
	tasks  map[string]*models.TaskRecord
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine creates an empty scaffold engine.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		tasks:  make(map[string]*models.TaskRecord),
		logger: logger,
		now:    time.Now,
	}
}

// CreateTask registers a new task at step 1.
func (e *Engine) CreateTask(intent, requestedBy string) (*models.TaskRecord, error) {
	if err := util.ValidateIntent(intent); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidRequest, err)
	}

	task := &models.TaskRecord{
		TaskID:      uuid.New().String(),
		Intent:      intent,
		RequestedBy: requestedBy,
		CreatedAt:   e.now().UTC(),
		Steps:       []models.StepResult{},
	}

	e.mu.Lock()
	e.tasks[task.TaskID] = task
	e.mu.Unlock()

	metrics.TasksActive.Inc()
	e.logger.Info("task created",
		zap.String(logging.FieldTaskID, task.TaskID),
		zap.String("requested_by", requestedBy),
	)
	return cloneTask(task), nil
}

// CurrentStep returns the lowest step without a completed result. The
// second result is false when all steps are complete.
func CurrentStep(task *models.TaskRecord) (Step, bool) {
	completed := make(map[int]bool, len(task.Steps))
	for _, r := range task.Steps {
		if r.Status == models.StepCompleted {
			completed[r.Step] = true
		}
	}
	for s := StepInitialReviewer; s <= StepTaskToWebsiteEditor; s++ {
		if !completed[int(s)] {
			return s, true
		}
	}
	return 0, false
}

// AwaitingApproval reports whether the task's current step is paused.
func AwaitingApproval(task *models.TaskRecord) bool {
	step, ok := CurrentStep(task)
	if !ok {
		return false
	}
	for i := len(task.Steps) - 1; i >= 0; i-- {
		if task.Steps[i].Step == int(step) {
			return task.Steps[i].Status == models.StepAwaitingApproval
		}
	}
	return false
}

// Advance completes the current step with output.
//
// Completing TASK_TO_ORGANIZATION, TASK_TO_TEAM, TASK_TO_AGENT or
// TASK_TO_REPOSITORY copies the organization, team, agent, or repository
// and branch keys from a non-empty output onto the task.
func (e *Engine) Advance(taskID string, output map[string]interface{}) (*models.StepResult, error) {
	return e.record(taskID, "advance", func(task *models.TaskRecord, step Step, now time.Time) (*models.StepResult, error) {
		if AwaitingApproval(task) {
			return nil, models.ErrAwaitingApproval
		}
		return e.complete(task, step, now, output), nil
	})
}

// FailStep records a failed attempt at the current step. The step stays
// current and can be retried.
func (e *Engine) FailStep(taskID, reason string) (*models.StepResult, error) {
	return e.record(taskID, "fail", func(task *models.TaskRecord, step Step, now time.Time) (*models.StepResult, error) {
		return &models.StepResult{
			Step:        int(step),
			StepName:    step.String(),
			Status:      models.StepFailed,
			StartedAt:   &now,
			CompletedAt: &now,
			Error:       reason,
		}, nil
	})
}

// PauseForApproval marks the current step as awaiting a manual approval.
func (e *Engine) PauseForApproval(taskID, reason string, output map[string]interface{}) (*models.StepResult, error) {
	return e.record(taskID, "pause", func(task *models.TaskRecord, step Step, now time.Time) (*models.StepResult, error) {
		if AwaitingApproval(task) {
			return nil, models.ErrAwaitingApproval
		}
		out := copyOutput(output)
		if reason != "" {
			out["reason"] = reason
		}
		return &models.StepResult{
			Step:      int(step),
			StepName:  step.String(),
			Status:    models.StepAwaitingApproval,
			StartedAt: &now,
			Output:    out,
		}, nil
	})
}

// Approve completes a step that is awaiting approval.
func (e *Engine) Approve(taskID string, output map[string]interface{}) (*models.StepResult, error) {
	return e.record(taskID, "approve", func(task *models.TaskRecord, step Step, now time.Time) (*models.StepResult, error) {
		if !AwaitingApproval(task) {
			return nil, models.ErrNotAwaitingApproval
		}
		return e.complete(task, step, now, output), nil
	})
}

// record runs one transition under the lock, appends its result and
// recomputes the witness hash.
func (e *Engine) record(taskID, op string, fn func(*models.TaskRecord, Step, time.Time) (*models.StepResult, error)) (*models.StepResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	task, ok := e.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrTaskNotFound, taskID)
	}
	step, ok := CurrentStep(task)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrScaffoldComplete, taskID)
	}

	result, err := fn(task, step, e.now().UTC())
	if err != nil {
		return nil, err
	}

	task.Steps = append(task.Steps, *result)
	hash, err := witness.TaskHash(task)
	if err != nil {
		task.Steps = task.Steps[:len(task.Steps)-1]
		return nil, err
	}
	task.WitnessHash = hash

	metrics.ScaffoldTransitions.WithLabelValues(result.StepName, string(result.Status)).Inc()
	if _, more := CurrentStep(task); !more {
		metrics.TasksActive.Dec()
	}

	e.logger.Info("scaffold step recorded",
		zap.String(logging.FieldTaskID, taskID),
		zap.String(logging.FieldStep, result.StepName),
		zap.String("status", string(result.Status)),
		zap.String(logging.FieldOperation, op),
		zap.String("witness_hash", hash),
	)

	out := cloneResult(*result)
	return &out, nil
}

func (e *Engine) complete(task *models.TaskRecord, step Step, now time.Time, output map[string]interface{}) *models.StepResult {
	result := &models.StepResult{
		Step:        int(step),
		StepName:    step.String(),
		Status:      models.StepCompleted,
		StartedAt:   &now,
		CompletedAt: &now,
		Output:      copyOutput(output),
	}

	if len(output) > 0 {
		switch step {
		case StepTaskToOrganization:
			task.Organization = outputString(output, "organization")
		case StepTaskToTeam:
			task.Team = outputString(output, "team")
		case StepTaskToAgent:
			task.Agent = outputString(output, "agent")
		case StepTaskToRepository:
			task.Repository = outputString(output, "repository")
			task.Branch = outputString(output, "branch")
		}
	}
	return result
}

// GetTask returns a copy of the task.
func (e *Engine) GetTask(taskID string) (*models.TaskRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	task, ok := e.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrTaskNotFound, taskID)
	}
	return cloneTask(task), nil
}

// ListTasks returns copies of every task, oldest first.
func (e *Engine) ListTasks() []*models.TaskRecord {
	e.mu.Lock()
	out := make([]*models.TaskRecord, 0, len(e.tasks))
	for _, task := range e.tasks {
		out = append(out, cloneTask(task))
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].TaskID < out[j].TaskID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Status summarizes a task's progress.
func (e *Engine) Status(taskID string) (*models.TaskStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	task, ok := e.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrTaskNotFound, taskID)
	}
	return StatusOf(task), nil
}

// StatusOf summarizes task.
func StatusOf(task *models.TaskRecord) *models.TaskStatus {
	current := StatusComplete
	if step, ok := CurrentStep(task); ok {
		current = step.String()
	}
	completed := 0
	for _, r := range task.Steps {
		if r.Status == models.StepCompleted {
			completed++
		}
	}
	return &models.TaskStatus{
		TaskID:         task.TaskID,
		Intent:         task.Intent,
		Organization:   task.Organization,
		CurrentStep:    current,
		StepsCompleted: completed,
		TotalSteps:     TotalSteps,
		WitnessHash:    task.WitnessHash,
	}
}

func outputString(output map[string]interface{}, key string) string {
	switch v := output[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func copyOutput(output map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(output))
	for k, v := range output {
		out[k] = v
	}
	return out
}

func cloneResult(r models.StepResult) models.StepResult {
	if r.Output != nil {
		r.Output = copyOutput(r.Output)
	}
	return r
}

func cloneTask(task *models.TaskRecord) *models.TaskRecord {
	out := *task
	out.Steps = make([]models.StepResult, len(task.Steps))
	for i, r := range task.Steps {
		out.Steps[i] = cloneResult(r)
	}
	return &out
}
