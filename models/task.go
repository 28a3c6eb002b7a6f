package models

import "time"

// StepStatus is the status of a scaffold step result.
type StepStatus string

const (
	StepPending          StepStatus = "pending"
	StepInProgress       StepStatus = "in_progress"
	StepCompleted        StepStatus = "completed"
	StepFailed           StepStatus = "failed"
	StepSkipped          StepStatus = "skipped"
	StepAwaitingApproval StepStatus = "awaiting_approval"
)

// StepResult records one execution attempt of a scaffold step.
type StepResult struct {
	// Step is the scaffold step number (1-10)
	Step int `json:"step"`

	// StepName is the step's canonical name (e.g., "TASK_TO_ORGANIZATION")
	StepName string `json:"step_name"`

	Status      StepStatus             `json:"status"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Output      map[string]interface{} `json:"output,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// TaskRecord is a task moving through the scaffold.
type TaskRecord struct {
	TaskID       string       `json:"task_id"`
	Intent       string       `json:"intent"`
	RequestedBy  string       `json:"requested_by,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	Organization string       `json:"organization,omitempty"`
	Team         string       `json:"team,omitempty"`
	Agent        string       `json:"agent,omitempty"`
	Repository   string       `json:"repository,omitempty"`
	Branch       string       `json:"branch,omitempty"`
	Steps        []StepResult `json:"steps"`

	// WitnessHash is the SHA-256 digest of the task's transitions so far
	WitnessHash string `json:"witness_hash,omitempty"`
}

// TaskCreateRequest is the request body for creating a task.
type TaskCreateRequest struct {
	Intent      string `json:"intent" binding:"required"`
	RequestedBy string `json:"requested_by"`
}

// TaskAdvanceRequest carries the output of the step being completed.
type TaskAdvanceRequest struct {
	Output map[string]interface{} `json:"output"`
}

// TaskFailRequest reports a failed step.
type TaskFailRequest struct {
	Error string `json:"error" binding:"required"`
}

// TaskApproveRequest resumes a step paused for manual approval.
type TaskApproveRequest struct {
	Token    string                 `json:"token" binding:"required"`
	Approver string                 `json:"approver" binding:"required"`
	Output   map[string]interface{} `json:"output"`
}

// TaskStatus is the serializable summary of a task's state.
type TaskStatus struct {
	TaskID         string `json:"task_id"`
	Intent         string `json:"intent"`
	Organization   string `json:"organization,omitempty"`
	CurrentStep    string `json:"current_step"`
	StepsCompleted int    `json:"steps_completed"`
	TotalSteps     int    `json:"total_steps"`
	WitnessHash    string `json:"witness_hash,omitempty"`
}

// StepTransition is returned by task mutations: the recorded result, the
// task's new status, and an approval token when the step was paused.
type StepTransition struct {
	Result        StepResult   `json:"result"`
	Status        TaskStatus   `json:"status"`
	ApprovalToken string       `json:"approval_token,omitempty"`
	LedgerEntry   *LedgerEntry `json:"ledger_entry,omitempty"`

	// ApprovalExpiresAt is set together with ApprovalToken
	ApprovalExpiresAt *time.Time `json:"approval_expires_at,omitempty"`
}

// StepDescription describes one scaffold step.
type StepDescription struct {
	Step        int    `json:"step"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
