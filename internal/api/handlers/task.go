package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"blackroad.io/operator/internal/scaffold"
	"blackroad.io/operator/internal/service"
	"blackroad.io/operator/models"
)

// TaskHandler handles scaffold task endpoints.
type TaskHandler struct {
	tasks *service.TaskService
}

// NewTaskHandler creates a new task handler.
func NewTaskHandler(tasks *service.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// CreateTask handles POST /api/v1/tasks.
//
// Response: 201 Created with the new task at INITIAL_REVIEWER
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req models.TaskCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	task, err := h.tasks.CreateTask(c.Request.Context(), &req)
	if err != nil {
		mapErrorToResponse(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, task)
}

// ListTasks handles GET /api/v1/tasks.
//
// Returns task summaries, oldest first. ?awaiting_approval=true limits the
// list to paused tasks.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	if c.Query("awaiting_approval") == "true" {
		pending := h.tasks.PendingApprovals()
		if pending == nil {
			pending = []*models.TaskStatus{}
		}
		respondSuccess(c, http.StatusOK, pending)
		return
	}

	tasks := h.tasks.ListTasks()
	out := make([]*models.TaskStatus, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, scaffold.StatusOf(t))
	}
	respondSuccess(c, http.StatusOK, out)
}

// GetTask handles GET /api/v1/tasks/:id.
//
// Returns the full record; ?view=status returns the summary only.
func (h *TaskHandler) GetTask(c *gin.Context) {
	if c.Query("view") == "status" {
		status, err := h.tasks.Status(c.Param("id"))
		if err != nil {
			mapErrorToResponse(c, err)
			return
		}
		respondSuccess(c, http.StatusOK, status)
		return
	}

	task, err := h.tasks.GetTask(c.Param("id"))
	if err != nil {
		mapErrorToResponse(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, task)
}

// Advance handles POST /api/v1/tasks/:id/advance.
//
// The body is optional. A step paused for approval returns 200 with an
// awaiting_approval result and an approval token.
func (h *TaskHandler) Advance(c *gin.Context) {
	var req models.TaskAdvanceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
	}

	transition, err := h.tasks.Advance(c.Request.Context(), c.Param("id"), req.Output)
	if err != nil {
		mapErrorToResponse(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, transition)
}

// Fail handles POST /api/v1/tasks/:id/fail.
func (h *TaskHandler) Fail(c *gin.Context) {
	var req models.TaskFailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	transition, err := h.tasks.FailStep(c.Request.Context(), c.Param("id"), req.Error)
	if err != nil {
		mapErrorToResponse(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, transition)
}

// Approve handles POST /api/v1/tasks/:id/approve.
//
// Returns:
//   - 200 OK with the completed step
//   - 403 when the token is invalid, expired or for another pause
//   - 409 when the current step is not paused
func (h *TaskHandler) Approve(c *gin.Context) {
	var req models.TaskApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	transition, err := h.tasks.Approve(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		mapErrorToResponse(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, transition)
}

// ListSteps handles GET /api/v1/steps.
func (h *TaskHandler) ListSteps(c *gin.Context) {
	respondSuccess(c, http.StatusOK, scaffold.Steps())
}
