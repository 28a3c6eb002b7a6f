package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"blackroad.io/operator/internal/policy"
	"blackroad.io/operator/models"
)

// PolicyHandler handles policy rule, evaluation and violation endpoints.
type PolicyHandler struct {
	engine *policy.Engine
}

// NewPolicyHandler creates a new policy handler.
func NewPolicyHandler(engine *policy.Engine) *PolicyHandler {
	return &PolicyHandler{engine: engine}
}

// CreateRule handles POST /api/v1/policies.
//
// Returns:
//   - 201 Created with the stored rule
//   - 400 for an unknown action or a condition that does not compile
//   - 409 when the rule_id exists
func (h *PolicyHandler) CreateRule(c *gin.Context) {
	var req models.PolicyRuleCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	rule, err := h.engine.AddRule(c.Request.Context(), &req)
	if err != nil {
		mapErrorToResponse(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, rule)
}

// ListRules handles GET /api/v1/policies?include_disabled=true.
func (h *PolicyHandler) ListRules(c *gin.Context) {
	includeDisabled := c.Query("include_disabled") == "true"

	rules, err := h.engine.ListRules(c.Request.Context(), includeDisabled)
	if err != nil {
		mapErrorToResponse(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, rules)
}

// GetRule handles GET /api/v1/policies/:id.
func (h *PolicyHandler) GetRule(c *gin.Context) {
	rule, err := h.engine.GetRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		mapErrorToResponse(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, rule)
}

// UpdateRule handles PATCH /api/v1/policies/:id.
//
// Request body: {"enabled": false}
func (h *PolicyHandler) UpdateRule(c *gin.Context) {
	var req models.PolicyRuleUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	rule, err := h.engine.SetRuleEnabled(c.Request.Context(), c.Param("id"), *req.Enabled)
	if err != nil {
		mapErrorToResponse(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, rule)
}

// DeleteRule handles DELETE /api/v1/policies/:id.
//
// The rule's violations and exemptions are deleted with it.
func (h *PolicyHandler) DeleteRule(c *gin.Context) {
	if err := h.engine.DeleteRule(c.Request.Context(), c.Param("id")); err != nil {
		mapErrorToResponse(c, err)
		return
	}
	respondSuccessWithMessage(c, http.StatusOK, "Policy rule deleted")
}

// AddExemption handles POST /api/v1/policies/:id/exemptions.
func (h *PolicyHandler) AddExemption(c *gin.Context) {
	var req models.PolicyExemptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	exemption, err := h.engine.AddExemption(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		mapErrorToResponse(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, exemption)
}

// Evaluate handles POST /api/v1/evaluate.
//
// Request body: {"subject": "...", "resource": "...", "context": {...}}
// Response: 200 OK with the access decision. A deny is still a 200; the
// decision is in the body.
func (h *PolicyHandler) Evaluate(c *gin.Context) {
	var req models.AccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	decision, err := h.engine.EvaluateAccess(c.Request.Context(), req.Subject, req.Resource, req.Context)
	if err != nil {
		mapErrorToResponse(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, decision)
}

// EvaluateBatch handles POST /api/v1/evaluate/batch.
//
// Decisions are returned in request order.
func (h *PolicyHandler) EvaluateBatch(c *gin.Context) {
	var req models.BatchAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	decisions, err := h.engine.EvaluateBatch(c.Request.Context(), req.Requests)
	if err != nil {
		mapErrorToResponse(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, decisions)
}

// ListViolations handles GET /api/v1/violations?subject=&hours=.
func (h *PolicyHandler) ListViolations(c *gin.Context) {
	hours, err := queryInt(c, "hours", policy.DefaultViolationWindow)
	if err != nil {
		mapErrorToResponse(c, err)
		return
	}
	subject := c.Query("subject")

	violations, err := h.engine.GetViolations(c.Request.Context(), subject, hours)
	if err != nil {
		mapErrorToResponse(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, models.ViolationListResponse{
		Subject:    subject,
		Hours:      hours,
		Violations: violations,
	})
}
