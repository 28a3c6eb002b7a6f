package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"blackroad.io/operator/internal/api/middleware"
	"blackroad.io/operator/internal/approval"
	"blackroad.io/operator/internal/database/dbtest"
	"blackroad.io/operator/internal/ledger"
	"blackroad.io/operator/internal/metrics"
	"blackroad.io/operator/internal/policy"
	"blackroad.io/operator/internal/ratelimit"
	"blackroad.io/operator/internal/routing"
	"blackroad.io/operator/internal/scaffold"
	"blackroad.io/operator/internal/service"
	"blackroad.io/operator/models"
	"blackroad.io/operator/pkg/token"
)

const testSecret = "router-test-secret-at-least-32-bytes!!"

type testAPI struct {
	router *gin.Engine
	token  string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	metrics.Reset()
	require.NoError(t, metrics.Init())

	logger := zap.NewNop()
	db := dbtest.New(t)

	matrix, err := routing.NewMatrix(nil, logger)
	require.NoError(t, err)
	approvals, err := approval.NewManager(approval.Config{Key: []byte(testSecret), TTL: time.Hour})
	require.NoError(t, err)

	policies := policy.NewEngine(db, logger, 4)
	l := ledger.New(db, logger)
	tasks := service.NewTaskService(scaffold.NewEngine(logger), matrix, policies, l, approvals, logger)

	adminToken, err := token.Issue()
	require.NoError(t, err)

	limits := middleware.NewRateLimits(ratelimit.DefaultConfig(), 0, 0)
	t.Cleanup(limits.Stop)

	router := SetupRouter(&RouterConfig{
		DB:               db,
		Logger:           logger,
		Matrix:           matrix,
		Policies:         policies,
		Tasks:            tasks,
		Ledger:           l,
		HMACSecret:       testSecret,
		AdminTokenDigest: token.Digest(adminToken, testSecret),
		InstanceID:       "11111111-2222-3333-4444-555555555555",
		Version:          "test",
		Limits:           limits,
	})
	return &testAPI{router: router, token: adminToken}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set(middleware.HeaderAdminToken, a.token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope), w.Body.String())
	require.NoError(t, json.Unmarshal(envelope.Data, out), w.Body.String())
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestHealthAndMetrics(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodGet, "/health/live", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"test"`)

	w = a.do(t, http.MethodGet, "/health/ready", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodGet, "/metrics", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "operator_http_requests_total")
}

func TestRoutingEndpoints(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/api/v1/route", models.RouteRequest{Intent: "Deploy infrastructure to Railway"}, false)
	require.Equal(t, http.StatusOK, w.Code)
	var decision models.RouteDecision
	decodeData(t, w, &decision)
	assert.Equal(t, "BlackRoad-Cloud", decision.Organization)
	assert.Equal(t, models.DomainCloud, decision.Domain)

	w = a.do(t, http.MethodPost, "/api/v1/route", map[string]string{}, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodGet, "/api/v1/organizations", nil, false)
	var orgs []models.Organization
	decodeData(t, w, &orgs)
	assert.Len(t, orgs, 15)

	w = a.do(t, http.MethodGet, "/api/v1/organizations/BlackRoad-AI/domains", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodGet, "/api/v1/organizations/Nope", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = a.do(t, http.MethodGet, "/api/v1/organizations/Nope/domains", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, http.MethodGet, "/api/v1/domains", nil, false)
	var domains []models.DomainEntry
	decodeData(t, w, &domains)
	assert.Len(t, domains, 14)

	w = a.do(t, http.MethodGet, "/api/v1/strategies/github_copilot", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "effective_proxy_url")

	w = a.do(t, http.MethodGet, "/api/v1/strategies/nobody", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPolicyEndpoints(t *testing.T) {
	a := newTestAPI(t)
	rule := models.PolicyRuleCreateRequest{
		RuleID:    "admin_access",
		Name:      "Admin Access",
		Condition: `resource startsWith "/admin" and not (subject contains "admin")`,
		Action:    models.ActionDeny,
		Priority:  100,
	}

	w := a.do(t, http.MethodPost, "/api/v1/policies", rule, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(t, http.MethodPost, "/api/v1/policies", rule, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(t, http.MethodPost, "/api/v1/policies", rule, true)
	assert.Equal(t, http.StatusConflict, w.Code)

	bad := rule
	bad.RuleID = "broken"
	bad.Condition = "resource startsWith"
	w = a.do(t, http.MethodPost, "/api/v1/policies", bad, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_condition", errorCode(t, w))

	bad.Condition = "true"
	bad.Action = "explode"
	w = a.do(t, http.MethodPost, "/api/v1/policies", bad, true)
	assert.Equal(t, "invalid_action", errorCode(t, w))

	w = a.do(t, http.MethodPost, "/api/v1/evaluate", models.AccessRequest{Subject: "user:bob", Resource: "/admin/panel"}, false)
	require.Equal(t, http.StatusOK, w.Code)
	var decision models.AccessDecision
	decodeData(t, w, &decision)
	assert.Equal(t, models.ActionDeny, decision.Decision)
	require.Len(t, decision.Violations, 1)

	w = a.do(t, http.MethodPost, "/api/v1/evaluate/batch", models.BatchAccessRequest{Requests: []models.AccessRequest{
		{Subject: "user:admin", Resource: "/admin/panel"},
		{Subject: "user:bob", Resource: "/public"},
	}}, false)
	require.Equal(t, http.StatusOK, w.Code)
	var batch []models.AccessDecision
	decodeData(t, w, &batch)
	require.Len(t, batch, 2)
	assert.Equal(t, models.ActionAllow, batch[0].Decision)
	assert.Equal(t, "user:admin", batch[0].Subject)
	assert.Equal(t, "user:bob", batch[1].Subject)

	w = a.do(t, http.MethodGet, "/api/v1/violations?subject=user:bob&hours=1", nil, false)
	var violations models.ViolationListResponse
	decodeData(t, w, &violations)
	assert.Len(t, violations.Violations, 1)
	assert.Equal(t, 1, violations.Hours)

	w = a.do(t, http.MethodGet, "/api/v1/violations?hours=abc", nil, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodPost, "/api/v1/policies/admin_access/exemptions", models.PolicyExemptionRequest{Subject: "user:bob"}, true)
	assert.Equal(t, http.StatusCreated, w.Code)
	w = a.do(t, http.MethodPost, "/api/v1/evaluate", models.AccessRequest{Subject: "user:bob", Resource: "/admin/panel"}, false)
	decodeData(t, w, &decision)
	assert.Equal(t, models.ActionAllow, decision.Decision)

	disabled := false
	w = a.do(t, http.MethodPatch, "/api/v1/policies/admin_access", models.PolicyRuleUpdateRequest{Enabled: &disabled}, true)
	require.Equal(t, http.StatusOK, w.Code)
	w = a.do(t, http.MethodGet, "/api/v1/policies", nil, false)
	var rules []models.PolicyRule
	decodeData(t, w, &rules)
	assert.Empty(t, rules)
	w = a.do(t, http.MethodGet, "/api/v1/policies?include_disabled=true", nil, false)
	decodeData(t, w, &rules)
	assert.Len(t, rules, 1)

	w = a.do(t, http.MethodDelete, "/api/v1/policies/admin_access", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
	w = a.do(t, http.MethodGet, "/api/v1/policies/admin_access", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTaskLifecycle(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/api/v1/policies", models.PolicyRuleCreateRequest{
		RuleID: "gate", Name: "gate", Condition: `resource contains "deploy"`, Action: models.ActionRequireApproval,
	}, true)
	require.Equal(t, http.StatusCreated, w.Code)

	w = a.do(t, http.MethodPost, "/api/v1/tasks", models.TaskCreateRequest{Intent: "deploy the website", RequestedBy: "alice"}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(t, http.MethodPost, "/api/v1/tasks", models.TaskCreateRequest{Intent: "deploy the website", RequestedBy: "alice"}, true)
	require.Equal(t, http.StatusCreated, w.Code)
	var task models.TaskRecord
	decodeData(t, w, &task)

	base := "/api/v1/tasks/" + task.TaskID

	w = a.do(t, http.MethodPost, base+"/advance", nil, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var paused models.StepTransition
	decodeData(t, w, &paused)
	assert.Equal(t, models.StepAwaitingApproval, paused.Result.Status)
	require.NotEmpty(t, paused.ApprovalToken)

	w = a.do(t, http.MethodPost, base+"/advance", nil, true)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "awaiting_approval", errorCode(t, w))

	w = a.do(t, http.MethodGet, "/api/v1/tasks?awaiting_approval=true", nil, false)
	var pending []models.TaskStatus
	decodeData(t, w, &pending)
	assert.Len(t, pending, 1)

	w = a.do(t, http.MethodPost, base+"/approve", models.TaskApproveRequest{Token: "forged", Approver: "carol"}, true)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(t, http.MethodPost, base+"/approve", models.TaskApproveRequest{Token: paused.ApprovalToken, Approver: "carol"}, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(t, http.MethodPost, base+"/advance", models.TaskAdvanceRequest{}, true)
	require.Equal(t, http.StatusOK, w.Code)
	var routed models.StepTransition
	decodeData(t, w, &routed)
	assert.Equal(t, "BlackRoad-Cloud", routed.Status.Organization)

	w = a.do(t, http.MethodPost, base+"/fail", models.TaskFailRequest{Error: "team offline"}, true)
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodGet, base+"?view=status", nil, false)
	var status models.TaskStatus
	decodeData(t, w, &status)
	assert.Equal(t, "TASK_TO_TEAM", status.CurrentStep)
	assert.Equal(t, 2, status.StepsCompleted)

	w = a.do(t, http.MethodGet, "/api/v1/tasks/does-not-exist", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, http.MethodGet, "/api/v1/ledger?task_id="+task.TaskID, nil, false)
	var entries []models.LedgerEntry
	decodeData(t, w, &entries)
	assert.Len(t, entries, 4)

	w = a.do(t, http.MethodGet, "/api/v1/ledger/head", nil, false)
	var head models.LedgerEntry
	decodeData(t, w, &head)
	assert.Equal(t, int64(4), head.Seq)
	assert.Equal(t, models.StepFailed, head.Status)

	w = a.do(t, http.MethodGet, "/api/v1/ledger/verify", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	var report models.LedgerVerification
	decodeData(t, w, &report)
	assert.True(t, report.Valid)
	assert.Equal(t, int64(4), report.Checked)

	w = a.do(t, http.MethodGet, "/api/v1/steps", nil, false)
	var steps []models.StepDescription
	decodeData(t, w, &steps)
	assert.Len(t, steps, scaffold.TotalSteps)
}

func TestLedgerHead_Empty(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodGet, "/api/v1/ledger/head", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, http.MethodGet, "/api/v1/ledger?limit=-1", nil, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
