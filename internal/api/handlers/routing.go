package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"blackroad.io/operator/internal/routing"
	"blackroad.io/operator/internal/util"
	"blackroad.io/operator/models"
)

// RoutingHandler serves the routing matrix and its registries.
type RoutingHandler struct {
	matrix *routing.Matrix
}

// NewRoutingHandler creates a new routing handler.
func NewRoutingHandler(matrix *routing.Matrix) *RoutingHandler {
	return &RoutingHandler{matrix: matrix}
}

// Route handles POST /api/v1/route.
//
// Request body: {"intent": "deploy the website"}
// Response: 200 OK with the route decision
func (h *RoutingHandler) Route(c *gin.Context) {
	var req models.RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := util.ValidateIntent(req.Intent); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	respondSuccess(c, http.StatusOK, h.matrix.Route(req.Intent))
}

// ListOrganizations handles GET /api/v1/organizations.
func (h *RoutingHandler) ListOrganizations(c *gin.Context) {
	respondSuccess(c, http.StatusOK, h.matrix.ListOrganizations())
}

// GetOrganization handles GET /api/v1/organizations/:name.
func (h *RoutingHandler) GetOrganization(c *gin.Context) {
	org, ok := h.matrix.GetOrganization(c.Param("name"))
	if !ok {
		mapErrorToResponse(c, models.ErrOrganizationNotFound)
		return
	}
	respondSuccess(c, http.StatusOK, org)
}

// OrganizationDomains handles GET /api/v1/organizations/:name/domains.
//
// Unknown organizations return 404; known organizations without domains
// return an empty list.
func (h *RoutingHandler) OrganizationDomains(c *gin.Context) {
	name := c.Param("name")
	if _, ok := h.matrix.GetOrganization(name); !ok {
		mapErrorToResponse(c, models.ErrOrganizationNotFound)
		return
	}
	respondSuccess(c, http.StatusOK, h.matrix.DomainsForOrganization(name))
}

// ListDomains handles GET /api/v1/domains.
func (h *RoutingHandler) ListDomains(c *gin.Context) {
	respondSuccess(c, http.StatusOK, h.matrix.ListDomains())
}

// ListStrategies handles GET /api/v1/strategies.
func (h *RoutingHandler) ListStrategies(c *gin.Context) {
	respondSuccess(c, http.StatusOK, h.matrix.Strategies())
}

// GetStrategy handles GET /api/v1/strategies/:provider.
//
// The response carries effective_proxy_url, the proxy after applying the
// strategy's environment override.
func (h *RoutingHandler) GetStrategy(c *gin.Context) {
	s, err := h.matrix.Strategy(c.Param("provider"))
	if err != nil {
		mapErrorToResponse(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, StrategyResponse{
		RateLimitStrategy: s,
		EffectiveProxyURL: s.EffectiveProxyURL(),
	})
}

// StrategyResponse is a strategy with its resolved proxy URL.
type StrategyResponse struct {
	models.RateLimitStrategy
	EffectiveProxyURL string `json:"effective_proxy_url,omitempty"`
}
