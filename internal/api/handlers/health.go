package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler handles health check endpoints.
//
// This handler provides liveness and readiness checks for Kubernetes and
// load balancer health monitoring.
type HealthHandler struct {
	db         *sql.DB
	instanceID string
	version    string
}

// NewHealthHandler creates a new health check handler.
//
// Parameters:
//   - db: Database connection for readiness checks
//   - instanceID: This operator instance's UUID
//   - version: Build version reported by liveness
func NewHealthHandler(db *sql.DB, instanceID, version string) *HealthHandler {
	return &HealthHandler{
		db:         db,
		instanceID: instanceID,
		version:    version,
	}
}

// LivenessResponse represents the liveness probe response.
type LivenessResponse struct {
	Status     string `json:"status"`
	InstanceID string `json:"instance_id"`
	Version    string `json:"version,omitempty"`
}

// ReadinessResponse represents the readiness probe response.
type ReadinessResponse struct {
	Status     string `json:"status"`
	InstanceID string `json:"instance_id"`
	Database   string `json:"database"`
}

// Liveness handles GET /health/live.
//
// This endpoint always returns 200 OK as long as the HTTP server is running.
func (h *HealthHandler) Liveness(c *gin.Context) {
	respondSuccess(c, http.StatusOK, LivenessResponse{
		Status:     "ok",
		InstanceID: h.instanceID,
		Version:    h.version,
	})
}

// Readiness handles GET /health/ready.
//
// Returns:
//   - 200 OK if the database answers a ping within two seconds
//   - 503 Service Unavailable otherwise
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		respondError(c, http.StatusServiceUnavailable, "unhealthy", "Database unavailable")
		return
	}

	respondSuccess(c, http.StatusOK, ReadinessResponse{
		Status:     "ready",
		InstanceID: h.instanceID,
		Database:   "connected",
	})
}
