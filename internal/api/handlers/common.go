// Package handlers provides HTTP handlers for the Operator REST API.
//
// This package implements request handlers for health checks, intent
// routing, the policy engine, scaffold tasks and the witnessing ledger.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"blackroad.io/operator/internal/api/middleware"
	"blackroad.io/operator/models"
)

// ErrorResponse represents a standardized error response.
//
// All API errors are returned in this format to provide consistent
// error handling for clients.
type ErrorResponse struct {
	// Error is the error code (e.g., "unauthorized", "not_found").
	Error string `json:"error"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// RequestID is the unique request ID for tracing.
	RequestID string `json:"request_id,omitempty"`
}

// SuccessResponse represents a standardized success response with data.
type SuccessResponse struct {
	// Data contains the response payload.
	Data interface{} `json:"data,omitempty"`

	// Message is an optional success message.
	Message string `json:"message,omitempty"`
}

// respondError sends a standardized error response.
func respondError(c *gin.Context, statusCode int, errorCode string, message string) {
	c.AbortWithStatusJSON(statusCode, ErrorResponse{
		Error:     errorCode,
		Message:   message,
		RequestID: middleware.GetRequestID(c),
	})
}

// respondSuccess sends a standardized success response with data.
func respondSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, SuccessResponse{
		Data: data,
	})
}

// respondSuccessWithMessage sends a standardized success response with a message.
func respondSuccessWithMessage(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, SuccessResponse{
		Message: message,
	})
}

// respondBindError reports a request body that failed to bind or validate.
func respondBindError(c *gin.Context, err error) {
	middleware.GetLogger(c).Debug("request binding failed", zap.Error(err))
	respondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
}

// errorMapping pairs a sentinel with its HTTP response.
type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

// errorMappings is checked in order with errors.Is. More specific
// sentinels come before the generic ones.
var errorMappings = []errorMapping{
	{models.ErrRuleNotFound, http.StatusNotFound, "not_found", "Policy rule not found"},
	{models.ErrTaskNotFound, http.StatusNotFound, "not_found", "Task not found"},
	{models.ErrOrganizationNotFound, http.StatusNotFound, "not_found", "Organization not found"},
	{models.ErrStrategyNotFound, http.StatusNotFound, "not_found", "Rate limit strategy not found"},
	{models.ErrNotFound, http.StatusNotFound, "not_found", "Resource not found"},

	{models.ErrInvalidAction, http.StatusBadRequest, "invalid_action", "Unknown policy action"},
	{models.ErrInvalidCondition, http.StatusBadRequest, "invalid_condition", "Policy condition does not compile"},
	{models.ErrInvalidRequest, http.StatusBadRequest, "invalid_request", "Invalid request parameters"},

	{models.ErrDuplicateRule, http.StatusConflict, "conflict", "Policy rule already exists"},
	{models.ErrScaffoldComplete, http.StatusConflict, "scaffold_complete", "All scaffold steps are complete"},
	{models.ErrAwaitingApproval, http.StatusConflict, "awaiting_approval", "Current step is awaiting approval"},
	{models.ErrNotAwaitingApproval, http.StatusConflict, "not_awaiting_approval", "Current step is not awaiting approval"},

	{models.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "Authentication failed"},
	{models.ErrInvalidApproval, http.StatusForbidden, "invalid_approval", "Approval token rejected"},
	{models.ErrForbidden, http.StatusForbidden, "forbidden", "Access denied"},
	{models.ErrRateLimitExceeded, http.StatusTooManyRequests, "rate_limit_exceeded", "Rate limit exceeded"},

	{models.ErrLedgerCorrupted, http.StatusInternalServerError, "ledger_corrupted", "Witness ledger chain is broken"},
}

// mapErrorToResponse converts a service error to an HTTP response.
//
// Domain errors are matched with errors.Is so wrapped errors keep their
// status. Anything unrecognized is logged and reported as a generic 500 so
// that internal detail never reaches the client.
func mapErrorToResponse(c *gin.Context, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				middleware.GetLogger(c).Error("request failed", zap.Error(err))
			}
			respondError(c, m.status, m.code, m.message)
			return
		}
	}

	middleware.GetLogger(c).Error("request failed", zap.Error(err))
	respondError(c, http.StatusInternalServerError, "internal_error", "An internal error occurred")
}

// queryInt parses an optional integer query parameter.
func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, models.ErrInvalidRequest
	}
	return v, nil
}
