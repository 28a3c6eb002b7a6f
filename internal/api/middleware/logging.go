// Package middleware provides HTTP middleware for the Operator REST API.
//
// This package implements admin token authentication, rate limiting,
// request logging, metrics and CORS handling for all API requests.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"blackroad.io/operator/internal/logging"
	"blackroad.io/operator/internal/util"
)

const (
	// HeaderRequestID carries the request ID in both directions.
	HeaderRequestID = "X-Request-ID"

	contextKeyLogger    = "logger"
	contextKeyRequestID = "request_id"
)

// RequestLogger creates a middleware that logs all HTTP requests using structured logging.
//
// This middleware:
// - Reuses a valid incoming X-Request-ID or generates a new one
// - Echoes the request ID in the response
// - Stores a request-scoped logger in both Gin and request context
// - Logs completion with status, duration and response size
//
// Parameters:
//   - logger: Zap logger instance
//
// Returns:
//   - Gin middleware handler function
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if util.ValidateUUID(requestID) != nil {
			requestID = uuid.New().String()
		}
		c.Header(HeaderRequestID, requestID)

		start := time.Now()

		requestLogger := logger.With(
			zap.String(logging.FieldRequestID, requestID),
			zap.String(logging.FieldMethod, c.Request.Method),
			zap.String(logging.FieldPath, c.Request.URL.Path),
			zap.String(logging.FieldRemoteAddr, c.ClientIP()),
			zap.String(logging.FieldUserAgent, c.Request.UserAgent()),
		)

		c.Set(contextKeyLogger, requestLogger)
		c.Set(contextKeyRequestID, requestID)

		ctx := logging.WithLogger(c.Request.Context(), requestLogger)
		c.Request = c.Request.WithContext(ctx)

		requestLogger.Debug("request started")

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.Int(logging.FieldStatusCode, status),
			zap.Int64(logging.FieldDuration, duration.Milliseconds()),
			zap.Int("response_size", c.Writer.Size()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String(logging.FieldError, c.Errors.String()))
		}

		switch {
		case status >= 500:
			requestLogger.Error("request completed with server error", fields...)
		case status >= 400:
			requestLogger.Warn("request completed with client error", fields...)
		default:
			requestLogger.Info("request completed", fields...)
		}
	}
}

// GetLogger retrieves the request-scoped logger from Gin context.
// Returns a no-op logger if not found.
func GetLogger(c *gin.Context) *zap.Logger {
	if logger, exists := c.Get(contextKeyLogger); exists {
		if l, ok := logger.(*zap.Logger); ok {
			return l
		}
	}
	return zap.NewNop()
}

// GetRequestID retrieves the request ID from Gin context.
// Returns empty string if not found.
func GetRequestID(c *gin.Context) string {
	if requestID, exists := c.Get(contextKeyRequestID); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}
