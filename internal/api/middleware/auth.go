package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"blackroad.io/operator/pkg/token"
)

// HeaderAdminToken is the header carrying the admin token.
const HeaderAdminToken = "X-Operator-Token"

const contextKeyAdmin = "admin"

// AuthConfig holds configuration for authentication middleware.
type AuthConfig struct {
	// Secret is the HMAC secret the admin token digest was computed with.
	Secret string

	// TokenDigest is the hex HMAC-SHA256 of the admin token.
	TokenDigest string

	// Limits throttles repeated failures per client IP. Optional.
	Limits *RateLimits
}

// respondAuthError sends an authentication error response.
//
// This uses a generic error message so responses do not reveal why a
// token was rejected.
func respondAuthError(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":      "unauthorized",
		"message":    "Authentication failed",
		"request_id": GetRequestID(c),
	})
}

// RequireAdminToken creates middleware that requires the admin token.
//
// This middleware:
// - Rejects clients that have used up their auth failures with 429 and Retry-After
// - Extracts the token from the X-Operator-Token header
// - Checks the token format before hashing it
// - Compares its HMAC digest with the configured digest in constant time
// - Spends one auth failure per rejected attempt
//
// Parameters:
//   - config: Authentication configuration
//
// Returns:
//   - Gin middleware handler function
func RequireAdminToken(config *AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.Limits != nil {
			if blocked, retryAfter := config.Limits.AuthBlocked(c); blocked {
				respondRateLimited(c, retryAfter)
				return
			}
		}

		presented := c.GetHeader(HeaderAdminToken)
		valid := presented != "" &&
			token.CheckFormat(presented) == nil &&
			config.TokenDigest != "" &&
			token.Matches(presented, config.Secret, config.TokenDigest)

		if !valid {
			GetLogger(c).Warn("admin token rejected",
				zap.Bool("present", presented != ""),
				zap.String("token", token.Redact(presented)),
			)
			if config.Limits != nil {
				if allowed, retryAfter := config.Limits.RecordAuthFailure(c); !allowed {
					respondRateLimited(c, retryAfter)
					return
				}
			}
			respondAuthError(c)
			return
		}

		c.Set(contextKeyAdmin, true)
		c.Next()
	}
}

// IsAdmin reports whether the request passed RequireAdminToken.
func IsAdmin(c *gin.Context) bool {
	v, ok := c.Get(contextKeyAdmin)
	if !ok {
		return false
	}
	admin, _ := v.(bool)
	return admin
}
