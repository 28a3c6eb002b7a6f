package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackroad.io/operator/internal/ratelimit"
	"blackroad.io/operator/pkg/token"
)

const testSecret = "test-secret-that-is-at-least-32-bytes!!"

func newAuthRouter(t *testing.T, failuresPerMin int) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	adminToken, err := token.Issue()
	require.NoError(t, err)

	limits := NewRateLimits(ratelimit.Config{AuthFailuresPerMin: failuresPerMin}, 0, 0)
	t.Cleanup(limits.Stop)

	router := gin.New()
	router.POST("/admin", RequireAdminToken(&AuthConfig{
		Secret:      testSecret,
		TokenDigest: token.Digest(adminToken, testSecret),
		Limits:      limits,
	}), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"admin": IsAdmin(c)})
	})
	return router, adminToken
}

func post(router *gin.Engine, tok string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/admin", nil)
	req.RemoteAddr = "192.168.1.100:12345"
	if tok != "" {
		req.Header.Set(HeaderAdminToken, tok)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireAdminToken_Valid(t *testing.T) {
	router, adminToken := newAuthRouter(t, 5)

	w := post(router, adminToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"admin":true}`, w.Body.String())
}

func TestRequireAdminToken_Rejects(t *testing.T) {
	router, adminToken := newAuthRouter(t, 100)
	other, err := token.Issue()
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"missing":    "",
		"bad format": "Bearer abc",
		"wrong":      other,
		"truncated":  adminToken[:len(adminToken)-1],
	} {
		t.Run(name, func(t *testing.T) {
			w := post(router, tok)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), "Authentication failed")
		})
	}
}

func TestRequireAdminToken_FailureLockout(t *testing.T) {
	router, adminToken := newAuthRouter(t, 2)

	assert.Equal(t, http.StatusUnauthorized, post(router, "opr_wrong").Code)
	assert.Equal(t, http.StatusUnauthorized, post(router, "opr_wrong").Code)

	w := post(router, "opr_wrong")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// A locked-out client is refused even with the right token.
	assert.Equal(t, http.StatusTooManyRequests, post(router, adminToken).Code)
}

func TestRequireAdminToken_NoDigestConfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	adminToken, err := token.Issue()
	require.NoError(t, err)

	router := gin.New()
	router.POST("/admin", RequireAdminToken(&AuthConfig{Secret: testSecret}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusUnauthorized, post(router, adminToken).Code)
}
