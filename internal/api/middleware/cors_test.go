package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func corsRequest(router *gin.Engine, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/x", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func newCORSRouter(origins ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORS(origins))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func TestCORS_AllowedOrigin(t *testing.T) {
	router := newCORSRouter("https://ops.blackroad.io")

	w := corsRequest(router, http.MethodGet, "https://ops.blackroad.io")
	assert.Equal(t, "https://ops.blackroad.io", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), HeaderAdminToken)

	w = corsRequest(router, http.MethodGet, "https://evil.example")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Wildcard(t *testing.T) {
	router := newCORSRouter("*")

	w := corsRequest(router, http.MethodGet, "https://anywhere.example")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_Preflight(t *testing.T) {
	router := newCORSRouter("https://ops.blackroad.io")

	w := corsRequest(router, http.MethodOptions, "https://ops.blackroad.io")
	assert.Equal(t, http.StatusNoContent, w.Code)
}
