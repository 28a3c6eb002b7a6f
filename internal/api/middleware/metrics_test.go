package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackroad.io/operator/internal/metrics"
)

func newMetricsRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	metrics.Reset()
	require.NoError(t, metrics.Init())

	router := gin.New()
	router.Use(MetricsMiddleware())
	return router
}

func TestMetricsMiddleware_CountsByRoute(t *testing.T) {
	router := newMetricsRouter(t)
	router.GET("/test/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})

	counter := metrics.HTTPRequestsTotal.WithLabelValues("GET", "/test/:id", "200")
	before := testutil.ToFloat64(counter)

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test/123", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, before+5, testutil.ToFloat64(counter))
}

func TestMetricsMiddleware_DifferentStatusCodes(t *testing.T) {
	router := newMetricsRouter(t)
	router.GET("/status/:code", func(c *gin.Context) {
		switch c.Param("code") {
		case "404":
			c.Status(http.StatusNotFound)
		case "500":
			c.Status(http.StatusInternalServerError)
		default:
			c.Status(http.StatusOK)
		}
	})

	for _, code := range []string{"200", "404", "500"} {
		counter := metrics.HTTPRequestsTotal.WithLabelValues("GET", "/status/:code", code)
		before := testutil.ToFloat64(counter)

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/status/"+code, nil))

		assert.Equal(t, before+1, testutil.ToFloat64(counter), code)
	}
}

func TestMetricsMiddleware_UnmatchedRoute(t *testing.T) {
	router := newMetricsRouter(t)

	counter := metrics.HTTPRequestsTotal.WithLabelValues("GET", metrics.UnmatchedRoute, "404")
	before := testutil.ToFloat64(counter)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/abc", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/def", nil))

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestMetricsMiddleware_InFlightReturnsToZero(t *testing.T) {
	router := newMetricsRouter(t)
	var during float64
	router.GET("/slow", func(c *gin.Context) {
		during = testutil.ToFloat64(metrics.HTTPRequestsInFlight)
		c.Status(http.StatusOK)
	})

	start := testutil.ToFloat64(metrics.HTTPRequestsInFlight)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/slow", nil))

	assert.Equal(t, start+1, during)
	assert.Equal(t, start, testutil.ToFloat64(metrics.HTTPRequestsInFlight))
}
