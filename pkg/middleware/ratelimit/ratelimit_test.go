package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(limiter *Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limiter.Middleware())
	r.GET("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestLimiterAllowsWithinBurst(t *testing.T) {
	r := newRouter(New(1, 2))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req, err := http.NewRequest(http.MethodGet, "/", nil)
		require.NoError(t, err)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestLimiterRejectsBeyondBurst(t *testing.T) {
	r := newRouter(New(0.001, 1))

	first := httptest.NewRecorder()
	req1, _ := http.NewRequest(http.MethodGet, "/", nil)
	req1.RemoteAddr = "10.0.0.2:1234"
	r.ServeHTTP(first, req1)
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	req2, _ := http.NewRequest(http.MethodGet, "/", nil)
	req2.RemoteAddr = "10.0.0.2:1234"
	r.ServeHTTP(second, req2)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestLimiterTracksClientsIndependently(t *testing.T) {
	r := newRouter(New(0.001, 1))

	for _, addr := range []string{"10.0.0.3:1", "10.0.0.4:1"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
