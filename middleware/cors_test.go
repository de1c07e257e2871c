package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func corsRouter(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORS(origins))
	router.GET("/test", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "ok"}) })
	return router
}

func TestCORS_AllowAllOrigins(t *testing.T) {
	router := corsRouter([]string{"*"})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "https://anything.example")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://anything.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_SpecificOrigins(t *testing.T) {
	router := corsRouter([]string{"https://app.example.com", "*.trusted.io"})

	tests := []struct {
		origin  string
		allowed bool
	}{
		{origin: "https://app.example.com", allowed: true},
		{origin: "https://jobs.trusted.io", allowed: true},
		{origin: "https://evil.example.org", allowed: false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/test", nil)
			req.Header.Set("Origin", tt.origin)
			router.ServeHTTP(w, req)

			if tt.allowed {
				assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"))
			} else {
				assert.Equal(t, http.StatusForbidden, w.Code)
			}
		})
	}
}

func TestCORS_PreflightRequest(t *testing.T) {
	router := corsRouter(nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("OPTIONS", "/test", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestIsOriginAllowed(t *testing.T) {
	assert.False(t, isOriginAllowed("", []string{"*"}))
	assert.True(t, isOriginAllowed("https://a.b", []string{"*"}))
	assert.True(t, isOriginAllowed("https://x.b.com", []string{"*.b.com"}))
	assert.False(t, isOriginAllowed("https://xb.com", []string{"*.b.com"}))
}
