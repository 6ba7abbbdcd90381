package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/edupacket-api/pkg/config"
)

func newRouter(origins ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(config.CORSConfig{AllowedOrigins: origins}))
	r.GET("/api/pdfs", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestListedOriginGetsCredentials(t *testing.T) {
	r := newRouter("https://portal.example.edu/")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/pdfs", nil)
	req.Header.Set("Origin", "https://Portal.example.edu")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://Portal.example.edu", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}

func TestWildcardOmitsCredentials(t *testing.T) {
	r := newRouter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/pdfs", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	r.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestPreflight(t *testing.T) {
	r := newRouter("https://portal.example.edu")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/pdfs", nil)
	req.Header.Set("Origin", "https://portal.example.edu")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodOptions, "/api/pdfs", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
