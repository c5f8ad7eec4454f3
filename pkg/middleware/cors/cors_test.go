package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func performRequest(handler gin.HandlerFunc, method, origin string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handler)
	r.GET("/lessons", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(method, "/lessons", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAllowsConfiguredOriginWithCredentials(t *testing.T) {
	w := performRequest(New([]string{"https://app.notebridge.io/"}), http.MethodGet, "https://app.notebridge.io")

	assert.Equal(t, "https://app.notebridge.io", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUnknownOriginGetsNoAllowHeader(t *testing.T) {
	w := performRequest(New([]string{"https://app.notebridge.io"}), http.MethodGet, "https://evil.example.com")

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestEmptyListAllowsAnyOriginWithoutCredentials(t *testing.T) {
	w := performRequest(New(nil), http.MethodGet, "https://anywhere.example.com")

	assert.Equal(t, "https://anywhere.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestPreflightShortCircuits(t *testing.T) {
	w := performRequest(New(nil), http.MethodOptions, "https://anywhere.example.com")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, allowedMethods, w.Header().Get("Access-Control-Allow-Methods"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Request-ID")
}
