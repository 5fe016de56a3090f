package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/use-agent/shelfscrape/config"
	"github.com/use-agent/shelfscrape/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) { c.String(http.StatusOK, c.GetString(apiKeyContextKey)) })
	r.GET("/", handlers...)
	return r
}

func get(r http.Handler, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	r := newEngine(Auth([]string{"k1", "k2"}))

	tests := []struct {
		name    string
		headers map[string]string
		code    int
		body    string
	}{
		{"missing", nil, http.StatusUnauthorized, "missing API key"},
		{"invalid", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized, "invalid API key"},
		{"header", map[string]string{"X-API-Key": "k1"}, http.StatusOK, "k1"},
		{"bearer", map[string]string{"Authorization": "Bearer k2"}, http.StatusOK, "k2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(r, tt.headers)
			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
			if tt.code == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), models.ErrCodeUnauthorized)
			}
		})
	}
}

func TestAuth_NoKeysIsOpen(t *testing.T) {
	w := get(newEngine(Auth([]string{""})), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit(t *testing.T) {
	r := newEngine(Auth([]string{"a", "b"}), RateLimit(config.RateLimitConfig{RequestsPerSecond: 0.01, Burst: 2}))

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, get(r, map[string]string{"X-API-Key": "a"}).Code)
	}
	w := get(r, map[string]string{"X-API-Key": "a"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), models.ErrCodeRateLimited)

	assert.Equal(t, http.StatusOK, get(r, map[string]string{"X-API-Key": "b"}).Code, "limits are per key")
}
