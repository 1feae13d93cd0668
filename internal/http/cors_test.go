package http

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCORSMiddleware(t *testing.T) {
	logger := slog.Default()

	assert.Nil(t, createCORSMiddleware(false, "https://ops.example.com", logger))
	assert.Nil(t, createCORSMiddleware(true, "", logger))
	assert.Nil(t, createCORSMiddleware(true, "ops.example.com, ftp://files.example.com", logger))
	assert.NotNil(t, createCORSMiddleware(true, " https://ops.example.com , http://localhost:3000", logger))
	assert.NotNil(t, createCORSMiddleware(true, "*", logger))
}

func TestParseOrigins(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		origins  []string
		rejected []string
	}{
		{
			name:  "empty",
			input: "",
		},
		{
			name:    "trims whitespace and trailing slash",
			input:   " https://ops.example.com/ ,http://localhost:3000",
			origins: []string{"https://ops.example.com", "http://localhost:3000"},
		},
		{
			name:     "rejects hosts without scheme and paths",
			input:    "ops.example.com,https://ops.example.com/console,https://ok.example.com",
			origins:  []string{"https://ok.example.com"},
			rejected: []string{"ops.example.com", "https://ops.example.com/console"},
		},
		{
			name:    "wildcard",
			input:   "*",
			origins: []string{"*"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origins, rejected := parseOrigins(tt.input)
			assert.Equal(t, tt.origins, origins)
			assert.Equal(t, tt.rejected, rejected)
		})
	}
}

func newCORSRouter(t *testing.T, origins string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	middleware := createCORSMiddleware(true, origins, slog.Default())
	require.NotNil(t, middleware)
	router.Use(middleware)
	router.POST("/v1/jobs/:task_name", func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return router
}

func TestCORSIntegration_AllowedOrigin(t *testing.T) {
	router := newCORSRouter(t, "https://ops.example.com")

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/outbox-drain", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "https://ops.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSIntegration_ForeignOriginRejected(t *testing.T) {
	router := newCORSRouter(t, "https://ops.example.com")

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/outbox-drain", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSIntegration_Preflight(t *testing.T) {
	router := newCORSRouter(t, "https://ops.example.com")

	req := httptest.NewRequest(http.MethodOptions, "/v1/jobs/outbox-drain", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}
