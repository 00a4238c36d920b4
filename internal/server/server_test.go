package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"pos-backoffice/internal/config"
	"pos-backoffice/internal/database"
)

// newOfflineServer points at a port nothing listens on, so every store
// access fails fast.
func newOfflineServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Port: "0", Env: "test"},
		Database: config.DatabaseConfig{
			URL:            "postgres://127.0.0.1:1/pos?sslmode=disable",
			ConnectTimeout: 200 * time.Millisecond,
		},
		Session:   config.SessionConfig{Secret: "test-secret", TTL: time.Hour},
		Store:     config.StoreConfig{Name: "Cafetería"},
		RateLimit: config.RateLimitConfig{LoginAttempts: 2, LoginWindow: time.Minute},
	}
	return NewServer(cfg, zap.NewNop(), database.New(cfg.Database, zap.NewNop()), nil)
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler.ServeHTTP(w, req)
	return w
}

func TestHealthReportsStoreDown(t *testing.T) {
	s := newOfflineServer(t)

	w := serve(s, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"down"`)

	metrics := serve(s, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "pos_backoffice_db_up 0")
	assert.Contains(t, metrics.Body.String(), `pos_backoffice_http_requests_total{method="GET",path="/health",status="503"} 1`)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := newOfflineServer(t)

	for _, path := range []string{"/api/products", "/api/sales/today", "/api/reports/daily-total", "/api/users"} {
		assert.Equal(t, http.StatusUnauthorized, serve(s, httptest.NewRequest("GET", path, nil)).Code, path)
	}
}

func TestLoginRequiresJSONAndIsRateLimited(t *testing.T) {
	s := newOfflineServer(t)

	form := httptest.NewRequest("POST", "/api/session", strings.NewReader("email=a"))
	form.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusUnsupportedMediaType, serve(s, form).Code)

	login := func() int {
		req := httptest.NewRequest("POST", "/api/session", strings.NewReader(`{"email":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		return serve(s, req).Code
	}

	assert.Equal(t, http.StatusBadRequest, login())
	assert.Equal(t, http.StatusBadRequest, login())
	assert.Equal(t, http.StatusTooManyRequests, login())
}
