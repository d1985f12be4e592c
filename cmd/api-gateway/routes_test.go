package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/pattern-signup-api/pkg/config"
)

func newTestRouter(t *testing.T, env string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, _, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{
		Env:       env,
		APIPrefix: "/api/v1",
		JWT:       config.JWTConfig{Secret: "test", Issuer: "test"},
		Metrics:   config.MetricsConfig{Enabled: true},
		Exports:   config.ExportsConfig{Enabled: true},
	}
	a := buildApp(cfg, sqlx.NewDb(db, "postgres"), nil, zap.NewNop())
	return newRouter(cfg, a, zap.NewNop())
}

func TestAdminRoutesRequireToken(t *testing.T) {
	r := newTestRouter(t, config.EnvDevelopment)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/admin/requests"},
		{http.MethodPost, "/api/v1/admin/requests/abc/decision"},
		{http.MethodPut, "/api/v1/admin/calendar/Observer"},
		{http.MethodDelete, "/api/v1/admin/calendar/Observer"},
		{http.MethodGet, "/api/v1/admin/exports/assignments"},
		{http.MethodGet, "/api/v1/auth/session"},
		{http.MethodPost, "/api/v1/auth/logout"},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(route.method, route.path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", route.method, route.path)
	}
}

func TestInfraRoutes(t *testing.T) {
	r := newTestRouter(t, config.EnvDevelopment)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDocsHiddenInProduction(t *testing.T) {
	r := newTestRouter(t, config.EnvProduction)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/docs/index.html", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
