package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pattern-signup-api/internal/models"
	appErrors "github.com/noah-isme/pattern-signup-api/pkg/errors"
)

type validatorStub struct {
	claims *models.JWTClaims
	err    error
	seen   string
}

func (v *validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	v.seen = token
	return v.claims, v.err
}

type auditSinkStub struct {
	logs []*models.AuditLog
}

func (a *auditSinkStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type observerStub struct {
	method, path string
	status       int
}

func (o *observerStub) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	o.method, o.path, o.status = method, path, status
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin/requests", append(handlers, func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})...)
	return r
}

func serve(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/requests?status=pending", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWTMiddleware(t *testing.T) {
	admin := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}

	t.Run("missing header", func(t *testing.T) {
		w := serve(newRouter(JWT(&validatorStub{claims: admin})), "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		w := serve(newRouter(JWT(&validatorStub{claims: admin})), "Token abc")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		stub := &validatorStub{err: appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")}
		w := serve(newRouter(JWT(stub)), "Bearer abc")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "abc", stub.seen)
	})

	t.Run("valid token", func(t *testing.T) {
		var seen *models.JWTClaims
		capture := func(c *gin.Context) { seen = Claims(c) }
		w := serve(newRouter(JWT(&validatorStub{claims: admin}), capture), "bearer abc")
		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "admin-1", seen.UserID)
	})
}

func TestOptionalJWTNeverBlocks(t *testing.T) {
	stub := &validatorStub{err: appErrors.ErrUnauthorized}
	w := serve(newRouter(OptionalJWT(stub)), "Bearer expired")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRoles(t *testing.T) {
	t.Run("admin allowed", func(t *testing.T) {
		stub := &validatorStub{claims: &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}}
		w := serve(newRouter(JWT(stub), RequireRoles(models.RoleAdmin)), "Bearer ok")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("other role forbidden", func(t *testing.T) {
		stub := &validatorStub{claims: &models.JWTClaims{UserID: "u-1", Role: models.UserRole("STUDENT")}}
		w := serve(newRouter(JWT(stub), RequireRoles(models.RoleAdmin)), "Bearer ok")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("no claims", func(t *testing.T) {
		w := serve(newRouter(RequireRoles(models.RoleAdmin)), "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	sink := &auditSinkStub{}
	stub := &validatorStub{claims: &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}}
	r := newRouter(JWT(stub), Audit(sink, nil, models.AuditActionRosterExport, "roster"))

	w := serve(r, "Bearer ok")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, sink.logs, 1)
	assert.Equal(t, models.AuditActionRosterExport, sink.logs[0].Action)
	require.NotNil(t, sink.logs[0].UserID)
	assert.Equal(t, "admin-1", *sink.logs[0].UserID)
	assert.Contains(t, string(sink.logs[0].NewValues), `"query":"status=pending"`)

	serve(r, "")
	assert.Len(t, sink.logs, 1)
}

func TestMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	observer := &observerStub{}
	w := serve(newRouter(Metrics(observer)), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.MethodGet, observer.method)
	assert.Equal(t, "/admin/requests", observer.path)
	assert.Equal(t, http.StatusOK, observer.status)
}

func TestResponseMetaRecordsSnapshot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WithResponseMeta())
	var meta ResponseMeta
	r.GET("/board", func(c *gin.Context) {
		RecordSnapshot(c, true, time.Now().Add(-2*time.Minute), "2025.2")
		meta = Meta(c)
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/board", nil))

	require.NotNil(t, meta)
	assert.Equal(t, true, meta[MetaCacheHit])
	assert.Equal(t, "2025.2", meta[MetaCatalogVersion])
	age, ok := meta[MetaSnapshotAge].(int64)
	require.True(t, ok)
	assert.InDelta(t, 120, age, 5)
	assert.Contains(t, meta, MetaProcessingTime)
}

func TestResponseMetaEmptyWithoutSnapshot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, Meta(c))

	RecordSnapshot(c, false, time.Time{}, "")
	meta := Meta(c)
	require.NotNil(t, meta)
	assert.Equal(t, false, meta[MetaCacheHit])
	assert.NotContains(t, meta, MetaSnapshotAge)
	assert.NotContains(t, meta, MetaCatalogVersion)
}
