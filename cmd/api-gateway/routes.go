package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/pattern-signup-api/internal/handler"
	"github.com/noah-isme/pattern-signup-api/internal/middleware"
	"github.com/noah-isme/pattern-signup-api/internal/models"
	"github.com/noah-isme/pattern-signup-api/pkg/config"
	"github.com/noah-isme/pattern-signup-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/pattern-signup-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/pattern-signup-api/pkg/middleware/requestid"
)

type handlers struct {
	patterns *handler.PatternHandler
	requests *handler.RequestHandler
	board    *handler.BoardHandler
	calendar *handler.CalendarHandler
	auth     *handler.AuthHandler
	exports  *handler.ExportHandler
	metrics  *handler.MetricsHandler
}

func newRouter(cfg *config.Config, a *app, logr *zap.Logger) *gin.Engine {
	h := newHandlerSet(a)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if a.metrics != nil {
		r.Use(middleware.Metrics(a.metrics))
		r.GET("/metrics", h.metrics.Prometheus)
	}
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.GET("/patterns", h.patterns.List)
	api.GET("/patterns/available", h.patterns.Available)
	api.GET("/patterns/:name", h.patterns.Get)
	api.GET("/board", h.board.Board)
	api.GET("/calendar", h.calendar.List)
	api.POST("/requests", h.requests.Submit)

	authGroup := api.Group("/auth")
	authGroup.POST("/login", h.auth.Login)
	authGroup.POST("/refresh", h.auth.Refresh)

	adminOnly := []gin.HandlerFunc{middleware.JWT(a.auth), middleware.RequireRoles(models.RoleAdmin)}

	session := authGroup.Group("", adminOnly...)
	session.GET("/session", h.auth.Session)
	session.POST("/logout", h.auth.Logout)

	admin := api.Group("/admin", adminOnly...)
	admin.GET("/requests", h.requests.List)
	admin.GET("/requests/:id", h.requests.Get)
	admin.POST("/requests/:id/decision", h.requests.Decide)
	admin.PUT("/calendar/:name", h.calendar.Schedule)
	admin.DELETE("/calendar/:name", h.calendar.Unschedule)
	if cfg.Exports.Enabled {
		admin.GET("/exports/assignments",
			middleware.Audit(a.users, logr, models.AuditActionRosterExport, "roster"),
			h.exports.Assignments,
		)
	}

	return r
}
