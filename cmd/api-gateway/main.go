package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/noah-isme/pattern-signup-api/api/swagger"
	"github.com/noah-isme/pattern-signup-api/internal/handler"
	"github.com/noah-isme/pattern-signup-api/internal/repository"
	"github.com/noah-isme/pattern-signup-api/internal/service"
	"github.com/noah-isme/pattern-signup-api/pkg/cache"
	"github.com/noah-isme/pattern-signup-api/pkg/catalog"
	"github.com/noah-isme/pattern-signup-api/pkg/config"
	"github.com/noah-isme/pattern-signup-api/pkg/database"
	"github.com/noah-isme/pattern-signup-api/pkg/logger"
)

// @title Pattern Sign-up API
// @version 1.0.0
// @description Students request design patterns to present; administrators approve or reject them.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, board cache disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	svc := buildApp(cfg, db, redisClient, logr)

	if cfg.Catalog.SyncOnBoot {
		if err := syncCatalog(ctx, cfg.Catalog.Path, svc.patterns); err != nil {
			return err
		}
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, svc, logr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		logr.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type app struct {
	db          *sqlx.DB
	users       *repository.UserRepository
	metrics     *service.MetricsService
	auth        *service.AuthService
	patterns    *service.PatternService
	assignments *service.AssignmentService
	board       *service.BoardService
	calendar    *service.CalendarService
	exports     *service.ExportService
}

func buildApp(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) *app {
	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}

	patternRepo := repository.NewPatternRepository(db)
	requestRepo := repository.NewPatternRequestRepository(db)
	slotRepo := repository.NewPresentationRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Board.CacheTTL, logr, redisClient != nil)
	validate := service.NewValidator()

	return &app{
		db:      db,
		users:   userRepo,
		metrics: metrics,
		auth: service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
			AccessTokenSecret:  cfg.JWT.Secret,
			AccessTokenExpiry:  cfg.JWT.Expiration,
			RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
			Issuer:             cfg.JWT.Issuer,
			SingleSession:      true,
		}),
		patterns: service.NewPatternService(patternRepo, requestRepo, userRepo, cacheSvc, logr),
		assignments: service.NewAssignmentService(patternRepo, requestRepo, userRepo, validate, logr,
			service.WithAssignmentCache(cacheSvc),
			service.WithAssignmentMetrics(metrics),
		),
		board:    service.NewBoardService(patternRepo, requestRepo, slotRepo, cacheSvc, metrics, cfg.Board.CacheTTL, logr),
		calendar: service.NewCalendarService(slotRepo, requestRepo, userRepo, cacheSvc, validate, logr),
		exports:  service.NewExportService(requestRepo, slotRepo, service.ExportConfig{Title: cfg.Exports.Title}, logr, nil, nil),
	}
}

func syncCatalog(ctx context.Context, path string, patterns *service.PatternService) error {
	c, err := catalog.Load(path)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if _, err := patterns.SyncCatalog(ctx, c, ""); err != nil {
		return fmt.Errorf("sync catalog: %w", err)
	}
	return nil
}

func newHandlerSet(a *app) handlers {
	return handlers{
		patterns: handler.NewPatternHandler(a.patterns, a.assignments),
		requests: handler.NewRequestHandler(a.assignments),
		board:    handler.NewBoardHandler(a.board),
		calendar: handler.NewCalendarHandler(a.calendar),
		auth:     handler.NewAuthHandler(a.auth),
		exports:  handler.NewExportHandler(a.exports),
		metrics:  handler.NewMetricsHandler(a.metrics, a.db),
	}
}
