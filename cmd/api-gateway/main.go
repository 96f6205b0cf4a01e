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
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/admissions-portal/api/swagger"
	"github.com/noah-isme/admissions-portal/internal/handler"
	"github.com/noah-isme/admissions-portal/internal/middleware"
	"github.com/noah-isme/admissions-portal/internal/models"
	"github.com/noah-isme/admissions-portal/internal/repository"
	"github.com/noah-isme/admissions-portal/internal/service"
	"github.com/noah-isme/admissions-portal/pkg/cache"
	"github.com/noah-isme/admissions-portal/pkg/config"
	"github.com/noah-isme/admissions-portal/pkg/database"
	"github.com/noah-isme/admissions-portal/pkg/jobs"
	"github.com/noah-isme/admissions-portal/pkg/logger"
	corsmiddleware "github.com/noah-isme/admissions-portal/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/admissions-portal/pkg/middleware/requestid"
	"github.com/noah-isme/admissions-portal/pkg/storage"
)

// @title Admissions Portal API
// @version 1.0.0
// @description Application submission, supporting documents and the admissions back office
// @BasePath /api/v1
// @schemes http https
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("database unavailable", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Admissions.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, document types will not be cached", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	files, err := storage.NewLocalStorage(cfg.Admissions.StorageDir)
	if err != nil {
		logr.Fatal("document storage unavailable", zap.Error(err))
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	applicationRepo := repository.NewApplicationRepository(db)
	documentRepo := repository.NewApplicationDocumentRepository(db)
	documentTypeRepo := repository.NewDocumentTypeRepository(db)
	staffRepo := repository.NewStaffRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Admissions.DocumentTypesTTL, logr, redisClient != nil)
	admissionSvc := service.NewAdmissionService(applicationRepo, documentRepo, validate, metrics, logr)
	documentTypeSvc := service.NewDocumentTypeService(documentTypeRepo, cacheSvc, metrics, cfg.Admissions.DocumentTypesTTL, logr)
	if err := documentTypeSvc.Invalidate(ctx); err != nil {
		logr.Warn("cached document types not dropped", zap.Error(err))
	}
	documentSvc := service.NewApplicationDocumentService(
		documentRepo,
		admissionSvc,
		documentTypeSvc,
		files,
		storage.NewSignedURLSigner(cfg.Admissions.SignedURLSecret, cfg.Admissions.SignedURLTTL),
		validate,
		metrics,
		logr,
		service.ApplicationDocumentServiceConfig{
			MaxFileSize:  cfg.Admissions.MaxFileSizeBytes,
			AllowedMIMEs: cfg.Admissions.AllowedMIMEs,
			APIPrefix:    cfg.APIPrefix,
		},
	)
	authSvc := service.NewAuthService(staffRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "admissions-portal",
	})

	removals := jobs.NewQueue("document-file-removal", documentSvc.HandleFileRemoval, jobs.QueueConfig{
		Workers:    cfg.Cleanup.Workers,
		MaxRetries: cfg.Cleanup.Retries,
		RetryDelay: cfg.Cleanup.RetryDelay,
		Logger:     logr,
		DeadLetter: documentSvc.FileRemovalAbandoned,
	})
	removals.Start(ctx)
	documentSvc.SetRemovalQueue(removals)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, logr)
	limiter.StartCleanup(time.Minute, ctx.Done())

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics, readinessChecks(db, redisClient))
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	authHandler := handler.NewAuthHandler(authSvc)
	auth := api.Group("/auth")
	auth.POST("/login", limiter.Handler(), authHandler.Login)
	auth.POST("/refresh", limiter.Handler(), authHandler.Refresh)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	admissionHandler := handler.NewAdmissionHandler(admissionSvc)
	admissions := api.Group("/admissions")
	admissions.POST("/submit", limiter.Handler(), admissionHandler.Submit)

	reviewers := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin, models.RoleReviewer)
	deciders := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)
	backOffice := admissions.Group("")
	backOffice.Use(middleware.JWT(authSvc))
	backOffice.GET("", reviewers, admissionHandler.List)
	backOffice.GET("/export", reviewers, admissionHandler.Export)
	backOffice.GET("/:id", reviewers, admissionHandler.Get)
	backOffice.PATCH("/:id/status", deciders, admissionHandler.UpdateStatus)

	documentHandler := handler.NewApplicationDocumentHandler(documentSvc, documentTypeSvc, cfg.Admissions.MaxFileSizeBytes)
	documents := api.Group("/application-documents")
	documents.GET("/types", documentHandler.Types)
	documents.POST("/upload", limiter.Handler(), documentHandler.Upload)
	documents.GET("/download/:id", documentHandler.Download)
	documents.GET("/files/:id", documentHandler.File)
	documents.GET("/:applicationId", documentHandler.List)
	documents.DELETE("/:id", limiter.Handler(), documentHandler.Delete)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	removals.Stop()
}

func readinessChecks(db *sqlx.DB, redisClient *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}
