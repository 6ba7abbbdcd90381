package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/edupacket-api/api/swagger"
	"github.com/noah-isme/edupacket-api/internal/repository"
	"github.com/noah-isme/edupacket-api/internal/service"
	"github.com/noah-isme/edupacket-api/pkg/cache"
	"github.com/noah-isme/edupacket-api/pkg/config"
	"github.com/noah-isme/edupacket-api/pkg/database"
	"github.com/noah-isme/edupacket-api/pkg/jobs"
	"github.com/noah-isme/edupacket-api/pkg/logger"
	"github.com/noah-isme/edupacket-api/pkg/storage"
)

// @title EduPacket API
// @version 1.0.0
// @description Document portal for subject files, notifications and their deletion lifecycle.
// @BasePath /api
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, sweep lease disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	blobs, local, err := storage.New(cfg.Blob)
	if err != nil {
		logr.Fatal("failed to init blob gateway", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := buildApp(cfg, db, redisClient, blobs, logr)

	cleanupQueue := jobs.NewQueue("blob-cleanup", app.cleaner.Handle, jobs.QueueConfig{
		Workers:      cfg.Jobs.Workers,
		BufferSize:   cfg.Jobs.BufferSize,
		MaxRetries:   cfg.Jobs.MaxRetries,
		RetryDelay:   cfg.Jobs.RetryDelay,
		DrainTimeout: cfg.Jobs.DrainTimeout,
		OnGiveUp:     app.cleaner.Abandon,
		Logger:       logr,
	})
	cleanupQueue.Start(ctx)
	defer cleanupQueue.Stop()
	app.cleaner.UseQueue(cleanupQueue)

	app.lifecycle.StartScheduler(ctx)

	router := newRouter(cfg, app, db, local, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "blobProvider", cfg.Blob.Provider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

type application struct {
	auth      *service.AuthService
	access    *service.AccessService
	accounts  *service.AccountService
	documents *service.DocumentService
	subjects  *service.SubjectService
	lifecycle *service.LifecycleService
	exporter  *service.ExportService
	cleaner   *service.BlobCleaner
	metrics   *service.MetricsService
}

func buildApp(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, blobs storage.Gateway, logr *zap.Logger) *application {
	validate := validator.New()

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}

	accountRepo := repository.NewAccountRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)

	authSvc := service.NewAuthService(accountRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
	})
	cleaner := service.NewBlobCleaner(blobs, metrics, logr)

	lease := service.NewRedisSweepLease(redisClient, cfg.Lifecycle.LeaseTTL, logr)
	lifecycle := service.NewLifecycleService(documentRepo, subjectRepo, blobs, lease, accountRepo, metrics, logr, service.LifecycleConfig{
		BatchSize:     cfg.Lifecycle.BatchSize,
		SweepInterval: cfg.Lifecycle.SweepInterval,
	})

	documents := service.NewDocumentService(documentRepo, accountRepo, blobs, cleaner, validate, metrics, logr, service.DocumentConfig{
		AllowedYears:     cfg.Academic.AllowedYears,
		AllowedSemesters: cfg.Academic.AllowedSemesters,
		MaxUploadSize:    cfg.Blob.MaxUploadSizeBytes,
		UploadTimeout:    cfg.Blob.OperationTimeout,
	})
	subjects := service.NewSubjectService(subjectRepo, accountRepo, validate, logr)

	if redisClient != nil {
		feeds := service.NewFeedCache(repository.NewCacheRepository(redisClient), metrics, cfg.Redis.CacheTTL, logr)
		documents.UseFeedCache(feeds)
		subjects.UseFeedCache(feeds)
		lifecycle.UseFeedCache(feeds)
	}

	return &application{
		auth:      authSvc,
		access:    service.NewAccessService(authSvc, accountRepo, logr),
		accounts:  service.NewAccountService(accountRepo, logr),
		documents: documents,
		subjects:  subjects,
		lifecycle: lifecycle,
		exporter:  service.NewExportService(documentRepo, subjectRepo, logr),
		cleaner:   cleaner,
		metrics:   metrics,
	}
}
