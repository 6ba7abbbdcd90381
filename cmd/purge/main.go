package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/noah-isme/edupacket-api/internal/repository"
	"github.com/noah-isme/edupacket-api/internal/service"
	"github.com/noah-isme/edupacket-api/pkg/cache"
	"github.com/noah-isme/edupacket-api/pkg/config"
	"github.com/noah-isme/edupacket-api/pkg/database"
	"github.com/noah-isme/edupacket-api/pkg/logger"
	"github.com/noah-isme/edupacket-api/pkg/storage"
)

// purge runs a single retention sweep. Per-record failures are reported in
// the summary log; only a failed scan exits non-zero.
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	blobs, _, err := storage.New(cfg.Blob)
	if err != nil {
		logr.Fatal("failed to init blob gateway", zap.Error(err))
	}

	lease := service.NewRedisSweepLease(nil, cfg.Lifecycle.LeaseTTL, logr)
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, running without sweep lease", zap.Error(err))
		} else {
			defer client.Close()
			lease = service.NewRedisSweepLease(client, cfg.Lifecycle.LeaseTTL, logr)
		}
	}

	documents := repository.NewDocumentRepository(db)
	subjects := repository.NewSubjectRepository(db)
	accounts := repository.NewAccountRepository(db)
	lifecycle := service.NewLifecycleService(documents, subjects, blobs, lease, accounts, nil, logr, service.LifecycleConfig{
		BatchSize: cfg.Lifecycle.BatchSize,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := lifecycle.Sweep(ctx)
	if err != nil {
		logr.Error("sweep aborted", zap.Error(err))
		db.Close()
		os.Exit(1)
	}
	if report.Skipped {
		logr.Info("another sweep holds the lease, nothing done")
	}
}
