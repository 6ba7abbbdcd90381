package main

import (
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/noah-isme/edupacket-api/pkg/config"
	"github.com/noah-isme/edupacket-api/pkg/database"
	"github.com/noah-isme/edupacket-api/pkg/logger"
)

func main() {
	direction := flag.String("direction", string(database.Up), "up or down")
	steps := flag.Int("steps", 0, "number of migrations to apply; 0 applies all")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	version, err := database.Migrate(cfg.Database, database.Direction(*direction), *steps)
	if err != nil {
		logr.Fatal("migration failed", zap.Error(err))
	}
	logr.Info("migrations applied", zap.String("direction", *direction), zap.Uint("version", version))
}
