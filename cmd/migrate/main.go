package main

import (
	"flag"
	"fmt"

	"go.uber.org/zap"

	"github.com/BarkinBalci/capi-relay-service/internal/config"
	"github.com/BarkinBalci/capi-relay-service/internal/logger"
	"github.com/BarkinBalci/capi-relay-service/internal/repository/postgres"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Service.Environment, cfg.Service.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("Running migrations", zap.String("direction", *direction))

	if err := postgres.Migrate(cfg.Postgres.URL, *direction); err != nil {
		log.Fatal("Migration failed", zap.Error(err))
	}

	log.Info("Migrations complete", zap.String("direction", *direction))
}
