package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/BarkinBalci/capi-relay-service/internal/capi"
	"github.com/BarkinBalci/capi-relay-service/internal/config"
	"github.com/BarkinBalci/capi-relay-service/internal/geo"
	"github.com/BarkinBalci/capi-relay-service/internal/handler"
	"github.com/BarkinBalci/capi-relay-service/internal/logger"
	"github.com/BarkinBalci/capi-relay-service/internal/queue/sqs"
	"github.com/BarkinBalci/capi-relay-service/internal/repository/clickhouse"
	"github.com/BarkinBalci/capi-relay-service/internal/repository/postgres"
	"github.com/BarkinBalci/capi-relay-service/internal/service"
)

// @title CAPI Relay Service API
// @version 1.0
// @description Ingests Shopify storefront and order events and relays them to the Meta Conversions API
// @host localhost:8080
// @BasePath /
// @schemes http https
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log, err := logger.New(cfg.Service.Environment, cfg.Service.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func(log *zap.Logger) {
		err := log.Sync()
		if err != nil {
			log.Error("Failed to sync logger", zap.Error(err))
		}
	}(log)

	log.Info("Starting API service",
		zap.String("environment", cfg.Service.Environment),
		zap.String("port", cfg.Service.APIPort))

	if cfg.Service.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	if cfg.Postgres.MigrateOnStart {
		if err := postgres.Migrate(cfg.Postgres.URL, "up"); err != nil {
			log.Fatal("Failed to run migrations", zap.Error(err))
		}
		log.Info("Database migrations applied")
	}

	// Initialize Postgres client
	pgClient, err := postgres.NewClient(ctx, cfg.Postgres, log)
	if err != nil {
		log.Fatal("Failed to create Postgres client", zap.Error(err))
	}
	defer func() {
		if err := pgClient.Close(); err != nil {
			log.Error("Failed to close Postgres client", zap.Error(err))
		}
	}()

	deps := service.Dependencies{
		Tenants:      postgres.NewTenantRepository(pgClient, log),
		Store:        postgres.NewEventStore(pgClient, log),
		Geo:          geo.Noop{},
		ProbeTimeout: time.Duration(cfg.Service.ProbeTimeoutSec) * time.Second,
	}

	if cfg.Geo.Enabled {
		deps.Geo = geo.NewIPAPIResolver(cfg.Geo.BaseURL, cfg.Geo.Timeout(), log)
	}

	// Conversions are sent off the request path
	capiTimeout := time.Duration(cfg.CAPI.TimeoutSec) * time.Second
	capiClient := capi.NewClient(capi.ClientConfig{
		GraphURL:   cfg.CAPI.GraphURL,
		APIVersion: cfg.CAPI.APIVersion,
		Timeout:    capiTimeout,
	}, log)
	forwarder := capi.NewAsyncForwarder(capiClient, capiTimeout, log)
	deps.Forwarder = forwarder

	// Initialize SQS exporter
	if cfg.SQS.Enabled() {
		sqsClient, err := sqs.NewClient(ctx, cfg.SQS, log)
		if err != nil {
			log.Fatal("Failed to create SQS client", zap.Error(err))
		}
		deps.Exporter = sqsClient
	} else {
		log.Info("Event export disabled, SQS_QUEUE_URL is not set")
	}

	// Initialize ClickHouse archive for metrics
	if cfg.ClickHouse.Enabled() {
		clickhouseClient, err := clickhouse.NewClient(ctx, &cfg.ClickHouse, log)
		if err != nil {
			log.Fatal("Failed to create ClickHouse client", zap.Error(err))
		}
		archive := clickhouse.NewRepository(clickhouseClient, log)
		defer func() {
			if err := archive.Close(); err != nil {
				log.Error("Failed to close ClickHouse client", zap.Error(err))
			}
		}()
		deps.Archive = archive
	} else {
		log.Info("Metrics archive disabled, CLICKHOUSE_HOST is not set")
	}

	ingestService := service.NewIngestService(deps, log)

	h := handler.NewHandler(ingestService, handler.Config{
		Environment:   cfg.Service.Environment,
		ShopifySecret: cfg.Shopify.APISecret,
	}, log)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Service.APIPort),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("API server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down API service")

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Service.ShutdownTimeoutSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := forwarder.Wait(shutdownCtx); err != nil {
		log.Warn("Conversions still in flight at shutdown", zap.Error(err))
	}

	log.Info("API service stopped")
}
