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

	"go.uber.org/zap"

	"github.com/BarkinBalci/capi-relay-service/internal/config"
	"github.com/BarkinBalci/capi-relay-service/internal/consumer"
	"github.com/BarkinBalci/capi-relay-service/internal/logger"
	"github.com/BarkinBalci/capi-relay-service/internal/queue/sqs"
	"github.com/BarkinBalci/capi-relay-service/internal/repository/clickhouse"
)

func main() {
	// Load configuration
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

	if !cfg.SQS.Enabled() || !cfg.ClickHouse.Enabled() {
		log.Fatal("Archive consumer needs SQS_QUEUE_URL and CLICKHOUSE_HOST")
	}

	log.Info("Starting archive consumer",
		zap.String("environment", cfg.Service.Environment))

	ctx := context.Background()

	// Initialize ClickHouse client
	chClient, err := clickhouse.NewClient(ctx, &cfg.ClickHouse, log)
	if err != nil {
		log.Fatal("Failed to create ClickHouse client", zap.Error(err))
	}

	repo := clickhouse.NewRepository(chClient, log)
	defer func() {
		if err := repo.Close(); err != nil {
			log.Error("Failed to close ClickHouse client", zap.Error(err))
		}
	}()

	if err := repo.InitSchema(ctx); err != nil {
		log.Fatal("Failed to initialize schema", zap.Error(err))
	}
	log.Info("Archive schema initialized")

	// Initialize SQS client
	sqsClient, err := sqs.NewClient(ctx, cfg.SQS, log)
	if err != nil {
		log.Fatal("Failed to create SQS client", zap.Error(err))
	}

	c := consumer.NewConsumer(cfg.Consumer, sqsClient, repo, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := repo.Ping(r.Context()); err != nil {
			log.Warn("Health check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	healthSrv := &http.Server{
		Addr:              ":" + cfg.Consumer.HealthCheckPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("Health check server starting", zap.String("address", healthSrv.Addr))
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Health check server error", zap.Error(err))
		}
	}()

	consumerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("Consumer starting")
		if err := c.Start(consumerCtx); err != nil {
			log.Error("Consumer error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down consumer gracefully")
	cancel()

	shutdownCtx, stop := context.WithTimeout(ctx, time.Duration(cfg.Service.ShutdownTimeoutSec)*time.Second)
	defer stop()

	// wait for the final batch flush before closing ClickHouse
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn("Consumer did not stop before shutdown timeout")
	}
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to stop health check server", zap.Error(err))
	}
}
