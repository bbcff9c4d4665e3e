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

	"github.com/safar/order-management-api/internal/config"
	"github.com/safar/order-management-api/internal/database"
	"github.com/safar/order-management-api/internal/directory"
	"github.com/safar/order-management-api/internal/events"
	"github.com/safar/order-management-api/internal/httpapi"
	"github.com/safar/order-management-api/internal/idempotency"
	"github.com/safar/order-management-api/internal/logging"
	"github.com/safar/order-management-api/internal/orders"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	logger, err := logging.New(cfg.Log, cfg.Service.Name)
	if err != nil {
		log.Fatalf("Create logger: %v", err)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	logger.Info("connected to database")

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.OrderTopic, cfg.Service.Name, 1024, logger)
		logger.Info("publishing order events",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.OrderTopic))
	}

	var idem idempotency.Store
	if cfg.Redis.URL != "" {
		// A pending claim outlives the slowest request by a small margin.
		lease := cfg.Server.WriteTimeout + 5*time.Second
		redisStore, err := idempotency.NewRedisStore(ctx, cfg.Redis.URL, lease, cfg.Redis.IdempotencyTTL)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer redisStore.Close()
		idem = redisStore
		logger.Info("idempotency keys enabled",
			zap.Duration("lease", lease),
			zap.Duration("ttl", cfg.Redis.IdempotencyTTL))
	}

	server := httpapi.NewServer(
		orders.NewService(db, publisher, logger.Named("orders"), cfg.Orders.TxMaxRetries),
		directory.NewProducts(db, logger.Named("products")),
		directory.NewCustomers(db, logger.Named("customers")),
		idem,
		db,
		logger.Named("http"),
		httpapi.Options{
			ServiceName:    cfg.Service.Name,
			ServiceVersion: cfg.Service.Version,
			RequestTimeout: cfg.Server.WriteTimeout,
		},
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown server", zap.Error(err))
	}

	// Events of requests that finished during shutdown are flushed here,
	// within whatever is left of the shutdown budget.
	if err := publisher.Close(shutdownCtx); err != nil {
		logger.Error("close event publisher", zap.Error(err))
	}

	return serveErr
}
