package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/warehouse-core/internal/api/handlers"
	"github.com/wms-platform/warehouse-core/internal/application"
	"github.com/wms-platform/warehouse-core/internal/config"
	"github.com/wms-platform/warehouse-core/internal/domain"
	feed "github.com/wms-platform/warehouse-core/internal/infrastructure/kafka"
	mongoRepo "github.com/wms-platform/warehouse-core/internal/infrastructure/mongodb"
	"github.com/wms-platform/warehouse-core/pkg/cloudevents"
	"github.com/wms-platform/warehouse-core/pkg/contracts"
	"github.com/wms-platform/warehouse-core/pkg/kafka"
	"github.com/wms-platform/warehouse-core/pkg/logging"
	"github.com/wms-platform/warehouse-core/pkg/metrics"
	"github.com/wms-platform/warehouse-core/pkg/middleware"
	"github.com/wms-platform/warehouse-core/pkg/mongodb"
	"github.com/wms-platform/warehouse-core/pkg/outbox"
	"github.com/wms-platform/warehouse-core/pkg/tracing"
)

const (
	serviceName = "warehouse-core"

	outboxPurgeSpec = "@hourly"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		logging.New(logging.DefaultConfig(serviceName)).WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logger := logging.New(cfg.LoggingConfig(serviceName))
	logger.SetDefault()
	logger.Info("Starting warehouse-core API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	cfg.Tracing.ServiceName = serviceName
	tracerProvider, err := tracing.Initialize(ctx, &cfg.Tracing)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "enabled", cfg.Tracing.Enabled, "endpoint", cfg.Tracing.OTLPEndpoint)
	}

	m := metrics.New(metrics.DefaultConfig(serviceName))

	// MongoDB read model and outbox
	mongoClient, err := mongodb.NewClient(ctx, &cfg.MongoDB)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Close(closeCtx)
	}()
	logger.Info("Connected to MongoDB", "database", cfg.MongoDB.Database)

	outboxRepo := mongoRepo.NewOutboxRepository(mongoClient.Database(), m)
	projectionRepo := mongoRepo.NewProjectionRepository(mongoClient.Database(), m)
	if err := outboxRepo.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Warn("Failed to create outbox indexes")
	}
	if err := projectionRepo.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Warn("Failed to create projection indexes")
	}

	// Core
	warehouse, err := domain.NewWarehouse(cfg.DomainConfig())
	if err != nil {
		logger.WithError(err).Error("Invalid warehouse reference data")
		os.Exit(1)
	}
	dispatcher := application.NewEventDispatcher(
		cloudevents.NewEventFactory(cloudevents.SourceWarehouseCore),
		outboxRepo,
		projectionRepo,
		logger,
	)
	service := application.NewWarehouseService(warehouse, dispatcher, m, logger)

	// Outbox relay
	kafkaCfg := cfg.KafkaClientConfig()
	producer, rawProducer := kafka.NewProductionProducer(kafkaCfg, m, logger)
	defer rawProducer.Close()

	publisher := outbox.NewPublisher(outboxRepo, producer, logger, m, &outbox.PublisherConfig{
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
	})
	if err := publisher.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start outbox publisher")
		os.Exit(1)
	}
	defer publisher.Stop()
	logger.Info("Outbox publisher started", "brokers", cfg.Kafka.Brokers)

	// Background jobs
	jobs := application.NewJobs(service, m, logger)
	if err := jobs.ScheduleStatsRefresh(cfg.Stats.RefreshSpec); err != nil {
		logger.WithError(err).Error("Invalid stats refresh schedule")
		os.Exit(1)
	}
	if err := jobs.ScheduleOutboxPurge(outboxPurgeSpec, publisher, cfg.Outbox.Retention); err != nil {
		logger.WithError(err).Error("Invalid outbox purge schedule")
		os.Exit(1)
	}
	jobs.Start()
	defer jobs.Stop()

	// Movement feed
	if cfg.Kafka.MovementFeedEnabled {
		validator, err := contracts.NewWarehouseValidator()
		if err != nil {
			logger.WithError(err).Error("Failed to load movement contract")
			os.Exit(1)
		}
		movementFeed := feed.NewMovementFeed(service, validator, m, logger)
		consumer := kafka.NewConsumer(kafkaCfg, movementFeed.Topic(), movementFeed.Handle, logger)
		defer consumer.Close()

		go func() {
			if err := consumer.Run(ctx); err != nil {
				logger.WithError(err).Error("Movement feed stopped")
			}
		}()
		logger.Info("Movement feed started", "topic", movementFeed.Topic(), "group", cfg.Kafka.ConsumerGroup)
	}

	// HTTP
	gin.SetMode(gin.ReleaseMode)
	if err := handlers.RegisterValidation(); err != nil {
		logger.WithError(err).Error("Failed to register validators")
		os.Exit(1)
	}

	router := gin.New()
	middleware.Setup(router, &middleware.Config{
		Logger:        logger,
		Metrics:       m,
		ServiceName:   serviceName,
		ErrorMappings: application.ErrorMappings(),
	})

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, mongoClient.HealthCheck))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	handlers.NewWarehouseHandlers(service, logger).RegisterRoutes(router.Group("/api/v1"))

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Server error")
			stop()
		}
	}()
	logger.Info("Server started", "addr", cfg.Server.Addr)

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	logger.Info("Server exited")
}
