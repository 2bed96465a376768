package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wms-platform/warehouse-core/internal/activities"
	"github.com/wms-platform/warehouse-core/internal/config"
	"github.com/wms-platform/warehouse-core/internal/workflows"
	"github.com/wms-platform/warehouse-core/pkg/logging"
	"github.com/wms-platform/warehouse-core/pkg/metrics"
	"github.com/wms-platform/warehouse-core/pkg/temporal"
	"github.com/wms-platform/warehouse-core/pkg/tracing"
)

const (
	serviceName = "warehouse-worker"

	apiTimeout = 30 * time.Second
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		logging.New(logging.DefaultConfig(serviceName)).WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logger := logging.New(cfg.LoggingConfig(serviceName))
	logger.SetDefault()
	logger.Info("Starting warehouse worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg.Tracing.ServiceName = serviceName
	tracerProvider, err := tracing.Initialize(ctx, &cfg.Tracing)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tracerProvider.Shutdown(shutdownCtx)
		}()
	}

	m := metrics.New(metrics.DefaultConfig(serviceName))
	metricsSrv := &http.Server{Addr: cfg.Temporal.MetricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Metrics server error")
		}
	}()

	temporalClient, err := temporal.NewClient(ctx, &temporal.Config{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Identity:  serviceName,
	}, logger.Logger)
	if err != nil {
		logger.WithError(err).Error("Failed to create Temporal client")
		os.Exit(1)
	}
	defer temporalClient.Close()
	logger.Info("Connected to Temporal", "hostPort", cfg.Temporal.HostPort, "namespace", cfg.Temporal.Namespace)

	acts := activities.NewWarehouseActivities(
		activities.NewWarehouseClient(cfg.Temporal.APIBaseURL, apiTimeout),
		m,
		logger,
	)

	w := temporalClient.NewWorker(temporal.DefaultWorkerOptions(cfg.Temporal.TaskQueue))
	w.RegisterWorkflow(workflows.OrderFulfillmentWorkflow)
	w.RegisterWorkflow(workflows.ShipmentReceivingWorkflow)
	w.RegisterActivity(acts)
	logger.Info("Registered workflows and activities",
		"workflows", []string{"OrderFulfillmentWorkflow", "ShipmentReceivingWorkflow"},
		"activities", []string{
			workflows.ActivityTransitionOrder,
			workflows.ActivityGetOrder,
			workflows.ActivityTransitionShipment,
			workflows.ActivityGetShipment,
		},
	)

	if err := w.Start(); err != nil {
		logger.WithError(err).Error("Worker failed to start")
		os.Exit(1)
	}
	logger.Info("Worker started", "taskQueue", cfg.Temporal.TaskQueue, "api", cfg.Temporal.APIBaseURL)

	<-ctx.Done()
	logger.Info("Shutting down worker...")

	w.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Info("Worker stopped")
}
