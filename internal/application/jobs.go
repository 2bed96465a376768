package application

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wms-platform/warehouse-core/internal/domain"
	"github.com/wms-platform/warehouse-core/pkg/logging"
	"github.com/wms-platform/warehouse-core/pkg/metrics"
)

// OutboxPurger deletes relayed outbox events older than a retention period
type OutboxPurger interface {
	Purge(ctx context.Context, retention time.Duration) (int64, error)
}

// Jobs runs the periodic background work of the API process
type Jobs struct {
	cron    *cron.Cron
	service *WarehouseService
	metrics *metrics.Metrics
	logger  *logging.Logger

	latest atomic.Pointer[domain.StatsSnapshot]
}

// NewJobs creates a job runner. m may be nil.
func NewJobs(service *WarehouseService, m *metrics.Metrics, logger *logging.Logger) *Jobs {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Jobs{
		cron:    cron.New(),
		service: service,
		metrics: m,
		logger:  logger.WithComponent("jobs"),
	}
}

// ScheduleStatsRefresh recomputes the stats snapshot on spec and publishes it
// to the Prometheus gauges.
func (j *Jobs) ScheduleStatsRefresh(spec string) error {
	_, err := j.cron.AddFunc(spec, j.RefreshStats)
	return err
}

// ScheduleOutboxPurge purges published outbox events older than retention on spec
func (j *Jobs) ScheduleOutboxPurge(spec string, purger OutboxPurger, retention time.Duration) error {
	_, err := j.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := purger.Purge(ctx, retention); err != nil {
			j.logger.WithError(err).Error("Failed to purge outbox")
		}
	})
	return err
}

// RefreshStats computes and publishes one snapshot
func (j *Jobs) RefreshStats() {
	snapshot := j.service.Stats(context.Background())
	j.latest.Store(&snapshot)

	if j.metrics != nil {
		j.metrics.SetStats(metrics.StatsGauges{
			TotalValue:         snapshot.TotalValue,
			TotalUnits:         snapshot.TotalUnits,
			AvgZoneUtilization: snapshot.AvgZoneUtilization,
			LowStock:           snapshot.LowStockCount,
			OutOfStock:         snapshot.OutOfStockCount,
			OpenTasks:          snapshot.OpenTasks,
			ActiveTasks:        snapshot.ActiveTasks,
			CountAccuracy:      snapshot.CountAccuracy,
		})
	}
	j.logger.Debug("Stats refreshed",
		"totalUnits", snapshot.TotalUnits,
		"lowStock", snapshot.LowStockCount,
		"openTasks", snapshot.OpenTasks,
	)
}

// LatestStats returns the last refreshed snapshot
func (j *Jobs) LatestStats() (domain.StatsSnapshot, bool) {
	s := j.latest.Load()
	if s == nil {
		return domain.StatsSnapshot{}, false
	}
	return *s, true
}

// Start runs an initial refresh and starts the scheduler
func (j *Jobs) Start() {
	j.logger.Info("Starting background jobs", "jobs", len(j.cron.Entries()))
	j.RefreshStats()
	j.cron.Start()
}

// Stop stops the scheduler and waits for running jobs
func (j *Jobs) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("Background jobs stopped")
}
