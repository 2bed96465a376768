package application

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wms-platform/warehouse-core/internal/domain"
	"github.com/wms-platform/warehouse-core/pkg/tracing"
)

// ScheduleCount schedules a cycle count over bins of a zone; no bins means all
func (s *WarehouseService) ScheduleCount(ctx context.Context, zoneID string, bins []string) (domain.CycleCount, error) {
	attrs := []attribute.KeyValue{attribute.String("wms.zone_id", zoneID), attribute.Int("wms.bins", len(bins))}
	return s.countOp(ctx, "schedule_count", attrs, func() (domain.CycleCount, error) {
		return s.warehouse.Counts.Schedule(zoneID, bins)
	})
}

// GetCount returns a cycle count by id
func (s *WarehouseService) GetCount(ctx context.Context, id string) (domain.CycleCount, error) {
	return s.warehouse.Counts.Get(id)
}

// ListCounts returns cycle counts, optionally filtered by status
func (s *WarehouseService) ListCounts(ctx context.Context, status domain.CountStatus) []domain.CycleCount {
	return s.warehouse.Counts.List(status)
}

// StartCount starts a scheduled count and spawns its count tasks
func (s *WarehouseService) StartCount(ctx context.Context, id string) (domain.CycleCount, error) {
	return s.countOp(ctx, "start_count", tracing.WarehouseAttributes(AggregateCycleCount, id), func() (domain.CycleCount, error) {
		return s.warehouse.Counts.Start(id)
	})
}

// SubmitCount records the counted quantity of sku in bin
func (s *WarehouseService) SubmitCount(ctx context.Context, id, bin, sku string, counted int) (domain.VarianceRecord, error) {
	var variance domain.VarianceRecord
	attrs := append(tracing.WarehouseAttributes(AggregateCycleCount, id),
		attribute.String("wms.bin", bin),
		attribute.String("wms.sku", sku),
		attribute.Int("wms.counted", counted),
	)
	err := s.run(ctx, "submit_count", attrs, func(ctx context.Context) error {
		var err error
		variance, err = s.warehouse.Counts.Submit(id, bin, sku, counted)
		return err
	})
	return variance, err
}

// ApproveCount applies the count's adjustments and completes it
func (s *WarehouseService) ApproveCount(ctx context.Context, id string) (domain.CycleCount, error) {
	return s.countOp(ctx, "approve_count", tracing.WarehouseAttributes(AggregateCycleCount, id), func() (domain.CycleCount, error) {
		return s.warehouse.Counts.Approve(id)
	})
}

func (s *WarehouseService) countOp(ctx context.Context, op string, attrs []attribute.KeyValue, fn func() (domain.CycleCount, error)) (domain.CycleCount, error) {
	var count domain.CycleCount
	err := s.run(ctx, op, attrs, func(ctx context.Context) error {
		var err error
		count, err = fn()
		return err
	})
	return count, err
}
