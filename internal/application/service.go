package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/warehouse-core/internal/domain"
	"github.com/wms-platform/warehouse-core/pkg/logging"
	"github.com/wms-platform/warehouse-core/pkg/metrics"
	"github.com/wms-platform/warehouse-core/pkg/tracing"
)

const tracerName = "github.com/wms-platform/warehouse-core/internal/application"

// WarehouseService is the entry point for every warehouse operation. It
// delegates to the domain core and adds logging, tracing, metrics and event
// fan-out around each call.
type WarehouseService struct {
	warehouse  *domain.Warehouse
	dispatcher *EventDispatcher
	metrics    *metrics.Metrics
	logger     *logging.Logger
	tracer     trace.Tracer
}

// NewWarehouseService creates the service and subscribes it to the warehouse
// event bus. dispatcher and m may be nil.
func NewWarehouseService(w *domain.Warehouse, dispatcher *EventDispatcher, m *metrics.Metrics, logger *logging.Logger) *WarehouseService {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &WarehouseService{
		warehouse:  w,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     logger.WithComponent("warehouse-service"),
		tracer:     otel.Tracer(tracerName),
	}
	if dispatcher != nil {
		w.Bus.Subscribe(dispatcher.Handle)
	}
	w.Bus.Subscribe(s.observe)
	return s
}

// run wraps a mutating operation in a span, flushes the events it produced
// and logs its outcome.
func (s *WarehouseService) run(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "warehouse."+op, trace.WithAttributes(attrs...))
	start := time.Now()

	err := fn(ctx)
	if s.dispatcher != nil {
		s.dispatcher.Flush(ctx)
	}
	if err != nil {
		span.SetAttributes(attribute.String("wms.error_code", errorCode(err)))
	}
	tracing.EndSpan(span, err)

	args := make([]any, 0, 2*len(attrs)+4)
	for _, kv := range attrs {
		args = append(args, string(kv.Key), kv.Value.Emit())
	}
	args = append(args, "operation", op, "duration", time.Since(start))

	log := s.logger.WithContext(ctx)
	switch {
	case err == nil:
		log.Info("Warehouse operation completed", args...)
	case IsBusinessError(err):
		log.WithError(err).Warn("Warehouse operation rejected", append(args, "code", errorCode(err))...)
	default:
		log.WithError(err).Error("Warehouse operation failed", args...)
	}
	return err
}

// observe records lifecycle metrics for events the core emits on its own,
// such as auto-created tasks.
func (s *WarehouseService) observe(ev domain.DomainEvent) {
	if s.metrics == nil {
		return
	}
	switch e := ev.(type) {
	case *domain.TaskEvent:
		s.metrics.RecordTask(string(e.Task.Type), e.Action)
	case *domain.CountVarianceRecordedEvent:
		s.metrics.RecordCountSubmission(e.Variance.HasVariance())
	}
}

func movementAttrs(m domain.Movement) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("wms.movement.type", string(m.Type)),
		attribute.String("wms.sku", m.SKU),
		attribute.String("wms.reference_id", m.ReferenceID),
		attribute.Int("wms.quantity", m.Quantity),
	}
}

// ApplyMovement applies one stock movement. Replaying a known referenceId
// returns the original result.
func (s *WarehouseService) ApplyMovement(ctx context.Context, m domain.Movement) (domain.MovementResult, error) {
	var result domain.MovementResult
	err := s.run(ctx, "apply_movement", movementAttrs(m), func(ctx context.Context) error {
		var err error
		result, err = s.warehouse.Processor.Apply(m)
		s.recordMovement(m, result.Replayed, err)
		return err
	})
	return result, err
}

// ApplyMovements applies a batch all-or-nothing
func (s *WarehouseService) ApplyMovements(ctx context.Context, movements []domain.Movement) ([]domain.MovementResult, error) {
	var results []domain.MovementResult
	attrs := []attribute.KeyValue{attribute.Int("wms.batch_size", len(movements))}
	err := s.run(ctx, "apply_movements", attrs, func(ctx context.Context) error {
		var err error
		results, err = s.warehouse.Processor.ApplyBatch(movements)
		if err != nil {
			for _, m := range movements {
				s.recordMovement(m, false, err)
			}
			return err
		}
		for i, m := range movements {
			s.recordMovement(m, results[i].Replayed, nil)
		}
		return nil
	})
	return results, err
}

func (s *WarehouseService) recordMovement(m domain.Movement, replayed bool, err error) {
	if s.metrics == nil {
		return
	}
	result := "applied"
	switch {
	case err != nil:
		result = errorCode(err)
	case replayed:
		result = "replayed"
	}
	s.metrics.RecordMovement(string(m.Type), result)
}

// Journal returns the applied movements for sku, or all when sku is empty
func (s *WarehouseService) Journal(ctx context.Context, sku string) []domain.MovementRecord {
	return s.warehouse.Processor.Journal(sku)
}

// AppliedMovement returns the recorded result of referenceID
func (s *WarehouseService) AppliedMovement(ctx context.Context, referenceID string) (domain.MovementResult, error) {
	result, ok := s.warehouse.Processor.Applied(referenceID)
	if !ok {
		return domain.MovementResult{}, domain.ErrRecordNotFound
	}
	return result, nil
}

// RegisterItem stores catalog defaults for a SKU
func (s *WarehouseService) RegisterItem(ctx context.Context, item domain.Item) (domain.Item, error) {
	attrs := []attribute.KeyValue{attribute.String("wms.sku", item.SKU)}
	err := s.run(ctx, "register_item", attrs, func(ctx context.Context) error {
		return s.warehouse.Processor.RegisterItem(item)
	})
	return item, err
}

// GetItem returns the catalog entry for sku
func (s *WarehouseService) GetItem(ctx context.Context, sku string) (domain.Item, error) {
	item, ok := s.warehouse.Processor.Item(sku)
	if !ok {
		return domain.Item{}, domain.ErrRecordNotFound
	}
	return item, nil
}

// GetRecord returns the inventory record at sku@location
func (s *WarehouseService) GetRecord(ctx context.Context, sku, location string) (domain.InventoryRecord, error) {
	return s.warehouse.Processor.Record(sku, location)
}

// ListRecords returns records filtered by sku and/or location
func (s *WarehouseService) ListRecords(ctx context.Context, sku, location string) []domain.InventoryRecord {
	switch {
	case sku != "" && location != "":
		rec, err := s.warehouse.Processor.Record(sku, location)
		if err != nil {
			return []domain.InventoryRecord{}
		}
		return []domain.InventoryRecord{rec}
	case sku != "":
		return s.warehouse.Processor.RecordsForSKU(sku)
	case location != "":
		return s.warehouse.Processor.RecordsAtLocation(location)
	}
	return s.warehouse.Processor.Records()
}

// SetFlag sets an operator flag on a record; FlagNone clears all flags
func (s *WarehouseService) SetFlag(ctx context.Context, sku, location string, flag domain.StockFlag) (domain.InventoryRecord, error) {
	var rec domain.InventoryRecord
	attrs := []attribute.KeyValue{
		attribute.String("wms.sku", sku),
		attribute.String("wms.location", location),
		attribute.String("wms.flag", string(flag)),
	}
	err := s.run(ctx, "set_flag", attrs, func(ctx context.Context) error {
		var err error
		rec, err = s.warehouse.Processor.SetFlag(sku, location, flag)
		return err
	})
	return rec, err
}

// ClearFlag removes one operator flag from a record
func (s *WarehouseService) ClearFlag(ctx context.Context, sku, location string, flag domain.StockFlag) (domain.InventoryRecord, error) {
	var rec domain.InventoryRecord
	attrs := []attribute.KeyValue{
		attribute.String("wms.sku", sku),
		attribute.String("wms.location", location),
		attribute.String("wms.flag", string(flag)),
	}
	err := s.run(ctx, "clear_flag", attrs, func(ctx context.Context) error {
		var err error
		rec, err = s.warehouse.Processor.ClearFlag(sku, location, flag)
		return err
	})
	return rec, err
}

// ListZones returns every zone
func (s *WarehouseService) ListZones(ctx context.Context) []domain.Zone {
	return s.warehouse.Processor.Zones()
}

// GetZone returns a zone with its bins
func (s *WarehouseService) GetZone(ctx context.Context, id string) (domain.Zone, []string, error) {
	zone, err := s.warehouse.Processor.Zone(id)
	if err != nil {
		return domain.Zone{}, nil, err
	}
	return zone, s.warehouse.Processor.BinsInZone(id), nil
}

// SetZoneActive activates or deactivates a zone
func (s *WarehouseService) SetZoneActive(ctx context.Context, id string, active bool) (domain.Zone, error) {
	var zone domain.Zone
	attrs := []attribute.KeyValue{attribute.String("wms.zone_id", id), attribute.Bool("wms.active", active)}
	err := s.run(ctx, "set_zone_active", attrs, func(ctx context.Context) error {
		var err error
		zone, err = s.warehouse.Processor.SetZoneActive(id, active)
		return err
	})
	return zone, err
}

// Stats computes the KPI snapshot over the current state
func (s *WarehouseService) Stats(ctx context.Context) domain.StatsSnapshot {
	_, span := s.tracer.Start(ctx, "warehouse.stats")
	defer span.End()
	return s.warehouse.Stats()
}
