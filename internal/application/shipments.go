package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wms-platform/warehouse-core/internal/domain"
	"github.com/wms-platform/warehouse-core/pkg/tracing"
)

// CreateShipment registers an expected inbound shipment
func (s *WarehouseService) CreateShipment(ctx context.Context, poNumber, supplier string, expectedDate time.Time, lines []domain.NewShipmentLine) (domain.Shipment, error) {
	var shipment domain.Shipment
	attrs := []attribute.KeyValue{
		attribute.String("wms.po_number", poNumber),
		attribute.String("wms.supplier", supplier),
		attribute.Int("wms.lines", len(lines)),
	}
	err := s.run(ctx, "create_shipment", attrs, func(ctx context.Context) error {
		var err error
		shipment, err = s.warehouse.Shipments.Create(poNumber, supplier, expectedDate, lines)
		return err
	})
	return shipment, err
}

// GetShipment returns a shipment by id
func (s *WarehouseService) GetShipment(ctx context.Context, id string) (domain.Shipment, error) {
	return s.warehouse.Shipments.Get(id)
}

// ListShipments returns shipments, optionally filtered by status
func (s *WarehouseService) ListShipments(ctx context.Context, status domain.ShipmentStatus) []domain.Shipment {
	return s.warehouse.Shipments.List(status)
}

// TransitionShipment moves a shipment to target
func (s *WarehouseService) TransitionShipment(ctx context.Context, id string, target domain.ShipmentStatus) (domain.Shipment, error) {
	var shipment domain.Shipment
	attrs := append(tracing.WarehouseAttributes(AggregateShipment, id), attribute.String("wms.target", string(target)))
	err := s.run(ctx, "transition_shipment", attrs, func(ctx context.Context) error {
		var err error
		shipment, err = s.warehouse.Shipments.Transition(id, target)
		if s.metrics != nil {
			s.metrics.RecordShipmentTransition(string(target), err == nil)
		}
		return err
	})
	return shipment, err
}

// ReceiveUnits books received units of sku into the staging bin
func (s *WarehouseService) ReceiveUnits(ctx context.Context, id, sku string, quantity int, referenceID string) (domain.Shipment, domain.MovementResult, error) {
	var (
		shipment domain.Shipment
		result   domain.MovementResult
	)
	attrs := append(tracing.WarehouseAttributes(AggregateShipment, id),
		attribute.String("wms.sku", sku),
		attribute.Int("wms.quantity", quantity),
		attribute.String("wms.reference_id", referenceID),
	)
	err := s.run(ctx, "receive_units", attrs, func(ctx context.Context) error {
		var err error
		shipment, result, err = s.warehouse.Shipments.Receive(id, sku, quantity, referenceID)
		s.recordMovement(domain.Movement{Type: domain.MovementInbound}, result.Replayed, err)
		return err
	})
	return shipment, result, err
}
