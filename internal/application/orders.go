package application

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wms-platform/warehouse-core/internal/domain"
	"github.com/wms-platform/warehouse-core/pkg/tracing"
)

// CreateOrder registers a pending outbound order
func (s *WarehouseService) CreateOrder(ctx context.Context, customer string, priority domain.Priority, lines []domain.OrderLine) (domain.Order, error) {
	var order domain.Order
	attrs := []attribute.KeyValue{
		attribute.String("wms.customer", customer),
		attribute.String("wms.priority", string(priority)),
		attribute.Int("wms.lines", len(lines)),
	}
	err := s.run(ctx, "create_order", attrs, func(ctx context.Context) error {
		var err error
		order, err = s.warehouse.Orders.Create(customer, priority, lines)
		return err
	})
	return order, err
}

// GetOrder returns an order by id
func (s *WarehouseService) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return s.warehouse.Orders.Get(id)
}

// ListOrders returns orders, optionally filtered by status
func (s *WarehouseService) ListOrders(ctx context.Context, status domain.OrderStatus) []domain.Order {
	return s.warehouse.Orders.List(status)
}

// TransitionOrder moves an order to target
func (s *WarehouseService) TransitionOrder(ctx context.Context, id string, target domain.OrderStatus, payload domain.TransitionPayload) (domain.Order, error) {
	var order domain.Order
	attrs := append(tracing.WarehouseAttributes(AggregateOrder, id), attribute.String("wms.target", string(target)))
	err := s.run(ctx, "transition_order", attrs, func(ctx context.Context) error {
		var err error
		order, err = s.warehouse.Orders.Transition(id, target, payload)
		if s.metrics != nil {
			s.metrics.RecordOrderTransition(string(target), err == nil)
		}
		return err
	})
	return order, err
}
