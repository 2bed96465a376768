package application

import (
	"context"
	"strings"
	"sync"

	"github.com/wms-platform/warehouse-core/internal/domain"
	"github.com/wms-platform/warehouse-core/pkg/cloudevents"
	"github.com/wms-platform/warehouse-core/pkg/kafka"
	"github.com/wms-platform/warehouse-core/pkg/logging"
	"github.com/wms-platform/warehouse-core/pkg/outbox"
)

// EventStore persists outbox events
type EventStore interface {
	SaveAll(ctx context.Context, events []*outbox.Event) error
}

// Projector maintains the read model from domain events
type Projector interface {
	Project(ctx context.Context, event domain.DomainEvent) error
}

// Aggregate types recorded on outbox events
const (
	AggregateInventory  = "inventory"
	AggregateZone       = "zone"
	AggregateOrder      = "order"
	AggregateShipment   = "shipment"
	AggregateTask       = "task"
	AggregateCycleCount = "cycle_count"
)

// EventDispatcher buffers events published on the domain bus and, on Flush,
// writes them to the outbox as CloudEvents and projects them into the read model.
type EventDispatcher struct {
	factory   *cloudevents.EventFactory
	store     EventStore
	projector Projector
	topic     string
	logger    *logging.Logger

	mu      sync.Mutex
	pending []domain.DomainEvent

	// flushMu keeps drained batches reaching the outbox and read model in drain order
	flushMu sync.Mutex
}

// NewEventDispatcher creates a dispatcher. store and projector may be nil.
func NewEventDispatcher(factory *cloudevents.EventFactory, store EventStore, projector Projector, logger *logging.Logger) *EventDispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &EventDispatcher{
		factory:   factory,
		store:     store,
		projector: projector,
		topic:     kafka.Topics.WarehouseEvents,
		logger:    logger.WithComponent("event-dispatcher"),
	}
}

// Handle is the domain bus subscriber
func (d *EventDispatcher) Handle(ev domain.DomainEvent) {
	d.mu.Lock()
	d.pending = append(d.pending, ev)
	d.mu.Unlock()
}

// Pending returns the number of buffered events
func (d *EventDispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Flush drains the buffer. Core state is already committed when Flush runs,
// so failures are logged and the remaining events are still processed.
func (d *EventDispatcher) Flush(ctx context.Context) {
	d.flushMu.Lock()
	defer d.flushMu.Unlock()

	d.mu.Lock()
	events := d.pending
	d.pending = nil
	d.mu.Unlock()

	if len(events) == 0 {
		return
	}

	if d.store != nil {
		batch := make([]*outbox.Event, 0, len(events))
		for _, ev := range events {
			ce := d.factory.CreateEvent(ctx, ev.EventType(), ev.Subject(), ev)
			ce.Time = ev.OccurredAt().UTC()
			oe, err := outbox.NewEvent(ev.Subject(), AggregateType(ev), d.topic, ce)
			if err != nil {
				d.logger.WithContext(ctx).WithError(err).Error("Failed to build outbox event", "eventType", ev.EventType())
				continue
			}
			batch = append(batch, oe)
		}
		if err := d.store.SaveAll(ctx, batch); err != nil {
			d.logger.WithContext(ctx).WithError(err).Error("Failed to save events to outbox", "count", len(batch))
		}
	}

	if d.projector != nil {
		for _, ev := range events {
			if err := d.projector.Project(ctx, ev); err != nil {
				d.logger.WithContext(ctx).WithError(err).Warn("Failed to project event",
					"eventType", ev.EventType(), "subject", ev.Subject())
			}
		}
	}
}

// AggregateType classifies an event by the aggregate it describes
func AggregateType(ev domain.DomainEvent) string {
	t := ev.EventType()
	switch {
	case strings.HasPrefix(t, "wms.inventory."):
		return AggregateInventory
	case strings.HasPrefix(t, "wms.zone."):
		return AggregateZone
	case strings.HasPrefix(t, "wms.order."):
		return AggregateOrder
	case strings.HasPrefix(t, "wms.shipment."):
		return AggregateShipment
	case strings.HasPrefix(t, "wms.task."):
		return AggregateTask
	case strings.HasPrefix(t, "wms.count."):
		return AggregateCycleCount
	}
	return "unknown"
}
