package domain

import (
	"sync"
	"time"
)

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
	// Subject identifies the aggregate the event belongs to.
	Subject() string
}

// RecordChangedEvent is published whenever an inventory record's quantities or flags change
type RecordChangedEvent struct {
	SKU               string      `json:"sku"`
	Location          string      `json:"location"`
	QuantityOnHand    int         `json:"quantityOnHand"`
	QuantityReserved  int         `json:"quantityReserved"`
	QuantityAvailable int         `json:"quantityAvailable"`
	QuantityIncoming  int         `json:"quantityIncoming"`
	ReorderPoint      int         `json:"reorderPoint"`
	ReorderQuantity   int         `json:"reorderQuantity"`
	PreviousStatus    StockStatus `json:"previousStatus"`
	Status            StockStatus `json:"status"`
	ChangedAt         time.Time   `json:"changedAt"`
}

func (e *RecordChangedEvent) EventType() string     { return "wms.inventory.record-changed" }
func (e *RecordChangedEvent) OccurredAt() time.Time { return e.ChangedAt }
func (e *RecordChangedEvent) Subject() string       { return e.SKU + "@" + e.Location }

// LowStockDetectedEvent is published when a record enters low_stock or out_of_stock
type LowStockDetectedEvent struct {
	SKU               string      `json:"sku"`
	Location          string      `json:"location"`
	QuantityAvailable int         `json:"quantityAvailable"`
	ReorderPoint      int         `json:"reorderPoint"`
	Status            StockStatus `json:"status"`
	DetectedAt        time.Time   `json:"detectedAt"`
}

func (e *LowStockDetectedEvent) EventType() string     { return "wms.inventory.low-stock-detected" }
func (e *LowStockDetectedEvent) OccurredAt() time.Time { return e.DetectedAt }
func (e *LowStockDetectedEvent) Subject() string       { return e.SKU + "@" + e.Location }

// MovementAppliedEvent is published once per applied (not replayed) movement
type MovementAppliedEvent struct {
	Record MovementRecord `json:"movement"`
}

func (e *MovementAppliedEvent) EventType() string     { return "wms.inventory.movement-applied" }
func (e *MovementAppliedEvent) OccurredAt() time.Time { return e.Record.AppliedAt }
func (e *MovementAppliedEvent) Subject() string       { return e.Record.ReferenceID }

// ZoneChangedEvent is published when a zone's used units or active flag change
type ZoneChangedEvent struct {
	Zone      Zone      `json:"zone"`
	ChangedAt time.Time `json:"changedAt"`
}

func (e *ZoneChangedEvent) EventType() string     { return "wms.zone.changed" }
func (e *ZoneChangedEvent) OccurredAt() time.Time { return e.ChangedAt }
func (e *ZoneChangedEvent) Subject() string       { return e.Zone.ID }

// OrderTransitionedEvent is published after every order status change
type OrderTransitionedEvent struct {
	Order          Order       `json:"order"`
	From           OrderStatus `json:"from"`
	To             OrderStatus `json:"to"`
	TransitionedAt time.Time   `json:"transitionedAt"`
}

func (e *OrderTransitionedEvent) EventType() string     { return "wms.order.transitioned" }
func (e *OrderTransitionedEvent) OccurredAt() time.Time { return e.TransitionedAt }
func (e *OrderTransitionedEvent) Subject() string       { return e.Order.ID }

// ShipmentTransitionedEvent is published after every shipment status change
// and after units are received.
type ShipmentTransitionedEvent struct {
	Shipment       Shipment       `json:"shipment"`
	From           ShipmentStatus `json:"from"`
	To             ShipmentStatus `json:"to"`
	TransitionedAt time.Time      `json:"transitionedAt"`
}

func (e *ShipmentTransitionedEvent) EventType() string     { return "wms.shipment.transitioned" }
func (e *ShipmentTransitionedEvent) OccurredAt() time.Time { return e.TransitionedAt }
func (e *ShipmentTransitionedEvent) Subject() string       { return e.Shipment.ID }

// Task lifecycle actions carried by TaskEvent
const (
	TaskActionCreated   = "created"
	TaskActionAssigned  = "assigned"
	TaskActionStarted   = "started"
	TaskActionCompleted = "completed"
	TaskActionCancelled = "cancelled"
)

// TaskEvent is published on every task lifecycle change
type TaskEvent struct {
	Action string    `json:"action"`
	Task   Task      `json:"task"`
	At     time.Time `json:"at"`
}

func (e *TaskEvent) EventType() string     { return "wms.task." + e.Action }
func (e *TaskEvent) OccurredAt() time.Time { return e.At }
func (e *TaskEvent) Subject() string       { return e.Task.ID }

// CountVarianceRecordedEvent is published for each submitted bin count
type CountVarianceRecordedEvent struct {
	Variance VarianceRecord `json:"variance"`
}

func (e *CountVarianceRecordedEvent) EventType() string     { return "wms.count.variance-recorded" }
func (e *CountVarianceRecordedEvent) OccurredAt() time.Time { return e.Variance.CountedAt }
func (e *CountVarianceRecordedEvent) Subject() string       { return e.Variance.CycleCountID }

// CycleCountChangedEvent is published after every cycle count status change
type CycleCountChangedEvent struct {
	Count     CycleCount  `json:"cycleCount"`
	From      CountStatus `json:"from"`
	To        CountStatus `json:"to"`
	ChangedAt time.Time   `json:"changedAt"`
}

func (e *CycleCountChangedEvent) EventType() string {
	if e.To == CountStatusCompleted {
		return "wms.count.completed"
	}
	return "wms.count.transitioned"
}
func (e *CycleCountChangedEvent) OccurredAt() time.Time { return e.ChangedAt }
func (e *CycleCountChangedEvent) Subject() string       { return e.Count.ID }

// EventHandler receives published domain events
type EventHandler func(DomainEvent)

// EventBus fans domain events out to subscribers synchronously, in publish order.
// Publishers never hold component locks while publishing.
type EventBus struct {
	mu       sync.RWMutex
	handlers []EventHandler
}

// NewEventBus creates an empty bus
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers h for every subsequently published event
func (b *EventBus) Subscribe(h EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish delivers events to all subscribers
func (b *EventBus) Publish(events ...DomainEvent) {
	if b == nil || len(events) == 0 {
		return
	}
	b.mu.RLock()
	handlers := make([]EventHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, ev := range events {
		for _, h := range handlers {
			h(ev)
		}
	}
}
