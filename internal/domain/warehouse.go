package domain

import (
	"time"

	"github.com/google/uuid"
)

// ZoneDefinition is static zone reference data with its bins
type ZoneDefinition struct {
	Zone Zone
	Bins []string
}

// WarehouseConfig holds the reference data and collaborators of a Warehouse
type WarehouseConfig struct {
	Zones           []ZoneDefinition
	Items           []Item
	StagingLocation string
	Now             func() time.Time
	NewID           func() string
}

// Warehouse wires the ledger, processor, scheduler and state machines together.
type Warehouse struct {
	Bus       *EventBus
	Processor *Processor
	Scheduler *Scheduler
	Orders    *OrderBook
	Shipments *ShipmentBook
	Counts    *CountBook
	now       func() time.Time
}

// NewWarehouse builds a warehouse from reference data
func NewWarehouse(cfg WarehouseConfig) (*Warehouse, error) {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	capacity := NewCapacityTracker()
	// zone types never change after construction; the scheduler reads this
	// map outside the processor lock
	stockBins := make(map[string]bool)
	for _, def := range cfg.Zones {
		if err := capacity.AddZone(def.Zone); err != nil {
			return nil, err
		}
		for _, bin := range def.Bins {
			if err := capacity.AddBin(Bin{ID: bin, ZoneID: def.Zone.ID}); err != nil {
				return nil, err
			}
			if def.Zone.Type.HoldsStock() {
				stockBins[bin] = true
			}
		}
	}
	if cfg.StagingLocation == "" {
		return nil, validationf("staging location is required")
	}
	if _, ok := capacity.Bin(cfg.StagingLocation); !ok {
		return nil, validationf("staging location %s is not a known bin", cfg.StagingLocation)
	}

	bus := NewEventBus()
	processor := NewProcessor(NewLedger(), capacity, bus, now)
	for _, item := range cfg.Items {
		if err := processor.RegisterItem(item); err != nil {
			return nil, err
		}
	}

	scheduler := NewScheduler(bus, now, newID)
	w := &Warehouse{
		Bus:       bus,
		Processor: processor,
		Scheduler: scheduler,
		Orders:    NewOrderBook(processor, scheduler, bus, now, newID),
		Shipments: NewShipmentBook(processor, scheduler, cfg.StagingLocation, bus, now, newID),
		Counts:    NewCountBook(processor, scheduler, bus, now, newID),
		now:       now,
	}

	scheduler.SetReplenishFilter(func(location string) bool {
		return stockBins[location]
	})
	scheduler.OnComplete(TaskTypePick, w.Orders.creditPicked)
	scheduler.OnComplete(TaskTypePutaway, w.Shipments.completePutaway)
	scheduler.OnComplete(TaskTypeMove, w.completeMove)
	bus.Subscribe(scheduler.HandleEvent)

	return w, nil
}

func (w *Warehouse) completeMove(task Task) error {
	_, err := w.Processor.Apply(Movement{
		Type:         MovementTransfer,
		SKU:          task.SKU,
		FromLocation: task.FromLocation,
		ToLocation:   task.ToLocation,
		Quantity:     task.Quantity,
		ReferenceID:  task.ID + ":move",
	})
	return err
}

// Stats computes the KPI snapshot over the current state
func (w *Warehouse) Stats() StatsSnapshot {
	records, zones := w.Processor.Snapshot()
	return ComputeStats(StatsInput{
		Records:   records,
		Zones:     zones,
		Orders:    w.Orders.List(""),
		Shipments: w.Shipments.List(""),
		Tasks:     w.Scheduler.ListTasks(TaskFilter{}),
		Counts:    w.Counts.List(""),
	}, w.now().UTC())
}
