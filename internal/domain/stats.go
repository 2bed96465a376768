package domain

import "time"

// StatsInput is a point-in-time snapshot of the warehouse state
type StatsInput struct {
	Records   []InventoryRecord
	Zones     []Zone
	Orders    []Order
	Shipments []Shipment
	Tasks     []Task
	Counts    []CycleCount
}

// StatsSnapshot holds the cross-cutting KPIs
type StatsSnapshot struct {
	TotalValue         float64                `json:"totalValue"`
	TotalUnits         int                    `json:"totalUnits"`
	AvgZoneUtilization float64                `json:"avgZoneUtilization"`
	LowStockCount      int                    `json:"lowStockCount"`
	OutOfStockCount    int                    `json:"outOfStockCount"`
	PendingOrders      int                    `json:"pendingOrders"`
	PendingShipments   int                    `json:"pendingShipments"`
	OpenTasks          int                    `json:"openTasks"`
	ActiveTasks        int                    `json:"activeTasks"`
	CountAccuracy      float64                `json:"countAccuracy"`
	RecordsByStatus    map[StockStatus]int    `json:"recordsByStatus"`
	OrdersByStatus     map[OrderStatus]int    `json:"ordersByStatus"`
	ShipmentsByStatus  map[ShipmentStatus]int `json:"shipmentsByStatus"`
	TasksByStatus      map[TaskStatus]int     `json:"tasksByStatus"`
	ComputedAt         time.Time              `json:"computedAt"`
}

// ComputeStats derives KPIs from a snapshot. It has no side effects.
//
// Utilization is averaged over active zones with capacity. Open tasks are
// pending or assigned, active tasks are in progress. Count accuracy covers
// completed counts and is 0 when none counted anything.
func ComputeStats(in StatsInput, at time.Time) StatsSnapshot {
	out := StatsSnapshot{
		RecordsByStatus:   make(map[StockStatus]int),
		OrdersByStatus:    make(map[OrderStatus]int),
		ShipmentsByStatus: make(map[ShipmentStatus]int),
		TasksByStatus:     make(map[TaskStatus]int),
		ComputedAt:        at,
	}

	for _, r := range in.Records {
		out.TotalValue += r.Value()
		out.TotalUnits += r.QuantityOnHand
		out.RecordsByStatus[r.Status]++
		switch r.Status {
		case StockStatusLowStock:
			out.LowStockCount++
		case StockStatusOutOfStock:
			out.OutOfStockCount++
		}
	}

	var utilization float64
	zones := 0
	for _, z := range in.Zones {
		if !z.IsActive || z.CapacityUnits <= 0 {
			continue
		}
		utilization += z.Utilization()
		zones++
	}
	if zones > 0 {
		out.AvgZoneUtilization = utilization / float64(zones)
	}

	for _, o := range in.Orders {
		out.OrdersByStatus[o.Status]++
		if o.Status == OrderStatusPending {
			out.PendingOrders++
		}
	}
	for _, s := range in.Shipments {
		out.ShipmentsByStatus[s.Status]++
		if s.Status == ShipmentStatusPending {
			out.PendingShipments++
		}
	}
	for _, t := range in.Tasks {
		out.TasksByStatus[t.Status]++
		switch t.Status {
		case TaskStatusPending, TaskStatusAssigned:
			out.OpenTasks++
		case TaskStatusInProgress:
			out.ActiveTasks++
		}
	}

	counted, variances := 0, 0
	for _, c := range in.Counts {
		if c.Status != CountStatusCompleted {
			continue
		}
		counted += c.CountedItems
		variances += c.VarianceItems
	}
	if counted > 0 {
		out.CountAccuracy = 1 - float64(variances)/float64(counted)
	}
	return out
}
