package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeStats(t *testing.T) {
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	in := StatsInput{
		Records: []InventoryRecord{
			{SKU: "X", Location: "A1", QuantityOnHand: 100, UnitCost: 2.5, Status: StockStatusInStock},
			{SKU: "X", Location: "A2", QuantityOnHand: 4, UnitCost: 2.5, Status: StockStatusLowStock},
			{SKU: "Y", Location: "A3", QuantityOnHand: 0, UnitCost: 10, Status: StockStatusOutOfStock},
		},
		Zones: []Zone{
			{ID: "A", CapacityUnits: 200, UsedUnits: 100, IsActive: true},
			{ID: "B", CapacityUnits: 100, UsedUnits: 0, IsActive: true},
			{ID: "C", CapacityUnits: 100, UsedUnits: 100, IsActive: false},
			{ID: "D", CapacityUnits: 0, IsActive: true},
		},
		Orders: []Order{
			{Status: OrderStatusPending},
			{Status: OrderStatusPending},
			{Status: OrderStatusShipped},
		},
		Shipments: []Shipment{
			{Status: ShipmentStatusPending},
			{Status: ShipmentStatusReceiving},
		},
		Tasks: []Task{
			{Status: TaskStatusPending},
			{Status: TaskStatusAssigned},
			{Status: TaskStatusInProgress},
			{Status: TaskStatusCompleted},
		},
		Counts: []CycleCount{
			{Status: CountStatusCompleted, CountedItems: 8, VarianceItems: 2},
			{Status: CountStatusCompleted, CountedItems: 2, VarianceItems: 0},
			{Status: CountStatusPendingReview, CountedItems: 5, VarianceItems: 5},
		},
	}

	got := ComputeStats(in, at)

	assert.InDelta(t, 260.0, got.TotalValue, 1e-9)
	assert.Equal(t, 104, got.TotalUnits)
	assert.InDelta(t, 0.25, got.AvgZoneUtilization, 1e-9)
	assert.Equal(t, 1, got.LowStockCount)
	assert.Equal(t, 1, got.OutOfStockCount)
	assert.Equal(t, 2, got.PendingOrders)
	assert.Equal(t, 1, got.PendingShipments)
	assert.Equal(t, 2, got.OpenTasks)
	assert.Equal(t, 1, got.ActiveTasks)
	assert.InDelta(t, 0.8, got.CountAccuracy, 1e-9)
	assert.Equal(t, 1, got.OrdersByStatus[OrderStatusShipped])
	assert.Equal(t, 1, got.TasksByStatus[TaskStatusCompleted])
	assert.Equal(t, at, got.ComputedAt)
}

func TestComputeStats_Empty(t *testing.T) {
	got := ComputeStats(StatsInput{}, time.Time{})
	assert.Zero(t, got.AvgZoneUtilization)
	assert.Zero(t, got.CountAccuracy)
	assert.NotNil(t, got.RecordsByStatus)
}

func TestWarehouse_Stats(t *testing.T) {
	w := newTestWarehouse(t)
	seed(t, w, "X", "A1", 100)
	seed(t, w, "Y", "P1", 2)

	_, err := w.Orders.Create("acme", "", []OrderLine{{SKU: "X", Quantity: 1}})
	require.NoError(t, err)

	stats := w.Stats()
	assert.Equal(t, 102, stats.TotalUnits)
	assert.InDelta(t, 100*2.5+2*10.0, stats.TotalValue, 1e-9)
	assert.Equal(t, 1, stats.LowStockCount)
	assert.Equal(t, 1, stats.PendingOrders)
	assert.Equal(t, 1, stats.OpenTasks, "replenish task for Y@P1")
}

func TestNewWarehouse_Validation(t *testing.T) {
	cfg := testWarehouseConfig()
	cfg.StagingLocation = "NOPE"
	_, err := NewWarehouse(cfg)
	assert.ErrorIs(t, err, ErrValidation)

	cfg = testWarehouseConfig()
	cfg.StagingLocation = ""
	_, err = NewWarehouse(cfg)
	assert.ErrorIs(t, err, ErrValidation)
}
