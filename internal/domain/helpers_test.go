package domain

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testStaging = "STAGE-01"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type testIDs struct {
	mu sync.Mutex
	n  int
}

func (g *testIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%03d", g.n)
}

func testWarehouseConfig() WarehouseConfig {
	clock := &testClock{now: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)}
	ids := &testIDs{}
	return WarehouseConfig{
		Zones: []ZoneDefinition{
			{Zone: Zone{ID: "RCV", Code: "R", Type: ZoneTypeReceiving, CapacityUnits: 1000, IsActive: true}, Bins: []string{testStaging}},
			{Zone: Zone{ID: "STO-A", Code: "A", Type: ZoneTypeStorage, CapacityUnits: 500, IsActive: true}, Bins: []string{"A1", "A2", "A3"}},
			{Zone: Zone{ID: "STO-B", Code: "B", Type: ZoneTypeStorage, CapacityUnits: 100, IsActive: true}, Bins: []string{"B1"}},
			{Zone: Zone{ID: "PCK", Code: "P", Type: ZoneTypePicking, CapacityUnits: 200, IsActive: true}, Bins: []string{"P1"}},
		},
		Items: []Item{
			{SKU: "X", ReorderPoint: 20, ReorderQuantity: 50, UnitCost: 2.5},
			{SKU: "Y", ReorderPoint: 5, UnitCost: 10},
		},
		StagingLocation: testStaging,
		Now:             clock.Now,
		NewID:           ids.Next,
	}
}

func newTestWarehouse(t *testing.T) *Warehouse {
	t.Helper()
	w, err := NewWarehouse(testWarehouseConfig())
	require.NoError(t, err)
	return w
}

// seed applies an inbound movement and fails the test on error.
func seed(t *testing.T, w *Warehouse, sku, location string, qty int) {
	t.Helper()
	_, err := w.Processor.Apply(Movement{
		Type:        MovementInbound,
		SKU:         sku,
		ToLocation:  location,
		Quantity:    qty,
		ReferenceID: fmt.Sprintf("seed:%s:%s:%d", sku, location, qty),
	})
	require.NoError(t, err)
}

func onHand(t *testing.T, w *Warehouse, sku, location string) int {
	t.Helper()
	rec, err := w.Processor.Record(sku, location)
	require.NoError(t, err)
	return rec.QuantityOnHand
}

func zoneUsed(t *testing.T, w *Warehouse, zoneID string) int {
	t.Helper()
	z, err := w.Processor.Zone(zoneID)
	require.NoError(t, err)
	return z.UsedUnits
}

// progressTask assigns (when pending), starts and completes a task.
func progressTask(t *testing.T, w *Warehouse, id string) Task {
	t.Helper()
	task, err := w.Scheduler.Task(id)
	require.NoError(t, err)
	if task.Status == TaskStatusPending {
		_, err = w.Scheduler.Assign(id, "worker-1")
		require.NoError(t, err)
	}
	_, err = w.Scheduler.Start(id)
	require.NoError(t, err)
	done, err := w.Scheduler.Complete(id)
	require.NoError(t, err)
	return done
}

// assertInvariants checks the non-negative availability and zone bounds.
func assertInvariants(t *testing.T, w *Warehouse) {
	t.Helper()
	records, zones := w.Processor.Snapshot()
	for _, r := range records {
		require.GreaterOrEqual(t, r.QuantityOnHand, 0, "%s@%s onHand", r.SKU, r.Location)
		require.GreaterOrEqual(t, r.QuantityAvailable(), 0, "%s@%s available", r.SKU, r.Location)
	}
	for _, z := range zones {
		require.GreaterOrEqual(t, z.UsedUnits, 0, "zone %s used", z.ID)
		require.LessOrEqual(t, z.UsedUnits, z.CapacityUnits, "zone %s used", z.ID)
	}
}
