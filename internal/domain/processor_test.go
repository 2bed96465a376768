package domain

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessor_OutboundTriggersReplenishment(t *testing.T) {
	w := newTestWarehouse(t)
	seed(t, w, "X", "A1", 100)
	assert.Empty(t, w.Scheduler.ListTasks(TaskFilter{Type: TaskTypeReplenish}))

	result, err := w.Processor.Apply(Movement{
		Type:         MovementOutbound,
		SKU:          "X",
		FromLocation: "A1",
		Quantity:     85,
		ReferenceID:  "out-1",
	})
	require.NoError(t, err)
	assert.Equal(t, -85, result.Record.SignedDelta)

	rec, err := w.Processor.Record("X", "A1")
	require.NoError(t, err)
	assert.Equal(t, 15, rec.QuantityOnHand)
	assert.Equal(t, StockStatusLowStock, rec.Status)

	tasks := w.Scheduler.ListTasks(TaskFilter{Type: TaskTypeReplenish})
	require.Len(t, tasks, 1)
	assert.Equal(t, "X", tasks[0].SKU)
	assert.Equal(t, "A1", tasks[0].ToLocation)
	assert.Equal(t, 50, tasks[0].Quantity)
	assert.Equal(t, TaskStatusPending, tasks[0].Status)
}

func TestProcessor_ReplenishmentIsDeduplicated(t *testing.T) {
	w := newTestWarehouse(t)
	seed(t, w, "X", "A1", 30)

	for i := 0; i < 5; i++ {
		_, err := w.Processor.Apply(Movement{
			Type:         MovementOutbound,
			SKU:          "X",
			FromLocation: "A1",
			Quantity:     3,
			ReferenceID:  fmt.Sprintf("out-%d", i),
		})
		require.NoError(t, err)
	}
	require.Len(t, w.Scheduler.ListTasks(TaskFilter{Type: TaskTypeReplenish}), 1)

	// once the open task is closed a new low-stock change opens another one
	task := w.Scheduler.ListTasks(TaskFilter{Type: TaskTypeReplenish})[0]
	progressTask(t, w, task.ID)
	_, err := w.Processor.Apply(Movement{Type: MovementOutbound, SKU: "X", FromLocation: "A1", Quantity: 1, ReferenceID: "out-last"})
	require.NoError(t, err)
	assert.Len(t, w.Scheduler.ListTasks(TaskFilter{Type: TaskTypeReplenish, Status: TaskStatusPending}), 1)
}

func TestProcessor_NoReplenishmentForStagingBins(t *testing.T) {
	w := newTestWarehouse(t)
	seed(t, w, "X", testStaging, 5)

	assert.Empty(t, w.Scheduler.ListTasks(TaskFilter{Type: TaskTypeReplenish}))
}

func TestProcessor_IdempotentByReference(t *testing.T) {
	w := newTestWarehouse(t)
	m := Movement{Type: MovementInbound, SKU: "X", ToLocation: "A1", Quantity: 40, ReferenceID: "rcv-1"}

	first, err := w.Processor.Apply(m)
	require.NoError(t, err)
	assert.False(t, first.Replayed)
	recordsAfterFirst, zonesAfterFirst := w.Processor.Snapshot()

	second, err := w.Processor.Apply(m)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Record, second.Record)

	records, zones := w.Processor.Snapshot()
	assert.Equal(t, recordsAfterFirst, records)
	assert.Equal(t, zonesAfterFirst, zones)
	assert.Len(t, w.Processor.Journal("X"), 1)
}

func TestProcessor_TransferConservesQuantity(t *testing.T) {
	w := newTestWarehouse(t)
	seed(t, w, "X", "A1", 100)
	seed(t, w, "X", "P1", 10)

	total := func() int {
		sum := 0
		for _, r := range w.Processor.RecordsForSKU("X") {
			sum += r.QuantityOnHand
		}
		return sum
	}
	before := total()

	_, err := w.Processor.Apply(Movement{Type: MovementTransfer, SKU: "X", FromLocation: "A1", ToLocation: "P1", Quantity: 30, ReferenceID: "tr-1"})
	require.NoError(t, err)

	assert.Equal(t, 70, onHand(t, w, "X", "A1"))
	assert.Equal(t, 40, onHand(t, w, "X", "P1"))
	assert.Equal(t, before, total())
	assert.Equal(t, 70, zoneUsed(t, w, "STO-A"))
	assert.Equal(t, 40, zoneUsed(t, w, "PCK"))
}

func TestProcessor_FailuresLeaveStateUnchanged(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, w *Warehouse)
		move    Movement
		wantErr error
	}{
		{
			name:    "transfer over destination capacity",
			move:    Movement{Type: MovementTransfer, SKU: "X", FromLocation: "A1", ToLocation: "B1", Quantity: 150, ReferenceID: "tr-big"},
			wantErr: ErrCapacityExceeded,
		},
		{
			name:    "outbound more than available",
			move:    Movement{Type: MovementOutbound, SKU: "X", FromLocation: "A1", Quantity: 201, ReferenceID: "out-big"},
			wantErr: ErrInsufficientStock,
		},
		{
			name: "outbound of reserved stock",
			setup: func(t *testing.T, w *Warehouse) {
				_, err := w.Processor.Allocate("o-1", []OrderLine{{SKU: "X", Quantity: 150}})
				require.NoError(t, err)
			},
			move:    Movement{Type: MovementOutbound, SKU: "X", FromLocation: "A1", Quantity: 60, ReferenceID: "out-reserved"},
			wantErr: ErrInsufficientStock,
		},
		{
			name:    "inbound over zone capacity",
			move:    Movement{Type: MovementInbound, SKU: "Y", ToLocation: "A2", Quantity: 301, ReferenceID: "in-big"},
			wantErr: ErrCapacityExceeded,
		},
		{
			name: "inbound to inactive zone",
			setup: func(t *testing.T, w *Warehouse) {
				_, err := w.Processor.SetZoneActive("STO-B", false)
				require.NoError(t, err)
			},
			move:    Movement{Type: MovementInbound, SKU: "X", ToLocation: "B1", Quantity: 1, ReferenceID: "in-inactive"},
			wantErr: ErrZoneInactive,
		},
		{
			name:    "unknown location",
			move:    Movement{Type: MovementInbound, SKU: "X", ToLocation: "NOPE", Quantity: 1, ReferenceID: "in-unknown"},
			wantErr: ErrUnknownLocation,
		},
		{
			name:    "zero quantity",
			move:    Movement{Type: MovementOutbound, SKU: "X", FromLocation: "A1", Quantity: 0, ReferenceID: "out-zero"},
			wantErr: ErrInvalidQuantity,
		},
		{
			name:    "transfer to same bin",
			move:    Movement{Type: MovementTransfer, SKU: "X", FromLocation: "A1", ToLocation: "A1", Quantity: 1, ReferenceID: "tr-same"},
			wantErr: ErrInvalidMovement,
		},
		{
			name: "adjustment below reserved",
			setup: func(t *testing.T, w *Warehouse) {
				_, err := w.Processor.Allocate("o-1", []OrderLine{{SKU: "X", Quantity: 150}})
				require.NoError(t, err)
			},
			move:    Movement{Type: MovementAdjustment, SKU: "X", ToLocation: "A1", Quantity: 100, ReferenceID: "adj-low"},
			wantErr: ErrInsufficientStock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWarehouse(t)
			seed(t, w, "X", "A1", 200)
			if tt.setup != nil {
				tt.setup(t, w)
			}
			records, zones := w.Processor.Snapshot()

			_, err := w.Processor.Apply(tt.move)
			require.ErrorIs(t, err, tt.wantErr)

			afterRecords, afterZones := w.Processor.Snapshot()
			assert.Equal(t, records, afterRecords)
			assert.Equal(t, zones, afterZones)
			assertInvariants(t, w)
		})
	}
}

func TestProcessor_ApplyBatchIsAllOrNothing(t *testing.T) {
	w := newTestWarehouse(t)
	seed(t, w, "X", "A1", 50)
	seed(t, w, "Y", "A2", 10)

	_, err := w.Processor.ApplyBatch([]Movement{
		{Type: MovementOutbound, SKU: "X", FromLocation: "A1", Quantity: 20, ReferenceID: "b-1"},
		{Type: MovementOutbound, SKU: "Y", FromLocation: "A2", Quantity: 11, ReferenceID: "b-2"},
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 50, onHand(t, w, "X", "A1"))
	assert.Equal(t, 10, onHand(t, w, "Y", "A2"))

	// the failed reference was never recorded, so it can be retried
	_, err = w.Processor.Apply(Movement{Type: MovementOutbound, SKU: "X", FromLocation: "A1", Quantity: 20, ReferenceID: "b-1"})
	require.NoError(t, err)
	assert.Equal(t, 30, onHand(t, w, "X", "A1"))
}

func TestProcessor_Adjustment(t *testing.T) {
	w := newTestWarehouse(t)
	seed(t, w, "X", "A1", 40)

	result, err := w.Processor.Apply(Movement{Type: MovementAdjustment, SKU: "X", ToLocation: "A1", Quantity: 37, ReferenceID: "adj-1"})
	require.NoError(t, err)
	assert.Equal(t, -3, result.Record.SignedDelta)
	assert.Equal(t, 37, onHand(t, w, "X", "A1"))
	assert.Equal(t, 37, zoneUsed(t, w, "STO-A"))

	_, err = w.Processor.Apply(Movement{Type: MovementAdjustment, SKU: "X", FromLocation: "A1", Quantity: 0, ReferenceID: "adj-2"})
	require.NoError(t, err)
	assert.Equal(t, 0, onHand(t, w, "X", "A1"))
}

func TestProcessor_AllocateLargestFirst(t *testing.T) {
	w := newTestWarehouse(t)
	seed(t, w, "X", "A1", 20)
	seed(t, w, "X", "A2", 30)
	seed(t, w, "X", "A3", 30)

	allocations, err := w.Processor.Allocate("o-1", []OrderLine{{SKU: "X", Quantity: 25}, {SKU: "X", Quantity: 20}})
	require.NoError(t, err)
	assert.Equal(t, []Allocation{
		{SKU: "X", Location: "A2", Quantity: 30},
		{SKU: "X", Location: "A3", Quantity: 15},
	}, allocations)

	rec, err := w.Processor.Record("X", "A3")
	require.NoError(t, err)
	assert.Equal(t, 15, rec.QuantityReserved)
	assert.Equal(t, 15, rec.QuantityAvailable())
}

func TestProcessor_AllocateSkipsDamagedStock(t *testing.T) {
	w := newTestWarehouse(t)
	seed(t, w, "X", "A1", 30)
	seed(t, w, "X", "A2", 30)
	_, err := w.Processor.SetFlag("X", "A2", FlagDamaged)
	require.NoError(t, err)

	_, err = w.Processor.Allocate("o-1", []OrderLine{{SKU: "X", Quantity: 40}})
	var allocErr *AllocationError
	require.ErrorAs(t, err, &allocErr)
	assert.Equal(t, 30, allocErr.Available)

	rec, err := w.Processor.Record("X", "A1")
	require.NoError(t, err)
	assert.Zero(t, rec.QuantityReserved, "failed allocation reserves nothing")
}

func TestProcessor_IncomingIsClamped(t *testing.T) {
	w := newTestWarehouse(t)

	require.NoError(t, w.Processor.AdjustIncoming("X", "A1", 10))
	require.NoError(t, w.Processor.AdjustIncoming("X", "A1", -25))

	rec, err := w.Processor.Record("X", "A1")
	require.NoError(t, err)
	assert.Zero(t, rec.QuantityIncoming)
}

func TestProcessor_ConcurrentTransfersKeepInvariants(t *testing.T) {
	w := newTestWarehouse(t)
	seed(t, w, "X", "A1", 100)
	seed(t, w, "X", "P1", 100)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, _ = w.Processor.Apply(Movement{Type: MovementTransfer, SKU: "X", FromLocation: "A1", ToLocation: "P1", Quantity: 7, ReferenceID: fmt.Sprintf("ab-%d", i)})
		}(i)
		go func(i int) {
			defer wg.Done()
			_, _ = w.Processor.Apply(Movement{Type: MovementTransfer, SKU: "X", FromLocation: "P1", ToLocation: "A1", Quantity: 5, ReferenceID: fmt.Sprintf("ba-%d", i)})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 200, onHand(t, w, "X", "A1")+onHand(t, w, "X", "P1"))
	assertInvariants(t, w)
}

func TestProcessor_AllocateOnlyFromActiveStockBins(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(t *testing.T, w *Warehouse)
		available int
	}{
		{
			name: "receiving staging",
			setup: func(t *testing.T, w *Warehouse) {
				seed(t, w, "X", testStaging, 50)
			},
			available: 10,
		},
		{
			name: "inactive zone",
			setup: func(t *testing.T, w *Warehouse) {
				seed(t, w, "X", "P1", 50)
				_, err := w.Processor.SetZoneActive("PCK", false)
				require.NoError(t, err)
			},
			available: 10,
		},
		{
			name: "picking zone",
			setup: func(t *testing.T, w *Warehouse) {
				seed(t, w, "X", "P1", 50)
			},
			available: 60,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWarehouse(t)
			seed(t, w, "X", "A1", 10)
			tt.setup(t, w)

			allocations, err := w.Processor.Allocate("o-1", []OrderLine{{SKU: "X", Quantity: 60}})
			if tt.available >= 60 {
				require.NoError(t, err)
				assert.Equal(t, []Allocation{
					{SKU: "X", Location: "P1", Quantity: 50},
					{SKU: "X", Location: "A1", Quantity: 10},
				}, allocations)
				return
			}
			var allocErr *AllocationError
			require.ErrorAs(t, err, &allocErr)
			assert.Equal(t, tt.available, allocErr.Available)
			assertInvariants(t, w)
		})
	}
}

func TestProcessor_ConcurrentOutboundAndTransfers(t *testing.T) {
	w := newTestWarehouse(t)
	seed(t, w, "X", "A1", 100)
	seed(t, w, "Y", "A2", 6)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_, _ = w.Processor.Apply(Movement{Type: MovementOutbound, SKU: "Y", FromLocation: "A2", Quantity: 1, ReferenceID: fmt.Sprintf("y-out-%d", i)})
			_, _ = w.Processor.Apply(Movement{Type: MovementInbound, SKU: "Y", ToLocation: "A2", Quantity: 1, ReferenceID: fmt.Sprintf("y-in-%d", i)})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_, _ = w.Processor.Apply(Movement{Type: MovementTransfer, SKU: "X", FromLocation: "A1", ToLocation: "B1", Quantity: 3, ReferenceID: fmt.Sprintf("x-ab-%d", i)})
			_, _ = w.Processor.Apply(Movement{Type: MovementTransfer, SKU: "X", FromLocation: "B1", ToLocation: "A1", Quantity: 3, ReferenceID: fmt.Sprintf("x-ba-%d", i)})
		}
	}()
	wg.Wait()

	assert.Equal(t, 100, onHand(t, w, "X", "A1"))
	assert.Equal(t, 0, onHand(t, w, "X", "B1"))
	assert.Equal(t, 6, onHand(t, w, "Y", "A2"))
	assert.Len(t, w.Scheduler.ListTasks(TaskFilter{Type: TaskTypeReplenish, SKU: "Y"}), 1)
	assertInvariants(t, w)
}
