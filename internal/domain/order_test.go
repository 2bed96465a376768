package domain

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const upsTracking = "1Z999AA10123456784"

func reserved(t *testing.T, w *Warehouse, sku, location string) int {
	t.Helper()
	rec, err := w.Processor.Record(sku, location)
	require.NoError(t, err)
	return rec.QuantityReserved
}

func TestOrderBook_HappyPath(t *testing.T) {
	w := newTestWarehouse(t)
	seed(t, w, "X", "A1", 100)
	seed(t, w, "Y", "A2", 20)

	order, err := w.Orders.Create("acme", PriorityHigh, []OrderLine{{SKU: "X", Quantity: 30}, {SKU: "Y", Quantity: 5}})
	require.NoError(t, err)
	assert.Equal(t, OrderStatusPending, order.Status)
	assert.Equal(t, 35, order.TotalUnits)

	order, err = w.Orders.Transition(order.ID, OrderStatusAllocated, TransitionPayload{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []Allocation{
		{SKU: "X", Location: "A1", Quantity: 30},
		{SKU: "Y", Location: "A2", Quantity: 5},
	}, order.Allocations)
	assert.Equal(t, 30, reserved(t, w, "X", "A1"))

	_, err = w.Orders.Transition(order.ID, OrderStatusPicking, TransitionPayload{})
	require.ErrorIs(t, err, ErrAssigneeRequired)

	order, err = w.Orders.Transition(order.ID, OrderStatusPicking, TransitionPayload{Assignee: "picker-1"})
	require.NoError(t, err)
	require.Len(t, order.PickTaskIDs, 2)
	for _, id := range order.PickTaskIDs {
		task, err := w.Scheduler.Task(id)
		require.NoError(t, err)
		assert.Equal(t, TaskStatusAssigned, task.Status)
		assert.Equal(t, "picker-1", task.Assignee)
		assert.Equal(t, PriorityHigh, task.Priority)
	}

	_, err = w.Orders.Transition(order.ID, OrderStatusPicked, TransitionPayload{})
	require.ErrorIs(t, err, ErrPreconditionFailed, "pick tasks still open")

	for _, id := range order.PickTaskIDs {
		progressTask(t, w, id)
	}
	order, err = w.Orders.Get(order.ID)
	require.NoError(t, err)
	assert.Equal(t, 35, order.PickedUnits)

	_, err = w.Orders.Transition(order.ID, OrderStatusPicked, TransitionPayload{})
	require.NoError(t, err)
	order, err = w.Orders.Transition(order.ID, OrderStatusPacking, TransitionPayload{})
	require.NoError(t, err)
	require.NotEmpty(t, order.PackTaskID)

	order, err = w.Orders.Transition(order.ID, OrderStatusPacked, TransitionPayload{})
	require.NoError(t, err)
	pack, err := w.Scheduler.Task(order.PackTaskID)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusCompleted, pack.Status)
	assert.Equal(t, SystemActor, pack.CompletedBy)

	_, err = w.Orders.Transition(order.ID, OrderStatusShipped, TransitionPayload{Carrier: "ACME", TrackingNumber: upsTracking})
	require.ErrorIs(t, err, ErrInvalidCarrier)
	_, err = w.Orders.Transition(order.ID, OrderStatusShipped, TransitionPayload{Carrier: "UPS", TrackingNumber: "123"})
	require.ErrorIs(t, err, ErrInvalidTracking)
	assert.Equal(t, 100, onHand(t, w, "X", "A1"), "failed ship moves no stock")

	order, err = w.Orders.Transition(order.ID, OrderStatusShipped, TransitionPayload{Carrier: "ups", TrackingNumber: upsTracking})
	require.NoError(t, err)
	assert.Equal(t, OrderStatusShipped, order.Status)
	assert.Equal(t, "UPS", order.Carrier)
	assert.Equal(t, upsTracking, order.TrackingNumber)

	assert.Equal(t, 70, onHand(t, w, "X", "A1"))
	assert.Equal(t, 0, reserved(t, w, "X", "A1"))
	assert.Equal(t, 15, onHand(t, w, "Y", "A2"))
	assert.Equal(t, 85, zoneUsed(t, w, "STO-A"))

	ship, err := w.Scheduler.Task(order.ShipTaskID)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusCompleted, ship.Status)

	var path []string
	for _, h := range order.History {
		path = append(path, h.To)
	}
	assert.Equal(t, []string{"allocated", "picking", "picked", "packing", "packed", "shipped"}, path)
	assertInvariants(t, w)
}

func TestOrderBook_RejectsSkippedStates(t *testing.T) {
	w := newTestWarehouse(t)
	seed(t, w, "X", "A1", 100)
	order, err := w.Orders.Create("acme", "", []OrderLine{{SKU: "X", Quantity: 10}})
	require.NoError(t, err)

	_, err = w.Orders.Transition(order.ID, OrderStatusShipped, TransitionPayload{Carrier: "UPS", TrackingNumber: upsTracking})
	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, "pending", transitionErr.From)
	assert.Equal(t, "shipped", transitionErr.To)

	got, err := w.Orders.Get(order.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusPending, got.Status)
	assert.Empty(t, got.History)
}

func TestOrderBook_AllocationFailureKeepsOrderPending(t *testing.T) {
	w := newTestWarehouse(t)
	seed(t, w, "X", "A1", 30)

	order, err := w.Orders.Create("acme", "", []OrderLine{{SKU: "X", Quantity: 50}})
	require.NoError(t, err)

	_, err = w.Orders.Transition(order.ID, OrderStatusAllocated, TransitionPayload{})
	require.ErrorIs(t, err, ErrAllocationFailed)

	got, err := w.Orders.Get(order.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusPending, got.Status)
	assert.Empty(t, got.Allocations)
	assert.Equal(t, 0, reserved(t, w, "X", "A1"))
}

func TestOrderBook_CancelReleasesReservations(t *testing.T) {
	w := newTestWarehouse(t)
	seed(t, w, "X", "A1", 100)

	order, err := w.Orders.Create("acme", "", []OrderLine{{SKU: "X", Quantity: 40}})
	require.NoError(t, err)
	_, err = w.Orders.Transition(order.ID, OrderStatusAllocated, TransitionPayload{})
	require.NoError(t, err)
	assert.Equal(t, 40, reserved(t, w, "X", "A1"))

	order, err = w.Orders.Transition(order.ID, OrderStatusCancelled, TransitionPayload{})
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCancelled, order.Status)
	assert.Empty(t, order.Allocations)
	assert.Equal(t, 0, reserved(t, w, "X", "A1"))
	assert.Equal(t, 100, onHand(t, w, "X", "A1"))

	_, err = w.Orders.Transition(order.ID, OrderStatusCancelled, TransitionPayload{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestOrderBook_CreateValidation(t *testing.T) {
	w := newTestWarehouse(t)

	tests := []struct {
		name     string
		customer string
		priority Priority
		lines    []OrderLine
		wantErr  error
	}{
		{"missing customer", "", "", []OrderLine{{SKU: "X", Quantity: 1}}, ErrValidation},
		{"no lines", "acme", "", nil, ErrValidation},
		{"zero quantity", "acme", "", []OrderLine{{SKU: "X", Quantity: 0}}, ErrInvalidQuantity},
		{"bad priority", "acme", "asap", []OrderLine{{SKU: "X", Quantity: 1}}, ErrInvalidPriority},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.Orders.Create(tt.customer, tt.priority, tt.lines)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := w.Orders.Get("missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderBook_ConcurrentAllocationNeverOversells(t *testing.T) {
	w := newTestWarehouse(t)
	seed(t, w, "X", "A1", 100)

	const orders = 5
	ids := make([]string, orders)
	for i := range ids {
		o, err := w.Orders.Create("acme", "", []OrderLine{{SKU: "X", Quantity: 30}})
		require.NoError(t, err)
		ids[i] = o.ID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _ = w.Orders.Transition(id, OrderStatusAllocated, TransitionPayload{})
		}(id)
	}
	wg.Wait()

	assert.Len(t, w.Orders.List(OrderStatusAllocated), 3)
	assert.Len(t, w.Orders.List(OrderStatusPending), 2)
	assert.Equal(t, 90, reserved(t, w, "X", "A1"))
	assertInvariants(t, w)
}
