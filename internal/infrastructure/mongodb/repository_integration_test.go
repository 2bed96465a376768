//go:build integration

package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/warehouse-core/internal/domain"
	"github.com/wms-platform/warehouse-core/pkg/cloudevents"
	"github.com/wms-platform/warehouse-core/pkg/outbox"
	wmstesting "github.com/wms-platform/warehouse-core/pkg/testing"
)

func newOutboxEvent(t *testing.T, aggregateID string) *outbox.Event {
	t.Helper()
	ce := cloudevents.NewEventFactory(cloudevents.SourceWarehouseCore).
		CreateEvent(context.Background(), "wms.order.transitioned", aggregateID, map[string]string{"id": aggregateID})
	ev, err := outbox.NewEvent(aggregateID, "order", "wms.warehouse.events", ce)
	require.NoError(t, err)
	return ev
}

func TestOutboxRepository_Lifecycle(t *testing.T) {
	client := wmstesting.StartMongo(t)
	ctx := context.Background()
	repo := NewOutboxRepository(client.Database(), nil)
	require.NoError(t, repo.EnsureIndexes(ctx))

	first := newOutboxEvent(t, "order-1")
	second := newOutboxEvent(t, "order-2")
	second.CreatedAt = first.CreatedAt.Add(time.Millisecond)
	exhausted := newOutboxEvent(t, "order-3")
	exhausted.RetryCount = exhausted.MaxRetries
	require.NoError(t, repo.SaveAll(ctx, []*outbox.Event{first, second, exhausted}))

	pending, err := repo.FindUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2, "events past max retries are not relayed")
	assert.Equal(t, first.ID, pending[0].ID)

	ce, err := pending[0].CloudEvent()
	require.NoError(t, err)
	assert.Equal(t, "order-1", ce.Subject)

	require.NoError(t, repo.IncrementRetry(ctx, second.ID, "broker down"))
	require.NoError(t, repo.MarkPublished(ctx, first.ID))

	pending, err = repo.FindUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].RetryCount)
	assert.Equal(t, "broker down", pending[0].LastError)

	events, err := repo.FindByAggregateID(ctx, "order-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].IsPublished())

	n, err := repo.DeletePublished(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Error(t, repo.MarkPublished(ctx, "missing"))
}

func TestProjectionRepository_ProjectsWarehouseEvents(t *testing.T) {
	client := wmstesting.StartMongo(t)
	ctx := context.Background()
	repo := NewProjectionRepository(client.Database(), nil)
	require.NoError(t, repo.EnsureIndexes(ctx))

	w, err := domain.NewWarehouse(domain.WarehouseConfig{
		Zones: []domain.ZoneDefinition{
			{Zone: domain.Zone{ID: "RCV", Type: domain.ZoneTypeReceiving, CapacityUnits: 100, IsActive: true}, Bins: []string{"STAGE"}},
			{Zone: domain.Zone{ID: "STO", Type: domain.ZoneTypeStorage, CapacityUnits: 100, IsActive: true}, Bins: []string{"A1"}},
		},
		Items:           []domain.Item{{SKU: "X", ReorderPoint: 10, UnitCost: 1}},
		StagingLocation: "STAGE",
	})
	require.NoError(t, err)

	var events []domain.DomainEvent
	w.Bus.Subscribe(func(ev domain.DomainEvent) { events = append(events, ev) })

	_, err = w.Processor.Apply(domain.Movement{Type: domain.MovementInbound, SKU: "X", ToLocation: "A1", Quantity: 8, ReferenceID: "rcv-1"})
	require.NoError(t, err)
	order, err := w.Orders.Create("acme", domain.PriorityUrgent, []domain.OrderLine{{SKU: "X", Quantity: 3}})
	require.NoError(t, err)
	_, err = w.Orders.Transition(order.ID, domain.OrderStatusAllocated, domain.TransitionPayload{})
	require.NoError(t, err)

	for _, ev := range events {
		require.NoError(t, repo.Project(ctx, ev), ev.EventType())
	}
	// replaying converges to the same documents
	for _, ev := range events {
		require.NoError(t, repo.Project(ctx, ev))
	}

	rec, err := repo.FindRecord(ctx, "X", "A1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 8, rec.QuantityOnHand)
	assert.Equal(t, 3, rec.QuantityReserved)
	assert.Equal(t, domain.StockStatusLowStock, rec.Status)
	assert.NotNil(t, rec.LowStockDetectedAt)

	low, err := repo.ListRecordsByStatus(ctx, domain.StockStatusLowStock)
	require.NoError(t, err)
	assert.Len(t, low, 1)

	view, err := repo.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, domain.OrderStatusAllocated, view.Status)
	assert.Equal(t, order.ID, view.ID)

	open, err := repo.ListOpenTasks(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, open, "low stock raised a replenish task")

	missing, err := repo.FindOrder(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestProjectionRepository_StaleSnapshotsDoNotOverwrite(t *testing.T) {
	client := wmstesting.StartMongo(t)
	ctx := context.Background()
	repo := NewProjectionRepository(client.Database(), nil)

	older := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	newer := older.Add(time.Second)

	allocated := &domain.OrderTransitionedEvent{
		Order:          domain.Order{ID: "ord-1", Customer: "acme", Status: domain.OrderStatusAllocated, UpdatedAt: newer},
		From:           domain.OrderStatusPending,
		To:             domain.OrderStatusAllocated,
		TransitionedAt: newer,
	}
	pending := &domain.OrderTransitionedEvent{
		Order:          domain.Order{ID: "ord-1", Customer: "acme", Status: domain.OrderStatusPending, UpdatedAt: older},
		To:             domain.OrderStatusPending,
		TransitionedAt: older,
	}
	require.NoError(t, repo.Project(ctx, allocated))
	require.NoError(t, repo.Project(ctx, pending), "stale snapshot is dropped without error")

	view, err := repo.FindOrder(ctx, "ord-1")
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, domain.OrderStatusAllocated, view.Status)

	require.NoError(t, repo.Project(ctx, &domain.RecordChangedEvent{
		SKU: "X", Location: "A1", QuantityOnHand: 5, ChangedAt: newer,
	}))
	require.NoError(t, repo.Project(ctx, &domain.RecordChangedEvent{
		SKU: "X", Location: "A1", QuantityOnHand: 50, ChangedAt: older,
	}))

	rec, err := repo.FindRecord(ctx, "X", "A1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 5, rec.QuantityOnHand)
}
