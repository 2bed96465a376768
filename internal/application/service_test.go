package application

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/warehouse-core/internal/domain"
	"github.com/wms-platform/warehouse-core/pkg/cloudevents"
	"github.com/wms-platform/warehouse-core/pkg/errors"
	"github.com/wms-platform/warehouse-core/pkg/kafka"
	"github.com/wms-platform/warehouse-core/pkg/logging"
	"github.com/wms-platform/warehouse-core/pkg/metrics"
	"github.com/wms-platform/warehouse-core/pkg/outbox"
)

type mockEventStore struct {
	mock.Mock
}

func (m *mockEventStore) SaveAll(ctx context.Context, events []*outbox.Event) error {
	return m.Called(ctx, events).Error(0)
}

type recordingProjector struct {
	mu     sync.Mutex
	events []domain.DomainEvent
	err    error
}

func (p *recordingProjector) Project(ctx context.Context, ev domain.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingProjector) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.EventType())
	}
	return out
}

type fixture struct {
	svc       *WarehouseService
	store     *mockEventStore
	projector *recordingProjector
	metrics   *metrics.Metrics
	saved     [][]*outbox.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	n := 0
	w, err := domain.NewWarehouse(domain.WarehouseConfig{
		Zones: []domain.ZoneDefinition{
			{Zone: domain.Zone{ID: "RCV", Type: domain.ZoneTypeReceiving, CapacityUnits: 1000, IsActive: true}, Bins: []string{"STAGE-01"}},
			{Zone: domain.Zone{ID: "STO-A", Type: domain.ZoneTypeStorage, CapacityUnits: 200, IsActive: true}, Bins: []string{"A1", "A2"}},
		},
		Items:           []domain.Item{{SKU: "X", ReorderPoint: 20, ReorderQuantity: 50, UnitCost: 2}},
		StagingLocation: "STAGE-01",
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	})
	require.NoError(t, err)

	f := &fixture{
		store:     &mockEventStore{},
		projector: &recordingProjector{},
		metrics:   metrics.New(metrics.DefaultConfig("warehouse-core")),
	}
	f.store.On("SaveAll", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { f.saved = append(f.saved, args.Get(1).([]*outbox.Event)) }).
		Return(nil)

	dispatcher := NewEventDispatcher(cloudevents.NewEventFactory(cloudevents.SourceWarehouseCore), f.store, f.projector, logging.NewNop())
	f.svc = NewWarehouseService(w, dispatcher, f.metrics, logging.NewNop())
	return f
}

func (f *fixture) savedTypes() []string {
	var out []string
	for _, batch := range f.saved {
		for _, ev := range batch {
			out = append(out, ev.EventType)
		}
	}
	return out
}

func inbound(sku, bin string, qty int, ref string) domain.Movement {
	return domain.Movement{Type: domain.MovementInbound, SKU: sku, ToLocation: bin, Quantity: qty, ReferenceID: ref}
}

func TestApplyMovement_WritesOutboxAndProjections(t *testing.T) {
	f := newFixture(t)
	ctx := logging.ContextWithCorrelationID(context.Background(), "corr-1")

	result, err := f.svc.ApplyMovement(ctx, inbound("X", "A1", 100, "rcv-1"))
	require.NoError(t, err)
	assert.False(t, result.Replayed)
	assert.Equal(t, 100, result.Record.SignedDelta)

	require.Len(t, f.saved, 1)
	assert.Contains(t, f.savedTypes(), "wms.inventory.record-changed")
	assert.Contains(t, f.savedTypes(), "wms.inventory.movement-applied")
	assert.Contains(t, f.savedTypes(), "wms.zone.changed")

	for _, ev := range f.saved[0] {
		assert.Equal(t, kafka.Topics.WarehouseEvents, ev.Topic)
		ce, err := ev.CloudEvent()
		require.NoError(t, err)
		assert.Equal(t, "corr-1", ce.CorrelationID)
		assert.Equal(t, cloudevents.SourceWarehouseCore, ce.Source)
		assert.NoError(t, ce.Validate())
	}
	assert.ElementsMatch(t, f.savedTypes(), f.projector.types())

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MovementsApplied.WithLabelValues("warehouse-core", "inbound", "applied")))
}

func TestApplyMovement_ReplayIsNotAnError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.ApplyMovement(ctx, inbound("X", "A1", 10, "rcv-1"))
	require.NoError(t, err)
	again, err := f.svc.ApplyMovement(ctx, inbound("X", "A1", 10, "rcv-1"))
	require.NoError(t, err)

	assert.True(t, again.Replayed)
	assert.Equal(t, first.Record, again.Record)
	rec, err := f.svc.GetRecord(ctx, "X", "A1")
	require.NoError(t, err)
	assert.Equal(t, 10, rec.QuantityOnHand)
	assert.Len(t, f.saved, 1, "replay publishes nothing")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MovementsApplied.WithLabelValues("warehouse-core", "inbound", "replayed")))
}

func TestApplyMovement_BusinessFailure(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ApplyMovement(context.Background(), domain.Movement{
		Type: domain.MovementOutbound, SKU: "X", FromLocation: "A1", Quantity: 5, ReferenceID: "ship-1",
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.True(t, IsBusinessError(err))
	assert.Empty(t, f.saved)

	appErr := errors.MapDomainError(err, ErrorMappings()...)
	assert.Equal(t, errors.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, http.StatusConflict, appErr.HTTPStatus)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MovementsApplied.WithLabelValues("warehouse-core", "outbound", errors.CodeInsufficientStock)))
}

func TestApplyMovements_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ApplyMovements(ctx, []domain.Movement{
		inbound("X", "A1", 150, "b-1"),
		inbound("X", "A2", 100, "b-2"),
	})
	require.ErrorIs(t, err, domain.ErrCapacityExceeded)
	assert.Empty(t, f.svc.ListRecords(ctx, "X", ""))

	results, err := f.svc.ApplyMovements(ctx, []domain.Movement{
		inbound("X", "A1", 50, "b-3"),
		inbound("X", "A2", 50, "b-4"),
	})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Len(t, f.svc.Journal(ctx, "X"), 2)
}

func TestOrderLifecycle_ThroughService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.ApplyMovement(ctx, inbound("X", "A1", 100, "rcv-1"))
	require.NoError(t, err)

	order, err := f.svc.CreateOrder(ctx, "acme", domain.PriorityHigh, []domain.OrderLine{{SKU: "X", Quantity: 30}})
	require.NoError(t, err)

	_, err = f.svc.TransitionOrder(ctx, order.ID, domain.OrderStatusPicked, domain.TransitionPayload{})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, errors.CodeInvalidTransition, errorCode(err))

	order, err = f.svc.TransitionOrder(ctx, order.ID, domain.OrderStatusAllocated, domain.TransitionPayload{})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusAllocated, order.Status)

	order, err = f.svc.TransitionOrder(ctx, order.ID, domain.OrderStatusPicking, domain.TransitionPayload{Assignee: "picker-1"})
	require.NoError(t, err)
	require.Len(t, order.PickTaskIDs, 1)

	taskID := order.PickTaskIDs[0]
	_, err = f.svc.StartTask(ctx, taskID)
	require.NoError(t, err)
	_, err = f.svc.CompleteTask(ctx, taskID)
	require.NoError(t, err)

	order, err = f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, order.PickedUnits)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OrderTransitions.WithLabelValues("warehouse-core", "allocated", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OrderTransitions.WithLabelValues("warehouse-core", "picked", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TaskLifecycle.WithLabelValues("warehouse-core", "pick", "completed")))
	assert.Contains(t, f.savedTypes(), "wms.order.transitioned")
	assert.Contains(t, f.savedTypes(), "wms.task.completed")
}

func TestCycleCount_ThroughService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.ApplyMovement(ctx, inbound("X", "A1", 40, "rcv-1"))
	require.NoError(t, err)

	count, err := f.svc.ScheduleCount(ctx, "STO-A", []string{"A1"})
	require.NoError(t, err)
	_, err = f.svc.StartCount(ctx, count.ID)
	require.NoError(t, err)

	variance, err := f.svc.SubmitCount(ctx, count.ID, "A1", "X", 37)
	require.NoError(t, err)
	assert.Equal(t, -3, variance.Delta)

	count, err = f.svc.ApproveCount(ctx, count.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CountStatusCompleted, count.Status)

	rec, err := f.svc.GetRecord(ctx, "X", "A1")
	require.NoError(t, err)
	assert.Equal(t, 37, rec.QuantityOnHand)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CountVariances.WithLabelValues("warehouse-core", "variance")))
	assert.Contains(t, f.savedTypes(), "wms.count.completed")
}

func TestZoneDeactivation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	zone, err := f.svc.SetZoneActive(ctx, "STO-A", false)
	require.NoError(t, err)
	assert.False(t, zone.IsActive)

	_, err = f.svc.ApplyMovement(ctx, inbound("X", "A1", 1, "rcv-1"))
	require.ErrorIs(t, err, domain.ErrZoneInactive)
	assert.Equal(t, errors.CodeValidationError, errorCode(err))

	_, bins, err := f.svc.GetZone(ctx, "STO-A")
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A2"}, bins)
}

func TestDispatcher_StoreFailureDoesNotFailOperation(t *testing.T) {
	store := &mockEventStore{}
	store.On("SaveAll", mock.Anything, mock.Anything).Return(stderrors.New("mongo down"))
	projector := &recordingProjector{err: stderrors.New("projection failed")}
	d := NewEventDispatcher(cloudevents.NewEventFactory("test"), store, projector, nil)

	d.Handle(&domain.ZoneChangedEvent{Zone: domain.Zone{ID: "Z"}, ChangedAt: time.Now()})
	assert.Equal(t, 1, d.Pending())
	d.Flush(context.Background())

	assert.Equal(t, 0, d.Pending())
	store.AssertNumberOfCalls(t, "SaveAll", 1)
	assert.Equal(t, []string{"wms.zone.changed"}, projector.types())
}

// overlapProjector records the largest number of Project calls in flight at once
type overlapProjector struct {
	mu       sync.Mutex
	inFlight int
	maxSeen  int
	count    int
}

func (p *overlapProjector) Project(ctx context.Context, ev domain.DomainEvent) error {
	p.mu.Lock()
	p.inFlight++
	p.count++
	if p.inFlight > p.maxSeen {
		p.maxSeen = p.inFlight
	}
	p.mu.Unlock()

	time.Sleep(time.Millisecond)

	p.mu.Lock()
	p.inFlight--
	p.mu.Unlock()
	return nil
}

func TestDispatcher_ConcurrentFlushesDoNotInterleave(t *testing.T) {
	projector := &overlapProjector{}
	d := NewEventDispatcher(cloudevents.NewEventFactory("test"), nil, projector, nil)
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d.Handle(&domain.ZoneChangedEvent{Zone: domain.Zone{ID: "Z"}, ChangedAt: base.Add(time.Duration(i) * time.Second)})
			d.Flush(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, d.Pending())
	assert.Equal(t, 20, projector.count)
	assert.Equal(t, 1, projector.maxSeen)
}

func TestAggregateType(t *testing.T) {
	tests := []struct {
		event domain.DomainEvent
		want  string
	}{
		{&domain.RecordChangedEvent{}, AggregateInventory},
		{&domain.MovementAppliedEvent{}, AggregateInventory},
		{&domain.ZoneChangedEvent{}, AggregateZone},
		{&domain.OrderTransitionedEvent{}, AggregateOrder},
		{&domain.ShipmentTransitionedEvent{}, AggregateShipment},
		{&domain.TaskEvent{Action: domain.TaskActionAssigned}, AggregateTask},
		{&domain.CountVarianceRecordedEvent{}, AggregateCycleCount},
		{&domain.CycleCountChangedEvent{To: domain.CountStatusCompleted}, AggregateCycleCount},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AggregateType(tt.event), tt.event.EventType())
	}
}

func TestErrorMappings(t *testing.T) {
	tests := []struct {
		err    error
		code   string
		status int
	}{
		{&domain.StockError{SKU: "X"}, errors.CodeInsufficientStock, http.StatusConflict},
		{&domain.AllocationError{OrderID: "o"}, errors.CodeAllocationFailed, http.StatusUnprocessableEntity},
		{&domain.TransitionError{Entity: "order"}, errors.CodeInvalidTransition, http.StatusConflict},
		{&domain.AssignmentError{TaskID: "t"}, errors.CodeAlreadyAssigned, http.StatusConflict},
		{&domain.CapacityError{ZoneID: "z"}, errors.CodeCapacityExceeded, http.StatusConflict},
		{domain.ErrOrderNotFound, errors.CodeNotFound, http.StatusNotFound},
		{domain.ErrInvalidQuantity, errors.CodeValidationError, http.StatusBadRequest},
		{stderrors.New("boom"), errors.CodeInternalError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		appErr := errors.MapDomainError(tt.err, ErrorMappings()...)
		assert.Equal(t, tt.code, appErr.Code, tt.err.Error())
		assert.Equal(t, tt.status, appErr.HTTPStatus, tt.err.Error())
	}
	assert.False(t, IsBusinessError(stderrors.New("boom")))
}
