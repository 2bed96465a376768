package domain

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// OrderStatus is the lifecycle state of an outbound order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusAllocated OrderStatus = "allocated"
	OrderStatusPicking   OrderStatus = "picking"
	OrderStatusPicked    OrderStatus = "picked"
	OrderStatusPacking   OrderStatus = "packing"
	OrderStatusPacked    OrderStatus = "packed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderFlow = []OrderStatus{
	OrderStatusPending, OrderStatusAllocated, OrderStatusPicking, OrderStatusPicked,
	OrderStatusPacking, OrderStatusPacked, OrderStatusShipped,
}

// IsValid checks if the status is one of the known values
func (s OrderStatus) IsValid() bool {
	return s == OrderStatusCancelled || s.step() >= 0
}

// IsTerminal reports whether no further transition is possible
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusShipped || s == OrderStatusCancelled
}

func (s OrderStatus) step() int {
	for i, st := range orderFlow {
		if st == s {
			return i
		}
	}
	return -1
}

func (s OrderStatus) next() OrderStatus {
	i := s.step()
	if i < 0 || i+1 >= len(orderFlow) {
		return ""
	}
	return orderFlow[i+1]
}

// holdsReservation reports whether stock is reserved for the order in this state
func (s OrderStatus) holdsReservation() bool {
	i := s.step()
	return i >= OrderStatusAllocated.step() && i <= OrderStatusPacked.step()
}

// OrderLine is one requested SKU quantity
type OrderLine struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// StatusChange is one entry in an aggregate's status history
type StatusChange struct {
	From string    `json:"from"`
	To   string    `json:"to"`
	At   time.Time `json:"at"`
}

// Order is an outbound order moving through pick, pack and ship
type Order struct {
	ID             string         `json:"id"`
	Customer       string         `json:"customer"`
	Priority       Priority       `json:"priority"`
	Status         OrderStatus    `json:"status"`
	Lines          []OrderLine    `json:"lines"`
	TotalUnits     int            `json:"totalUnits"`
	PickedUnits    int            `json:"pickedUnits"`
	Allocations    []Allocation   `json:"allocations,omitempty"`
	Assignee       string         `json:"assignee,omitempty"`
	Carrier        string         `json:"carrier,omitempty"`
	TrackingNumber string         `json:"trackingNumber,omitempty"`
	PickTaskIDs    []string       `json:"pickTaskIds,omitempty"`
	PackTaskID     string         `json:"packTaskId,omitempty"`
	ShipTaskID     string         `json:"shipTaskId,omitempty"`
	History        []StatusChange `json:"history"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

func (o *Order) clone() Order {
	out := *o
	out.Lines = append([]OrderLine(nil), o.Lines...)
	out.Allocations = append([]Allocation(nil), o.Allocations...)
	out.PickTaskIDs = append([]string(nil), o.PickTaskIDs...)
	out.History = append([]StatusChange(nil), o.History...)
	return out
}

// TransitionPayload carries the data some transitions require
type TransitionPayload struct {
	Assignee       string `json:"assignee,omitempty"`
	Carrier        string `json:"carrier,omitempty"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
}

type orderEntry struct {
	mu    sync.Mutex
	order Order
}

// OrderBook runs the order fulfillment state machine. Transitions are
// serialized per order; different orders transition concurrently.
type OrderBook struct {
	mu        sync.RWMutex
	orders    map[string]*orderEntry
	processor *Processor
	scheduler *Scheduler
	bus       *EventBus
	now       func() time.Time
	newID     func() string
}

// NewOrderBook creates the order state machine over the given processor and scheduler
func NewOrderBook(processor *Processor, scheduler *Scheduler, bus *EventBus, now func() time.Time, newID func() string) *OrderBook {
	return &OrderBook{
		orders:    make(map[string]*orderEntry),
		processor: processor,
		scheduler: scheduler,
		bus:       bus,
		now:       now,
		newID:     newID,
	}
}

// Create registers a pending order
func (b *OrderBook) Create(customer string, priority Priority, lines []OrderLine) (Order, error) {
	if customer == "" {
		return Order{}, validationf("customer is required")
	}
	if priority == "" {
		priority = PriorityNormal
	}
	if !priority.IsValid() {
		return Order{}, ErrInvalidPriority
	}
	if _, err := mergeLines(lines); err != nil {
		return Order{}, err
	}

	total := 0
	for _, l := range lines {
		total += l.Quantity
	}
	at := b.now().UTC()
	order := Order{
		ID:         b.newID(),
		Customer:   customer,
		Priority:   priority,
		Status:     OrderStatusPending,
		Lines:      append([]OrderLine(nil), lines...),
		TotalUnits: total,
		CreatedAt:  at,
		UpdatedAt:  at,
	}

	b.mu.Lock()
	b.orders[order.ID] = &orderEntry{order: order}
	b.mu.Unlock()

	b.bus.Publish(&OrderTransitionedEvent{Order: order.clone(), To: OrderStatusPending, TransitionedAt: at})
	return order.clone(), nil
}

func (b *OrderBook) entry(id string) (*orderEntry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.orders[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrOrderNotFound)
	}
	return e, nil
}

// Get returns an order snapshot
func (b *OrderBook) Get(id string) (Order, error) {
	e, err := b.entry(id)
	if err != nil {
		return Order{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.order.clone(), nil
}

// List returns orders, optionally filtered by status, oldest first
func (b *OrderBook) List(status OrderStatus) []Order {
	b.mu.RLock()
	entries := make([]*orderEntry, 0, len(b.orders))
	for _, e := range b.orders {
		entries = append(entries, e)
	}
	b.mu.RUnlock()

	out := make([]Order, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if status == "" || e.order.Status == status {
			out = append(out, e.order.clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Transition moves an order to target. Only the next state in the flow or
// cancelled (from any non-terminal state) is accepted. A failed guard leaves
// the order unchanged.
func (b *OrderBook) Transition(id string, target OrderStatus, payload TransitionPayload) (Order, error) {
	if !target.IsValid() {
		return Order{}, validationf("unknown order status %q", target)
	}
	e, err := b.entry(id)
	if err != nil {
		return Order{}, err
	}

	e.mu.Lock()
	o := &e.order
	from := o.Status
	if err := b.apply(o, target, payload); err != nil {
		e.mu.Unlock()
		return Order{}, err
	}
	at := b.now().UTC()
	o.Status = target
	o.UpdatedAt = at
	o.History = append(o.History, StatusChange{From: string(from), To: string(target), At: at})
	snap := o.clone()
	e.mu.Unlock()

	b.bus.Publish(&OrderTransitionedEvent{Order: snap, From: from, To: target, TransitionedAt: at})
	return snap, nil
}

func (b *OrderBook) apply(o *Order, target OrderStatus, payload TransitionPayload) error {
	if target == OrderStatusCancelled {
		if o.Status.IsTerminal() {
			return b.transitionError(o, target)
		}
		if o.Status.holdsReservation() {
			if err := b.processor.Release(o.Allocations); err != nil {
				return err
			}
			o.Allocations = nil
		}
		return nil
	}
	if o.Status.next() != target {
		return b.transitionError(o, target)
	}

	switch target {
	case OrderStatusAllocated:
		allocations, err := b.processor.Allocate(o.ID, o.Lines)
		if err != nil {
			return err
		}
		o.Allocations = allocations

	case OrderStatusPicking:
		if payload.Assignee == "" {
			return ErrAssigneeRequired
		}
		ids := make([]string, 0, len(o.Allocations))
		for _, a := range o.Allocations {
			task, err := b.scheduler.CreateTask(TaskSpec{
				Type:         TaskTypePick,
				Priority:     o.Priority,
				FromLocation: a.Location,
				SKU:          a.SKU,
				Quantity:     a.Quantity,
				Assignee:     payload.Assignee,
				ParentID:     o.ID,
			})
			if err != nil {
				return err
			}
			ids = append(ids, task.ID)
		}
		o.Assignee = payload.Assignee
		o.PickTaskIDs = ids

	case OrderStatusPicked:
		if !b.scheduler.TasksByStatus(o.PickTaskIDs, TaskStatusCompleted) {
			return preconditionf("order %s has open pick tasks", o.ID)
		}
		if o.PickedUnits != o.TotalUnits {
			return preconditionf("order %s picked %d of %d units", o.ID, o.PickedUnits, o.TotalUnits)
		}

	case OrderStatusPacking:
		task, err := b.scheduler.CreateTask(TaskSpec{
			Type:     TaskTypePack,
			Priority: o.Priority,
			Quantity: o.TotalUnits,
			ParentID: o.ID,
		})
		if err != nil {
			return err
		}
		o.PackTaskID = task.ID

	case OrderStatusPacked:
		if err := b.scheduler.closeIfOpen(o.PackTaskID); err != nil {
			return err
		}
		task, err := b.scheduler.CreateTask(TaskSpec{
			Type:     TaskTypeShip,
			Priority: o.Priority,
			Quantity: o.TotalUnits,
			ParentID: o.ID,
		})
		if err != nil {
			return err
		}
		o.ShipTaskID = task.ID

	case OrderStatusShipped:
		carrier, err := NewCarrier(payload.Carrier)
		if err != nil {
			return err
		}
		tracking, err := NewTrackingNumberForCarrier(payload.TrackingNumber, carrier)
		if err != nil {
			return err
		}
		movements := make([]Movement, 0, len(o.Allocations))
		for _, a := range o.Allocations {
			movements = append(movements, Movement{
				Type:         MovementOutbound,
				SKU:          a.SKU,
				FromLocation: a.Location,
				Quantity:     a.Quantity,
				ReferenceID:  fmt.Sprintf("%s:ship:%s@%s", o.ID, a.SKU, a.Location),
				Reserved:     true,
			})
		}
		if _, err := b.processor.ApplyBatch(movements); err != nil {
			return err
		}
		if err := b.scheduler.closeIfOpen(o.ShipTaskID); err != nil {
			return err
		}
		o.Carrier = carrier.Code()
		o.TrackingNumber = tracking.Value()
	}
	return nil
}

func (b *OrderBook) transitionError(o *Order, target OrderStatus) error {
	return &TransitionError{Entity: "order", ID: o.ID, From: string(o.Status), To: string(target)}
}

// creditPicked records picked units when a pick task completes.
func (b *OrderBook) creditPicked(task Task) error {
	e, err := b.entry(task.ParentID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	o := &e.order
	if o.Status != OrderStatusPicking {
		e.mu.Unlock()
		return preconditionf("order %s is %s, pick tasks complete only while picking", o.ID, o.Status)
	}
	if o.PickedUnits+task.Quantity > o.TotalUnits {
		e.mu.Unlock()
		return fmt.Errorf("%w: order %s would pick %d of %d units", ErrInvariantViolation, o.ID, o.PickedUnits+task.Quantity, o.TotalUnits)
	}
	at := b.now().UTC()
	o.PickedUnits += task.Quantity
	o.UpdatedAt = at
	snap := o.clone()
	e.mu.Unlock()

	b.bus.Publish(&OrderTransitionedEvent{Order: snap, From: snap.Status, To: snap.Status, TransitionedAt: at})
	return nil
}
