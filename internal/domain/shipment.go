package domain

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ShipmentStatus is the lifecycle state of an inbound shipment
type ShipmentStatus string

const (
	ShipmentStatusPending   ShipmentStatus = "pending"
	ShipmentStatusInTransit ShipmentStatus = "in_transit"
	ShipmentStatusReceiving ShipmentStatus = "receiving"
	ShipmentStatusPutaway   ShipmentStatus = "putaway"
	ShipmentStatusCompleted ShipmentStatus = "completed"
	ShipmentStatusCancelled ShipmentStatus = "cancelled"
)

var shipmentFlow = []ShipmentStatus{
	ShipmentStatusPending, ShipmentStatusInTransit, ShipmentStatusReceiving,
	ShipmentStatusPutaway, ShipmentStatusCompleted,
}

// IsValid checks if the status is one of the known values
func (s ShipmentStatus) IsValid() bool {
	return s == ShipmentStatusCancelled || s.step() >= 0
}

// IsTerminal reports whether no further transition is possible
func (s ShipmentStatus) IsTerminal() bool {
	return s == ShipmentStatusCompleted || s == ShipmentStatusCancelled
}

func (s ShipmentStatus) step() int {
	for i, st := range shipmentFlow {
		if st == s {
			return i
		}
	}
	return -1
}

func (s ShipmentStatus) next() ShipmentStatus {
	i := s.step()
	if i < 0 || i+1 >= len(shipmentFlow) {
		return ""
	}
	return shipmentFlow[i+1]
}

// expectsIncoming reports whether the shipment's lines count as incoming stock
func (s ShipmentStatus) expectsIncoming() bool {
	i := s.step()
	return i >= ShipmentStatusInTransit.step() && i <= ShipmentStatusPutaway.step()
}

// ShipmentLine is one expected SKU and the bin it is put away to
type ShipmentLine struct {
	SKU             string `json:"sku"`
	Quantity        int    `json:"quantity"`
	PutawayLocation string `json:"putawayLocation"`
	ReceivedUnits   int    `json:"receivedUnits"`
	PutawayTaskID   string `json:"putawayTaskId,omitempty"`
	PutawayDone     bool   `json:"putawayDone"`
}

// Shipment is an inbound shipment moving through receiving and putaway
type Shipment struct {
	ID              string         `json:"id"`
	PONumber        string         `json:"poNumber"`
	Supplier        string         `json:"supplier"`
	ExpectedDate    time.Time      `json:"expectedDate"`
	Status          ShipmentStatus `json:"status"`
	Lines           []ShipmentLine `json:"lines"`
	TotalUnits      int            `json:"totalUnits"`
	ReceivedUnits   int            `json:"receivedUnits"`
	StagingLocation string         `json:"stagingLocation"`
	ReceiveTaskID   string         `json:"receiveTaskId,omitempty"`
	History         []StatusChange `json:"history"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

func (s *Shipment) clone() Shipment {
	out := *s
	out.Lines = append([]ShipmentLine(nil), s.Lines...)
	out.History = append([]StatusChange(nil), s.History...)
	return out
}

func (s *Shipment) putawayTaskIDs() []string {
	ids := make([]string, 0, len(s.Lines))
	for _, l := range s.Lines {
		ids = append(ids, l.PutawayTaskID)
	}
	return ids
}

// NewShipmentLine is the input for one expected shipment line
type NewShipmentLine struct {
	SKU             string `json:"sku"`
	Quantity        int    `json:"quantity"`
	PutawayLocation string `json:"putawayLocation"`
}

type shipmentEntry struct {
	mu       sync.Mutex
	shipment Shipment
}

// ShipmentBook runs the shipment receiving state machine, serialized per shipment.
type ShipmentBook struct {
	mu        sync.RWMutex
	shipments map[string]*shipmentEntry
	processor *Processor
	scheduler *Scheduler
	staging   string
	bus       *EventBus
	now       func() time.Time
	newID     func() string
}

// NewShipmentBook creates the receiving state machine. staging is the bin
// received units land in before putaway.
func NewShipmentBook(processor *Processor, scheduler *Scheduler, staging string, bus *EventBus, now func() time.Time, newID func() string) *ShipmentBook {
	return &ShipmentBook{
		shipments: make(map[string]*shipmentEntry),
		processor: processor,
		scheduler: scheduler,
		staging:   staging,
		bus:       bus,
		now:       now,
		newID:     newID,
	}
}

// Create registers a pending shipment
func (b *ShipmentBook) Create(poNumber, supplier string, expectedDate time.Time, lines []NewShipmentLine) (Shipment, error) {
	if poNumber == "" || supplier == "" {
		return Shipment{}, validationf("poNumber and supplier are required")
	}
	if len(lines) == 0 {
		return Shipment{}, validationf("at least one line is required")
	}

	seen := make(map[string]bool, len(lines))
	out := make([]ShipmentLine, 0, len(lines))
	total := 0
	for _, l := range lines {
		if l.SKU == "" {
			return Shipment{}, validationf("line sku is required")
		}
		if seen[l.SKU] {
			return Shipment{}, validationf("sku %s appears on more than one line", l.SKU)
		}
		seen[l.SKU] = true
		if l.Quantity <= 0 {
			return Shipment{}, ErrInvalidQuantity
		}
		if _, ok := b.processor.Bin(l.PutawayLocation); !ok {
			return Shipment{}, fmt.Errorf("%w: putaway %s", ErrUnknownLocation, l.PutawayLocation)
		}
		if l.PutawayLocation == b.staging {
			return Shipment{}, validationf("sku %s putaway location is the staging bin", l.SKU)
		}
		out = append(out, ShipmentLine{SKU: l.SKU, Quantity: l.Quantity, PutawayLocation: l.PutawayLocation})
		total += l.Quantity
	}

	at := b.now().UTC()
	shipment := Shipment{
		ID:              b.newID(),
		PONumber:        poNumber,
		Supplier:        supplier,
		ExpectedDate:    expectedDate.UTC(),
		Status:          ShipmentStatusPending,
		Lines:           out,
		TotalUnits:      total,
		StagingLocation: b.staging,
		CreatedAt:       at,
		UpdatedAt:       at,
	}

	b.mu.Lock()
	b.shipments[shipment.ID] = &shipmentEntry{shipment: shipment}
	b.mu.Unlock()

	b.bus.Publish(&ShipmentTransitionedEvent{Shipment: shipment.clone(), To: ShipmentStatusPending, TransitionedAt: at})
	return shipment.clone(), nil
}

func (b *ShipmentBook) entry(id string) (*shipmentEntry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.shipments[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrShipmentNotFound)
	}
	return e, nil
}

// Get returns a shipment snapshot
func (b *ShipmentBook) Get(id string) (Shipment, error) {
	e, err := b.entry(id)
	if err != nil {
		return Shipment{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shipment.clone(), nil
}

// List returns shipments, optionally filtered by status, oldest first
func (b *ShipmentBook) List(status ShipmentStatus) []Shipment {
	b.mu.RLock()
	entries := make([]*shipmentEntry, 0, len(b.shipments))
	for _, e := range b.shipments {
		entries = append(entries, e)
	}
	b.mu.RUnlock()

	out := make([]Shipment, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if status == "" || e.shipment.Status == status {
			out = append(out, e.shipment.clone())
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

// Transition moves a shipment to target: the next state in the flow, or
// cancelled from any non-terminal state.
func (b *ShipmentBook) Transition(id string, target ShipmentStatus) (Shipment, error) {
	if !target.IsValid() {
		return Shipment{}, validationf("unknown shipment status %q", target)
	}
	e, err := b.entry(id)
	if err != nil {
		return Shipment{}, err
	}

	e.mu.Lock()
	s := &e.shipment
	from := s.Status
	if err := b.apply(s, target); err != nil {
		e.mu.Unlock()
		return Shipment{}, err
	}
	at := b.now().UTC()
	s.Status = target
	s.UpdatedAt = at
	s.History = append(s.History, StatusChange{From: string(from), To: string(target), At: at})
	snap := s.clone()
	e.mu.Unlock()

	b.bus.Publish(&ShipmentTransitionedEvent{Shipment: snap, From: from, To: target, TransitionedAt: at})
	return snap, nil
}

func (b *ShipmentBook) apply(s *Shipment, target ShipmentStatus) error {
	if target == ShipmentStatusCancelled {
		if s.Status.IsTerminal() {
			return b.transitionError(s, target)
		}
		if s.Status.expectsIncoming() {
			for _, l := range s.Lines {
				if l.PutawayDone {
					continue
				}
				if err := b.processor.AdjustIncoming(l.SKU, l.PutawayLocation, -l.Quantity); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if s.Status.next() != target {
		return b.transitionError(s, target)
	}

	switch target {
	case ShipmentStatusInTransit:
		for _, l := range s.Lines {
			if err := b.processor.AdjustIncoming(l.SKU, l.PutawayLocation, l.Quantity); err != nil {
				return err
			}
		}

	case ShipmentStatusReceiving:
		task, err := b.scheduler.CreateTask(TaskSpec{
			Type:       TaskTypeReceive,
			ToLocation: s.StagingLocation,
			Quantity:   s.TotalUnits,
			ParentID:   s.ID,
		})
		if err != nil {
			return err
		}
		s.ReceiveTaskID = task.ID

	case ShipmentStatusPutaway:
		if s.ReceivedUnits != s.TotalUnits {
			return preconditionf("shipment %s received %d of %d units", s.ID, s.ReceivedUnits, s.TotalUnits)
		}
		if err := b.scheduler.closeIfOpen(s.ReceiveTaskID); err != nil {
			return err
		}
		for i := range s.Lines {
			l := &s.Lines[i]
			task, err := b.scheduler.CreateTask(TaskSpec{
				Type:         TaskTypePutaway,
				FromLocation: s.StagingLocation,
				ToLocation:   l.PutawayLocation,
				SKU:          l.SKU,
				Quantity:     l.Quantity,
				ParentID:     s.ID,
			})
			if err != nil {
				return err
			}
			l.PutawayTaskID = task.ID
		}

	case ShipmentStatusCompleted:
		if !b.scheduler.TasksByStatus(s.putawayTaskIDs(), TaskStatusCompleted) {
			return preconditionf("shipment %s has open putaway tasks", s.ID)
		}
	}
	return nil
}

func (b *ShipmentBook) transitionError(s *Shipment, target ShipmentStatus) error {
	return &TransitionError{Entity: "shipment", ID: s.ID, From: string(s.Status), To: string(target)}
}

// Receive records units arriving for a shipment in receiving and applies the
// inbound movement to the staging bin. A replayed referenceId credits nothing.
func (b *ShipmentBook) Receive(id, sku string, quantity int, referenceID string) (Shipment, MovementResult, error) {
	if quantity <= 0 {
		return Shipment{}, MovementResult{}, ErrInvalidQuantity
	}
	e, err := b.entry(id)
	if err != nil {
		return Shipment{}, MovementResult{}, err
	}

	e.mu.Lock()
	s := &e.shipment
	if s.Status != ShipmentStatusReceiving {
		e.mu.Unlock()
		return Shipment{}, MovementResult{}, fmt.Errorf("%w: shipment %s is %s, units are received only while receiving",
			ErrInvalidTransition, s.ID, s.Status)
	}

	line := -1
	for i := range s.Lines {
		if s.Lines[i].SKU == sku {
			line = i
			break
		}
	}
	if line < 0 {
		e.mu.Unlock()
		return Shipment{}, MovementResult{}, validationf("sku %s is not on shipment %s", sku, s.ID)
	}
	if referenceID == "" {
		referenceID = fmt.Sprintf("%s:receive:%s:%s", s.ID, sku, uuid.NewString())
	} else if prev, ok := b.processor.Applied(referenceID); ok {
		snap := s.clone()
		e.mu.Unlock()
		return snap, prev, nil
	}
	l := &s.Lines[line]
	if l.ReceivedUnits+quantity > l.Quantity {
		e.mu.Unlock()
		return Shipment{}, MovementResult{}, validationf("receiving %d of %s exceeds the expected %d (already received %d)",
			quantity, sku, l.Quantity, l.ReceivedUnits)
	}

	result, err := b.processor.Apply(Movement{
		Type:        MovementInbound,
		SKU:         sku,
		ToLocation:  s.StagingLocation,
		Quantity:    quantity,
		ReferenceID: referenceID,
	})
	if err != nil {
		e.mu.Unlock()
		return Shipment{}, MovementResult{}, err
	}
	if result.Replayed {
		snap := s.clone()
		e.mu.Unlock()
		return snap, result, nil
	}

	at := b.now().UTC()
	l.ReceivedUnits += quantity
	s.ReceivedUnits += quantity
	s.UpdatedAt = at
	snap := s.clone()
	e.mu.Unlock()

	b.bus.Publish(&ShipmentTransitionedEvent{Shipment: snap, From: snap.Status, To: snap.Status, TransitionedAt: at})
	return snap, result, nil
}

// completePutaway executes the staging to bin transfer for a putaway task.
func (b *ShipmentBook) completePutaway(task Task) error {
	e, err := b.entry(task.ParentID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	s := &e.shipment
	if s.Status != ShipmentStatusPutaway {
		e.mu.Unlock()
		return preconditionf("shipment %s is %s, putaway tasks complete only during putaway", s.ID, s.Status)
	}
	var line *ShipmentLine
	for i := range s.Lines {
		if s.Lines[i].PutawayTaskID == task.ID {
			line = &s.Lines[i]
			break
		}
	}
	if line == nil {
		e.mu.Unlock()
		return fmt.Errorf("%w: task %s is not a putaway task of shipment %s", ErrInvariantViolation, task.ID, s.ID)
	}
	if line.PutawayDone {
		e.mu.Unlock()
		return nil
	}

	if _, err := b.processor.Apply(Movement{
		Type:         MovementTransfer,
		SKU:          line.SKU,
		FromLocation: task.FromLocation,
		ToLocation:   task.ToLocation,
		Quantity:     task.Quantity,
		ReferenceID:  task.ID + ":putaway",
	}); err != nil {
		e.mu.Unlock()
		return err
	}
	if err := b.processor.AdjustIncoming(line.SKU, line.PutawayLocation, -line.Quantity); err != nil {
		e.mu.Unlock()
		return err
	}

	at := b.now().UTC()
	line.PutawayDone = true
	s.UpdatedAt = at
	snap := s.clone()
	e.mu.Unlock()

	b.bus.Publish(&ShipmentTransitionedEvent{Shipment: snap, From: snap.Status, To: snap.Status, TransitionedAt: at})
	return nil
}
