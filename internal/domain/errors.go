package domain

import (
	"errors"
	"fmt"
)

// Business failure kinds. Callers match them with errors.Is; the typed errors
// below unwrap to one of these.
var (
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrAllocationFailed   = errors.New("allocation failed")
	ErrAlreadyAssigned    = errors.New("task already assigned")
	ErrCapacityExceeded   = errors.New("zone capacity exceeded")
	ErrPreconditionFailed = errors.New("precondition not met")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
)

var (
	ErrInvalidQuantity    = fmt.Errorf("%w: quantity must be positive", ErrValidation)
	ErrInvalidMovement    = fmt.Errorf("%w: invalid movement", ErrValidation)
	ErrUnknownLocation    = fmt.Errorf("%w: unknown location", ErrValidation)
	ErrZoneInactive       = fmt.Errorf("%w: zone is inactive", ErrValidation)
	ErrInvalidPriority    = fmt.Errorf("%w: invalid priority", ErrValidation)
	ErrInvalidCarrier     = fmt.Errorf("%w: invalid carrier", ErrValidation)
	ErrInvalidTracking    = fmt.Errorf("%w: invalid tracking number", ErrValidation)
	ErrAssigneeRequired   = fmt.Errorf("%w: assignee is required", ErrValidation)
	ErrZoneNotFound       = fmt.Errorf("zone %w", ErrNotFound)
	ErrRecordNotFound     = fmt.Errorf("inventory record %w", ErrNotFound)
	ErrOrderNotFound      = fmt.Errorf("order %w", ErrNotFound)
	ErrShipmentNotFound   = fmt.Errorf("shipment %w", ErrNotFound)
	ErrTaskNotFound       = fmt.Errorf("task %w", ErrNotFound)
	ErrCycleCountNotFound = fmt.Errorf("cycle count %w", ErrNotFound)
)

// TransitionError reports a state machine transition attempted out of order.
type TransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition for %s: %s -> %s", e.Entity, e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// StockError reports a ledger delta that would drive on-hand or available negative.
type StockError struct {
	SKU           string
	Location      string
	OnHand        int
	Reserved      int
	DeltaOnHand   int
	DeltaReserved int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s@%s: onHand=%d reserved=%d deltaOnHand=%d deltaReserved=%d",
		e.SKU, e.Location, e.OnHand, e.Reserved, e.DeltaOnHand, e.DeltaReserved)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// CapacityError reports a zone that would overflow its capacity.
type CapacityError struct {
	ZoneID   string
	Capacity int
	Used     int
	Delta    int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("zone %s capacity exceeded: used=%d delta=%d capacity=%d", e.ZoneID, e.Used, e.Delta, e.Capacity)
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExceeded }

// AllocationError reports an order line that cannot be reserved in full.
type AllocationError struct {
	OrderID   string
	SKU       string
	Requested int
	Available int
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("allocation failed for order %s: sku %s requested %d, available %d",
		e.OrderID, e.SKU, e.Requested, e.Available)
}

func (e *AllocationError) Unwrap() error { return ErrAllocationFailed }

// AssignmentError reports a lost assignment race.
type AssignmentError struct {
	TaskID   string
	Status   TaskStatus
	Assignee string
}

func (e *AssignmentError) Error() string {
	return fmt.Sprintf("task %s is %s (assignee %q)", e.TaskID, e.Status, e.Assignee)
}

func (e *AssignmentError) Unwrap() error { return ErrAlreadyAssigned }

func preconditionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPreconditionFailed, fmt.Sprintf(format, args...))
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
