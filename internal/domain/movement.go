package domain

import (
	"fmt"
	"time"
)

// MovementType classifies a stock movement
type MovementType string

const (
	MovementInbound    MovementType = "inbound"
	MovementOutbound   MovementType = "outbound"
	MovementTransfer   MovementType = "transfer"
	MovementAdjustment MovementType = "adjustment"
)

// IsValid checks if the movement type is one of the known values
func (t MovementType) IsValid() bool {
	switch t {
	case MovementInbound, MovementOutbound, MovementTransfer, MovementAdjustment:
		return true
	}
	return false
}

// Movement is a request to change stock. ReferenceID makes it idempotent.
//
// For adjustments Quantity is the counted on-hand value the record is set to,
// and the location is ToLocation (or FromLocation when ToLocation is empty).
type Movement struct {
	Type         MovementType `json:"type"`
	SKU          string       `json:"sku"`
	FromLocation string       `json:"fromLocation,omitempty"`
	ToLocation   string       `json:"toLocation,omitempty"`
	Quantity     int          `json:"quantity"`
	ReferenceID  string       `json:"referenceId"`
	// Reserved marks an outbound movement that consumes an existing reservation.
	// Only the order book sets it; it is never decoded from callers.
	Reserved   bool       `json:"-"`
	LotNumber  string     `json:"lotNumber,omitempty"`
	ExpiryDate *time.Time `json:"expiryDate,omitempty"`
}

// AdjustmentLocation returns the bin an adjustment targets
func (m Movement) AdjustmentLocation() string {
	if m.ToLocation != "" {
		return m.ToLocation
	}
	return m.FromLocation
}

// Validate checks the movement's shape. Location existence is checked by the Processor.
func (m Movement) Validate() error {
	if !m.Type.IsValid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMovement, m.Type)
	}
	if m.SKU == "" {
		return fmt.Errorf("%w: sku is required", ErrInvalidMovement)
	}
	if m.ReferenceID == "" {
		return fmt.Errorf("%w: referenceId is required", ErrInvalidMovement)
	}

	switch m.Type {
	case MovementInbound:
		if m.ToLocation == "" {
			return fmt.Errorf("%w: inbound requires toLocation", ErrInvalidMovement)
		}
	case MovementOutbound:
		if m.FromLocation == "" {
			return fmt.Errorf("%w: outbound requires fromLocation", ErrInvalidMovement)
		}
	case MovementTransfer:
		if m.FromLocation == "" || m.ToLocation == "" {
			return fmt.Errorf("%w: transfer requires fromLocation and toLocation", ErrInvalidMovement)
		}
		if m.FromLocation == m.ToLocation {
			return fmt.Errorf("%w: transfer source and destination are the same", ErrInvalidMovement)
		}
	case MovementAdjustment:
		if m.AdjustmentLocation() == "" {
			return fmt.Errorf("%w: adjustment requires a location", ErrInvalidMovement)
		}
		if m.FromLocation != "" && m.ToLocation != "" && m.FromLocation != m.ToLocation {
			return fmt.Errorf("%w: adjustment targets a single location", ErrInvalidMovement)
		}
		if m.Quantity < 0 {
			return ErrInvalidQuantity
		}
		return nil
	}

	if m.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// MovementRecord is the journal entry of an applied movement
type MovementRecord struct {
	ReferenceID  string       `json:"referenceId"`
	Type         MovementType `json:"type"`
	SKU          string       `json:"sku"`
	FromLocation string       `json:"fromLocation,omitempty"`
	ToLocation   string       `json:"toLocation,omitempty"`
	Quantity     int          `json:"quantity"`
	SignedDelta  int          `json:"signedDelta"`
	AppliedAt    time.Time    `json:"appliedAt"`
}

// MovementResult is the ledger snapshot returned for an applied movement
type MovementResult struct {
	Record   MovementRecord    `json:"movement"`
	Records  []InventoryRecord `json:"records"`
	Zones    []Zone            `json:"zones"`
	Replayed bool              `json:"replayed"`
}

// Allocation is a reservation held for an order against one bin
type Allocation struct {
	SKU      string `json:"sku"`
	Location string `json:"location"`
	Quantity int    `json:"quantity"`
}
