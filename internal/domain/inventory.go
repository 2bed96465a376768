package domain

import (
	"encoding/json"
	"time"
)

// StockStatus is the effective status label of an inventory record
type StockStatus string

const (
	StockStatusInStock    StockStatus = "in_stock"
	StockStatusLowStock   StockStatus = "low_stock"
	StockStatusOutOfStock StockStatus = "out_of_stock"
	StockStatusReserved   StockStatus = "reserved"
	StockStatusDamaged    StockStatus = "damaged"
	StockStatusQuarantine StockStatus = "quarantine"
)

// NeedsReplenishment reports whether the status should trigger a replenish task
func (s StockStatus) NeedsReplenishment() bool {
	return s == StockStatusLowStock || s == StockStatusOutOfStock
}

// StockFlag is an operator-set marker that overrides the derived status
type StockFlag string

const (
	FlagNone       StockFlag = "none"
	FlagDamaged    StockFlag = "damaged"
	FlagQuarantine StockFlag = "quarantine"
	FlagReserved   StockFlag = "reserved"
)

// IsValid checks if the flag is one of the known values
func (f StockFlag) IsValid() bool {
	switch f {
	case FlagNone, FlagDamaged, FlagQuarantine, FlagReserved:
		return true
	}
	return false
}

// flagPrecedence lists flags from strongest to weakest.
var flagPrecedence = []StockFlag{FlagDamaged, FlagQuarantine, FlagReserved}

// StockFlags is the set of operator flags on a record
type StockFlags uint8

func flagBit(f StockFlag) StockFlags {
	switch f {
	case FlagDamaged:
		return 1 << 0
	case FlagQuarantine:
		return 1 << 1
	case FlagReserved:
		return 1 << 2
	}
	return 0
}

// Has reports whether f is set
func (s StockFlags) Has(f StockFlag) bool {
	bit := flagBit(f)
	return bit != 0 && s&bit != 0
}

// With returns the set with f added
func (s StockFlags) With(f StockFlag) StockFlags { return s | flagBit(f) }

// Without returns the set with f removed
func (s StockFlags) Without(f StockFlag) StockFlags { return s &^ flagBit(f) }

// List returns the set flags in precedence order
func (s StockFlags) List() []string {
	out := make([]string, 0, len(flagPrecedence))
	for _, f := range flagPrecedence {
		if s.Has(f) {
			out = append(out, string(f))
		}
	}
	return out
}

// MarshalJSON renders the set as a list of flag names
func (s StockFlags) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

// UnmarshalJSON parses a list of flag names
func (s *StockFlags) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var set StockFlags
	for _, n := range names {
		set = set.With(StockFlag(n))
	}
	*s = set
	return nil
}

// Item holds the catalog defaults applied to records created on first movement
type Item struct {
	SKU             string  `json:"sku"`
	ReorderPoint    int     `json:"reorderPoint"`
	ReorderQuantity int     `json:"reorderQuantity"`
	UnitCost        float64 `json:"unitCost"`
}

// RecordKey identifies an inventory record
type RecordKey struct {
	SKU      string
	Location string
}

// InventoryRecord holds the quantity facts for one SKU in one bin
type InventoryRecord struct {
	SKU              string      `json:"sku"`
	Location         string      `json:"location"`
	QuantityOnHand   int         `json:"quantityOnHand"`
	QuantityReserved int         `json:"quantityReserved"`
	QuantityIncoming int         `json:"quantityIncoming"`
	ReorderPoint     int         `json:"reorderPoint"`
	ReorderQuantity  int         `json:"reorderQuantity"`
	UnitCost         float64     `json:"unitCost"`
	LotNumber        string      `json:"lotNumber,omitempty"`
	ExpiryDate       *time.Time  `json:"expiryDate,omitempty"`
	Flags            StockFlags  `json:"flags"`
	Status           StockStatus `json:"status"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// Key returns the record key
func (r InventoryRecord) Key() RecordKey {
	return RecordKey{SKU: r.SKU, Location: r.Location}
}

// QuantityAvailable is on-hand minus reserved
func (r InventoryRecord) QuantityAvailable() int {
	return r.QuantityOnHand - r.QuantityReserved
}

// DerivedStatus computes the status from quantities alone
func (r InventoryRecord) DerivedStatus() StockStatus {
	available := r.QuantityAvailable()
	switch {
	case available <= 0:
		return StockStatusOutOfStock
	case available <= r.ReorderPoint:
		return StockStatusLowStock
	default:
		return StockStatusInStock
	}
}

// EffectiveStatus applies flag precedence over the derived status:
// damaged > quarantine > reserved > derived.
func (r InventoryRecord) EffectiveStatus() StockStatus {
	switch {
	case r.Flags.Has(FlagDamaged):
		return StockStatusDamaged
	case r.Flags.Has(FlagQuarantine):
		return StockStatusQuarantine
	case r.Flags.Has(FlagReserved):
		return StockStatusReserved
	default:
		return r.DerivedStatus()
	}
}

// Allocatable reports whether order reservations may draw on this record
func (r InventoryRecord) Allocatable() bool {
	return !r.Flags.Has(FlagDamaged) && !r.Flags.Has(FlagQuarantine)
}

// Value is on-hand times unit cost
func (r InventoryRecord) Value() float64 {
	return float64(r.QuantityOnHand) * r.UnitCost
}

func (r *InventoryRecord) refreshStatus(at time.Time) {
	r.Status = r.EffectiveStatus()
	r.UpdatedAt = at
}
