package domain

import (
	"fmt"
	"sort"
)

// ZoneType classifies a warehouse zone
type ZoneType string

const (
	ZoneTypeReceiving   ZoneType = "receiving"
	ZoneTypeStorage     ZoneType = "storage"
	ZoneTypePicking     ZoneType = "picking"
	ZoneTypePacking     ZoneType = "packing"
	ZoneTypeShipping    ZoneType = "shipping"
	ZoneTypeColdStorage ZoneType = "cold_storage"
	ZoneTypeHazmat      ZoneType = "hazmat"
	ZoneTypeReturns     ZoneType = "returns"
)

// IsValid checks if the zone type is one of the known values
func (t ZoneType) IsValid() bool {
	switch t {
	case ZoneTypeReceiving, ZoneTypeStorage, ZoneTypePicking, ZoneTypePacking,
		ZoneTypeShipping, ZoneTypeColdStorage, ZoneTypeHazmat, ZoneTypeReturns:
		return true
	}
	return false
}

// HoldsStock reports whether bins of this zone type hold sellable stock.
// Only these bins are allocated from and replenished.
func (t ZoneType) HoldsStock() bool {
	switch t {
	case ZoneTypeStorage, ZoneTypePicking, ZoneTypeColdStorage, ZoneTypeHazmat:
		return true
	}
	return false
}

// Zone is a capacity-tracked area of the warehouse
type Zone struct {
	ID            string   `json:"id"`
	Code          string   `json:"code"`
	Type          ZoneType `json:"type"`
	CapacityUnits int      `json:"capacityUnits"`
	UsedUnits     int      `json:"usedUnits"`
	BinCount      int      `json:"binCount"`
	IsActive      bool     `json:"isActive"`
}

// Utilization returns usedUnits / capacityUnits, 0 for zones without capacity
func (z Zone) Utilization() float64 {
	if z.CapacityUnits <= 0 {
		return 0
	}
	return float64(z.UsedUnits) / float64(z.CapacityUnits)
}

// Bin is an addressable storage slot within a zone
type Bin struct {
	ID     string `json:"id"`
	ZoneID string `json:"zoneId"`
}

// CapacityTracker holds zone capacity and bin reference data. Like the
// Ledger it relies on the Processor for serialization.
type CapacityTracker struct {
	zones map[string]*Zone
	bins  map[string]Bin
}

// NewCapacityTracker creates an empty tracker
func NewCapacityTracker() *CapacityTracker {
	return &CapacityTracker{
		zones: make(map[string]*Zone),
		bins:  make(map[string]Bin),
	}
}

// AddZone registers a zone definition. BinCount is maintained by AddBin.
func (c *CapacityTracker) AddZone(z Zone) error {
	if z.ID == "" {
		return validationf("zone id is required")
	}
	if !z.Type.IsValid() {
		return validationf("zone %s has unknown type %q", z.ID, z.Type)
	}
	if z.CapacityUnits < 0 || z.UsedUnits < 0 || z.UsedUnits > z.CapacityUnits {
		return validationf("zone %s has invalid capacity %d/%d", z.ID, z.UsedUnits, z.CapacityUnits)
	}
	if _, exists := c.zones[z.ID]; exists {
		return validationf("zone %s already defined", z.ID)
	}
	z.BinCount = 0
	c.zones[z.ID] = &z
	return nil
}

// AddBin registers a bin in an existing zone
func (c *CapacityTracker) AddBin(b Bin) error {
	zone, ok := c.zones[b.ZoneID]
	if !ok {
		return fmt.Errorf("bin %s: %w", b.ID, ErrZoneNotFound)
	}
	if b.ID == "" {
		return validationf("bin id is required")
	}
	if _, exists := c.bins[b.ID]; exists {
		return validationf("bin %s already defined", b.ID)
	}
	c.bins[b.ID] = b
	zone.BinCount++
	return nil
}

// Zone returns a copy of the zone
func (c *CapacityTracker) Zone(id string) (Zone, bool) {
	z, ok := c.zones[id]
	if !ok {
		return Zone{}, false
	}
	return *z, true
}

// Zones returns copies of all zones ordered by id
func (c *CapacityTracker) Zones() []Zone {
	out := make([]Zone, 0, len(c.zones))
	for _, z := range c.zones {
		out = append(out, *z)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Bin returns the bin definition
func (c *CapacityTracker) Bin(id string) (Bin, bool) {
	b, ok := c.bins[id]
	return b, ok
}

// BinsInZone returns the bin ids of a zone ordered by id
func (c *CapacityTracker) BinsInZone(zoneID string) []string {
	var out []string
	for id, b := range c.bins {
		if b.ZoneID == zoneID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// zoneFor resolves the zone owning a bin
func (c *CapacityTracker) zoneFor(location string) (*Zone, error) {
	b, ok := c.bins[location]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLocation, location)
	}
	z, ok := c.zones[b.ZoneID]
	if !ok {
		return nil, fmt.Errorf("bin %s: %w", location, ErrZoneNotFound)
	}
	return z, nil
}

// capacityTxn stages used-unit deltas per zone and validates them cumulatively.
type capacityTxn struct {
	c      *CapacityTracker
	deltas map[string]int
	order  []string
}

func (c *CapacityTracker) begin() *capacityTxn {
	return &capacityTxn{c: c, deltas: make(map[string]int)}
}

func (t *capacityTxn) apply(location string, delta int) error {
	zone, err := t.c.zoneFor(location)
	if err != nil {
		return err
	}
	if delta == 0 {
		return nil
	}

	pending := t.deltas[zone.ID]
	used := zone.UsedUnits + pending + delta
	if used > zone.CapacityUnits {
		return &CapacityError{ZoneID: zone.ID, Capacity: zone.CapacityUnits, Used: zone.UsedUnits + pending, Delta: delta}
	}
	if used < 0 {
		return fmt.Errorf("%w: zone %s used units would drop to %d", ErrInvariantViolation, zone.ID, used)
	}

	if _, seen := t.deltas[zone.ID]; !seen {
		t.order = append(t.order, zone.ID)
	}
	t.deltas[zone.ID] = pending + delta
	return nil
}

func (t *capacityTxn) commit() []Zone {
	changed := make([]Zone, 0, len(t.order))
	for _, id := range t.order {
		if t.deltas[id] == 0 {
			continue
		}
		zone := t.c.zones[id]
		zone.UsedUnits += t.deltas[id]
		changed = append(changed, *zone)
	}
	return changed
}

func (c *CapacityTracker) setActive(zoneID string, active bool) (Zone, bool, error) {
	zone, ok := c.zones[zoneID]
	if !ok {
		return Zone{}, false, ErrZoneNotFound
	}
	changed := zone.IsActive != active
	zone.IsActive = active
	return *zone, changed, nil
}
