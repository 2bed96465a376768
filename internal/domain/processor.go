package domain

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Processor is the single serialization point for ledger and zone mutations.
// Writers hold the lock for the whole staged transaction; readers take the
// read lock and therefore never observe a partially applied movement.
type Processor struct {
	mu       sync.RWMutex
	ledger   *Ledger
	capacity *CapacityTracker
	applied  map[string]MovementResult
	journal  []MovementRecord
	bus      *EventBus
	now      func() time.Time
}

// NewProcessor creates a processor over the given ledger and capacity tracker
func NewProcessor(ledger *Ledger, capacity *CapacityTracker, bus *EventBus, now func() time.Time) *Processor {
	if now == nil {
		now = time.Now
	}
	return &Processor{
		ledger:   ledger,
		capacity: capacity,
		applied:  make(map[string]MovementResult),
		bus:      bus,
		now:      now,
	}
}

// stockTxn stages ledger and zone changes for one or more movements.
type stockTxn struct {
	p        *Processor
	ledger   *ledgerTxn
	capacity *capacityTxn
}

func (p *Processor) begin() *stockTxn {
	return &stockTxn{p: p, ledger: p.ledger.begin(), capacity: p.capacity.begin()}
}

func (t *stockTxn) requireActive(location string) error {
	zone, err := t.p.capacity.zoneFor(location)
	if err != nil {
		return err
	}
	if !zone.IsActive {
		return fmt.Errorf("%w: %s (bin %s)", ErrZoneInactive, zone.ID, location)
	}
	return nil
}

func (t *stockTxn) requireKnown(location string) error {
	_, err := t.p.capacity.zoneFor(location)
	return err
}

func (t *stockTxn) apply(m Movement) (MovementRecord, error) {
	rec := MovementRecord{
		ReferenceID:  m.ReferenceID,
		Type:         m.Type,
		SKU:          m.SKU,
		FromLocation: m.FromLocation,
		ToLocation:   m.ToLocation,
		Quantity:     m.Quantity,
	}

	switch m.Type {
	case MovementInbound:
		if err := t.requireActive(m.ToLocation); err != nil {
			return rec, err
		}
		if err := t.ledger.applyDelta(m.SKU, m.ToLocation, m.Quantity, 0); err != nil {
			return rec, err
		}
		if err := t.capacity.apply(m.ToLocation, m.Quantity); err != nil {
			return rec, err
		}
		staged := t.ledger.record(m.SKU, m.ToLocation)
		if m.LotNumber != "" {
			staged.LotNumber = m.LotNumber
		}
		if m.ExpiryDate != nil {
			expiry := *m.ExpiryDate
			staged.ExpiryDate = &expiry
		}
		rec.SignedDelta = m.Quantity

	case MovementOutbound:
		if err := t.requireKnown(m.FromLocation); err != nil {
			return rec, err
		}
		releasing := 0
		if m.Reserved {
			releasing = -m.Quantity
		}
		if err := t.ledger.applyDelta(m.SKU, m.FromLocation, -m.Quantity, releasing); err != nil {
			return rec, err
		}
		if err := t.capacity.apply(m.FromLocation, -m.Quantity); err != nil {
			return rec, err
		}
		rec.SignedDelta = -m.Quantity

	case MovementTransfer:
		if err := t.requireKnown(m.FromLocation); err != nil {
			return rec, err
		}
		if err := t.requireActive(m.ToLocation); err != nil {
			return rec, err
		}
		if err := t.ledger.applyDelta(m.SKU, m.FromLocation, -m.Quantity, 0); err != nil {
			return rec, err
		}
		if err := t.ledger.applyDelta(m.SKU, m.ToLocation, m.Quantity, 0); err != nil {
			return rec, err
		}
		if err := t.capacity.apply(m.FromLocation, -m.Quantity); err != nil {
			return rec, err
		}
		if err := t.capacity.apply(m.ToLocation, m.Quantity); err != nil {
			return rec, err
		}
		rec.SignedDelta = m.Quantity

	case MovementAdjustment:
		location := m.AdjustmentLocation()
		if err := t.requireKnown(location); err != nil {
			return rec, err
		}
		delta, err := t.ledger.setOnHand(m.SKU, location, m.Quantity)
		if err != nil {
			return rec, err
		}
		if err := t.capacity.apply(location, delta); err != nil {
			return rec, err
		}
		rec.SignedDelta = delta
	}
	return rec, nil
}

// commit publishes the staged state and returns the events describing it.
func (t *stockTxn) commit(at time.Time) []DomainEvent {
	changes := t.ledger.commit(at)
	zones := t.capacity.commit()

	events := recordEvents(changes, at)
	for _, z := range zones {
		events = append(events, &ZoneChangedEvent{Zone: z, ChangedAt: at})
	}
	return events
}

func recordEvents(changes []RecordChange, at time.Time) []DomainEvent {
	events := make([]DomainEvent, 0, len(changes))
	for _, c := range changes {
		after := c.After
		events = append(events, &RecordChangedEvent{
			SKU:               after.SKU,
			Location:          after.Location,
			QuantityOnHand:    after.QuantityOnHand,
			QuantityReserved:  after.QuantityReserved,
			QuantityAvailable: after.QuantityAvailable(),
			QuantityIncoming:  after.QuantityIncoming,
			ReorderPoint:      after.ReorderPoint,
			ReorderQuantity:   after.ReorderQuantity,
			PreviousStatus:    c.Before.Status,
			Status:            after.Status,
			ChangedAt:         at,
		})
		if after.Status.NeedsReplenishment() && after.Status != c.Before.Status {
			events = append(events, &LowStockDetectedEvent{
				SKU:               after.SKU,
				Location:          after.Location,
				QuantityAvailable: after.QuantityAvailable(),
				ReorderPoint:      after.ReorderPoint,
				Status:            after.Status,
				DetectedAt:        at,
			})
		}
	}
	return events
}

// Apply applies a single movement. Reapplying a known referenceId returns the
// originally recorded result with Replayed set and changes nothing.
func (p *Processor) Apply(m Movement) (MovementResult, error) {
	results, err := p.ApplyBatch([]Movement{m})
	if err != nil {
		return MovementResult{}, err
	}
	return results[0], nil
}

// ApplyBatch applies movements all-or-nothing. Already applied references are
// skipped as replays; the first failure discards every staged change.
func (p *Processor) ApplyBatch(movements []Movement) ([]MovementResult, error) {
	if len(movements) == 0 {
		return nil, fmt.Errorf("%w: no movements", ErrInvalidMovement)
	}
	seen := make(map[string]struct{}, len(movements))
	for _, m := range movements {
		if err := m.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[m.ReferenceID]; dup {
			return nil, fmt.Errorf("%w: duplicate referenceId %s in batch", ErrInvalidMovement, m.ReferenceID)
		}
		seen[m.ReferenceID] = struct{}{}
	}

	p.mu.Lock()
	at := p.now().UTC()
	txn := p.begin()
	results := make([]MovementResult, len(movements))
	applied := make([]int, 0, len(movements))

	for i, m := range movements {
		if prev, ok := p.applied[m.ReferenceID]; ok {
			prev.Replayed = true
			results[i] = prev
			continue
		}
		rec, err := txn.apply(m)
		if err != nil {
			p.mu.Unlock()
			return nil, err
		}
		rec.AppliedAt = at
		results[i] = MovementResult{Record: rec}
		applied = append(applied, i)
	}

	events := txn.commit(at)
	for _, i := range applied {
		result := results[i]
		result.Records, result.Zones = p.snapshotFor(movements[i])
		results[i] = result
		p.applied[result.Record.ReferenceID] = result
		p.journal = append(p.journal, result.Record)
		events = append(events, &MovementAppliedEvent{Record: result.Record})
	}
	p.mu.Unlock()

	p.bus.Publish(events...)
	return results, nil
}

// snapshotFor returns the current records and zones touched by m. Caller holds the lock.
func (p *Processor) snapshotFor(m Movement) ([]InventoryRecord, []Zone) {
	var locations []string
	switch m.Type {
	case MovementInbound:
		locations = []string{m.ToLocation}
	case MovementOutbound:
		locations = []string{m.FromLocation}
	case MovementTransfer:
		locations = []string{m.FromLocation, m.ToLocation}
	case MovementAdjustment:
		locations = []string{m.AdjustmentLocation()}
	}

	records := make([]InventoryRecord, 0, len(locations))
	var zones []Zone
	seenZone := make(map[string]bool)
	for _, loc := range locations {
		if rec, ok := p.ledger.GetRecord(m.SKU, loc); ok {
			records = append(records, rec)
		}
		if z, err := p.capacity.zoneFor(loc); err == nil && !seenZone[z.ID] {
			seenZone[z.ID] = true
			zones = append(zones, *z)
		}
	}
	return records, zones
}

// Allocate reserves every order line across bins, largest available first with
// ties broken by location id. Only bins of active stock-holding zones are
// considered. Either every line is reserved or nothing is.
func (p *Processor) Allocate(orderID string, lines []OrderLine) ([]Allocation, error) {
	required, err := mergeLines(lines)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	at := p.now().UTC()
	txn := p.ledger.begin()
	var allocations []Allocation

	for _, line := range required {
		candidates := make([]InventoryRecord, 0)
		total := 0
		for _, rec := range p.ledger.RecordsForSKU(line.SKU) {
			if rec.Allocatable() && rec.QuantityAvailable() > 0 && p.pickable(rec.Location) {
				candidates = append(candidates, rec)
				total += rec.QuantityAvailable()
			}
		}
		if total < line.Quantity {
			p.mu.Unlock()
			return nil, &AllocationError{OrderID: orderID, SKU: line.SKU, Requested: line.Quantity, Available: total}
		}

		sort.Slice(candidates, func(i, j int) bool {
			ai, aj := candidates[i].QuantityAvailable(), candidates[j].QuantityAvailable()
			if ai != aj {
				return ai > aj
			}
			return candidates[i].Location < candidates[j].Location
		})

		remaining := line.Quantity
		for _, rec := range candidates {
			take := min(rec.QuantityAvailable(), remaining)
			if err := txn.applyDelta(line.SKU, rec.Location, 0, take); err != nil {
				p.mu.Unlock()
				return nil, err
			}
			allocations = append(allocations, Allocation{SKU: line.SKU, Location: rec.Location, Quantity: take})
			remaining -= take
			if remaining == 0 {
				break
			}
		}
	}

	events := recordEvents(txn.commit(at), at)
	p.mu.Unlock()

	p.bus.Publish(events...)
	return allocations, nil
}

// pickable reports whether stock in location may be reserved for orders:
// the bin belongs to an active zone that holds stock. Receiving staging,
// packing and shipping bins are never allocated from. Caller holds the lock.
func (p *Processor) pickable(location string) bool {
	zone, err := p.capacity.zoneFor(location)
	return err == nil && zone.IsActive && zone.Type.HoldsStock()
}

// Applied returns the recorded result of a previously applied referenceId
func (p *Processor) Applied(referenceID string) (MovementResult, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	result, ok := p.applied[referenceID]
	if ok {
		result.Replayed = true
	}
	return result, ok
}

// Release returns reserved quantities to available stock
func (p *Processor) Release(allocations []Allocation) error {
	if len(allocations) == 0 {
		return nil
	}

	p.mu.Lock()
	at := p.now().UTC()
	txn := p.ledger.begin()
	for _, a := range allocations {
		if err := txn.applyDelta(a.SKU, a.Location, 0, -a.Quantity); err != nil {
			p.mu.Unlock()
			return err
		}
	}
	events := recordEvents(txn.commit(at), at)
	p.mu.Unlock()

	p.bus.Publish(events...)
	return nil
}

// AdjustIncoming moves the expected inbound quantity of a record, clamped at zero
func (p *Processor) AdjustIncoming(sku, location string, delta int) error {
	p.mu.Lock()
	if _, err := p.capacity.zoneFor(location); err != nil {
		p.mu.Unlock()
		return err
	}
	at := p.now().UTC()
	txn := p.ledger.begin()
	txn.adjustIncoming(sku, location, delta)
	events := recordEvents(txn.commit(at), at)
	p.mu.Unlock()

	p.bus.Publish(events...)
	return nil
}

// RegisterItem stores catalog defaults for a SKU
func (p *Processor) RegisterItem(item Item) error {
	if item.SKU == "" {
		return validationf("sku is required")
	}
	if item.ReorderPoint < 0 || item.ReorderQuantity < 0 || item.UnitCost < 0 {
		return validationf("item %s has negative thresholds or cost", item.SKU)
	}

	p.mu.Lock()
	at := p.now().UTC()
	events := recordEvents(p.ledger.RegisterItem(item, at), at)
	p.mu.Unlock()

	p.bus.Publish(events...)
	return nil
}

// Item returns the catalog entry for sku
func (p *Processor) Item(sku string) (Item, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ledger.Item(sku)
}

// SetFlag sets an operator flag on a record; FlagNone clears all flags
func (p *Processor) SetFlag(sku, location string, flag StockFlag) (InventoryRecord, error) {
	return p.flag(sku, location, func(at time.Time) (RecordChange, error) {
		return p.ledger.SetFlag(sku, location, flag, at)
	})
}

// ClearFlag removes a single operator flag
func (p *Processor) ClearFlag(sku, location string, flag StockFlag) (InventoryRecord, error) {
	return p.flag(sku, location, func(at time.Time) (RecordChange, error) {
		return p.ledger.ClearFlag(sku, location, flag, at)
	})
}

func (p *Processor) flag(sku, location string, fn func(time.Time) (RecordChange, error)) (InventoryRecord, error) {
	if sku == "" {
		return InventoryRecord{}, validationf("sku is required")
	}

	p.mu.Lock()
	if _, err := p.capacity.zoneFor(location); err != nil {
		p.mu.Unlock()
		return InventoryRecord{}, err
	}
	at := p.now().UTC()
	change, err := fn(at)
	if err != nil {
		p.mu.Unlock()
		return InventoryRecord{}, err
	}
	events := recordEvents([]RecordChange{change}, at)
	p.mu.Unlock()

	p.bus.Publish(events...)
	return change.After, nil
}

// SetZoneActive activates or deactivates a zone
func (p *Processor) SetZoneActive(zoneID string, active bool) (Zone, error) {
	p.mu.Lock()
	zone, changed, err := p.capacity.setActive(zoneID, active)
	at := p.now().UTC()
	p.mu.Unlock()
	if err != nil {
		return Zone{}, err
	}
	if changed {
		p.bus.Publish(&ZoneChangedEvent{Zone: zone, ChangedAt: at})
	}
	return zone, nil
}

// Record returns the record for sku at location
func (p *Processor) Record(sku, location string) (InventoryRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rec, ok := p.ledger.GetRecord(sku, location)
	if !ok {
		return InventoryRecord{}, fmt.Errorf("%s@%s: %w", sku, location, ErrRecordNotFound)
	}
	return rec, nil
}

// Records returns every record
func (p *Processor) Records() []InventoryRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ledger.Records()
}

// RecordsForSKU returns the records holding sku
func (p *Processor) RecordsForSKU(sku string) []InventoryRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ledger.RecordsForSKU(sku)
}

// RecordsAtLocation returns the records stored in a bin
func (p *Processor) RecordsAtLocation(location string) []InventoryRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ledger.RecordsAtLocation(location)
}

// Zones returns every zone
func (p *Processor) Zones() []Zone {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.capacity.Zones()
}

// Zone returns one zone
func (p *Processor) Zone(id string) (Zone, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	z, ok := p.capacity.Zone(id)
	if !ok {
		return Zone{}, fmt.Errorf("%s: %w", id, ErrZoneNotFound)
	}
	return z, nil
}

// Bin returns a bin definition
func (p *Processor) Bin(id string) (Bin, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.capacity.Bin(id)
}

// BinsInZone lists the bins of a zone
func (p *Processor) BinsInZone(zoneID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.capacity.BinsInZone(zoneID)
}

// Snapshot returns records and zones read under a single lock
func (p *Processor) Snapshot() ([]InventoryRecord, []Zone) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ledger.Records(), p.capacity.Zones()
}

// Journal returns applied movements in order. An empty sku returns all of them.
func (p *Processor) Journal(sku string) []MovementRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]MovementRecord, 0)
	for _, rec := range p.journal {
		if sku == "" || rec.SKU == sku {
			out = append(out, rec)
		}
	}
	return out
}

func mergeLines(lines []OrderLine) ([]OrderLine, error) {
	if len(lines) == 0 {
		return nil, validationf("at least one line is required")
	}
	index := make(map[string]int)
	var merged []OrderLine
	for _, l := range lines {
		if l.SKU == "" {
			return nil, validationf("line sku is required")
		}
		if l.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if i, ok := index[l.SKU]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		index[l.SKU] = len(merged)
		merged = append(merged, l)
	}
	return merged, nil
}
