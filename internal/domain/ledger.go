package domain

import (
	"sort"
	"time"
)

// RecordChange captures a record before and after a committed mutation
type RecordChange struct {
	Before  InventoryRecord
	After   InventoryRecord
	Created bool
}

// Ledger exclusively owns inventory record quantities. It is not safe for
// concurrent use on its own; the Processor serializes every access.
type Ledger struct {
	records map[RecordKey]*InventoryRecord
	items   map[string]Item
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{
		records: make(map[RecordKey]*InventoryRecord),
		items:   make(map[string]Item),
	}
}

// RegisterItem records catalog defaults for a SKU. Existing records pick up
// the new reorder thresholds and unit cost.
func (l *Ledger) RegisterItem(item Item, at time.Time) []RecordChange {
	l.items[item.SKU] = item

	var changes []RecordChange
	for _, key := range l.keysForSKU(item.SKU) {
		rec := l.records[key]
		before := *rec
		rec.ReorderPoint = item.ReorderPoint
		rec.ReorderQuantity = item.ReorderQuantity
		rec.UnitCost = item.UnitCost
		rec.refreshStatus(at)
		changes = append(changes, RecordChange{Before: before, After: *rec})
	}
	return changes
}

// Item returns the catalog entry for sku
func (l *Ledger) Item(sku string) (Item, bool) {
	item, ok := l.items[sku]
	return item, ok
}

// GetRecord returns a copy of the record for sku at location
func (l *Ledger) GetRecord(sku, location string) (InventoryRecord, bool) {
	rec, ok := l.records[RecordKey{SKU: sku, Location: location}]
	if !ok {
		return InventoryRecord{}, false
	}
	return *rec, true
}

// Records returns copies of all records ordered by SKU then location
func (l *Ledger) Records() []InventoryRecord {
	out := make([]InventoryRecord, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, *rec)
	}
	sortRecords(out)
	return out
}

// RecordsForSKU returns copies of the records holding sku
func (l *Ledger) RecordsForSKU(sku string) []InventoryRecord {
	keys := l.keysForSKU(sku)
	out := make([]InventoryRecord, 0, len(keys))
	for _, key := range keys {
		out = append(out, *l.records[key])
	}
	return out
}

// RecordsAtLocation returns copies of the records stored in a bin
func (l *Ledger) RecordsAtLocation(location string) []InventoryRecord {
	var out []InventoryRecord
	for key, rec := range l.records {
		if key.Location == location {
			out = append(out, *rec)
		}
	}
	sortRecords(out)
	return out
}

func (l *Ledger) keysForSKU(sku string) []RecordKey {
	var keys []RecordKey
	for key := range l.records {
		if key.SKU == sku {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Location < keys[j].Location })
	return keys
}

// ApplyDelta applies a single on-hand/reserved delta. On failure the ledger is unchanged.
func (l *Ledger) ApplyDelta(sku, location string, deltaOnHand, deltaReserved int, at time.Time) (RecordChange, error) {
	txn := l.begin()
	if err := txn.applyDelta(sku, location, deltaOnHand, deltaReserved); err != nil {
		return RecordChange{}, err
	}
	return txn.commit(at)[0], nil
}

// SetFlag adds an operator flag. FlagNone clears every flag.
func (l *Ledger) SetFlag(sku, location string, flag StockFlag, at time.Time) (RecordChange, error) {
	if !flag.IsValid() {
		return RecordChange{}, validationf("unknown stock flag %q", flag)
	}
	txn := l.begin()
	rec := txn.record(sku, location)
	if flag == FlagNone {
		rec.Flags = 0
	} else {
		rec.Flags = rec.Flags.With(flag)
	}
	return txn.commit(at)[0], nil
}

// ClearFlag removes a single operator flag
func (l *Ledger) ClearFlag(sku, location string, flag StockFlag, at time.Time) (RecordChange, error) {
	if !flag.IsValid() || flag == FlagNone {
		return RecordChange{}, validationf("unknown stock flag %q", flag)
	}
	txn := l.begin()
	rec := txn.record(sku, location)
	rec.Flags = rec.Flags.Without(flag)
	return txn.commit(at)[0], nil
}

// ledgerTxn stages record mutations on copies; nothing is visible until commit.
type ledgerTxn struct {
	l      *Ledger
	staged map[RecordKey]*InventoryRecord
	order  []RecordKey
}

func (l *Ledger) begin() *ledgerTxn {
	return &ledgerTxn{l: l, staged: make(map[RecordKey]*InventoryRecord)}
}

// record returns the staged copy, creating it from the ledger or catalog defaults.
func (t *ledgerTxn) record(sku, location string) *InventoryRecord {
	key := RecordKey{SKU: sku, Location: location}
	if rec, ok := t.staged[key]; ok {
		return rec
	}

	var rec InventoryRecord
	if existing, ok := t.l.records[key]; ok {
		rec = *existing
	} else {
		rec = InventoryRecord{SKU: sku, Location: location}
		if item, ok := t.l.items[sku]; ok {
			rec.ReorderPoint = item.ReorderPoint
			rec.ReorderQuantity = item.ReorderQuantity
			rec.UnitCost = item.UnitCost
		}
		rec.Status = rec.EffectiveStatus()
	}
	t.staged[key] = &rec
	t.order = append(t.order, key)
	return &rec
}

func (t *ledgerTxn) applyDelta(sku, location string, deltaOnHand, deltaReserved int) error {
	rec := t.record(sku, location)
	onHand := rec.QuantityOnHand + deltaOnHand
	reserved := rec.QuantityReserved + deltaReserved
	if onHand < 0 || reserved < 0 || onHand-reserved < 0 {
		return &StockError{
			SKU:           sku,
			Location:      location,
			OnHand:        rec.QuantityOnHand,
			Reserved:      rec.QuantityReserved,
			DeltaOnHand:   deltaOnHand,
			DeltaReserved: deltaReserved,
		}
	}
	rec.QuantityOnHand = onHand
	rec.QuantityReserved = reserved
	return nil
}

// setOnHand sets the on-hand quantity and returns the signed delta.
func (t *ledgerTxn) setOnHand(sku, location string, quantity int) (int, error) {
	rec := t.record(sku, location)
	delta := quantity - rec.QuantityOnHand
	if err := t.applyDelta(sku, location, delta, 0); err != nil {
		return 0, err
	}
	return delta, nil
}

func (t *ledgerTxn) adjustIncoming(sku, location string, delta int) {
	rec := t.record(sku, location)
	rec.QuantityIncoming += delta
	if rec.QuantityIncoming < 0 {
		rec.QuantityIncoming = 0
	}
}

func (t *ledgerTxn) commit(at time.Time) []RecordChange {
	changes := make([]RecordChange, 0, len(t.order))
	for _, key := range t.order {
		staged := t.staged[key]
		staged.refreshStatus(at)

		change := RecordChange{After: *staged}
		if existing, ok := t.l.records[key]; ok {
			change.Before = *existing
			*existing = *staged
		} else {
			change.Created = true
			change.Before = InventoryRecord{SKU: key.SKU, Location: key.Location, Status: StockStatusOutOfStock}
			rec := *staged
			t.l.records[key] = &rec
		}
		changes = append(changes, change)
	}
	return changes
}

func sortRecords(records []InventoryRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].SKU != records[j].SKU {
			return records[i].SKU < records[j].SKU
		}
		return records[i].Location < records[j].Location
	})
}
