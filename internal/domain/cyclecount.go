package domain

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// CountStatus is the lifecycle state of a cycle count
type CountStatus string

const (
	CountStatusScheduled     CountStatus = "scheduled"
	CountStatusInProgress    CountStatus = "in_progress"
	CountStatusPendingReview CountStatus = "pending_review"
	CountStatusCompleted     CountStatus = "completed"
)

// VarianceRecord compares one bin/SKU physical count with the ledger
type VarianceRecord struct {
	CycleCountID  string    `json:"cycleCountId"`
	BinID         string    `json:"binId"`
	SKU           string    `json:"sku"`
	Expected      int       `json:"expected"`
	Counted       int       `json:"counted"`
	Delta         int       `json:"delta"`
	UnitCost      float64   `json:"unitCost"`
	VarianceValue float64   `json:"varianceValue"`
	CountedAt     time.Time `json:"countedAt"`
}

// HasVariance reports whether the count differs from the ledger
func (v VarianceRecord) HasVariance() bool { return v.Delta != 0 }

// CycleCount is a scheduled recount of bins in one zone
type CycleCount struct {
	ID            string           `json:"id"`
	ZoneID        string           `json:"zoneId"`
	Status        CountStatus      `json:"status"`
	Bins          []string         `json:"bins"`
	TotalBins     int              `json:"totalBins"`
	CountedBins   int              `json:"countedBins"`
	CountedItems  int              `json:"countedItems"`
	VarianceItems int              `json:"varianceItems"`
	VarianceValue float64          `json:"varianceValue"`
	Submissions   []VarianceRecord `json:"submissions"`
	TaskIDs       []string         `json:"taskIds,omitempty"`
	History       []StatusChange   `json:"history"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// Accuracy is 1 - varianceItems / countedItems, 0 when nothing was counted
func (c CycleCount) Accuracy() float64 {
	if c.CountedItems == 0 {
		return 0
	}
	return 1 - float64(c.VarianceItems)/float64(c.CountedItems)
}

func (c *CycleCount) clone() CycleCount {
	out := *c
	out.Bins = append([]string(nil), c.Bins...)
	out.Submissions = append([]VarianceRecord(nil), c.Submissions...)
	out.TaskIDs = append([]string(nil), c.TaskIDs...)
	out.History = append([]StatusChange(nil), c.History...)
	return out
}

func (c *CycleCount) hasBin(bin string) bool {
	for _, b := range c.Bins {
		if b == bin {
			return true
		}
	}
	return false
}

// record stores a submission, replacing an earlier one for the same bin and
// SKU, and recomputes the aggregates.
func (c *CycleCount) record(v VarianceRecord) {
	replaced := false
	for i := range c.Submissions {
		if c.Submissions[i].BinID == v.BinID && c.Submissions[i].SKU == v.SKU {
			c.Submissions[i] = v
			replaced = true
			break
		}
	}
	if !replaced {
		c.Submissions = append(c.Submissions, v)
		sort.Slice(c.Submissions, func(i, j int) bool {
			if c.Submissions[i].BinID != c.Submissions[j].BinID {
				return c.Submissions[i].BinID < c.Submissions[j].BinID
			}
			return c.Submissions[i].SKU < c.Submissions[j].SKU
		})
	}

	bins := make(map[string]bool)
	c.CountedItems = len(c.Submissions)
	c.VarianceItems = 0
	c.VarianceValue = 0
	for _, s := range c.Submissions {
		bins[s.BinID] = true
		if s.HasVariance() {
			c.VarianceItems++
			c.VarianceValue += s.VarianceValue
		}
	}
	c.CountedBins = len(bins)
}

type countEntry struct {
	mu    sync.Mutex
	count CycleCount
}

// CountBook runs the cycle count reconciler, serialized per count.
type CountBook struct {
	mu        sync.RWMutex
	counts    map[string]*countEntry
	processor *Processor
	scheduler *Scheduler
	bus       *EventBus
	now       func() time.Time
	newID     func() string
}

// NewCountBook creates the reconciler
func NewCountBook(processor *Processor, scheduler *Scheduler, bus *EventBus, now func() time.Time, newID func() string) *CountBook {
	return &CountBook{
		counts:    make(map[string]*countEntry),
		processor: processor,
		scheduler: scheduler,
		bus:       bus,
		now:       now,
		newID:     newID,
	}
}

// Schedule creates a count over bins of a zone. No bins means every bin in the zone.
func (b *CountBook) Schedule(zoneID string, bins []string) (CycleCount, error) {
	if _, err := b.processor.Zone(zoneID); err != nil {
		return CycleCount{}, err
	}
	zoneBins := b.processor.BinsInZone(zoneID)
	if len(bins) == 0 {
		bins = zoneBins
	}
	if len(bins) == 0 {
		return CycleCount{}, validationf("zone %s has no bins to count", zoneID)
	}

	inZone := make(map[string]bool, len(zoneBins))
	for _, id := range zoneBins {
		inZone[id] = true
	}
	seen := make(map[string]bool, len(bins))
	unique := make([]string, 0, len(bins))
	for _, bin := range bins {
		if !inZone[bin] {
			return CycleCount{}, validationf("bin %s is not in zone %s", bin, zoneID)
		}
		if !seen[bin] {
			seen[bin] = true
			unique = append(unique, bin)
		}
	}
	sort.Strings(unique)

	at := b.now().UTC()
	count := CycleCount{
		ID:        b.newID(),
		ZoneID:    zoneID,
		Status:    CountStatusScheduled,
		Bins:      unique,
		TotalBins: len(unique),
		CreatedAt: at,
		UpdatedAt: at,
	}

	b.mu.Lock()
	b.counts[count.ID] = &countEntry{count: count}
	b.mu.Unlock()

	b.bus.Publish(&CycleCountChangedEvent{Count: count.clone(), To: CountStatusScheduled, ChangedAt: at})
	return count.clone(), nil
}

func (b *CountBook) entry(id string) (*countEntry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.counts[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrCycleCountNotFound)
	}
	return e, nil
}

// Get returns a count snapshot
func (b *CountBook) Get(id string) (CycleCount, error) {
	e, err := b.entry(id)
	if err != nil {
		return CycleCount{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count.clone(), nil
}

// List returns counts, optionally filtered by status, oldest first
func (b *CountBook) List(status CountStatus) []CycleCount {
	b.mu.RLock()
	entries := make([]*countEntry, 0, len(b.counts))
	for _, e := range b.counts {
		entries = append(entries, e)
	}
	b.mu.RUnlock()

	out := make([]CycleCount, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if status == "" || e.count.Status == status {
			out = append(out, e.count.clone())
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

func (b *CountBook) transitionLocked(c *CycleCount, to CountStatus) *CycleCountChangedEvent {
	at := b.now().UTC()
	from := c.Status
	c.Status = to
	c.UpdatedAt = at
	c.History = append(c.History, StatusChange{From: string(from), To: string(to), At: at})
	return &CycleCountChangedEvent{Count: c.clone(), From: from, To: to, ChangedAt: at}
}

func countTransitionError(c *CycleCount, to CountStatus) error {
	return &TransitionError{Entity: "cycle count", ID: c.ID, From: string(c.Status), To: string(to)}
}

// Start moves a scheduled count to in_progress and spawns one count task per bin
func (b *CountBook) Start(id string) (CycleCount, error) {
	e, err := b.entry(id)
	if err != nil {
		return CycleCount{}, err
	}

	e.mu.Lock()
	c := &e.count
	if c.Status != CountStatusScheduled {
		e.mu.Unlock()
		return CycleCount{}, countTransitionError(c, CountStatusInProgress)
	}
	ids := make([]string, 0, len(c.Bins))
	for _, bin := range c.Bins {
		task, err := b.scheduler.CreateTask(TaskSpec{
			Type:       TaskTypeCount,
			ToLocation: bin,
			ParentID:   c.ID,
		})
		if err != nil {
			e.mu.Unlock()
			return CycleCount{}, err
		}
		ids = append(ids, task.ID)
	}
	c.TaskIDs = ids
	ev := b.transitionLocked(c, CountStatusInProgress)
	snap := c.clone()
	e.mu.Unlock()

	b.bus.Publish(ev)
	return snap, nil
}

// Submit records a physical count for a bin. An empty sku is inferred when the
// bin holds exactly one SKU. Once every bin has a submission the count moves
// to pending_review; re-submissions during review replace the earlier figure.
func (b *CountBook) Submit(id, bin, sku string, counted int) (VarianceRecord, error) {
	if counted < 0 {
		return VarianceRecord{}, validationf("counted quantity cannot be negative")
	}
	e, err := b.entry(id)
	if err != nil {
		return VarianceRecord{}, err
	}

	e.mu.Lock()
	c := &e.count
	if c.Status != CountStatusInProgress && c.Status != CountStatusPendingReview {
		e.mu.Unlock()
		return VarianceRecord{}, fmt.Errorf("%w: cycle count %s is %s, counts are accepted only in progress or in review",
			ErrInvalidTransition, c.ID, c.Status)
	}
	if !c.hasBin(bin) {
		e.mu.Unlock()
		return VarianceRecord{}, validationf("bin %s is not part of cycle count %s", bin, c.ID)
	}

	held := b.processor.RecordsAtLocation(bin)
	var expected InventoryRecord
	found := false
	if sku == "" {
		if len(held) != 1 {
			e.mu.Unlock()
			return VarianceRecord{}, validationf("bin %s holds %d skus; sku is required", bin, len(held))
		}
		expected, found = held[0], true
		sku = expected.SKU
	} else {
		for _, rec := range held {
			if rec.SKU == sku {
				expected, found = rec, true
				break
			}
		}
	}

	unitCost := expected.UnitCost
	if !found {
		if item, ok := b.processor.Item(sku); ok {
			unitCost = item.UnitCost
		}
	}
	delta := counted - expected.QuantityOnHand
	variance := VarianceRecord{
		CycleCountID:  c.ID,
		BinID:         bin,
		SKU:           sku,
		Expected:      expected.QuantityOnHand,
		Counted:       counted,
		Delta:         delta,
		UnitCost:      unitCost,
		VarianceValue: math.Abs(float64(delta)) * unitCost,
		CountedAt:     b.now().UTC(),
	}
	c.record(variance)
	c.UpdatedAt = variance.CountedAt

	events := []DomainEvent{&CountVarianceRecordedEvent{Variance: variance}}
	if c.Status == CountStatusInProgress && c.CountedBins == c.TotalBins {
		events = append(events, b.transitionLocked(c, CountStatusPendingReview))
	}
	e.mu.Unlock()

	b.bus.Publish(events...)
	return variance, nil
}

// Approve applies one adjustment per variance, all-or-nothing, and completes the count.
func (b *CountBook) Approve(id string) (CycleCount, error) {
	e, err := b.entry(id)
	if err != nil {
		return CycleCount{}, err
	}

	e.mu.Lock()
	c := &e.count
	if c.Status != CountStatusPendingReview {
		e.mu.Unlock()
		return CycleCount{}, countTransitionError(c, CountStatusCompleted)
	}

	var adjustments []Movement
	for _, v := range c.Submissions {
		if !v.HasVariance() {
			continue
		}
		adjustments = append(adjustments, Movement{
			Type:        MovementAdjustment,
			SKU:         v.SKU,
			ToLocation:  v.BinID,
			Quantity:    v.Counted,
			ReferenceID: fmt.Sprintf("%s:%s:%s", c.ID, v.BinID, v.SKU),
		})
	}
	if len(adjustments) > 0 {
		if _, err := b.processor.ApplyBatch(adjustments); err != nil {
			e.mu.Unlock()
			return CycleCount{}, err
		}
	}
	for _, taskID := range c.TaskIDs {
		if err := b.scheduler.closeIfOpen(taskID); err != nil {
			e.mu.Unlock()
			return CycleCount{}, err
		}
	}
	ev := b.transitionLocked(c, CountStatusCompleted)
	snap := c.clone()
	e.mu.Unlock()

	b.bus.Publish(ev)
	return snap, nil
}
