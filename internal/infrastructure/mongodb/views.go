package mongodb

import (
	"time"

	"github.com/wms-platform/warehouse-core/internal/domain"
)

// The view documents below leave ID empty when written; the _id comes from
// the upsert filter.

// RecordView is the projected inventory record
type RecordView struct {
	ID                 string             `bson:"_id,omitempty"`
	SKU                string             `bson:"sku"`
	Location           string             `bson:"location"`
	QuantityOnHand     int                `bson:"quantityOnHand"`
	QuantityReserved   int                `bson:"quantityReserved"`
	QuantityAvailable  int                `bson:"quantityAvailable"`
	QuantityIncoming   int                `bson:"quantityIncoming"`
	ReorderPoint       int                `bson:"reorderPoint"`
	ReorderQuantity    int                `bson:"reorderQuantity"`
	Status             domain.StockStatus `bson:"status"`
	LowStockDetectedAt *time.Time         `bson:"lowStockDetectedAt,omitempty"`
	UpdatedAt          time.Time          `bson:"updatedAt"`
}

func newRecordView(e *domain.RecordChangedEvent) RecordView {
	return RecordView{
		SKU:               e.SKU,
		Location:          e.Location,
		QuantityOnHand:    e.QuantityOnHand,
		QuantityReserved:  e.QuantityReserved,
		QuantityAvailable: e.QuantityAvailable,
		QuantityIncoming:  e.QuantityIncoming,
		ReorderPoint:      e.ReorderPoint,
		ReorderQuantity:   e.ReorderQuantity,
		Status:            e.Status,
		UpdatedAt:         e.ChangedAt,
	}
}

// MovementView is one journal entry
type MovementView struct {
	ID           string              `bson:"_id,omitempty"`
	Type         domain.MovementType `bson:"type"`
	SKU          string              `bson:"sku"`
	FromLocation string              `bson:"fromLocation,omitempty"`
	ToLocation   string              `bson:"toLocation,omitempty"`
	Quantity     int                 `bson:"quantity"`
	SignedDelta  int                 `bson:"signedDelta"`
	AppliedAt    time.Time           `bson:"appliedAt"`
}

func newMovementView(r domain.MovementRecord) MovementView {
	return MovementView{
		Type:         r.Type,
		SKU:          r.SKU,
		FromLocation: r.FromLocation,
		ToLocation:   r.ToLocation,
		Quantity:     r.Quantity,
		SignedDelta:  r.SignedDelta,
		AppliedAt:    r.AppliedAt,
	}
}

// ZoneView is the projected zone with its utilization
type ZoneView struct {
	ID            string          `bson:"_id,omitempty"`
	Code          string          `bson:"code"`
	Type          domain.ZoneType `bson:"type"`
	CapacityUnits int             `bson:"capacityUnits"`
	UsedUnits     int             `bson:"usedUnits"`
	Utilization   float64         `bson:"utilization"`
	BinCount      int             `bson:"binCount"`
	IsActive      bool            `bson:"isActive"`
	UpdatedAt     time.Time       `bson:"updatedAt"`
}

func newZoneView(z domain.Zone, at time.Time) ZoneView {
	return ZoneView{
		Code:          z.Code,
		Type:          z.Type,
		CapacityUnits: z.CapacityUnits,
		UsedUnits:     z.UsedUnits,
		Utilization:   z.Utilization(),
		BinCount:      z.BinCount,
		IsActive:      z.IsActive,
		UpdatedAt:     at,
	}
}

// LineView is an order or shipment line
type LineView struct {
	SKU             string `bson:"sku"`
	Quantity        int    `bson:"quantity"`
	PutawayLocation string `bson:"putawayLocation,omitempty"`
	ReceivedUnits   int    `bson:"receivedUnits,omitempty"`
}

// OrderView is the projected outbound order
type OrderView struct {
	ID             string             `bson:"_id,omitempty"`
	Customer       string             `bson:"customer"`
	Priority       domain.Priority    `bson:"priority"`
	Status         domain.OrderStatus `bson:"status"`
	Lines          []LineView         `bson:"lines"`
	TotalUnits     int                `bson:"totalUnits"`
	PickedUnits    int                `bson:"pickedUnits"`
	Assignee       string             `bson:"assignee,omitempty"`
	Carrier        string             `bson:"carrier,omitempty"`
	TrackingNumber string             `bson:"trackingNumber,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt"`
}

func newOrderView(o domain.Order) OrderView {
	lines := make([]LineView, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, LineView{SKU: l.SKU, Quantity: l.Quantity})
	}
	return OrderView{
		Customer:       o.Customer,
		Priority:       o.Priority,
		Status:         o.Status,
		Lines:          lines,
		TotalUnits:     o.TotalUnits,
		PickedUnits:    o.PickedUnits,
		Assignee:       o.Assignee,
		Carrier:        o.Carrier,
		TrackingNumber: o.TrackingNumber,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

// ShipmentView is the projected inbound shipment
type ShipmentView struct {
	ID            string                `bson:"_id,omitempty"`
	PONumber      string                `bson:"poNumber"`
	Supplier      string                `bson:"supplier"`
	ExpectedDate  time.Time             `bson:"expectedDate"`
	Status        domain.ShipmentStatus `bson:"status"`
	Lines         []LineView            `bson:"lines"`
	TotalUnits    int                   `bson:"totalUnits"`
	ReceivedUnits int                   `bson:"receivedUnits"`
	UpdatedAt     time.Time             `bson:"updatedAt"`
}

func newShipmentView(s domain.Shipment) ShipmentView {
	lines := make([]LineView, 0, len(s.Lines))
	for _, l := range s.Lines {
		lines = append(lines, LineView{
			SKU:             l.SKU,
			Quantity:        l.Quantity,
			PutawayLocation: l.PutawayLocation,
			ReceivedUnits:   l.ReceivedUnits,
		})
	}
	return ShipmentView{
		PONumber:      s.PONumber,
		Supplier:      s.Supplier,
		ExpectedDate:  s.ExpectedDate,
		Status:        s.Status,
		Lines:         lines,
		TotalUnits:    s.TotalUnits,
		ReceivedUnits: s.ReceivedUnits,
		UpdatedAt:     s.UpdatedAt,
	}
}

// TaskView is the projected task
type TaskView struct {
	ID           string            `bson:"_id,omitempty"`
	Type         domain.TaskType   `bson:"type"`
	Priority     domain.Priority   `bson:"priority"`
	Status       domain.TaskStatus `bson:"status"`
	SKU          string            `bson:"sku,omitempty"`
	FromLocation string            `bson:"fromLocation,omitempty"`
	ToLocation   string            `bson:"toLocation,omitempty"`
	Quantity     int               `bson:"quantity"`
	Assignee     string            `bson:"assignee,omitempty"`
	ParentID     string            `bson:"parentId,omitempty"`
	CreatedAt    time.Time         `bson:"createdAt"`
	UpdatedAt    time.Time         `bson:"updatedAt"`
	CompletedBy  string            `bson:"completedBy,omitempty"`
}

func newTaskView(t domain.Task) TaskView {
	return TaskView{
		Type:         t.Type,
		Priority:     t.Priority,
		Status:       t.Status,
		SKU:          t.SKU,
		FromLocation: t.FromLocation,
		ToLocation:   t.ToLocation,
		Quantity:     t.Quantity,
		Assignee:     t.Assignee,
		ParentID:     t.ParentID,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		CompletedBy:  t.CompletedBy,
	}
}

// CountView is the projected cycle count
type CountView struct {
	ID            string             `bson:"_id,omitempty"`
	ZoneID        string             `bson:"zoneId"`
	Status        domain.CountStatus `bson:"status"`
	Bins          []string           `bson:"bins"`
	CountedBins   int                `bson:"countedBins"`
	CountedItems  int                `bson:"countedItems"`
	VarianceItems int                `bson:"varianceItems"`
	VarianceValue float64            `bson:"varianceValue"`
	Accuracy      float64            `bson:"accuracy"`
	UpdatedAt     time.Time          `bson:"updatedAt"`
}

func newCountView(c domain.CycleCount) CountView {
	return CountView{
		ZoneID:        c.ZoneID,
		Status:        c.Status,
		Bins:          c.Bins,
		CountedBins:   c.CountedBins,
		CountedItems:  c.CountedItems,
		VarianceItems: c.VarianceItems,
		VarianceValue: c.VarianceValue,
		Accuracy:      c.Accuracy(),
		UpdatedAt:     c.UpdatedAt,
	}
}

// VarianceView is one bin/SKU count submission
type VarianceView struct {
	ID            string    `bson:"_id,omitempty"`
	CycleCountID  string    `bson:"cycleCountId"`
	BinID         string    `bson:"binId"`
	SKU           string    `bson:"sku"`
	Expected      int       `bson:"expected"`
	Counted       int       `bson:"counted"`
	Delta         int       `bson:"delta"`
	VarianceValue float64   `bson:"varianceValue"`
	CountedAt     time.Time `bson:"countedAt"`
}

func newVarianceView(v domain.VarianceRecord) VarianceView {
	return VarianceView{
		CycleCountID:  v.CycleCountID,
		BinID:         v.BinID,
		SKU:           v.SKU,
		Expected:      v.Expected,
		Counted:       v.Counted,
		Delta:         v.Delta,
		VarianceValue: v.VarianceValue,
		CountedAt:     v.CountedAt,
	}
}
