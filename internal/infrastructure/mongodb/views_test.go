package mongodb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/wms-platform/warehouse-core/internal/domain"
)

func TestViews_OmitIDSoUpsertKeepsFilterID(t *testing.T) {
	view := newTaskView(domain.Task{ID: "task-1", Type: domain.TaskTypePick, Status: domain.TaskStatusPending})

	raw, err := bson.Marshal(view)
	assert.NoError(t, err)

	var doc bson.M
	assert.NoError(t, bson.Unmarshal(raw, &doc))
	_, hasID := doc["_id"]
	assert.False(t, hasID)
	assert.Equal(t, "pick", doc["type"])
}

func TestRecordView_KeepsLowStockMarker(t *testing.T) {
	view := newRecordView(&domain.RecordChangedEvent{
		SKU: "X", Location: "A1", QuantityOnHand: 4, QuantityAvailable: 4,
		Status: domain.StockStatusLowStock, ChangedAt: time.Now(),
	})

	raw, err := bson.Marshal(view)
	assert.NoError(t, err)
	var doc bson.M
	assert.NoError(t, bson.Unmarshal(raw, &doc))

	_, hasMarker := doc["lowStockDetectedAt"]
	assert.False(t, hasMarker, "a record update must not clear the low stock marker")
	assert.Equal(t, "low_stock", doc["status"])
}

func TestNewCountView_Accuracy(t *testing.T) {
	view := newCountView(domain.CycleCount{ID: "c1", CountedItems: 4, VarianceItems: 1})
	assert.InDelta(t, 0.75, view.Accuracy, 1e-9)
}
