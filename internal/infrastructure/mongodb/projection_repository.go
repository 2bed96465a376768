package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/warehouse-core/internal/domain"
	"github.com/wms-platform/warehouse-core/pkg/metrics"
)

// Read model collections
const (
	RecordsCollection   = "inventory_records"
	MovementsCollection = "movements"
	ZonesCollection     = "zones"
	OrdersCollection    = "orders"
	ShipmentsCollection = "shipments"
	TasksCollection     = "tasks"
	CountsCollection    = "cycle_counts"
	VariancesCollection = "count_variances"
)

// ProjectionRepository maintains the dashboard read model from domain events.
// Every write is an idempotent upsert keyed by the aggregate id, so replaying
// an event stream converges to the same documents.
type ProjectionRepository struct {
	db      *mongo.Database
	metrics *metrics.Metrics
}

// NewProjectionRepository creates the repository. m may be nil.
func NewProjectionRepository(db *mongo.Database, m *metrics.Metrics) *ProjectionRepository {
	return &ProjectionRepository{db: db, metrics: m}
}

// EnsureIndexes creates the secondary indexes used by dashboard queries
func (r *ProjectionRepository) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		RecordsCollection: {
			{Keys: bson.D{{Key: "sku", Value: 1}, {Key: "location", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		MovementsCollection: {
			{Keys: bson.D{{Key: "sku", Value: 1}, {Key: "appliedAt", Value: 1}}},
		},
		OrdersCollection:    {{Keys: bson.D{{Key: "status", Value: 1}, {Key: "priority", Value: 1}}}},
		ShipmentsCollection: {{Keys: bson.D{{Key: "status", Value: 1}}}},
		TasksCollection: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "type", Value: 1}}},
			{Keys: bson.D{{Key: "assignee", Value: 1}}},
		},
		VariancesCollection: {{Keys: bson.D{{Key: "cycleCountId", Value: 1}}}},
	}
	for name, models := range indexes {
		if _, err := r.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}

// Project applies one domain event to the read model
func (r *ProjectionRepository) Project(ctx context.Context, event domain.DomainEvent) error {
	switch e := event.(type) {
	case *domain.RecordChangedEvent:
		return r.setIfNewer(ctx, RecordsCollection, recordID(e.SKU, e.Location), e.ChangedAt, newRecordView(e))
	case *domain.LowStockDetectedEvent:
		return r.set(ctx, RecordsCollection, recordID(e.SKU, e.Location), bson.M{"lowStockDetectedAt": e.DetectedAt})
	case *domain.MovementAppliedEvent:
		return r.set(ctx, MovementsCollection, e.Record.ReferenceID, newMovementView(e.Record))
	case *domain.ZoneChangedEvent:
		return r.setIfNewer(ctx, ZonesCollection, e.Zone.ID, e.ChangedAt, newZoneView(e.Zone, e.ChangedAt))
	case *domain.OrderTransitionedEvent:
		return r.setIfNewer(ctx, OrdersCollection, e.Order.ID, e.Order.UpdatedAt, newOrderView(e.Order))
	case *domain.ShipmentTransitionedEvent:
		return r.setIfNewer(ctx, ShipmentsCollection, e.Shipment.ID, e.Shipment.UpdatedAt, newShipmentView(e.Shipment))
	case *domain.TaskEvent:
		return r.setIfNewer(ctx, TasksCollection, e.Task.ID, e.Task.UpdatedAt, newTaskView(e.Task))
	case *domain.CountVarianceRecordedEvent:
		v := e.Variance
		return r.set(ctx, VariancesCollection, v.CycleCountID+":"+v.BinID+":"+v.SKU, newVarianceView(v))
	case *domain.CycleCountChangedEvent:
		return r.setIfNewer(ctx, CountsCollection, e.Count.ID, e.Count.UpdatedAt, newCountView(e.Count))
	}
	return nil
}

// set upserts fields into the document with id
func (r *ProjectionRepository) set(ctx context.Context, collection, id string, fields any) error {
	return r.upsert(ctx, collection, bson.M{"_id": id}, id, fields)
}

// setIfNewer upserts a snapshot taken at updatedAt unless the stored document
// is newer. Snapshots can reach the read model out of order when requests
// flush concurrently; a stale one matches no document, its upsert collides
// with the existing _id and is dropped.
func (r *ProjectionRepository) setIfNewer(ctx context.Context, collection, id string, updatedAt time.Time, fields any) error {
	filter := bson.M{
		"_id": id,
		"$or": bson.A{
			bson.M{"updatedAt": bson.M{"$lte": updatedAt}},
			bson.M{"updatedAt": bson.M{"$exists": false}},
		},
	}
	err := r.upsert(ctx, collection, filter, id, fields)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

func (r *ProjectionRepository) upsert(ctx context.Context, collection string, filter bson.M, id string, fields any) (err error) {
	start := time.Now()
	defer func() {
		if r.metrics != nil {
			r.metrics.RecordMongoDBOperation(collection, "upsert", err == nil || mongo.IsDuplicateKeyError(err), time.Since(start))
		}
	}()

	opts := options.Update().SetUpsert(true)
	if _, err = r.db.Collection(collection).UpdateOne(ctx, filter, bson.M{"$set": fields}, opts); err != nil {
		return fmt.Errorf("project into %s/%s: %w", collection, id, err)
	}
	return nil
}

// FindRecord returns the projected record for sku@location, or nil
func (r *ProjectionRepository) FindRecord(ctx context.Context, sku, location string) (*RecordView, error) {
	var view RecordView
	err := r.db.Collection(RecordsCollection).FindOne(ctx, bson.M{"_id": recordID(sku, location)}).Decode(&view)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// FindOrder returns the projected order, or nil
func (r *ProjectionRepository) FindOrder(ctx context.Context, id string) (*OrderView, error) {
	var view OrderView
	err := r.db.Collection(OrdersCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&view)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// ListRecordsByStatus returns projected records with the given status
func (r *ProjectionRepository) ListRecordsByStatus(ctx context.Context, status domain.StockStatus) ([]RecordView, error) {
	opts := options.Find().SetSort(bson.D{{Key: "sku", Value: 1}, {Key: "location", Value: 1}})
	cursor, err := r.db.Collection(RecordsCollection).Find(ctx, bson.M{"status": status}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	views := []RecordView{}
	if err := cursor.All(ctx, &views); err != nil {
		return nil, err
	}
	return views, nil
}

// ListOpenTasks returns projected pending, assigned and in-progress tasks
func (r *ProjectionRepository) ListOpenTasks(ctx context.Context) ([]TaskView, error) {
	filter := bson.M{"status": bson.M{"$in": bson.A{
		domain.TaskStatusPending, domain.TaskStatusAssigned, domain.TaskStatusInProgress,
	}}}
	cursor, err := r.db.Collection(TasksCollection).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	views := []TaskView{}
	if err := cursor.All(ctx, &views); err != nil {
		return nil, err
	}
	return views, nil
}

func recordID(sku, location string) string {
	return sku + "@" + location
}
