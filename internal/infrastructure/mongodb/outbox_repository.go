package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/warehouse-core/pkg/metrics"
	"github.com/wms-platform/warehouse-core/pkg/outbox"
)

// OutboxCollection is the collection holding outbox events
const OutboxCollection = "outbox_events"

// OutboxRepository implements outbox.Repository for MongoDB
type OutboxRepository struct {
	collection *mongo.Collection
	metrics    *metrics.Metrics
}

var _ outbox.Repository = (*OutboxRepository)(nil)

// NewOutboxRepository creates a new MongoDB outbox repository. m may be nil.
func NewOutboxRepository(db *mongo.Database, m *metrics.Metrics) *OutboxRepository {
	return &OutboxRepository{
		collection: db.Collection(OutboxCollection),
		metrics:    m,
	}
}

// EnsureIndexes creates the indexes the relay queries rely on
func (r *OutboxRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "publishedAt", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "aggregateId", Value: 1}, {Key: "createdAt", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create outbox indexes: %w", err)
	}
	return nil
}

// observe is deferred with a pointer to the named error result
func (r *OutboxRepository) observe(operation string, start time.Time, errp *error) {
	if r.metrics != nil {
		r.metrics.RecordMongoDBOperation(OutboxCollection, operation, *errp == nil, time.Since(start))
	}
}

// SaveAll saves multiple outbox events in a single operation
func (r *OutboxRepository) SaveAll(ctx context.Context, events []*outbox.Event) (err error) {
	if len(events) == 0 {
		return nil
	}
	defer r.observe("insert_many", time.Now(), &err)

	docs := make([]any, len(events))
	for i, event := range events {
		docs[i] = event
	}
	if _, err = r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to save outbox events: %w", err)
	}
	return nil
}

// FindUnpublished retrieves retryable unpublished events, oldest first
func (r *OutboxRepository) FindUnpublished(ctx context.Context, limit int) (events []*outbox.Event, err error) {
	defer r.observe("find", time.Now(), &err)

	filter := bson.M{
		"publishedAt": bson.M{"$exists": false},
		"$expr":       bson.M{"$lt": bson.A{"$retryCount", "$maxRetries"}},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find unpublished events: %w", err)
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode outbox events: %w", err)
	}
	return events, nil
}

// MarkPublished marks an event as published
func (r *OutboxRepository) MarkPublished(ctx context.Context, eventID string) (err error) {
	defer r.observe("update", time.Now(), &err)

	update := bson.M{"$set": bson.M{"publishedAt": time.Now().UTC()}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": eventID}, update)
	if err != nil {
		return fmt.Errorf("failed to mark event as published: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("outbox event not found: %s", eventID)
	}
	return nil
}

// IncrementRetry increments the retry count and records the last error
func (r *OutboxRepository) IncrementRetry(ctx context.Context, eventID string, errorMsg string) (err error) {
	defer r.observe("update", time.Now(), &err)

	update := bson.M{
		"$inc": bson.M{"retryCount": 1},
		"$set": bson.M{"lastError": errorMsg},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": eventID}, update)
	if err != nil {
		return fmt.Errorf("failed to increment retry count: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("outbox event not found: %s", eventID)
	}
	return nil
}

// DeletePublished deletes events published before cutoff
func (r *OutboxRepository) DeletePublished(ctx context.Context, cutoff time.Time) (n int64, err error) {
	defer r.observe("delete_many", time.Now(), &err)

	filter := bson.M{"publishedAt": bson.M{"$exists": true, "$lt": cutoff}}
	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete published events: %w", err)
	}
	return result.DeletedCount, nil
}

// FindByAggregateID returns the events of one aggregate in creation order
func (r *OutboxRepository) FindByAggregateID(ctx context.Context, aggregateID string) (events []*outbox.Event, err error) {
	defer r.observe("find", time.Now(), &err)

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"aggregateId": aggregateID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find events for %s: %w", aggregateID, err)
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode outbox events: %w", err)
	}
	return events, nil
}
