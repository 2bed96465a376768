package outbox

import (
	"context"
	"time"
)

// Repository defines outbox persistence
type Repository interface {
	SaveAll(ctx context.Context, events []*Event) error

	// FindUnpublished returns retryable unpublished events, oldest first
	FindUnpublished(ctx context.Context, limit int) ([]*Event, error)

	MarkPublished(ctx context.Context, eventID string) error
	IncrementRetry(ctx context.Context, eventID string, errorMsg string) error

	// DeletePublished removes events published before cutoff and returns how many
	DeletePublished(ctx context.Context, cutoff time.Time) (int64, error)

	FindByAggregateID(ctx context.Context, aggregateID string) ([]*Event, error)
}
