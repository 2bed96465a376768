package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/warehouse-core/internal/application"
	"github.com/wms-platform/warehouse-core/internal/domain"
	"github.com/wms-platform/warehouse-core/pkg/cloudevents"
	"github.com/wms-platform/warehouse-core/pkg/contracts"
	"github.com/wms-platform/warehouse-core/pkg/kafka"
	"github.com/wms-platform/warehouse-core/pkg/logging"
	"github.com/wms-platform/warehouse-core/pkg/metrics"
	"github.com/wms-platform/warehouse-core/pkg/tracing"
)

// MovementApplier applies movements from the feed
type MovementApplier interface {
	ApplyMovement(ctx context.Context, m domain.Movement) (domain.MovementResult, error)
}

// MovementFeed consumes MovementCommand messages and applies them to the core.
// Payloads that break the contract and movements the core rejects are
// permanent failures and are skipped; anything else is left for redelivery.
type MovementFeed struct {
	applier   MovementApplier
	validator *contracts.Validator
	topic     string
	metrics   *metrics.Metrics
	logger    *logging.Logger
	tracer    trace.Tracer
}

// NewMovementFeed creates the feed handler. m may be nil.
func NewMovementFeed(applier MovementApplier, validator *contracts.Validator, m *metrics.Metrics, logger *logging.Logger) *MovementFeed {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &MovementFeed{
		applier:   applier,
		validator: validator,
		topic:     kafka.Topics.WarehouseMovements,
		metrics:   m,
		logger:    logger.WithComponent("movement-feed"),
		tracer:    otel.Tracer("github.com/wms-platform/warehouse-core/internal/infrastructure/kafka"),
	}
}

// Topic returns the consumed topic
func (f *MovementFeed) Topic() string {
	return f.topic
}

// Handle is a kafka.MessageHandler
func (f *MovementFeed) Handle(ctx context.Context, msg kafkago.Message) (err error) {
	ctx = messageContext(ctx, msg)
	ctx, span := f.tracer.Start(ctx, "movement-feed.process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(tracing.MessagingSpanAttributes(f.topic, "process")...),
	)
	defer func() { tracing.EndSpan(span, err) }()

	movementType := "unknown"
	defer func() {
		if f.metrics != nil {
			f.metrics.RecordKafkaConsume(f.topic, movementType, err == nil)
		}
	}()

	if err := f.validator.Validate(contracts.MessageMovementCommand, msg.Value); err != nil {
		f.logger.WithContext(ctx).WithError(err).Warn("Rejected movement command", "offset", msg.Offset)
		return kafka.Permanent(err)
	}

	var m domain.Movement
	if err := json.Unmarshal(msg.Value, &m); err != nil {
		return kafka.Permanent(fmt.Errorf("decode movement command: %w", err))
	}
	movementType = string(m.Type)
	span.SetAttributes(
		attribute.String("wms.reference_id", m.ReferenceID),
		attribute.String("wms.movement.type", movementType),
	)

	result, err := f.applier.ApplyMovement(ctx, m)
	if err != nil {
		if application.IsBusinessError(err) {
			return kafka.Permanent(err)
		}
		return err
	}

	if result.Replayed {
		f.logger.WithContext(ctx).Debug("Movement command already applied", "referenceId", m.ReferenceID)
	}
	return nil
}

// messageContext carries the producer's correlation id and trace context
func messageContext(ctx context.Context, msg kafkago.Message) context.Context {
	if id := kafka.HeaderValue(msg, cloudevents.HeaderCorrelationID); id != "" {
		ctx = logging.ContextWithCorrelationID(ctx, id)
	}
	if tp := kafka.HeaderValue(msg, cloudevents.HeaderTraceParent); tp != "" {
		ctx = tracing.ExtractTraceParent(ctx, tp, kafka.HeaderValue(msg, cloudevents.HeaderTraceState))
	}
	return ctx
}
