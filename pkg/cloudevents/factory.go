package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/warehouse-core/pkg/logging"
)

// EventFactory creates CloudEvents for one source
type EventFactory struct {
	source string
	now    func() time.Time
	newID  func() string
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source, now: time.Now, newID: uuid.NewString}
}

// CreateEvent creates a new WMSCloudEvent. The correlation ID and the W3C
// trace context are taken from ctx when present.
func (f *EventFactory) CreateEvent(ctx context.Context, eventType, subject string, data any) *WMSCloudEvent {
	event := &WMSCloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              f.newID(),
		Time:            f.now().UTC(),
		DataContentType: "application/json",
		Data:            data,
		CorrelationID:   logging.CorrelationIDFromContext(ctx),
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		event.TraceParent = traceParent(sc)
		event.TraceState = sc.TraceState().String()
	}
	return event
}

// CreateEventWithWorkflow creates an event attributed to a Temporal workflow
func (f *EventFactory) CreateEventWithWorkflow(ctx context.Context, eventType, subject string, data any, workflowID string) *WMSCloudEvent {
	event := f.CreateEvent(ctx, eventType, subject, data)
	event.WorkflowID = workflowID
	return event
}

func traceParent(sc trace.SpanContext) string {
	return "00-" + sc.TraceID().String() + "-" + sc.SpanID().String() + "-" + sc.TraceFlags().String()
}
