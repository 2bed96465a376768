package cloudevents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/warehouse-core/pkg/logging"
)

func TestEventFactory_CreateEvent(t *testing.T) {
	f := NewEventFactory(SourceWarehouseCore)
	f.now = func() time.Time { return time.Date(2026, 1, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600)) }
	f.newID = func() string { return "evt-1" }

	ctx := logging.ContextWithCorrelationID(context.Background(), "corr-1")
	event := f.CreateEvent(ctx, "wms.order.transitioned", "order-1", map[string]string{"to": "allocated"})

	require.NoError(t, event.Validate())
	assert.Equal(t, "1.0", event.SpecVersion)
	assert.Equal(t, "evt-1", event.ID)
	assert.Equal(t, SourceWarehouseCore, event.Source)
	assert.Equal(t, "order-1", event.Subject)
	assert.Equal(t, "corr-1", event.CorrelationID)
	assert.Equal(t, time.UTC, event.Time.Location())
	assert.Empty(t, event.TraceParent, "no span in context")
}

func TestEventFactory_TraceContext(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	event := NewEventFactory(SourceWarehouseCore).CreateEventWithWorkflow(ctx, "wms.task.created", "t-1", nil, "wf-1")

	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", event.TraceParent)
	assert.Equal(t, "wf-1", event.WorkflowID)
}

func TestWMSCloudEvent_Validate(t *testing.T) {
	valid := WMSCloudEvent{SpecVersion: "1.0", ID: "1", Type: "t", Source: "s"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(e *WMSCloudEvent)
	}{
		{"spec version", func(e *WMSCloudEvent) { e.SpecVersion = "0.3" }},
		{"id", func(e *WMSCloudEvent) { e.ID = "" }},
		{"type", func(e *WMSCloudEvent) { e.Type = "" }},
		{"source", func(e *WMSCloudEvent) { e.Source = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid
			tt.mutate(&e)
			assert.Error(t, e.Validate())
		})
	}
}
