package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Recorders(t *testing.T) {
	m := New(DefaultConfig("warehouse-core"))

	m.RecordMovement("inbound", "applied")
	m.RecordMovement("inbound", "applied")
	m.RecordMovement("outbound", "rejected")
	m.RecordOrderTransition("allocated", false)
	m.RecordTask("pick", "completed")
	m.RecordCountSubmission(true)
	m.RecordOutboxPublish("wms.task.created", true, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.MovementsApplied.WithLabelValues("warehouse-core", "inbound", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MovementsApplied.WithLabelValues("warehouse-core", "outbound", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrderTransitions.WithLabelValues("warehouse-core", "allocated", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TaskLifecycle.WithLabelValues("warehouse-core", "pick", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CountVariances.WithLabelValues("warehouse-core", "variance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxPublished.WithLabelValues("warehouse-core", "wms.task.created", "success")))
}

func TestMetrics_SetStats(t *testing.T) {
	m := New(DefaultConfig("warehouse-core"))

	m.SetStats(StatsGauges{TotalValue: 260, TotalUnits: 104, AvgZoneUtilization: 0.25, LowStock: 1, OpenTasks: 3, CountAccuracy: 0.8})

	assert.Equal(t, 260.0, testutil.ToFloat64(m.InventoryValue))
	assert.Equal(t, 104.0, testutil.ToFloat64(m.InventoryUnits))
	assert.Equal(t, 0.25, testutil.ToFloat64(m.ZoneUtilization))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.OpenTasks))
	assert.Equal(t, 0.8, testutil.ToFloat64(m.CycleCountAccuracy))
}

func TestMetrics_Handler(t *testing.T) {
	m := New(DefaultConfig("warehouse-core"))
	m.RecordHTTPRequest("GET", "/api/v1/stats", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "wms_http_requests_total")
	assert.Contains(t, rec.Body.String(), "wms_inventory_value")
}
