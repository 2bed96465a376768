package activities

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/wms-platform/warehouse-core/internal/workflows"
	"github.com/wms-platform/warehouse-core/pkg/metrics"
)

type recordedRequest struct {
	method        string
	path          string
	correlationID string
	body          map[string]string
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	response any
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{
		method:        r.Method,
		path:          r.URL.Path,
		correlationID: r.Header.Get(correlationHeader),
	}
	if r.Body != nil && r.Method == http.MethodPost {
		_ = json.NewDecoder(r.Body).Decode(&rec.body)
	}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	status, response := f.status, f.response
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

func (f *fakeAPI) last(t *testing.T) recordedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func setup(t *testing.T, status int, response any) (*testsuite.TestActivityEnvironment, *fakeAPI, *metrics.Metrics) {
	t.Helper()
	api := &fakeAPI{status: status, response: response}
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	m := metrics.New(metrics.DefaultConfig("warehouse-worker"))
	acts := NewWarehouseActivities(NewWarehouseClient(server.URL, 5*time.Second), m, nil)

	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()
	env.RegisterActivity(acts)
	return env, api, m
}

func TestTransitionOrder_Success(t *testing.T) {
	env, api, m := setup(t, http.StatusOK, map[string]any{
		"id":          "ord-1",
		"status":      "picking",
		"totalUnits":  4,
		"pickedUnits": 0,
	})

	val, err := env.ExecuteActivity(workflows.ActivityTransitionOrder, workflows.TransitionOrderInput{
		OrderID:  "ord-1",
		Status:   "picking",
		Assignee: "picker-7",
	})
	require.NoError(t, err)

	var order workflows.OrderSnapshot
	require.NoError(t, val.Get(&order))
	assert.Equal(t, "picking", order.Status)
	assert.Equal(t, 4, order.TotalUnits)

	req := api.last(t)
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/api/v1/orders/ord-1/transitions", req.path)
	assert.Equal(t, "picking", req.body["status"])
	assert.Equal(t, "picker-7", req.body["assignee"])
	assert.NotEmpty(t, req.correlationID)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActivitiesCompleted.WithLabelValues("warehouse-worker", workflows.ActivityTransitionOrder, "success")))
}

func TestTransitionOrder_RejectionIsNonRetryable(t *testing.T) {
	env, _, m := setup(t, http.StatusConflict, map[string]any{
		"code":    "INVALID_TRANSITION",
		"message": "order ord-1 cannot move from pending to shipped",
	})

	_, err := env.ExecuteActivity(workflows.ActivityTransitionOrder, workflows.TransitionOrderInput{
		OrderID: "ord-1",
		Status:  "shipped",
	})
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "INVALID_TRANSITION", appErr.Type())
	assert.True(t, appErr.NonRetryable())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActivitiesCompleted.WithLabelValues("warehouse-worker", workflows.ActivityTransitionOrder, "error")))
}

func TestGetShipment_ServerErrorStaysRetryable(t *testing.T) {
	env, api, _ := setup(t, http.StatusServiceUnavailable, map[string]any{
		"code":    "SERVICE_UNAVAILABLE",
		"message": "try again",
	})

	_, err := env.ExecuteActivity(workflows.ActivityGetShipment, "shp-1")
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		assert.False(t, appErr.NonRetryable())
	}
	assert.Equal(t, "/api/v1/shipments/shp-1", api.last(t).path)
}

func TestGetShipment_DecodesLines(t *testing.T) {
	env, _, _ := setup(t, http.StatusOK, map[string]any{
		"id":            "shp-1",
		"status":        "putaway",
		"totalUnits":    10,
		"receivedUnits": 10,
		"lines": []map[string]any{
			{"sku": "X", "quantity": 6, "receivedUnits": 6, "putawayDone": true},
			{"sku": "Y", "quantity": 4, "receivedUnits": 4, "putawayDone": false},
		},
	})

	val, err := env.ExecuteActivity(workflows.ActivityGetShipment, "shp-1")
	require.NoError(t, err)

	var shipment workflows.ShipmentSnapshot
	require.NoError(t, val.Get(&shipment))
	assert.True(t, shipment.FullyReceived())
	assert.False(t, shipment.PutawayComplete())
	assert.Len(t, shipment.Lines, 2)
}

func TestAPIError_Retryable(t *testing.T) {
	assert.True(t, (&APIError{Status: http.StatusBadGateway}).Retryable())
	assert.True(t, (&APIError{Status: http.StatusTooManyRequests}).Retryable())
	assert.False(t, (&APIError{Status: http.StatusNotFound}).Retryable())
	assert.False(t, (&APIError{Status: http.StatusUnprocessableEntity}).Retryable())
}
