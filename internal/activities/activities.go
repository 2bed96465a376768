// Package activities implements the Temporal activities of the warehouse
// workflows on top of the warehouse HTTP API.
package activities

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/wms-platform/warehouse-core/internal/workflows"
	"github.com/wms-platform/warehouse-core/pkg/logging"
	"github.com/wms-platform/warehouse-core/pkg/metrics"
)

// WarehouseAPI is the subset of the warehouse API the activities call
type WarehouseAPI interface {
	TransitionOrder(ctx context.Context, in workflows.TransitionOrderInput) (*workflows.OrderSnapshot, error)
	GetOrder(ctx context.Context, orderID string) (*workflows.OrderSnapshot, error)
	TransitionShipment(ctx context.Context, in workflows.TransitionShipmentInput) (*workflows.ShipmentSnapshot, error)
	GetShipment(ctx context.Context, shipmentID string) (*workflows.ShipmentSnapshot, error)
}

// WarehouseActivities contains the order and shipment activities
type WarehouseActivities struct {
	api     WarehouseAPI
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewWarehouseActivities creates the activities. m may be nil.
func NewWarehouseActivities(api WarehouseAPI, m *metrics.Metrics, logger *logging.Logger) *WarehouseActivities {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &WarehouseActivities{
		api:     api,
		metrics: m,
		logger:  logger.WithComponent("activities"),
	}
}

// TransitionOrder moves an order through its lifecycle
func (a *WarehouseActivities) TransitionOrder(ctx context.Context, in workflows.TransitionOrderInput) (*workflows.OrderSnapshot, error) {
	ctx = a.begin(ctx)
	logger := activity.GetLogger(ctx)
	logger.Info("Transitioning order", "orderId", in.OrderID, "status", in.Status)

	start := time.Now()
	order, err := a.api.TransitionOrder(ctx, in)
	a.record(workflows.ActivityTransitionOrder, start, err)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to transition order", "orderId", in.OrderID, "status", in.Status)
		return nil, toActivityError(err)
	}
	return order, nil
}

// GetOrder reads an order's progress
func (a *WarehouseActivities) GetOrder(ctx context.Context, orderID string) (*workflows.OrderSnapshot, error) {
	ctx = a.begin(ctx)
	start := time.Now()
	order, err := a.api.GetOrder(ctx, orderID)
	a.record(workflows.ActivityGetOrder, start, err)
	if err != nil {
		return nil, toActivityError(err)
	}
	return order, nil
}

// TransitionShipment moves a shipment through its lifecycle
func (a *WarehouseActivities) TransitionShipment(ctx context.Context, in workflows.TransitionShipmentInput) (*workflows.ShipmentSnapshot, error) {
	ctx = a.begin(ctx)
	logger := activity.GetLogger(ctx)
	logger.Info("Transitioning shipment", "shipmentId", in.ShipmentID, "status", in.Status)

	start := time.Now()
	shipment, err := a.api.TransitionShipment(ctx, in)
	a.record(workflows.ActivityTransitionShipment, start, err)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to transition shipment", "shipmentId", in.ShipmentID, "status", in.Status)
		return nil, toActivityError(err)
	}
	return shipment, nil
}

// GetShipment reads a shipment's progress
func (a *WarehouseActivities) GetShipment(ctx context.Context, shipmentID string) (*workflows.ShipmentSnapshot, error) {
	ctx = a.begin(ctx)
	start := time.Now()
	shipment, err := a.api.GetShipment(ctx, shipmentID)
	a.record(workflows.ActivityGetShipment, start, err)
	if err != nil {
		return nil, toActivityError(err)
	}
	return shipment, nil
}

// begin tags API calls with the workflow id as correlation id
func (a *WarehouseActivities) begin(ctx context.Context) context.Context {
	if logging.CorrelationIDFromContext(ctx) != "" {
		return ctx
	}
	info := activity.GetInfo(ctx)
	id := info.WorkflowExecution.ID
	if id == "" {
		id = info.ActivityID
	}
	return logging.ContextWithCorrelationID(ctx, id)
}

func (a *WarehouseActivities) record(activityType string, start time.Time, err error) {
	if a.metrics != nil {
		a.metrics.RecordActivityCompleted(activityType, err == nil, time.Since(start))
	}
}

// toActivityError turns API rejections into non-retryable application errors
// typed with the API error code; transport failures and 5xx stay retryable.
func toActivityError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && !apiErr.Retryable() {
		return temporal.NewNonRetryableApplicationError(apiErr.Message, apiErr.Code, err)
	}
	return err
}
