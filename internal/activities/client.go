package activities

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/wms-platform/warehouse-core/internal/workflows"
	"github.com/wms-platform/warehouse-core/pkg/logging"
)

const correlationHeader = "X-Correlation-ID"

// APIError is an error response of the warehouse API
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("warehouse api %d %s: %s", e.Status, e.Code, e.Message)
}

// Retryable reports whether repeating the request may succeed
func (e *APIError) Retryable() bool {
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}

// WarehouseClient calls the warehouse HTTP API
type WarehouseClient struct {
	http *resty.Client
}

// NewWarehouseClient creates a client for the API at baseURL
func NewWarehouseClient(baseURL string, timeout time.Duration) *WarehouseClient {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")+"/api/v1").
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)

	client.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		ctx := r.Context()
		if id := logging.CorrelationIDFromContext(ctx); id != "" {
			r.SetHeader(correlationHeader, id)
		}
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(r.Header))
		return nil
	})

	return &WarehouseClient{http: client}
}

func (c *WarehouseClient) do(ctx context.Context, method, path string, body, result any) error {
	apiErr := &APIError{}
	req := c.http.R().
		SetContext(ctx).
		SetResult(result).
		SetError(apiErr)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		if apiErr.Code == "" {
			apiErr.Message = resp.String()
		}
		return apiErr
	}
	return nil
}

// TransitionOrder moves an order to in.Status
func (c *WarehouseClient) TransitionOrder(ctx context.Context, in workflows.TransitionOrderInput) (*workflows.OrderSnapshot, error) {
	var order workflows.OrderSnapshot
	body := map[string]string{
		"status":         in.Status,
		"assignee":       in.Assignee,
		"carrier":        in.Carrier,
		"trackingNumber": in.TrackingNumber,
	}
	if err := c.do(ctx, http.MethodPost, "/orders/"+in.OrderID+"/transitions", body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrder reads an order
func (c *WarehouseClient) GetOrder(ctx context.Context, orderID string) (*workflows.OrderSnapshot, error) {
	var order workflows.OrderSnapshot
	if err := c.do(ctx, http.MethodGet, "/orders/"+orderID, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// TransitionShipment moves a shipment to in.Status
func (c *WarehouseClient) TransitionShipment(ctx context.Context, in workflows.TransitionShipmentInput) (*workflows.ShipmentSnapshot, error) {
	var shipment workflows.ShipmentSnapshot
	body := map[string]string{"status": in.Status}
	if err := c.do(ctx, http.MethodPost, "/shipments/"+in.ShipmentID+"/transitions", body, &shipment); err != nil {
		return nil, err
	}
	return &shipment, nil
}

// GetShipment reads a shipment
func (c *WarehouseClient) GetShipment(ctx context.Context, shipmentID string) (*workflows.ShipmentSnapshot, error) {
	var shipment workflows.ShipmentSnapshot
	if err := c.do(ctx, http.MethodGet, "/shipments/"+shipmentID, nil, &shipment); err != nil {
		return nil, err
	}
	return &shipment, nil
}
