package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/workflow"
)

// Order statuses driven by the fulfillment workflow
const (
	OrderAllocated = "allocated"
	OrderPicking   = "picking"
	OrderPicked    = "picked"
	OrderPacking   = "packing"
	OrderPacked    = "packed"
	OrderShipped   = "shipped"
	OrderCancelled = "cancelled"
)

// OrderFulfillmentInput starts fulfillment of an existing pending order
type OrderFulfillmentInput struct {
	OrderID string `json:"orderId"`
	// Assignee receives the pick tasks created when picking starts
	Assignee           string        `json:"assignee"`
	PickTimeout        time.Duration `json:"pickTimeout,omitempty"`
	ShipConfirmTimeout time.Duration `json:"shipConfirmTimeout,omitempty"`
	PollInterval       time.Duration `json:"pollInterval,omitempty"`
}

// OrderFulfillmentResult is the outcome of the fulfillment workflow
type OrderFulfillmentResult struct {
	OrderID        string `json:"orderId"`
	Status         string `json:"status"`
	Carrier        string `json:"carrier,omitempty"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
	Error          string `json:"error,omitempty"`
}

// OrderFulfillmentWorkflow drives an order from pending to shipped:
// allocate, start picking, wait until every unit is picked, pack, wait for
// the ship-confirmed signal, then ship. A failure after allocation cancels
// the order so its reservation is released.
func OrderFulfillmentWorkflow(ctx workflow.Context, input OrderFulfillmentInput) (*OrderFulfillmentResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting order fulfillment workflow", "orderId", input.OrderID)

	ctx = workflow.WithActivityOptions(ctx, activityOptions())
	result := &OrderFulfillmentResult{
		OrderID: input.OrderID,
		Status:  "in_progress",
	}

	transition := func(req TransitionOrderInput) error {
		req.OrderID = input.OrderID
		var order OrderSnapshot
		return workflow.ExecuteActivity(ctx, ActivityTransitionOrder, req).Get(ctx, &order)
	}

	fail := func(status string, err error) (*OrderFulfillmentResult, error) {
		result.Status = status
		result.Error = err.Error()
		compensateOrder(ctx, input.OrderID)
		return result, err
	}

	// Step 1: reserve stock
	if err := transition(TransitionOrderInput{Status: OrderAllocated}); err != nil {
		result.Status = "allocation_failed"
		result.Error = err.Error()
		return result, err
	}

	// Step 2: release pick tasks to the assignee
	if err := transition(TransitionOrderInput{Status: OrderPicking, Assignee: input.Assignee}); err != nil {
		return fail("picking_failed", err)
	}

	// Step 3: wait for the pick tasks to credit every unit
	picked, err := waitForOrder(ctx, input.OrderID,
		orDefault(input.PollInterval, DefaultPollInterval),
		orDefault(input.PickTimeout, DefaultPickTimeout),
		func(o OrderSnapshot) bool { return o.PickedUnits >= o.TotalUnits },
	)
	if err != nil {
		return fail("picking_failed", err)
	}
	if !picked {
		return fail("pick_timeout", fmt.Errorf("order %s was not picked in time", input.OrderID))
	}

	if err := transition(TransitionOrderInput{Status: OrderPicked}); err != nil {
		return fail("picking_failed", err)
	}
	if err := transition(TransitionOrderInput{Status: OrderPacking}); err != nil {
		return fail("packing_failed", err)
	}

	// Step 4: wait for the carrier hand-off
	logger.Info("Waiting for ship confirmation", "orderId", input.OrderID)
	var confirmation ShipConfirmation
	confirmed := false

	selector := workflow.NewSelector(ctx)
	selector.AddReceive(workflow.GetSignalChannel(ctx, SignalShipConfirmed), func(c workflow.ReceiveChannel, more bool) {
		c.Receive(ctx, &confirmation)
		confirmed = true
	})
	timerCtx, cancelTimer := workflow.WithCancel(ctx)
	selector.AddFuture(workflow.NewTimer(timerCtx, orDefault(input.ShipConfirmTimeout, DefaultShipConfirmTimeout)), func(f workflow.Future) {
		logger.Warn("Ship confirmation timeout", "orderId", input.OrderID)
	})
	selector.Select(ctx)
	cancelTimer()

	if !confirmed {
		return fail("ship_confirm_timeout", fmt.Errorf("order %s was not confirmed for shipping in time", input.OrderID))
	}

	if err := transition(TransitionOrderInput{Status: OrderPacked}); err != nil {
		return fail("packing_failed", err)
	}
	if err := transition(TransitionOrderInput{
		Status:         OrderShipped,
		Carrier:        confirmation.Carrier,
		TrackingNumber: confirmation.TrackingNumber,
	}); err != nil {
		return fail("shipping_failed", err)
	}

	result.Status = OrderShipped
	result.Carrier = confirmation.Carrier
	result.TrackingNumber = confirmation.TrackingNumber
	logger.Info("Order fulfillment completed", "orderId", input.OrderID, "trackingNumber", confirmation.TrackingNumber)
	return result, nil
}

// compensateOrder cancels the order, which releases any reservation it holds.
// It runs on a disconnected context so it also runs when the workflow was cancelled.
func compensateOrder(ctx workflow.Context, orderID string) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Compensating order fulfillment", "orderId", orderID)

	dctx, cancel := workflow.NewDisconnectedContext(ctx)
	defer cancel()

	var order OrderSnapshot
	err := workflow.ExecuteActivity(dctx, ActivityTransitionOrder, TransitionOrderInput{
		OrderID: orderID,
		Status:  OrderCancelled,
	}).Get(dctx, &order)
	if err != nil {
		logger.Error("Failed to cancel order during compensation", "orderId", orderID, "error", err)
	}
}

// waitForOrder polls the order until done reports true, the order is
// cancelled, or timeout elapses. It returns false on timeout.
func waitForOrder(ctx workflow.Context, orderID string, interval, timeout time.Duration, done func(OrderSnapshot) bool) (bool, error) {
	deadline := workflow.Now(ctx).Add(timeout)
	for {
		var order OrderSnapshot
		if err := workflow.ExecuteActivity(ctx, ActivityGetOrder, orderID).Get(ctx, &order); err != nil {
			return false, err
		}
		if order.Status == OrderCancelled {
			return false, fmt.Errorf("order %s was cancelled", orderID)
		}
		if done(order) {
			return true, nil
		}
		if !workflow.Now(ctx).Before(deadline) {
			return false, nil
		}
		if err := workflow.Sleep(ctx, interval); err != nil {
			return false, err
		}
	}
}
