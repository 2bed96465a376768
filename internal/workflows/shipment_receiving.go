package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/workflow"
)

// Shipment statuses driven by the receiving workflow
const (
	ShipmentInTransit = "in_transit"
	ShipmentReceiving = "receiving"
	ShipmentPutaway   = "putaway"
	ShipmentCompleted = "completed"
	ShipmentCancelled = "cancelled"
)

// ShipmentReceivingInput starts receiving of an existing pending shipment
type ShipmentReceivingInput struct {
	ShipmentID       string        `json:"shipmentId"`
	ArrivalTimeout   time.Duration `json:"arrivalTimeout,omitempty"`
	ReceivingTimeout time.Duration `json:"receivingTimeout,omitempty"`
	PutawayTimeout   time.Duration `json:"putawayTimeout,omitempty"`
	PollInterval     time.Duration `json:"pollInterval,omitempty"`
}

// ShipmentReceivingResult is the outcome of the receiving workflow
type ShipmentReceivingResult struct {
	ShipmentID    string `json:"shipmentId"`
	Status        string `json:"status"`
	ReceivedUnits int    `json:"receivedUnits"`
	Error         string `json:"error,omitempty"`
}

// ShipmentReceivingWorkflow drives a shipment from pending to completed:
// mark it in transit, wait for the shipment-arrived signal, open receiving,
// wait until every unit is received, release putaway, wait for putaway to
// finish and complete. A shipment that never arrives is cancelled.
func ShipmentReceivingWorkflow(ctx workflow.Context, input ShipmentReceivingInput) (*ShipmentReceivingResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting shipment receiving workflow", "shipmentId", input.ShipmentID)

	ctx = workflow.WithActivityOptions(ctx, activityOptions())
	result := &ShipmentReceivingResult{
		ShipmentID: input.ShipmentID,
		Status:     "in_progress",
	}
	interval := orDefault(input.PollInterval, DefaultPollInterval)

	transition := func(status string) error {
		var shipment ShipmentSnapshot
		return workflow.ExecuteActivity(ctx, ActivityTransitionShipment, TransitionShipmentInput{
			ShipmentID: input.ShipmentID,
			Status:     status,
		}).Get(ctx, &shipment)
	}
	failed := func(status string, err error) (*ShipmentReceivingResult, error) {
		result.Status = status
		result.Error = err.Error()
		return result, err
	}

	if err := transition(ShipmentInTransit); err != nil {
		return failed("transit_failed", err)
	}

	// Step 1: wait for the truck
	var arrival ShipmentArrival
	arrived := false

	selector := workflow.NewSelector(ctx)
	selector.AddReceive(workflow.GetSignalChannel(ctx, SignalShipmentArrived), func(c workflow.ReceiveChannel, more bool) {
		c.Receive(ctx, &arrival)
		arrived = true
	})
	timerCtx, cancelTimer := workflow.WithCancel(ctx)
	selector.AddFuture(workflow.NewTimer(timerCtx, orDefault(input.ArrivalTimeout, DefaultArrivalTimeout)), func(f workflow.Future) {
		logger.Warn("Shipment arrival timeout", "shipmentId", input.ShipmentID)
	})
	selector.Select(ctx)
	cancelTimer()

	if !arrived {
		err := fmt.Errorf("shipment %s did not arrive in time", input.ShipmentID)
		cancelShipment(ctx, input.ShipmentID)
		return failed("arrival_timeout", err)
	}
	logger.Info("Shipment arrived", "shipmentId", input.ShipmentID, "dock", arrival.Dock)

	// Step 2: receive every unit into staging
	if err := transition(ShipmentReceiving); err != nil {
		return failed("receiving_failed", err)
	}
	shipment, ok, err := waitForShipment(ctx, input.ShipmentID, interval,
		orDefault(input.ReceivingTimeout, DefaultReceivingTimeout), ShipmentSnapshot.FullyReceived)
	if err != nil {
		return failed("receiving_failed", err)
	}
	result.ReceivedUnits = shipment.ReceivedUnits
	if !ok {
		return failed("receiving_timeout", fmt.Errorf("shipment %s received %d of %d units", input.ShipmentID, shipment.ReceivedUnits, shipment.TotalUnits))
	}

	// Step 3: put away
	if err := transition(ShipmentPutaway); err != nil {
		return failed("putaway_failed", err)
	}
	_, ok, err = waitForShipment(ctx, input.ShipmentID, interval,
		orDefault(input.PutawayTimeout, DefaultPutawayTimeout), ShipmentSnapshot.PutawayComplete)
	if err != nil {
		return failed("putaway_failed", err)
	}
	if !ok {
		return failed("putaway_timeout", fmt.Errorf("shipment %s putaway did not finish in time", input.ShipmentID))
	}

	if err := transition(ShipmentCompleted); err != nil {
		return failed("completion_failed", err)
	}

	result.Status = ShipmentCompleted
	logger.Info("Shipment receiving completed", "shipmentId", input.ShipmentID, "receivedUnits", result.ReceivedUnits)
	return result, nil
}

func cancelShipment(ctx workflow.Context, shipmentID string) {
	logger := workflow.GetLogger(ctx)
	dctx, cancel := workflow.NewDisconnectedContext(ctx)
	defer cancel()

	var shipment ShipmentSnapshot
	err := workflow.ExecuteActivity(dctx, ActivityTransitionShipment, TransitionShipmentInput{
		ShipmentID: shipmentID,
		Status:     ShipmentCancelled,
	}).Get(dctx, &shipment)
	if err != nil {
		logger.Error("Failed to cancel shipment", "shipmentId", shipmentID, "error", err)
	}
}

func waitForShipment(ctx workflow.Context, shipmentID string, interval, timeout time.Duration, done func(ShipmentSnapshot) bool) (ShipmentSnapshot, bool, error) {
	deadline := workflow.Now(ctx).Add(timeout)
	for {
		var shipment ShipmentSnapshot
		if err := workflow.ExecuteActivity(ctx, ActivityGetShipment, shipmentID).Get(ctx, &shipment); err != nil {
			return shipment, false, err
		}
		if shipment.Status == ShipmentCancelled {
			return shipment, false, fmt.Errorf("shipment %s was cancelled", shipmentID)
		}
		if done(shipment) {
			return shipment, true, nil
		}
		if !workflow.Now(ctx).Before(deadline) {
			return shipment, false, nil
		}
		if err := workflow.Sleep(ctx, interval); err != nil {
			return shipment, false, err
		}
	}
}
