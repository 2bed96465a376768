package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// TaskQueue is the default Temporal task queue of the warehouse worker
const TaskQueue = "warehouse-core"

// Signal names
const (
	SignalShipConfirmed   = "ship-confirmed"
	SignalShipmentArrived = "shipment-arrived"
)

// Activity names
const (
	ActivityTransitionOrder    = "TransitionOrder"
	ActivityGetOrder           = "GetOrder"
	ActivityTransitionShipment = "TransitionShipment"
	ActivityGetShipment        = "GetShipment"
)

// Activity and wait defaults
const (
	DefaultActivityTimeout time.Duration = time.Minute
	DefaultPollInterval    time.Duration = 30 * time.Second

	DefaultPickTimeout        time.Duration = 4 * time.Hour
	DefaultShipConfirmTimeout time.Duration = 8 * time.Hour
	DefaultArrivalTimeout     time.Duration = 7 * 24 * time.Hour
	DefaultReceivingTimeout   time.Duration = 24 * time.Hour
	DefaultPutawayTimeout     time.Duration = 24 * time.Hour
)

// Retry policy defaults
const (
	DefaultRetryInitialInterval    time.Duration = time.Second
	DefaultRetryMaxInterval        time.Duration = time.Minute
	DefaultRetryBackoffCoefficient float64       = 2.0
	DefaultMaxRetryAttempts        int32         = 5
)

// NonRetryableErrorTypes are the API error codes a retry cannot fix
var NonRetryableErrorTypes = []string{
	"VALIDATION_ERROR",
	"BAD_REQUEST",
	"RESOURCE_NOT_FOUND",
	"INSUFFICIENT_STOCK",
	"INVALID_TRANSITION",
	"ALLOCATION_FAILED",
	"ALREADY_ASSIGNED",
	"CAPACITY_EXCEEDED",
	"PRECONDITION_FAILED",
}

func activityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: DefaultActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        DefaultRetryInitialInterval,
			BackoffCoefficient:     DefaultRetryBackoffCoefficient,
			MaximumInterval:        DefaultRetryMaxInterval,
			MaximumAttempts:        DefaultMaxRetryAttempts,
			NonRetryableErrorTypes: NonRetryableErrorTypes,
		},
	}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
