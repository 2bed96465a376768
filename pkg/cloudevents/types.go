package cloudevents

import (
	"errors"
	"time"
)

// SourceWarehouseCore is the CloudEvents source of every warehouse core event
const SourceWarehouseCore = "/wms/warehouse-core"

// CloudEvents extension attribute names
const (
	ExtCorrelationID = "wmscorrelationid"
	ExtWorkflowID    = "wmsworkflowid"
	ExtTraceParent   = "traceparent"
	ExtTraceState    = "tracestate"
)

// Header names used when events travel over Kafka (binary content mode)
const (
	HeaderSpecVersion   = "ce-specversion"
	HeaderType          = "ce-type"
	HeaderSource        = "ce-source"
	HeaderID            = "ce-id"
	HeaderTime          = "ce-time"
	HeaderSubject       = "ce-subject"
	HeaderCorrelationID = "ce-" + ExtCorrelationID
	HeaderWorkflowID    = "ce-" + ExtWorkflowID
	HeaderTraceParent   = "ce-" + ExtTraceParent
	HeaderTraceState    = "ce-" + ExtTraceState
	HeaderContentType   = "content-type"
)

// WMSCloudEvent represents a CloudEvents v1.0 compliant event
type WMSCloudEvent struct {
	SpecVersion     string    `json:"specversion"`
	Type            string    `json:"type"`
	Source          string    `json:"source"`
	Subject         string    `json:"subject,omitempty"`
	ID              string    `json:"id"`
	Time            time.Time `json:"time"`
	DataContentType string    `json:"datacontenttype"`
	Data            any       `json:"data"`

	CorrelationID string `json:"wmscorrelationid,omitempty"`
	WorkflowID    string `json:"wmsworkflowid,omitempty"`

	// W3C trace context
	TraceParent string `json:"traceparent,omitempty"`
	TraceState  string `json:"tracestate,omitempty"`
}

// Validate checks the required CloudEvents context attributes
func (e *WMSCloudEvent) Validate() error {
	switch {
	case e.SpecVersion != "1.0":
		return errors.New("cloudevent: specversion must be 1.0")
	case e.ID == "":
		return errors.New("cloudevent: id is required")
	case e.Type == "":
		return errors.New("cloudevent: type is required")
	case e.Source == "":
		return errors.New("cloudevent: source is required")
	}
	return nil
}
