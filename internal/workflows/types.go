package workflows

import "time"

// OrderSnapshot is the part of an order the workflows read back
type OrderSnapshot struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	TotalUnits     int    `json:"totalUnits"`
	PickedUnits    int    `json:"pickedUnits"`
	Carrier        string `json:"carrier,omitempty"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
}

// TransitionOrderInput asks the warehouse to move an order to Status
type TransitionOrderInput struct {
	OrderID        string `json:"orderId"`
	Status         string `json:"status"`
	Assignee       string `json:"assignee,omitempty"`
	Carrier        string `json:"carrier,omitempty"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
}

// ShipmentLineSnapshot is one shipment line as read back from the warehouse
type ShipmentLineSnapshot struct {
	SKU           string `json:"sku"`
	Quantity      int    `json:"quantity"`
	ReceivedUnits int    `json:"receivedUnits"`
	PutawayDone   bool   `json:"putawayDone"`
}

// ShipmentSnapshot is the part of a shipment the workflows read back
type ShipmentSnapshot struct {
	ID            string                 `json:"id"`
	Status        string                 `json:"status"`
	TotalUnits    int                    `json:"totalUnits"`
	ReceivedUnits int                    `json:"receivedUnits"`
	Lines         []ShipmentLineSnapshot `json:"lines"`
}

// FullyReceived reports whether every expected unit has been received
func (s ShipmentSnapshot) FullyReceived() bool {
	return s.TotalUnits > 0 && s.ReceivedUnits >= s.TotalUnits
}

// PutawayComplete reports whether every line has been put away
func (s ShipmentSnapshot) PutawayComplete() bool {
	for _, l := range s.Lines {
		if !l.PutawayDone {
			return false
		}
	}
	return len(s.Lines) > 0
}

// TransitionShipmentInput asks the warehouse to move a shipment to Status
type TransitionShipmentInput struct {
	ShipmentID string `json:"shipmentId"`
	Status     string `json:"status"`
}

// ShipConfirmation is the payload of the ship-confirmed signal
type ShipConfirmation struct {
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"trackingNumber"`
}

// ShipmentArrival is the payload of the shipment-arrived signal
type ShipmentArrival struct {
	Dock      string    `json:"dock,omitempty"`
	ArrivedAt time.Time `json:"arrivedAt"`
}
