package domain

import (
	"regexp"
	"strings"
)

// Carrier is a shipping carrier value object
type Carrier struct {
	code string
	name string
}

const (
	carrierCodeUPS   = "UPS"
	carrierCodeFedEx = "FEDEX"
	carrierCodeUSPS  = "USPS"
	carrierCodeDHL   = "DHL"
)

var carrierNames = map[string]string{
	carrierCodeUPS:   "United Parcel Service",
	carrierCodeFedEx: "Federal Express",
	carrierCodeUSPS:  "United States Postal Service",
	carrierCodeDHL:   "DHL Express",
}

// CarrierCodes lists the accepted carrier codes
func CarrierCodes() []string {
	return []string{carrierCodeUPS, carrierCodeFedEx, carrierCodeUSPS, carrierCodeDHL}
}

// NewCarrier validates and normalizes a carrier code
func NewCarrier(code string) (Carrier, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	name, ok := carrierNames[code]
	if !ok {
		return Carrier{}, ErrInvalidCarrier
	}
	return Carrier{code: code, name: name}, nil
}

// Code returns the carrier code (UPS, FEDEX, USPS, DHL)
func (c Carrier) Code() string { return c.code }

// Name returns the full carrier name
func (c Carrier) Name() string { return c.name }

func (c Carrier) String() string { return c.code }

// TrackingNumber is a carrier tracking number value object
type TrackingNumber struct {
	value   string
	carrier string
}

var (
	// UPS: 18 characters starting with "1Z"
	upsPattern = regexp.MustCompile(`^1Z[A-Z0-9]{16}$`)
	// FedEx: 12 or 15 digits
	fedexPattern = regexp.MustCompile(`^\d{12}$|^\d{15}$`)
	// USPS: 20-22 digits
	uspsPattern = regexp.MustCompile(`^\d{20,22}$`)
	// DHL: 10 or 11 digits
	dhlPattern = regexp.MustCompile(`^\d{10,11}$`)
)

// NewTrackingNumberForCarrier validates a tracking number against the carrier's format
func NewTrackingNumberForCarrier(trackingNumber string, carrier Carrier) (TrackingNumber, error) {
	trackingNumber = strings.ToUpper(strings.TrimSpace(trackingNumber))
	if trackingNumber == "" {
		return TrackingNumber{}, ErrInvalidTracking
	}

	var valid bool
	switch carrier.code {
	case carrierCodeUPS:
		valid = upsPattern.MatchString(trackingNumber)
	case carrierCodeFedEx:
		valid = fedexPattern.MatchString(trackingNumber)
	case carrierCodeUSPS:
		valid = uspsPattern.MatchString(trackingNumber)
	case carrierCodeDHL:
		valid = dhlPattern.MatchString(trackingNumber)
	}
	if !valid {
		return TrackingNumber{}, ErrInvalidTracking
	}

	return TrackingNumber{value: trackingNumber, carrier: carrier.code}, nil
}

// Value returns the tracking number value
func (tn TrackingNumber) Value() string { return tn.value }

// Carrier returns the carrier code the number was validated for
func (tn TrackingNumber) Carrier() string { return tn.carrier }

func (tn TrackingNumber) String() string { return tn.value }
