// Package declaration defines the traveler declaration record plus the
// pre-automation checks that run against it: completeness validation and the
// manual-submission redirect policy. Everything here is pure data and pure
// functions; no network or browser access happens before the orchestrator.
package declaration

import "encoding/json"

// Transport modes accepted by the arrival portal.
const (
	TransportAir  = "AIR"
	TransportSea  = "SEA"
	TransportLand = "LAND"
)

// GovernmentFlight is the air-transport sub-type that always requires manual
// officer handling on the portal side.
const GovernmentFlight = "GOVERNMENT FLIGHT"

// OptionalString distinguishes "key absent" from "key present with null".
// The portal treats an explicit null gender as "unspecified", which is a
// valid answer, while a missing key is a caller defect.
type OptionalString struct {
	Set   bool
	Value string
}

// UnmarshalJSON marks the key as present even when the value is null.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// MarshalJSON round-trips null for present-but-unset values.
func (o OptionalString) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Value == "" {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// FamilyMember is a nested sub-record for travelers declared together.
type FamilyMember struct {
	PassportNumber   string `json:"passportNumber"`
	FullPassportName string `json:"fullPassportName"`
	Nationality      string `json:"nationality"`
	DateOfBirth      string `json:"dateOfBirth"`
	Gender           string `json:"gender,omitempty"`
	MobileNumber     string `json:"mobileNumber,omitempty"`
	Email            string `json:"email,omitempty"`
}

// DeclaredGood is one line item of the customs goods declaration. Only
// meaningful when HasGoodsToDeclarate is true.
type DeclaredGood struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	Value       string `json:"value"`
	Currency    string `json:"currency,omitempty"`
}

// Record is the traveler's complete input for one arrival declaration.
// It is created by the caller, validated once, consumed by a single
// orchestrator run and never mutated afterwards.
type Record struct {
	// Identity
	PassportNumber     string         `json:"passportNumber"`
	FullPassportName   string         `json:"fullPassportName"`
	Nationality        string         `json:"nationality"`
	DateOfBirth        string         `json:"dateOfBirth"` // ISO yyyy-mm-dd
	Gender             OptionalString `json:"gender"`
	PassportExpiryDate string         `json:"passportExpiryDate"`

	// Contact
	MobileNumber string `json:"mobileNumber"`
	Email        string `json:"email"`

	// Trip
	ArrivalDate        string `json:"arrivalDate"` // ISO yyyy-mm-dd
	DepartureDate      string `json:"departureDate,omitempty"`
	ModeOfTransport    string `json:"modeOfTransport"`
	TypeOfAirTransport string `json:"typeOfAirTransport,omitempty"`
	PurposeOfVisit     string `json:"purposeOfVisit"`
	TypeOfResidence    string `json:"typeOfResidence"`
	AddressInIndonesia string `json:"addressInIndonesia"`
	PortOfArrival      string `json:"portOfArrival"`

	// Conditional transport fields
	FlightName   string `json:"flightName,omitempty"`
	FlightNumber string `json:"flightNumber,omitempty"`
	VesselName   string `json:"vesselName,omitempty"`
	TypeOfVessel string `json:"typeOfVessel,omitempty"`

	// Customs / health declarations
	HasGoodsToDeclarate  *bool    `json:"hasGoodsToDeclarate"`
	HasTechnologyDevices *bool    `json:"hasTechnologyDevices"`
	HasSymptoms          bool     `json:"hasSymptoms"`
	HasQuarantineItems   bool     `json:"hasQuarantineItems"`
	CountriesVisited     []string `json:"countriesVisited"`

	NumberOfLuggage int  `json:"numberOfLuggage"`
	ConsentAccurate bool `json:"consentAccurate"`

	FamilyMembers []FamilyMember `json:"familyMembers"`
	DeclaredGoods []DeclaredGood `json:"declaredGoods,omitempty"`
}

// GoodsDeclared reports whether the record explicitly declares goods.
func (r *Record) GoodsDeclared() bool {
	return r.HasGoodsToDeclarate != nil && *r.HasGoodsToDeclarate
}
