package declaration

import "strings"

// Validation is the outcome of a completeness check. MissingFields lists every
// defect found in one pass so the caller can report them all at once.
type Validation struct {
	Valid         bool     `json:"valid"`
	MissingFields []string `json:"missingFields,omitempty"`
}

// requiredField pairs a caller-facing field name with its accessor.
type requiredField struct {
	name string
	get  func(*Record) string
}

// requiredFields are unconditionally required regardless of transport mode.
// Order matters only for the stability of the reported list.
var requiredFields = []requiredField{
	{"passportNumber", func(r *Record) string { return r.PassportNumber }},
	{"fullPassportName", func(r *Record) string { return r.FullPassportName }},
	{"nationality", func(r *Record) string { return r.Nationality }},
	{"dateOfBirth", func(r *Record) string { return r.DateOfBirth }},
	{"passportExpiryDate", func(r *Record) string { return r.PassportExpiryDate }},
	{"mobileNumber", func(r *Record) string { return r.MobileNumber }},
	{"email", func(r *Record) string { return r.Email }},
	{"arrivalDate", func(r *Record) string { return r.ArrivalDate }},
	{"modeOfTransport", func(r *Record) string { return r.ModeOfTransport }},
	{"purposeOfVisit", func(r *Record) string { return r.PurposeOfVisit }},
	{"typeOfResidence", func(r *Record) string { return r.TypeOfResidence }},
	{"addressInIndonesia", func(r *Record) string { return r.AddressInIndonesia }},
	{"portOfArrival", func(r *Record) string { return r.PortOfArrival }},
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Validate checks a record for completeness and conditional-field consistency.
// Pure function: no side effects, no network access. It does not fail fast;
// every missing field is collected before returning.
func Validate(r *Record) Validation {
	var missing []string

	for _, f := range requiredFields {
		if blank(f.get(r)) {
			missing = append(missing, f.name)
		}
	}

	// Gender must be present as a key. A null value is a valid "unspecified"
	// answer, so only absence counts as missing.
	if !r.Gender.Set {
		missing = append(missing, "gender")
	}

	switch strings.ToUpper(strings.TrimSpace(r.ModeOfTransport)) {
	case TransportAir:
		if blank(r.FlightName) {
			missing = append(missing, "flightName")
		}
		if blank(r.FlightNumber) {
			missing = append(missing, "flightNumber")
		}
	case TransportSea:
		if blank(r.VesselName) {
			missing = append(missing, "vesselName")
		}
		if blank(r.TypeOfVessel) {
			missing = append(missing, "typeOfVessel")
		}
	}

	// Declaration booleans must be explicit. A null or absent value means the
	// traveler never answered the question.
	if r.HasGoodsToDeclarate == nil {
		missing = append(missing, "hasGoodsToDeclarate (must be boolean)")
	}
	if r.HasTechnologyDevices == nil {
		missing = append(missing, "hasTechnologyDevices (must be boolean)")
	}

	if !r.ConsentAccurate {
		missing = append(missing, "consentAccurate (must be true)")
	}

	if len(r.CountriesVisited) == 0 {
		missing = append(missing, "countriesVisited (must be non-empty array)")
	}

	if r.FamilyMembers == nil {
		missing = append(missing, "familyMembers (must be array)")
	}

	if r.GoodsDeclared() && r.DeclaredGoods == nil {
		missing = append(missing, "declaredGoods (must be array when hasGoodsToDeclarate is true)")
	}

	return Validation{Valid: len(missing) == 0, MissingFields: missing}
}
