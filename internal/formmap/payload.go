package formmap

import (
	"fmt"
	"strconv"
	"strings"

	"formpilot/internal/declaration"
)

// arrivalPorts expands a port code to the full-text label the portal's
// dropdown displays. Codes not listed here pass through verbatim; the portal
// occasionally adds ports faster than we track them and an unknown code must
// never abort the run.
var arrivalPorts = map[string]string{
	"CGK": "CGK - SOEKARNO-HATTA INTERNATIONAL AIRPORT",
	"DPS": "DPS - I GUSTI NGURAH RAI INTERNATIONAL AIRPORT",
	"SUB": "SUB - JUANDA INTERNATIONAL AIRPORT",
	"KNO": "KNO - KUALANAMU INTERNATIONAL AIRPORT",
	"UPG": "UPG - SULTAN HASANUDDIN INTERNATIONAL AIRPORT",
	"JOG": "JOG - YOGYAKARTA INTERNATIONAL AIRPORT",
	"BPN": "BPN - SULTAN AJI MUHAMMAD SULAIMAN AIRPORT",
	"BTH": "BTH - HANG NADIM INTERNATIONAL AIRPORT",
	"LOP": "LOP - LOMBOK INTERNATIONAL AIRPORT",
	"TNJ": "TNJ - RAJA HAJI FISABILILLAH AIRPORT",
	"IDSRI": "SRI BINTAN PURA INTERNATIONAL FERRY PORT",
	"IDBTM": "BATAM CENTRE INTERNATIONAL FERRY PORT",
	"IDTPP": "TANJUNG PRIOK SEAPORT",
	"IDBOA": "BENOA SEAPORT",
}

// nationalities expands an ISO 3166-1 alpha-2 code to the label the portal
// expects. Unknown codes pass through verbatim.
var nationalities = map[string]string{
	"AU": "AUSTRALIA",
	"AT": "AUSTRIA",
	"BE": "BELGIUM",
	"BR": "BRAZIL",
	"CA": "CANADA",
	"CN": "CHINA",
	"DK": "DENMARK",
	"FI": "FINLAND",
	"FR": "FRANCE",
	"DE": "GERMANY",
	"IN": "INDIA",
	"ID": "INDONESIA",
	"IE": "IRELAND",
	"IT": "ITALY",
	"JP": "JAPAN",
	"KR": "SOUTH KOREA",
	"MY": "MALAYSIA",
	"NL": "NETHERLANDS",
	"NZ": "NEW ZEALAND",
	"NO": "NORWAY",
	"PH": "PHILIPPINES",
	"RU": "RUSSIA",
	"SA": "SAUDI ARABIA",
	"SG": "SINGAPORE",
	"ZA": "SOUTH AFRICA",
	"ES": "SPAIN",
	"SE": "SWEDEN",
	"CH": "SWITZERLAND",
	"TH": "THAILAND",
	"TR": "TURKEY",
	"AE": "UNITED ARAB EMIRATES",
	"GB": "UNITED KINGDOM",
	"US": "UNITED STATES OF AMERICA",
	"VN": "VIETNAM",
}

// ExpandPort resolves a port code to the portal's dropdown label.
func ExpandPort(code string) string {
	if label, ok := arrivalPorts[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return label
	}
	return code
}

// ExpandNationality resolves a nationality code to the portal's label.
func ExpandNationality(code string) string {
	if label, ok := nationalities[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return label
	}
	return code
}

// splitISODate breaks "yyyy-mm-dd" into (day, month, year) with leading
// zeros stripped the way the portal's numeric sub-fields want them. Values
// that do not look like an ISO date come back as the original string in the
// day slot so a malformed input is still visible on the form, not silently
// dropped.
func splitISODate(iso string) (day, month, year string) {
	parts := strings.Split(strings.TrimSpace(iso), "-")
	if len(parts) != 3 {
		return iso, "", ""
	}
	return strings.TrimLeft(parts[2], "0"), strings.TrimLeft(parts[1], "0"), parts[0]
}

// displayDate reformats "yyyy-mm-dd" into the portal's dd/mm/yyyy display
// order. Non-ISO input passes through verbatim.
func displayDate(iso string) string {
	parts := strings.Split(strings.TrimSpace(iso), "-")
	if len(parts) != 3 {
		return iso
	}
	return fmt.Sprintf("%s/%s/%s", parts[2], parts[1], parts[0])
}

func checkbox(v bool) string {
	return strconv.FormatBool(v)
}

// ExternalPayload converts a validated declaration record into the flat
// field-value map the portal form expects, keyed by mapping key. The record
// is read-only here; no external code ever sees intermediate shapes.
func ExternalPayload(r *declaration.Record) map[string]string {
	day, month, year := splitISODate(r.DateOfBirth)

	p := map[string]string{
		"fullPassportName":     strings.ToUpper(strings.TrimSpace(r.FullPassportName)),
		"passportNumber":       strings.TrimSpace(r.PassportNumber),
		"nationality":          ExpandNationality(r.Nationality),
		"dobDay":               day,
		"dobMonth":             month,
		"dobYear":              year,
		"passportExpiryDate":   displayDate(r.PassportExpiryDate),
		"mobileNumber":         strings.TrimSpace(r.MobileNumber),
		"email":                strings.TrimSpace(r.Email),
		"arrivalDate":          displayDate(r.ArrivalDate),
		"modeOfTransport":      strings.ToUpper(strings.TrimSpace(r.ModeOfTransport)),
		"portOfArrival":        ExpandPort(r.PortOfArrival),
		"purposeOfVisit":       strings.ToUpper(strings.TrimSpace(r.PurposeOfVisit)),
		"typeOfResidence":      strings.ToUpper(strings.TrimSpace(r.TypeOfResidence)),
		"addressInIndonesia":   strings.ToUpper(strings.TrimSpace(r.AddressInIndonesia)),
		"numberOfLuggage":      strconv.Itoa(r.NumberOfLuggage),
		"countriesVisited":     strings.Join(r.CountriesVisited, ", "),
		"hasTechnologyDevices": checkbox(r.HasTechnologyDevices != nil && *r.HasTechnologyDevices),
		"hasQuarantineItems":   checkbox(r.HasQuarantineItems),
		"consentAccurate":      checkbox(r.ConsentAccurate),
	}

	if r.Gender.Set && r.Gender.Value != "" {
		p["gender"] = strings.ToUpper(strings.TrimSpace(r.Gender.Value))
	}

	switch strings.ToUpper(strings.TrimSpace(r.ModeOfTransport)) {
	case declaration.TransportAir:
		p["flightName"] = strings.ToUpper(strings.TrimSpace(r.FlightName))
		p["flightNumber"] = strings.ToUpper(strings.TrimSpace(r.FlightNumber))
	case declaration.TransportSea:
		p["vesselName"] = strings.ToUpper(strings.TrimSpace(r.VesselName))
		p["typeOfVessel"] = strings.ToUpper(strings.TrimSpace(r.TypeOfVessel))
	}

	for i, fm := range r.FamilyMembers {
		p[fmt.Sprintf("familyMembers.%d.fullPassportName", i)] = strings.ToUpper(strings.TrimSpace(fm.FullPassportName))
		p[fmt.Sprintf("familyMembers.%d.passportNumber", i)] = strings.TrimSpace(fm.PassportNumber)
		p[fmt.Sprintf("familyMembers.%d.nationality", i)] = ExpandNationality(fm.Nationality)
		p[fmt.Sprintf("familyMembers.%d.dateOfBirth", i)] = displayDate(fm.DateOfBirth)
	}

	return p
}
