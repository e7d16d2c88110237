// Package formmap is the declarative description of the arrival declaration
// portal: which fields exist, how to locate them, which interaction verb
// drives each one, and what must be visible before the verb may run. The
// table is pure data so the automation engine stays generic over any ordered
// set of mappings; "which form" lives here, "how to drive a form" lives in
// internal/automation.
package formmap

import "fmt"

// Verb is the interaction applied to a form field.
type Verb string

const (
	VerbType   Verb = "type"
	VerbSelect Verb = "select"
	VerbCheck  Verb = "check"
)

// Mapping describes one target-form field. Mappings are immutable, declared
// once and shared read-only across all automation runs; they carry no per-run
// state.
type Mapping struct {
	// Key is the stable logical name, matching the payload produced by
	// ExternalPayload.
	Key string
	// Selector locates the input element.
	Selector string
	// Verb is the interaction applied to the element.
	Verb Verb
	// WaitFor, when non-empty, is a readiness locator that must become
	// visible before the verb may run. Used for dynamically rendered
	// dropdown panels.
	WaitFor string
	// Required fields must be populated for the run to proceed to
	// submission.
	Required bool
}

// dropdownPanel is the floating option panel the portal renders lazily the
// first time a select control opens.
const dropdownPanel = "div.ant-select-dropdown:not(.ant-select-dropdown-hidden)"

// fields is the portal's single-page field set in fill order. Order matters:
// several controls only render after a preceding field is set (the flight
// fields appear once the transport mode select closes, the date sub-fields
// after their parent picker opens).
var fields = []Mapping{
	{Key: "fullPassportName", Selector: "#declaration_fullPassportName", Verb: VerbType, Required: true},
	{Key: "passportNumber", Selector: "#declaration_passportNumber", Verb: VerbType, Required: true},
	{Key: "nationality", Selector: "#declaration_nationality", Verb: VerbSelect, WaitFor: dropdownPanel, Required: true},
	{Key: "dobDay", Selector: "#declaration_dobDay", Verb: VerbType, Required: true},
	{Key: "dobMonth", Selector: "#declaration_dobMonth", Verb: VerbType, Required: true},
	{Key: "dobYear", Selector: "#declaration_dobYear", Verb: VerbType, Required: true},
	{Key: "gender", Selector: "#declaration_gender", Verb: VerbSelect, WaitFor: dropdownPanel, Required: false},
	{Key: "passportExpiryDate", Selector: "#declaration_passportExpiry", Verb: VerbType, Required: true},
	{Key: "mobileNumber", Selector: "#declaration_mobileNumber", Verb: VerbType, Required: true},
	{Key: "email", Selector: "#declaration_email", Verb: VerbType, Required: true},
	{Key: "arrivalDate", Selector: "#declaration_arrivalDate", Verb: VerbType, Required: true},
	{Key: "modeOfTransport", Selector: "#declaration_modeOfTransport", Verb: VerbSelect, WaitFor: dropdownPanel, Required: true},
	{Key: "flightName", Selector: "#declaration_flightName", Verb: VerbSelect, WaitFor: dropdownPanel, Required: false},
	{Key: "flightNumber", Selector: "#declaration_flightNumber", Verb: VerbType, Required: false},
	{Key: "vesselName", Selector: "#declaration_vesselName", Verb: VerbType, Required: false},
	{Key: "typeOfVessel", Selector: "#declaration_typeOfVessel", Verb: VerbSelect, WaitFor: dropdownPanel, Required: false},
	{Key: "portOfArrival", Selector: "#declaration_portOfArrival", Verb: VerbSelect, WaitFor: dropdownPanel, Required: true},
	{Key: "purposeOfVisit", Selector: "#declaration_purposeOfVisit", Verb: VerbSelect, WaitFor: dropdownPanel, Required: true},
	{Key: "typeOfResidence", Selector: "#declaration_typeOfResidence", Verb: VerbSelect, WaitFor: dropdownPanel, Required: true},
	{Key: "addressInIndonesia", Selector: "#declaration_addressInIndonesia", Verb: VerbType, Required: true},
	{Key: "numberOfLuggage", Selector: "#declaration_numberOfLuggage", Verb: VerbType, Required: true},
	{Key: "countriesVisited", Selector: "#declaration_countriesVisited", Verb: VerbType, Required: true},
	{Key: "hasTechnologyDevices", Selector: "#declaration_hasTechnologyDevices", Verb: VerbCheck, Required: false},
	{Key: "hasQuarantineItems", Selector: "#declaration_hasQuarantineItems", Verb: VerbCheck, Required: false},
	{Key: "consentAccurate", Selector: "#declaration_consentAccurate", Verb: VerbCheck, Required: true},
}

// Fields returns the portal field table in fill order.
func Fields() []Mapping {
	return fields
}

// FamilyFields returns the mappings for the i-th family member row. The
// portal renders one row per click on the add-member button, with indexed
// element ids.
func FamilyFields(i int) []Mapping {
	return []Mapping{
		{Key: fmt.Sprintf("familyMembers.%d.fullPassportName", i), Selector: fmt.Sprintf("#family_%d_fullPassportName", i), Verb: VerbType, Required: true},
		{Key: fmt.Sprintf("familyMembers.%d.passportNumber", i), Selector: fmt.Sprintf("#family_%d_passportNumber", i), Verb: VerbType, Required: true},
		{Key: fmt.Sprintf("familyMembers.%d.nationality", i), Selector: fmt.Sprintf("#family_%d_nationality", i), Verb: VerbSelect, WaitFor: dropdownPanel, Required: true},
		{Key: fmt.Sprintf("familyMembers.%d.dateOfBirth", i), Selector: fmt.Sprintf("#family_%d_dateOfBirth", i), Verb: VerbType, Required: true},
	}
}

// Anchors are the non-field locators of the declaration flow: the entry
// transition, the submission action, and the result indicators.
type Anchors struct {
	// EntryConfirm is the landing-page button that opens the declaration
	// form.
	EntryConfirm string
	// FormContainer must become visible before any field interaction.
	FormContainer string
	// AddFamilyMember appends one family row per click.
	AddFamilyMember string
	// SubmitButton sends the declaration.
	SubmitButton string
	// SuccessPanel appears when the portal accepted the declaration.
	SuccessPanel string
	// ErrorBanner appears when the portal rejected it; its text is captured
	// into the failure details.
	ErrorBanner string
	// QRImage is the confirmation artifact. Identified heuristically by
	// class context; the portal sometimes defers QR delivery to email, in
	// which case this never appears.
	QRImage string
	// Submission metadata labels on the confirmation panel.
	SubmissionID   string
	SubmissionTime string
	StatusLabel    string
	PortLabel      string
	OfficeLabel    string
}

// PortalAnchors returns the anchor set for the arrival declaration portal.
func PortalAnchors() Anchors {
	return Anchors{
		EntryConfirm:    "button.declaration-entry-confirm",
		FormContainer:   "form#declaration",
		AddFamilyMember: "button.declaration-add-family",
		SubmitButton:    "button.declaration-submit",
		SuccessPanel:    "div.declaration-result-success",
		ErrorBanner:     "div.ant-message-error, div.declaration-result-error",
		QRImage:         "div.declaration-result-success img.qr-code, img[src*='qr']",
		SubmissionID:    "span.declaration-submission-id",
		SubmissionTime:  "span.declaration-submission-time",
		StatusLabel:     "span.declaration-submission-status",
		PortLabel:       "span.declaration-submission-port",
		OfficeLabel:     "span.declaration-customs-office",
	}
}
