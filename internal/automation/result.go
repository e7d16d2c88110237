// Package automation drives the arrival declaration portal through
// navigation, field population, submission and result extraction. The portal
// is an untrusted, eventually consistent external state machine: every
// interaction is "act, then confirm readiness", never "act and assume".
package automation

import "net/http"

// Code is the machine-readable failure classification returned to callers.
type Code string

const (
	CodeInvalidJSON              Code = "INVALID_JSON"
	CodeMissingFormData          Code = "MISSING_FORM_DATA"
	CodeInvalidFormData          Code = "INVALID_FORM_DATA"
	CodeManualSubmissionRequired Code = "MANUAL_SUBMISSION_REQUIRED"
	CodeAutomationFailed         Code = "AUTOMATION_FAILED"
	CodeAutomationTimeout        Code = "AUTOMATION_TIMEOUT"
	CodeInternalServerError      Code = "INTERNAL_SERVER_ERROR"
)

// Step names the pipeline state a result or failure belongs to.
type Step string

const (
	StepValidation   Step = "validation"
	StepNavigation   Step = "navigation"
	StepFormFill     Step = "form_fill"
	StepSubmission   Step = "submission"
	StepQRExtraction Step = "qr_extraction"
	StepDone         Step = "done"
	StepFailed       Step = "failed"
)

// Error is the normalized failure shape. Details carries raw diagnostics and
// is redacted outside development contexts; MissingFields is only set for
// validation failures.
type Error struct {
	Code          Code     `json:"code"`
	Message       string   `json:"message"`
	Step          Step     `json:"step,omitempty"`
	Details       string   `json:"details,omitempty"`
	MissingFields []string `json:"missingFields,omitempty"`
}

// SubmissionDetails is the metadata captured from the confirmation panel.
type SubmissionDetails struct {
	SubmissionID   string `json:"submissionId"`
	SubmissionTime string `json:"submissionTime"`
	Status         string `json:"status"`
	PortInfo       string `json:"portInfo,omitempty"`
	CustomsOffice  string `json:"customsOffice,omitempty"`
}

// QRCode is the image-encoded confirmation artifact, base64 data-URL encoded.
type QRCode struct {
	ImageData string `json:"imageData"`
}

// Result is the discriminated outcome of one automation run. Exactly one of
// the success or error branches is populated. A success without a QRCode is a
// partial success: the portal deferred artifact delivery (usually to email).
type Result struct {
	Success           bool               `json:"success"`
	SubmissionDetails *SubmissionDetails `json:"submissionDetails,omitempty"`
	QRCode            *QRCode            `json:"qrCode,omitempty"`
	Error             *Error             `json:"error,omitempty"`
	FallbackURL       string             `json:"fallbackUrl,omitempty"`
}

// HTTPStatus maps a failure code onto the HTTP status the API responds with.
func HTTPStatus(c Code) int {
	switch c {
	case CodeInvalidJSON, CodeMissingFormData, CodeInvalidFormData, CodeManualSubmissionRequired:
		return http.StatusBadRequest
	case CodeAutomationFailed, CodeAutomationTimeout, CodeInternalServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
