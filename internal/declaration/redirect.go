package declaration

import "strings"

// Redirect is the outcome of the manual-submission policy check.
type Redirect struct {
	ShouldRedirect bool   `json:"shouldRedirect"`
	Reason         string `json:"reason,omitempty"`
}

// ShouldRedirect decides whether a record must bypass automation entirely and
// be completed manually on the portal. This is deterministic routing, not a
// failure, so no retry ever applies. Rules run in declared order; the first
// match wins.
//
// These cases require manual officer handling on the portal: automating them
// would either fail predictably or produce an incorrect declaration.
func ShouldRedirect(r *Record) Redirect {
	if strings.EqualFold(strings.TrimSpace(r.TypeOfAirTransport), GovernmentFlight) {
		return Redirect{ShouldRedirect: true, Reason: "Government flight selected"}
	}
	if r.GoodsDeclared() {
		return Redirect{ShouldRedirect: true, Reason: "Goods to declare selected"}
	}
	if r.HasSymptoms {
		return Redirect{ShouldRedirect: true, Reason: "Health symptoms reported"}
	}
	return Redirect{}
}
