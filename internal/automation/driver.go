package automation

import (
	"context"
	"time"
)

// Driver is the minimal set of UI verbs the orchestrator needs against the
// portal. The rod-backed Session is the production implementation; tests
// substitute a scripted fake. Every method is bounded by its context.
type Driver interface {
	// Navigate loads the URL and waits for the page load event.
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until the selector is visible or the budget ends.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// Visible reports whether the selector currently resolves to a visible
	// element, without waiting.
	Visible(ctx context.Context, selector string) (bool, error)
	// Click clicks the element.
	Click(ctx context.Context, selector string) error
	// Type replaces the element's value with text.
	Type(ctx context.Context, selector, text string) error
	// SelectOption picks an option from an already-open select control.
	SelectOption(ctx context.Context, selector, option string) error
	// Check ensures a checkbox-style control is checked.
	Check(ctx context.Context, selector string) error
	// Text returns the element's visible text.
	Text(ctx context.Context, selector string) (string, error)
	// ImageData returns the decoded image bytes of an img element.
	ImageData(ctx context.Context, selector string) ([]byte, error)
	// Close releases the underlying automation resource. Safe to call more
	// than once.
	Close() error
}

// SessionOptions configures one isolated browser session.
type SessionOptions struct {
	Headless          bool
	ViewportWidth     int
	ViewportHeight    int
	NavigationTimeout time.Duration
}

// DriverFactory creates an isolated Driver for a single run. Runs never share
// automation state, so no locking exists across drivers.
type DriverFactory func(ctx context.Context, opts SessionOptions) (Driver, error)
