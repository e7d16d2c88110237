package automation

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"formpilot/internal/declaration"
	"formpilot/internal/formmap"
	"formpilot/internal/logging"
)

// Config is the orchestrator's static configuration, supplied externally.
type Config struct {
	// PortalURL is the declaration portal entry point.
	PortalURL string
	// FallbackURL is the portal's manual-entry page, attached to failures
	// that the caller should complete by hand.
	FallbackURL string
	// Environment gates raw diagnostics in failure details; anything other
	// than "production" exposes them.
	Environment string

	// DefaultTimeout bounds a whole run when Options.TimeoutMs is zero.
	DefaultTimeout time.Duration
	// DefaultRetries is the per-field retry budget when Options.Retries is
	// zero.
	DefaultRetries int
	// DefaultHeadless is the headless toggle default.
	DefaultHeadless bool

	// NavigationTimeout bounds each navigation-phase wait.
	NavigationTimeout time.Duration
	// FieldWait bounds one readiness-locator wait during form fill.
	FieldWait time.Duration
	// SubmitWait bounds the wait for a submission outcome indicator.
	SubmitWait time.Duration
	// QRWait bounds the confirmation-artifact lookup.
	QRWait time.Duration
	// PollInterval paces the submission outcome polling loop.
	PollInterval time.Duration

	ViewportWidth  int
	ViewportHeight int
}

// DefaultConfig returns sensible defaults for everything but the URLs.
func DefaultConfig() Config {
	return Config{
		Environment:       "development",
		DefaultTimeout:    120 * time.Second,
		DefaultRetries:    3,
		DefaultHeadless:   true,
		NavigationTimeout: 30 * time.Second,
		FieldWait:         5 * time.Second,
		SubmitWait:        30 * time.Second,
		QRWait:            10 * time.Second,
		PollInterval:      250 * time.Millisecond,
		ViewportWidth:     1920,
		ViewportHeight:    1080,
	}
}

// Options is the per-run configuration supplied by the caller. Zero values
// fall back to the Config defaults.
type Options struct {
	Headless   *bool
	TimeoutMs  int
	Retries    int
	OnProgress ProgressFunc
}

// Orchestrator sequences one declaration submission against the portal:
// validation, navigation, form fill, submission, artifact extraction. The
// pipeline states are strictly sequential; each depends on the rendered page
// state the previous one left behind. Runs are independent and each owns an
// isolated browser session.
type Orchestrator struct {
	cfg       Config
	newDriver DriverFactory
	fields    []formmap.Mapping
	anchors   formmap.Anchors

	mu   sync.Mutex
	subs []ProgressFunc
}

// New returns an orchestrator driving real browser sessions.
func New(cfg Config) *Orchestrator {
	return NewWithDriver(cfg, NewSession)
}

// NewWithDriver returns an orchestrator with a custom driver factory.
func NewWithDriver(cfg Config, factory DriverFactory) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		newDriver: factory,
		fields:    formmap.Fields(),
		anchors:   formmap.PortalAnchors(),
	}
}

// SubscribeProgress attaches fn to every subsequent run's progress stream.
// Used to bridge progress into logging or a caller-owned notification
// channel.
func (o *Orchestrator) SubscribeProgress(fn ProgressFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subs = append(o.subs, fn)
}

// UpdateConfig replaces the configuration for subsequent runs. In-flight runs
// keep the snapshot they started with.
func (o *Orchestrator) UpdateConfig(cfg Config) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cfg = cfg
}

func (o *Orchestrator) config() Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg
}

// Run executes the full pipeline for one record. It never panics outward and
// always returns a terminal Result; the browser session is released on every
// exit path.
func (o *Orchestrator) Run(ctx context.Context, rec *declaration.Record, opts Options) (res *Result) {
	runID := uuid.NewString()[:8]
	cfg := o.config()
	events := o.runBroadcaster(opts)
	step := StepValidation

	defer func() {
		if r := recover(); r != nil {
			res = o.failure(events, cfg, step, fmt.Errorf("panic: %v", r), "automation run aborted unexpectedly")
		}
	}()

	logging.Automation("[run:%s] starting", runID)
	events.Publish(ProgressEvent{Progress: 5, Step: StepValidation, Message: "Validating declaration record"})

	if v := declaration.Validate(rec); !v.Valid {
		logging.AutomationWarn("[run:%s] record invalid: %v", runID, v.MissingFields)
		events.Publish(ProgressEvent{Step: StepFailed, Message: "Declaration record is incomplete"})
		return &Result{Error: &Error{
			Code:          CodeInvalidFormData,
			Message:       "declaration record is incomplete",
			Step:          StepValidation,
			MissingFields: v.MissingFields,
		}}
	}

	if rd := declaration.ShouldRedirect(rec); rd.ShouldRedirect {
		logging.Automation("[run:%s] manual submission required: %s", runID, rd.Reason)
		events.Publish(ProgressEvent{Step: StepFailed, Message: rd.Reason})
		return &Result{
			Error: &Error{
				Code:    CodeManualSubmissionRequired,
				Message: rd.Reason,
				Step:    StepValidation,
			},
			FallbackURL: cfg.FallbackURL,
		}
	}

	timeout := cfg.DefaultTimeout
	if opts.TimeoutMs > 0 {
		timeout = time.Duration(opts.TimeoutMs) * time.Millisecond
	}
	retries := cfg.DefaultRetries
	if opts.Retries > 0 {
		retries = opts.Retries
	}
	headless := cfg.DefaultHeadless
	if opts.Headless != nil {
		headless = *opts.Headless
	}

	// The wall-clock budget covers navigation through qr_extraction.
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	step = StepNavigation
	events.Publish(ProgressEvent{Progress: 20, Step: StepNavigation, Message: "Opening declaration portal"})

	driver, err := o.newDriver(runCtx, SessionOptions{
		Headless:          headless,
		ViewportWidth:     cfg.ViewportWidth,
		ViewportHeight:    cfg.ViewportHeight,
		NavigationTimeout: cfg.NavigationTimeout,
	})
	if err != nil {
		return o.failure(events, cfg, StepNavigation, err, "could not start automation session")
	}
	defer func() {
		if cerr := driver.Close(); cerr != nil {
			logging.AutomationWarn("[run:%s] session close: %v", runID, cerr)
		}
	}()

	if err := driver.Navigate(runCtx, cfg.PortalURL); err != nil {
		return o.failure(events, cfg, StepNavigation, err, "declaration portal did not load")
	}
	if err := driver.WaitVisible(runCtx, o.anchors.EntryConfirm, cfg.NavigationTimeout); err != nil {
		return o.failure(events, cfg, StepNavigation, err, "portal entry point never appeared")
	}
	if err := driver.Click(runCtx, o.anchors.EntryConfirm); err != nil {
		return o.failure(events, cfg, StepNavigation, err, "could not open the declaration form")
	}
	if err := driver.WaitVisible(runCtx, o.anchors.FormContainer, cfg.NavigationTimeout); err != nil {
		return o.failure(events, cfg, StepNavigation, err, "declaration form never appeared")
	}

	step = StepFormFill
	events.Publish(ProgressEvent{Progress: 40, Step: StepFormFill, Message: "Populating declaration form"})

	payload := formmap.ExternalPayload(rec)
	for _, f := range o.fields {
		if err := o.applyField(runCtx, driver, f, payload, retries, cfg.FieldWait); err != nil {
			return o.failure(events, cfg, StepFormFill, err, "could not populate the declaration form")
		}
	}
	for i := range rec.FamilyMembers {
		if err := driver.Click(runCtx, o.anchors.AddFamilyMember); err != nil {
			return o.failure(events, cfg, StepFormFill, err, "could not add a family member row")
		}
		for _, f := range formmap.FamilyFields(i) {
			if err := o.applyField(runCtx, driver, f, payload, retries, cfg.FieldWait); err != nil {
				return o.failure(events, cfg, StepFormFill, err, "could not populate a family member row")
			}
		}
	}

	step = StepSubmission
	events.Publish(ProgressEvent{Progress: 70, Step: StepSubmission, Message: "Submitting declaration"})

	if err := driver.Click(runCtx, o.anchors.SubmitButton); err != nil {
		return o.failure(events, cfg, StepSubmission, err, "could not submit the declaration")
	}
	if res := o.awaitOutcome(runCtx, driver, runID, events, cfg); res != nil {
		return res
	}

	step = StepQRExtraction
	events.Publish(ProgressEvent{Progress: 85, Step: StepQRExtraction, Message: "Capturing confirmation"})

	details := o.captureDetails(runCtx, driver)
	qr := o.captureArtifact(runCtx, driver, runID, cfg.QRWait)

	step = StepDone
	events.Publish(ProgressEvent{Progress: 100, Step: StepDone, Message: "Declaration submitted"})
	logging.Automation("[run:%s] done, submission=%s artifact=%v", runID, details.SubmissionID, qr != nil)

	return &Result{Success: true, SubmissionDetails: details, QRCode: qr}
}

// runBroadcaster builds the per-run progress stream: orchestrator-level
// subscribers plus the caller's observer. Per-run so the monotonic clamp
// resets between runs.
func (o *Orchestrator) runBroadcaster(opts Options) *Broadcaster {
	b := NewBroadcaster()
	o.mu.Lock()
	for _, fn := range o.subs {
		b.Subscribe(fn)
	}
	o.mu.Unlock()
	if opts.OnProgress != nil {
		b.Subscribe(opts.OnProgress)
	}
	return b
}

// applyField drives one mapping. Only waitFor-gated select interactions are
// retried: the portal's lazily rendered dropdown panels are the principal
// source of transient flakiness. Navigation and submission failures surface
// to the caller, who owns the whole-run retry decision.
func (o *Orchestrator) applyField(ctx context.Context, d Driver, f formmap.Mapping, payload map[string]string, retries int, fieldWait time.Duration) error {
	value, ok := payload[f.Key]
	if !ok || value == "" {
		if f.Required {
			return fmt.Errorf("required field %s has no value", f.Key)
		}
		return nil
	}

	switch f.Verb {
	case formmap.VerbType:
		if err := d.Type(ctx, f.Selector, value); err != nil {
			return fmt.Errorf("field %s: %w", f.Key, err)
		}
		return nil

	case formmap.VerbCheck:
		if value != "true" {
			return nil
		}
		if err := d.Check(ctx, f.Selector); err != nil {
			return fmt.Errorf("field %s: %w", f.Key, err)
		}
		return nil

	case formmap.VerbSelect:
		var lastErr error
		for attempt := 0; attempt <= retries; attempt++ {
			if err := ctx.Err(); err != nil {
				if lastErr != nil {
					return fmt.Errorf("field %s: %w", f.Key, lastErr)
				}
				return err
			}
			if attempt > 0 {
				logging.AutomationDebug("retrying field %s (attempt %d)", f.Key, attempt+1)
			}
			if err := d.Click(ctx, f.Selector); err != nil {
				lastErr = err
				continue
			}
			if f.WaitFor != "" {
				if err := d.WaitVisible(ctx, f.WaitFor, fieldWait); err != nil {
					lastErr = err
					continue
				}
			}
			if err := d.SelectOption(ctx, f.Selector, value); err != nil {
				lastErr = err
				continue
			}
			return nil
		}
		return fmt.Errorf("field %s: %w", f.Key, lastErr)

	default:
		return fmt.Errorf("field %s: unknown verb %q", f.Key, f.Verb)
	}
}

// awaitOutcome polls for the submission result indicators. Returns nil once
// the success panel is visible, or a terminal failure Result when the portal
// rejected the declaration or the budget ran out.
func (o *Orchestrator) awaitOutcome(ctx context.Context, d Driver, runID string, events *Broadcaster, cfg Config) *Result {
	deadline := time.Now().Add(cfg.SubmitWait)
	for {
		if ok, err := d.Visible(ctx, o.anchors.SuccessPanel); err == nil && ok {
			return nil
		}
		if bad, err := d.Visible(ctx, o.anchors.ErrorBanner); err == nil && bad {
			text, terr := d.Text(ctx, o.anchors.ErrorBanner)
			if terr != nil {
				text = "the portal rejected the declaration"
			}
			logging.AutomationError("[run:%s] portal rejected submission: %s", runID, text)
			events.Publish(ProgressEvent{Step: StepFailed, Message: "The portal rejected the declaration"})
			return &Result{
				Error: &Error{
					Code:    CodeAutomationFailed,
					Message: "the portal rejected the declaration",
					Step:    StepSubmission,
					// Portal-facing banner text, not an internal diagnostic.
					Details: text,
				},
				FallbackURL: cfg.FallbackURL,
			}
		}
		if time.Now().After(deadline) {
			return o.failure(events, cfg, StepSubmission, context.DeadlineExceeded, "no submission outcome appeared")
		}
		select {
		case <-ctx.Done():
			return o.failure(events, cfg, StepSubmission, ctx.Err(), "no submission outcome appeared")
		case <-time.After(cfg.PollInterval):
		}
	}
}

// captureDetails reads the confirmation metadata, each label best-effort.
func (o *Orchestrator) captureDetails(ctx context.Context, d Driver) *SubmissionDetails {
	read := func(selector string) string {
		if selector == "" {
			return ""
		}
		text, err := d.Text(ctx, selector)
		if err != nil {
			return ""
		}
		return text
	}
	details := &SubmissionDetails{
		SubmissionID:   read(o.anchors.SubmissionID),
		SubmissionTime: read(o.anchors.SubmissionTime),
		Status:         read(o.anchors.StatusLabel),
		PortInfo:       read(o.anchors.PortLabel),
		CustomsOffice:  read(o.anchors.OfficeLabel),
	}
	if details.SubmissionTime == "" {
		details.SubmissionTime = time.Now().UTC().Format(time.RFC3339)
	}
	if details.Status == "" {
		details.Status = "SUBMITTED"
	}
	return details
}

// captureArtifact fetches the QR image. Absence is not a failure: some
// completion paths defer delivery by email, and the run still counts as done
// with the artifact omitted.
func (o *Orchestrator) captureArtifact(ctx context.Context, d Driver, runID string, wait time.Duration) *QRCode {
	qrCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	data, err := d.ImageData(qrCtx, o.anchors.QRImage)
	if err != nil || len(data) == 0 {
		logging.Automation("[run:%s] confirmation artifact absent, delivery deferred", runID)
		return nil
	}
	return &QRCode{ImageData: "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)}
}

// failure normalizes an automation defect into the Result contract and
// publishes the terminal state transition. Raw diagnostics are only exposed
// outside production. A deadline hit is a timeout; a caller cancellation
// (client disconnect) keeps the step-specific message.
func (o *Orchestrator) failure(events *Broadcaster, cfg Config, step Step, err error, msg string) *Result {
	code := CodeAutomationFailed
	if errors.Is(err, context.DeadlineExceeded) {
		code = CodeAutomationTimeout
		msg = "automation run exceeded its time budget"
	}
	e := &Error{Code: code, Message: msg, Step: step}
	if err != nil && cfg.Environment != "production" {
		e.Details = err.Error()
	}
	logging.AutomationError("run failed at %s: %v", step, err)
	events.Publish(ProgressEvent{Step: StepFailed, Message: msg})
	return &Result{Error: e, FallbackURL: cfg.FallbackURL}
}
