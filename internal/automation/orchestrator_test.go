package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"formpilot/internal/declaration"
	"formpilot/internal/formmap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func boolPtr(v bool) *bool { return &v }

func testRecord() *declaration.Record {
	return &declaration.Record{
		PassportNumber:       "32018323",
		FullPassportName:     "JANE EXAMPLE",
		Nationality:          "AU",
		DateOfBirth:          "1990-04-12",
		Gender:               declaration.OptionalString{Set: true, Value: "FEMALE"},
		PassportExpiryDate:   "2030-01-01",
		MobileNumber:         "+61400000000",
		Email:                "jane@example.com",
		ArrivalDate:          "2026-09-15",
		ModeOfTransport:      declaration.TransportAir,
		PurposeOfVisit:       "HOLIDAY",
		TypeOfResidence:      "HOTEL",
		AddressInIndonesia:   "JL. SUNSET ROAD 1, KUTA",
		PortOfArrival:        "DPS",
		FlightName:           "GARUDA INDONESIA",
		FlightNumber:         "GA123",
		HasGoodsToDeclarate:  boolPtr(false),
		HasTechnologyDevices: boolPtr(false),
		CountriesVisited:     []string{"AUSTRALIA"},
		NumberOfLuggage:      1,
		ConsentAccurate:      true,
		FamilyMembers:        []declaration.FamilyMember{},
	}
}

// fakeDriver is a scripted portal: selectors become visible according to the
// scenario, interactions are recorded, and hooks simulate the portal's
// reactions.
type fakeDriver struct {
	mu       sync.Mutex
	visible  map[string]bool
	texts    map[string]string
	image    []byte
	imageErr error

	typed    map[string]string
	selected map[string]string
	checked  map[string]bool
	clicks   []string

	waitCalls  map[string]int
	neverShow  map[string]bool
	navigateFn func(ctx context.Context) error
	onClick    func(selector string)

	closed int
}

func newFakeDriver() *fakeDriver {
	anchors := formmap.PortalAnchors()
	fd := &fakeDriver{
		visible: map[string]bool{
			anchors.EntryConfirm:  true,
			anchors.FormContainer: true,
		},
		texts: map[string]string{
			anchors.SubmissionID:   "ECD-2026-000123",
			anchors.SubmissionTime: "2026-09-15T08:30:00Z",
			anchors.StatusLabel:    "SUBMITTED",
			anchors.PortLabel:      "DPS - I GUSTI NGURAH RAI INTERNATIONAL AIRPORT",
			anchors.OfficeLabel:    "KPPBC NGURAH RAI",
		},
		image:     []byte("png-bytes"),
		typed:     map[string]string{},
		selected:  map[string]string{},
		checked:   map[string]bool{},
		waitCalls: map[string]int{},
		neverShow: map[string]bool{},
	}
	// Submitting reveals the success panel unless a scenario overrides it.
	fd.onClick = func(selector string) {
		if selector == anchors.SubmitButton {
			fd.visible[anchors.SuccessPanel] = true
		}
	}
	return fd
}

func (f *fakeDriver) Navigate(ctx context.Context, url string) error {
	if f.navigateFn != nil {
		return f.navigateFn(ctx)
	}
	return nil
}

func (f *fakeDriver) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waitCalls[selector]++
	if f.neverShow[selector] {
		return fmt.Errorf("wait visible %s: %w", selector, context.DeadlineExceeded)
	}
	return nil
}

func (f *fakeDriver) Visible(ctx context.Context, selector string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible[selector], nil
}

func (f *fakeDriver) Click(ctx context.Context, selector string) error {
	f.mu.Lock()
	f.clicks = append(f.clicks, selector)
	hook := f.onClick
	f.mu.Unlock()
	if hook != nil {
		hook(selector)
	}
	return nil
}

func (f *fakeDriver) Type(ctx context.Context, selector, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typed[selector] = text
	return nil
}

func (f *fakeDriver) SelectOption(ctx context.Context, selector, option string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected[selector] = option
	return nil
}

func (f *fakeDriver) Check(ctx context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked[selector] = true
	return nil
}

func (f *fakeDriver) Text(ctx context.Context, selector string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.texts[selector]; ok {
		return t, nil
	}
	return "", errors.New("no such element")
}

func (f *fakeDriver) ImageData(ctx context.Context, selector string) ([]byte, error) {
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	return f.image, nil
}

func (f *fakeDriver) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PortalURL = "https://portal.example.test/declaration"
	cfg.FallbackURL = "https://portal.example.test/manual"
	cfg.FieldWait = 20 * time.Millisecond
	cfg.SubmitWait = 200 * time.Millisecond
	cfg.QRWait = 50 * time.Millisecond
	cfg.PollInterval = 5 * time.Millisecond
	return cfg
}

func newTestOrchestrator(cfg Config, fd *fakeDriver) (*Orchestrator, *int) {
	created := 0
	o := NewWithDriver(cfg, func(ctx context.Context, opts SessionOptions) (Driver, error) {
		created++
		return fd, nil
	})
	return o, &created
}

func TestRunHappyPathVisitsEveryState(t *testing.T) {
	fd := newFakeDriver()
	o, created := newTestOrchestrator(testConfig(), fd)

	var steps []Step
	var progress []int
	res := o.Run(context.Background(), testRecord(), Options{
		OnProgress: func(ev ProgressEvent) {
			steps = append(steps, ev.Step)
			progress = append(progress, ev.Progress)
		},
	})

	require.Nil(t, res.Error)
	require.True(t, res.Success)
	require.NotNil(t, res.SubmissionDetails)
	assert.Equal(t, "ECD-2026-000123", res.SubmissionDetails.SubmissionID)
	assert.Equal(t, "SUBMITTED", res.SubmissionDetails.Status)
	require.NotNil(t, res.QRCode)
	assert.Contains(t, res.QRCode.ImageData, "data:image/png;base64,")

	// All five pipeline states, in order. Skipping any is a contract
	// violation.
	assert.Equal(t, []Step{
		StepValidation, StepNavigation, StepFormFill,
		StepSubmission, StepQRExtraction, StepDone,
	}, steps)
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1])
	}

	assert.Equal(t, 1, *created)
	assert.Equal(t, 1, fd.closed, "session must be released exactly once")

	// Spot-check field population happened with transformed values.
	assert.Equal(t, "JANE EXAMPLE", fd.typed["#declaration_fullPassportName"])
	assert.Equal(t, "32018323", fd.typed["#declaration_passportNumber"])
	assert.Equal(t, "AUSTRALIA", fd.selected["#declaration_nationality"])
	assert.Equal(t, "DPS - I GUSTI NGURAH RAI INTERNATIONAL AIRPORT", fd.selected["#declaration_portOfArrival"])
	assert.True(t, fd.checked["#declaration_consentAccurate"])
	// hasTechnologyDevices is false, so its checkbox stays untouched.
	assert.False(t, fd.checked["#declaration_hasTechnologyDevices"])
}

func TestRunMissingArtifactIsSoftSuccess(t *testing.T) {
	fd := newFakeDriver()
	fd.imageErr = errors.New("no qr element")
	o, _ := newTestOrchestrator(testConfig(), fd)

	res := o.Run(context.Background(), testRecord(), Options{})

	require.True(t, res.Success)
	assert.Nil(t, res.QRCode)
	require.NotNil(t, res.SubmissionDetails)
	assert.NotEmpty(t, res.SubmissionDetails.SubmissionID)
}

func TestRunInvalidRecordFailsBeforeSession(t *testing.T) {
	fd := newFakeDriver()
	o, created := newTestOrchestrator(testConfig(), fd)

	rec := testRecord()
	rec.PassportNumber = ""
	rec.Email = ""
	res := o.Run(context.Background(), rec, Options{})

	require.NotNil(t, res.Error)
	assert.False(t, res.Success)
	assert.Equal(t, CodeInvalidFormData, res.Error.Code)
	assert.Equal(t, StepValidation, res.Error.Step)
	assert.Contains(t, res.Error.MissingFields, "passportNumber")
	assert.Contains(t, res.Error.MissingFields, "email")
	// Caller fixes input; no fallback URL, no browser session.
	assert.Empty(t, res.FallbackURL)
	assert.Equal(t, 0, *created)
}

func TestRunRedirectPolicyShortCircuits(t *testing.T) {
	fd := newFakeDriver()
	o, created := newTestOrchestrator(testConfig(), fd)

	rec := testRecord()
	rec.TypeOfAirTransport = "GOVERNMENT FLIGHT"
	res := o.Run(context.Background(), rec, Options{})

	require.NotNil(t, res.Error)
	assert.Equal(t, CodeManualSubmissionRequired, res.Error.Code)
	assert.Equal(t, "Government flight selected", res.Error.Message)
	assert.Equal(t, "https://portal.example.test/manual", res.FallbackURL)
	assert.Equal(t, 0, *created)
}

func TestRunRetriesGatedFieldThenFails(t *testing.T) {
	fd := newFakeDriver()
	// The dropdown panel never renders.
	panel := "div.ant-select-dropdown:not(.ant-select-dropdown-hidden)"
	fd.neverShow[panel] = true
	o, _ := newTestOrchestrator(testConfig(), fd)

	res := o.Run(context.Background(), testRecord(), Options{Retries: 2})

	require.NotNil(t, res.Error)
	assert.Equal(t, StepFormFill, res.Error.Step)
	assert.Equal(t, 3, fd.waitCalls[panel], "retries+1 attempts on the readiness locator")
	assert.Equal(t, "https://portal.example.test/manual", res.FallbackURL)
	assert.Equal(t, 1, fd.closed)
}

func TestRunTimeoutReleasesSession(t *testing.T) {
	fd := newFakeDriver()
	fd.navigateFn = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	o, _ := newTestOrchestrator(testConfig(), fd)

	res := o.Run(context.Background(), testRecord(), Options{TimeoutMs: 50})

	require.NotNil(t, res.Error)
	assert.Equal(t, CodeAutomationTimeout, res.Error.Code)
	assert.Equal(t, StepNavigation, res.Error.Step)
	assert.Equal(t, 1, fd.closed, "session must be released on timeout")
	assert.NotEmpty(t, res.FallbackURL)
}

func TestRunRepeatedTimeoutsDoNotLeakSessions(t *testing.T) {
	for i := 0; i < 5; i++ {
		fd := newFakeDriver()
		fd.navigateFn = func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}
		o, _ := newTestOrchestrator(testConfig(), fd)
		res := o.Run(context.Background(), testRecord(), Options{TimeoutMs: 20})
		require.NotNil(t, res.Error)
		require.Equal(t, 1, fd.closed)
	}
}

func TestRunPortalRejectionCapturesBannerText(t *testing.T) {
	fd := newFakeDriver()
	anchors := formmap.PortalAnchors()
	fd.onClick = func(selector string) {
		if selector == anchors.SubmitButton {
			fd.visible[anchors.ErrorBanner] = true
		}
	}
	fd.texts[anchors.ErrorBanner] = "Passport number already declared today"
	o, _ := newTestOrchestrator(testConfig(), fd)

	res := o.Run(context.Background(), testRecord(), Options{})

	require.NotNil(t, res.Error)
	assert.Equal(t, CodeAutomationFailed, res.Error.Code)
	assert.Equal(t, StepSubmission, res.Error.Step)
	assert.Equal(t, "Passport number already declared today", res.Error.Details)
	assert.Equal(t, 1, fd.closed)
}

func TestRunSessionFactoryFailure(t *testing.T) {
	cfg := testConfig()
	o := NewWithDriver(cfg, func(ctx context.Context, opts SessionOptions) (Driver, error) {
		return nil, errors.New("chrome binary not found")
	})

	res := o.Run(context.Background(), testRecord(), Options{})

	require.NotNil(t, res.Error)
	assert.Equal(t, CodeAutomationFailed, res.Error.Code)
	assert.Equal(t, StepNavigation, res.Error.Step)
	assert.Contains(t, res.Error.Details, "chrome binary not found")
}

func TestRunProductionRedactsDiagnostics(t *testing.T) {
	cfg := testConfig()
	cfg.Environment = "production"
	o := NewWithDriver(cfg, func(ctx context.Context, opts SessionOptions) (Driver, error) {
		return nil, errors.New("chrome binary not found")
	})

	res := o.Run(context.Background(), testRecord(), Options{})

	require.NotNil(t, res.Error)
	assert.Empty(t, res.Error.Details)
	assert.NotEmpty(t, res.Error.Message)
}

func TestRunFillsFamilyMemberRows(t *testing.T) {
	fd := newFakeDriver()
	o, _ := newTestOrchestrator(testConfig(), fd)

	rec := testRecord()
	rec.FamilyMembers = []declaration.FamilyMember{
		{FullPassportName: "TOM EXAMPLE", PassportNumber: "99112233", Nationality: "AU", DateOfBirth: "2015-06-01"},
	}
	res := o.Run(context.Background(), rec, Options{})

	require.True(t, res.Success)
	anchors := formmap.PortalAnchors()
	assert.Contains(t, fd.clicks, anchors.AddFamilyMember)
	assert.Equal(t, "TOM EXAMPLE", fd.typed["#family_0_fullPassportName"])
	assert.Equal(t, "AUSTRALIA", fd.selected["#family_0_nationality"])
}

func TestRunObserverPanicIsSwallowed(t *testing.T) {
	fd := newFakeDriver()
	o, _ := newTestOrchestrator(testConfig(), fd)

	res := o.Run(context.Background(), testRecord(), Options{
		OnProgress: func(ev ProgressEvent) {
			panic("observer bug")
		},
	})

	require.True(t, res.Success, "observer failures must never break the run")
}

func TestRunCallerCancellationIsNotATimeout(t *testing.T) {
	fd := newFakeDriver()
	started := make(chan struct{})
	fd.navigateFn = func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}
	o, _ := newTestOrchestrator(testConfig(), fd)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	res := o.Run(ctx, testRecord(), Options{})

	require.NotNil(t, res.Error)
	assert.Equal(t, CodeAutomationFailed, res.Error.Code, "a disconnect is not a timeout")
	assert.Equal(t, StepNavigation, res.Error.Step)
	assert.Equal(t, "declaration portal did not load", res.Error.Message)
	assert.Equal(t, 1, fd.closed)
}

func TestRunFailurePublishesTerminalEvent(t *testing.T) {
	fd := newFakeDriver()
	panel := "div.ant-select-dropdown:not(.ant-select-dropdown-hidden)"
	fd.neverShow[panel] = true
	o, _ := newTestOrchestrator(testConfig(), fd)

	var steps []Step
	res := o.Run(context.Background(), testRecord(), Options{
		Retries: 1,
		OnProgress: func(ev ProgressEvent) {
			steps = append(steps, ev.Step)
		},
	})

	require.NotNil(t, res.Error)
	require.NotEmpty(t, steps)
	assert.Equal(t, StepFailed, steps[len(steps)-1], "observers must see the terminal transition")
}

func TestRunValidationFailurePublishesTerminalEvent(t *testing.T) {
	fd := newFakeDriver()
	o, _ := newTestOrchestrator(testConfig(), fd)

	rec := testRecord()
	rec.PassportNumber = ""

	var steps []Step
	res := o.Run(context.Background(), rec, Options{
		OnProgress: func(ev ProgressEvent) {
			steps = append(steps, ev.Step)
		},
	})

	require.NotNil(t, res.Error)
	require.NotEmpty(t, steps)
	assert.Equal(t, StepFailed, steps[len(steps)-1])
}

func TestUpdateConfigAppliesToSubsequentRuns(t *testing.T) {
	fd := newFakeDriver()
	o, _ := newTestOrchestrator(testConfig(), fd)

	rec := testRecord()
	rec.TypeOfAirTransport = "GOVERNMENT FLIGHT"

	res := o.Run(context.Background(), rec, Options{})
	require.NotNil(t, res.Error)
	assert.Equal(t, "https://portal.example.test/manual", res.FallbackURL)

	next := testConfig()
	next.FallbackURL = "https://portal.example.test/manual-v2"
	o.UpdateConfig(next)

	res = o.Run(context.Background(), rec, Options{})
	require.NotNil(t, res.Error)
	assert.Equal(t, "https://portal.example.test/manual-v2", res.FallbackURL)
}
