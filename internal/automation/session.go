package automation

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"formpilot/internal/logging"
)

// optionItem matches one entry of an open dropdown panel. Covers both the
// portal's custom select widgets and plain <option> fallbacks.
const optionItem = "div.ant-select-item-option, div.ant-select-dropdown li, option"

// Session is an exclusively owned browser context for a single automation
// run. It is created at navigation entry and must be released on every exit
// path of the state machine, including panic paths.
type Session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	navTimeout time.Duration
	closeOnce  sync.Once
	closeErr   error
}

// NewSession launches a dedicated Chrome instance and opens a blank page.
// The returned Session satisfies Driver.
func NewSession(ctx context.Context, opts SessionOptions) (Driver, error) {
	l := launcher.New().Headless(opts.Headless)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		l.Cleanup()
		return nil, fmt.Errorf("create page: %w", err)
	}

	width, height := opts.ViewportWidth, opts.ViewportHeight
	if width == 0 {
		width = 1920
	}
	if height == 0 {
		height = 1080
	}
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		logging.AutomationWarn("failed to set viewport: %v", err)
	}

	navTimeout := opts.NavigationTimeout
	if navTimeout == 0 {
		navTimeout = 30 * time.Second
	}

	return &Session{
		launcher:   l,
		browser:    browser,
		page:       page,
		navTimeout: navTimeout,
	}, nil
}

// Navigate loads the URL and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	page := s.page.Context(ctx).Timeout(s.navTimeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

// WaitVisible blocks until the selector resolves to a visible element.
func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	page := s.page.Context(ctx).Timeout(timeout)
	el, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("element %s: %w", selector, err)
	}
	if err := el.WaitVisible(); err != nil {
		return fmt.Errorf("wait visible %s: %w", selector, err)
	}
	return nil
}

// Visible reports current visibility without waiting for the element.
func (s *Session) Visible(ctx context.Context, selector string) (bool, error) {
	has, el, err := s.page.Context(ctx).Has(selector)
	if err != nil || !has {
		return false, err
	}
	return el.Visible()
}

// Click clicks the element.
func (s *Session) Click(ctx context.Context, selector string) error {
	el, err := s.page.Context(ctx).Timeout(s.navTimeout).Element(selector)
	if err != nil {
		return fmt.Errorf("element %s: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// Type replaces the element's current value with text.
func (s *Session) Type(ctx context.Context, selector, text string) error {
	el, err := s.page.Context(ctx).Timeout(s.navTimeout).Element(selector)
	if err != nil {
		return fmt.Errorf("element %s: %w", selector, err)
	}
	// Overwrite any prefilled value; a failed select on an empty input is fine.
	_ = el.SelectAllText()
	if err := el.Input(text); err != nil {
		return fmt.Errorf("type into %s: %w", selector, err)
	}
	return nil
}

// SelectOption picks an option by visible text from an open dropdown panel,
// falling back to native <select> handling.
func (s *Session) SelectOption(ctx context.Context, selector, option string) error {
	page := s.page.Context(ctx).Timeout(s.navTimeout)

	el, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("element %s: %w", selector, err)
	}
	tag, err := el.Eval(`() => this.tagName.toLowerCase()`)
	if err == nil && tag.Value.String() == "select" {
		if err := el.Select([]string{option}, true, rod.SelectorTypeText); err != nil {
			return fmt.Errorf("select %q in %s: %w", option, selector, err)
		}
		return nil
	}

	pattern := "/^\\s*" + regexp.QuoteMeta(option) + "\\s*$/i"
	opt, err := page.ElementR(optionItem, pattern)
	if err != nil {
		return fmt.Errorf("option %q for %s: %w", option, selector, err)
	}
	if err := opt.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("pick option %q for %s: %w", option, selector, err)
	}
	return nil
}

// Check ensures a checkbox-style control ends up checked.
func (s *Session) Check(ctx context.Context, selector string) error {
	el, err := s.page.Context(ctx).Timeout(s.navTimeout).Element(selector)
	if err != nil {
		return fmt.Errorf("element %s: %w", selector, err)
	}
	checked, err := el.Property("checked")
	if err == nil && checked.Bool() {
		return nil
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("check %s: %w", selector, err)
	}
	return nil
}

// Text returns the element's visible text.
func (s *Session) Text(ctx context.Context, selector string) (string, error) {
	el, err := s.page.Context(ctx).Timeout(s.navTimeout).Element(selector)
	if err != nil {
		return "", fmt.Errorf("element %s: %w", selector, err)
	}
	text, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("text of %s: %w", selector, err)
	}
	return strings.TrimSpace(text), nil
}

// ImageData fetches the decoded bytes of an img element, preferring the
// network resource and falling back to an inline data URL.
func (s *Session) ImageData(ctx context.Context, selector string) ([]byte, error) {
	el, err := s.page.Context(ctx).Timeout(s.navTimeout).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("element %s: %w", selector, err)
	}

	if data, err := el.Resource(); err == nil && len(data) > 0 {
		return data, nil
	}

	src, err := el.Attribute("src")
	if err != nil || src == nil {
		return nil, fmt.Errorf("image %s has no source", selector)
	}
	_, b64, found := strings.Cut(*src, ";base64,")
	if !found {
		return nil, fmt.Errorf("image %s source is not inline data", selector)
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", selector, err)
	}
	return data, nil
}

// Close releases the page, the browser and the launched Chrome process.
// Idempotent: repeated calls return the first error.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.page != nil {
			if err := s.page.Close(); err != nil {
				s.closeErr = err
			}
		}
		if s.browser != nil {
			if err := s.browser.Close(); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}
		if s.launcher != nil {
			s.launcher.Cleanup()
		}
	})
	return s.closeErr
}
