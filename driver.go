package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// DriverState tracks where a session is in its lifecycle.
type DriverState string

const (
	StateIdle              DriverState = "idle"
	StateAuthenticating    DriverState = "authenticating"
	StateNavigating        DriverState = "navigating"
	StateSectionActivating DriverState = "sectionActivating"
	StateObserving         DriverState = "observing"
	StateClosed            DriverState = "closed"
	StateFailed            DriverState = "failed"
)

// authRecheckDelay is the pause before the second element count when the
// first post-login count is below threshold. A sparse-but-real page gets one
// more chance before the run is declared failed.
const authRecheckDelay = 2 * time.Second

// AXNodeSummary is one row of the accessibility snapshot.
type AXNodeSummary struct {
	Role string
	Name string
}

// ObservedElement is one visible, addressable element. Produced fresh per
// run; never persisted.
type ObservedElement struct {
	TestID  string
	Text    string
	Locator string
	Info    ElementInfo
}

// Observation is the driver's output: the page identity, a flat inventory of
// addressable elements, and an accessibility snapshot.
type Observation struct {
	URL      string
	Title    string
	Elements []ObservedElement
	AXNodes  []AXNodeSummary
}

// ByTestID finds an observed element by its stable identifier.
func (o *Observation) ByTestID(testID string) (ObservedElement, bool) {
	for _, el := range o.Elements {
		if el.TestID == testID {
			return el, true
		}
	}
	return ObservedElement{}, false
}

// SearchAccessibility looks for an accessibility node whose name matches the
// element token or the step description and returns a role+name locator.
func (o *Observation) SearchAccessibility(element, description string) (string, bool) {
	wanted := []string{decamel(element), strings.ToLower(description)}
	for _, node := range o.AXNodes {
		if node.Name == "" || node.Role == "" {
			continue
		}
		name := strings.ToLower(node.Name)
		for _, w := range wanted {
			if w == "" {
				continue
			}
			if strings.Contains(w, name) || strings.Contains(name, w) {
				return "page.getByRole(" + quoteTS(node.Role) + ", { name: " + quoteTS(node.Name) + " })", true
			}
		}
	}
	return "", false
}

// Session owns one browser automation session. It is passed explicitly
// through the driver stages; there is no package-level browser state, so
// parallel runs in separate processes stay independent.
type Session struct {
	cfg           *AppConfig
	logger        *RunLogger
	state         DriverState
	ctx           context.Context
	cancel        context.CancelFunc
	consoleErrors []string
}

// NewSession creates a session in the Idle state. Launch starts the browser.
func NewSession(cfg *AppConfig, logger *RunLogger) *Session {
	return &Session{cfg: cfg, logger: logger, state: StateIdle}
}

// State returns the current lifecycle state.
func (s *Session) State() DriverState { return s.state }

// Launch starts the browser process and its context.
func (s *Session) Launch(parent context.Context) error {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
	}
	if s.cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if s.cfg.ExecutablePath != "" {
		opts = append(opts, chromedp.ExecPath(s.cfg.ExecutablePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	s.ctx = ctx
	s.cancel = func() {
		cancel()
		allocCancel()
	}

	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		if ev, ok := ev.(*runtime.EventExceptionThrown); ok {
			s.consoleErrors = append(s.consoleErrors, ev.ExceptionDetails.Text)
		}
	})

	return nil
}

// Close shuts the browser down. Safe to call more than once.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.state != StateFailed {
		s.state = StateClosed
	}
}

// ConsoleErrors returns page exceptions collected so far.
func (s *Session) ConsoleErrors() []string { return s.consoleErrors }

// Observe drives the full state machine for one intent: authenticate (unless
// the context is on the no-auth allow-list), navigate to the context target,
// activate the sub-section when needed (mutating the intent), then capture
// the observation. Any terminal failure carries the current location, title
// and element count for diagnosis.
func (s *Session) Observe(ctx context.Context, intent *Intent) (*Observation, error) {
	if RequiresAuth(intent.Context) {
		s.state = StateAuthenticating
		if err := s.authenticate(ctx); err != nil {
			s.state = StateFailed
			return nil, err
		}
	}

	s.state = StateNavigating
	if err := s.navigate(ctx, intent.Context); err != nil {
		s.state = StateFailed
		return nil, err
	}

	s.state = StateSectionActivating
	if err := s.activateSection(ctx, intent); err != nil {
		s.state = StateFailed
		return nil, err
	}

	s.state = StateObserving
	obs, err := s.observe(ctx)
	if err != nil {
		s.state = StateFailed
		return nil, err
	}
	return obs, nil
}

// authenticate fills the credential fields, submits, and waits for a redirect
// away from the login host. Success is validated twice: the location must
// have left the login host, and the page must expose a minimum threshold of
// addressable elements, with one delayed re-check before declaring failure.
func (s *Session) authenticate(ctx context.Context) error {
	loginURL := strings.TrimSuffix(s.cfg.BaseURL, "/") + s.cfg.LoginPath

	timeout := s.navTimeout()
	tctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	err := chromedp.Run(tctx,
		chromedp.Navigate(loginURL),
		chromedp.WaitVisible(s.cfg.EmailSelector, chromedp.ByQuery),
		chromedp.SendKeys(s.cfg.EmailSelector, s.cfg.Username, chromedp.ByQuery),
		chromedp.SendKeys(s.cfg.PasswordSelector, s.cfg.Password, chromedp.ByQuery),
		chromedp.Click(s.cfg.SubmitSelector, chromedp.ByQuery),
	)
	if err != nil {
		loc, title := s.pageIdentity()
		return &AuthenticationError{URL: loc, Title: title, Reason: fmt.Sprintf("login form interaction failed: %v", err)}
	}

	// Wait for the redirect away from the login host.
	deadline := time.Now().Add(timeout)
	var loc string
	for {
		loc, _ = s.pageIdentity()
		if loc != "" && !strings.HasPrefix(loc, loginURL) {
			break
		}
		if time.Now().After(deadline) {
			_, title := s.pageIdentity()
			return &AuthenticationError{URL: loc, Title: title, Reason: "still on login host after submit"}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}

	count, err := s.countAddressable()
	if err == nil && count < s.cfg.MinElements {
		// A sparse-but-real page is tolerated via one delayed re-check.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(authRecheckDelay):
		}
		count, err = s.countAddressable()
	}
	if err != nil || count < s.cfg.MinElements {
		loc, title := s.pageIdentity()
		return &AuthenticationError{
			URL:          loc,
			Title:        title,
			ElementCount: count,
			Reason:       fmt.Sprintf("authenticated page exposes %d addressable elements, need %d", count, s.cfg.MinElements),
		}
	}

	return nil
}

// navigate goes to the context target. A no-op when login already redirected
// into the correct area.
func (s *Session) navigate(ctx context.Context, target Context) error {
	base := strings.TrimSuffix(s.cfg.BaseURL, "/")
	path := NavigationPath(target)
	targetURL := base + path

	loc, _ := s.pageIdentity()
	if path != "/" && strings.HasPrefix(loc, targetURL) {
		return nil
	}

	tctx, cancel := context.WithTimeout(s.ctx, s.navTimeout())
	defer cancel()

	err := chromedp.Run(tctx,
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		cur, title := s.pageIdentity()
		return &NavigationError{URL: cur, Title: title, Target: targetURL, Reason: err.Error()}
	}
	return nil
}

// sectionCandidate is the attribute view of one candidate tab/section control.
type sectionCandidate struct {
	TestID   string `json:"testId"`
	Text     string `json:"text"`
	Role     string `json:"role"`
	Selected string `json:"ariaSelected"`
	Current  string `json:"ariaCurrent"`
	Class    string `json:"class"`
}

const sectionCandidatesJS = `(() => {
	const out = [];
	const candidates = document.querySelectorAll('[role="tab"], button, a');
	for (const el of candidates) {
		const rect = el.getBoundingClientRect();
		if (rect.width === 0 && rect.height === 0) continue;
		out.push({
			testId: el.getAttribute('data-testid') || '',
			text: (el.textContent || '').trim().slice(0, 80),
			role: el.getAttribute('role') || '',
			ariaSelected: el.getAttribute('aria-selected') || '',
			ariaCurrent: el.getAttribute('aria-current') || '',
			class: el.className && el.className.toString ? el.className.toString() : '',
		});
	}
	return out;
})()`

// activateSection searches visible candidate controls for the one that
// activates the intent's sub-section. When the control is found but not
// marked active, or when its active state cannot be determined, an activation
// action is injected at the head of the intent's actions, at most once. An
// extra step is favored over a missed step.
func (s *Session) activateSection(_ context.Context, intent *Intent) error {
	info, ok := SectionFor(intent.Context)
	if !ok {
		return nil
	}

	tctx, cancel := context.WithTimeout(s.ctx, s.navTimeout())
	defer cancel()

	var candidates []sectionCandidate
	if err := chromedp.Run(tctx, chromedp.Evaluate(sectionCandidatesJS, &candidates)); err != nil {
		// Candidate search failed; inject defensively rather than abort.
		intent.InjectActivation(info.Element, info.Name)
		if s.logger != nil {
			s.logger.Warning("section candidate search failed, activation injected defensively: " + err.Error())
		}
		return nil
	}

	match, found := matchSectionCandidate(candidates, info)
	if found && candidateIsActive(match) {
		return nil
	}
	intent.InjectActivation(info.Element, info.Name)
	return nil
}

// matchSectionCandidate finds the control whose identifier or text matches
// the section's known aliases.
func matchSectionCandidate(candidates []sectionCandidate, info sectionInfo) (sectionCandidate, bool) {
	for _, c := range candidates {
		if c.TestID == info.Element {
			return c, true
		}
		text := strings.ToLower(c.Text)
		for _, alias := range info.Aliases {
			if text == alias || strings.Contains(text, alias) {
				return c, true
			}
		}
	}
	return sectionCandidate{}, false
}

// candidateIsActive checks the known active-state signals. Only a positive
// signal counts; anything indeterminate reads as inactive so the activation
// step is injected defensively.
func candidateIsActive(c sectionCandidate) bool {
	if c.Selected == "true" {
		return true
	}
	if c.Current != "" && c.Current != "false" {
		return true
	}
	for _, cls := range strings.Fields(c.Class) {
		if strings.EqualFold(cls, "active") || strings.HasSuffix(strings.ToLower(cls), "--active") {
			return true
		}
	}
	return false
}

const elementInventoryJS = `(() => {
	const out = [];
	const labelFor = (el) => {
		if (!el.id) return '';
		const label = document.querySelector('label[for="' + el.id + '"]');
		return label ? (label.textContent || '').trim() : '';
	};
	for (const el of document.querySelectorAll('[data-testid]')) {
		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		const visible = rect.width > 0 && rect.height > 0 &&
			style.display !== 'none' && style.visibility !== 'hidden';
		out.push({
			tag: el.tagName.toLowerCase(),
			type: el.getAttribute('type') || '',
			testId: el.getAttribute('data-testid') || '',
			role: el.getAttribute('role') || '',
			ariaLabel: el.getAttribute('aria-label') || '',
			alt: el.getAttribute('alt') || '',
			title: el.getAttribute('title') || '',
			placeholder: el.getAttribute('placeholder') || '',
			text: (el.textContent || '').trim().slice(0, 120),
			id: el.id || '',
			labelText: labelFor(el),
			class: el.className && el.className.toString ? el.className.toString() : '',
			ariaSelected: el.getAttribute('aria-selected') || '',
			ariaCurrent: el.getAttribute('aria-current') || '',
			visible: visible,
		});
	}
	return out;
})()`

// observe captures the accessibility snapshot and the flat inventory of
// visible elements carrying a stable identifier, each resolved through the
// locator chain. An empty or insufficient observation is terminal.
func (s *Session) observe(_ context.Context) (*Observation, error) {
	tctx, cancel := context.WithTimeout(s.ctx, s.navTimeout())
	defer cancel()

	var infos []ElementInfo
	var axNodes []*accessibility.Node
	err := chromedp.Run(tctx,
		chromedp.Evaluate(elementInventoryJS, &infos),
		chromedp.ActionFunc(func(ctx context.Context) error {
			nodes, err := accessibility.GetFullAXTree().Do(ctx)
			if err != nil {
				// The snapshot is supplementary; the inventory is the
				// primary observation.
				return nil
			}
			axNodes = nodes
			return nil
		}),
	)
	if err != nil {
		loc, title := s.pageIdentity()
		return nil, &ObservationError{URL: loc, Title: title, Reason: err.Error()}
	}

	obs := &Observation{}
	obs.URL, obs.Title = s.pageIdentity()

	for _, info := range infos {
		if !info.Visible {
			continue
		}
		obs.Elements = append(obs.Elements, ObservedElement{
			TestID:  info.TestID,
			Text:    info.Text,
			Locator: ResolveLocator(info),
			Info:    info,
		})
	}

	for _, node := range axNodes {
		if node == nil || node.Ignored {
			continue
		}
		summary := AXNodeSummary{
			Role: axValueString(node.Role),
			Name: axValueString(node.Name),
		}
		if summary.Role != "" || summary.Name != "" {
			obs.AXNodes = append(obs.AXNodes, summary)
		}
	}

	if len(obs.Elements) < s.cfg.MinElements {
		return nil, &ObservationError{
			URL:          obs.URL,
			Title:        obs.Title,
			ElementCount: len(obs.Elements),
			Reason:       fmt.Sprintf("only %d addressable elements visible, need %d", len(obs.Elements), s.cfg.MinElements),
		}
	}

	return obs, nil
}

// axValueString decodes a string-typed accessibility value.
func axValueString(v *accessibility.Value) string {
	if v == nil || len(v.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(v.Value, &s); err != nil {
		return ""
	}
	return s
}

// countAddressable counts visible elements carrying a stable identifier.
func (s *Session) countAddressable() (int, error) {
	tctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()

	var count int
	err := chromedp.Run(tctx, chromedp.Evaluate(
		`Array.from(document.querySelectorAll('[data-testid]')).filter(el => {
			const r = el.getBoundingClientRect();
			return r.width > 0 && r.height > 0;
		}).length`, &count))
	return count, err
}

// pageIdentity returns the current location and title, best effort.
func (s *Session) pageIdentity() (string, string) {
	tctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	var loc, title string
	_ = chromedp.Run(tctx, chromedp.Location(&loc), chromedp.Title(&title))
	return loc, title
}

func (s *Session) navTimeout() time.Duration {
	if s.cfg.NavTimeout > 0 {
		return time.Duration(s.cfg.NavTimeout) * time.Second
	}
	return 30 * time.Second
}
