package main

import (
	"fmt"
	"regexp"
	"strings"
)

// FoundBy records how an interaction was resolved. The code-generation
// strategy branches on it: reuse beats a fresh locator beats a generated
// method name.
type FoundBy string

const (
	FoundByReuse         FoundBy = "reuse"
	FoundByObserved      FoundBy = "observed-locator"
	FoundByAccessibility FoundBy = "accessibility-search"
	FoundByNotFound      FoundBy = "not-found"
)

// Interaction is one action matched against the observation and the mined
// knowledge.
type Interaction struct {
	Action  OrderedAction
	FoundBy FoundBy
	Locator string
	Method  string // reusable or generated method name
	Visible bool
}

// AssertionStep is one assertion matched the same way.
type AssertionStep struct {
	Assertion Assertion
	FoundBy   FoundBy
	Locator   string
	Method    string
}

// MethodStub is a best-guess reusable-action stub emitted for steps that
// could not be resolved against the library or the live page.
type MethodStub struct {
	Namespace string
	Name      string
	Verb      string
	Element   string
	Locator   string
}

// GeneratedTest is the final artifact of one run. Derived, never mutated
// after creation.
type GeneratedTest struct {
	Title          string
	Tags           []string
	Code           string
	ActionCount    int
	AssertionCount int
	Stubs          []MethodStub
	Warnings       []string
}

// intentSynonyms groups the phrases that map to one canonical reusable
// action. Kept as versioned data so tests can enumerate it.
var intentSynonyms = map[string][]string{
	"go to cart":          {"go to cart", "open cart", "view cart", "show cart"},
	"open invoice":        {"open invoice", "view invoice", "click invoice icon", "show invoice"},
	"load more":           {"load more", "load more orders", "show more"},
	"open past orders":    {"open past orders", "select past orders tab", "view past orders"},
	"select past order":   {"select past order", "open past order", "choose past order"},
	"go to checkout":      {"go to checkout", "proceed to checkout", "checkout"},
	"search":              {"search", "search for"},
	"go to orders hub":    {"go to orders hub", "open orders", "view orders"},
	"reorder":             {"reorder", "order again"},
	"add to cart":         {"add to cart", "add item to cart"},
	"get cart badge text": {"get cart badge text", "read cart badge"},
}

// childParents maps an element that belongs to a record onto the element that
// selects the record. A child action must never precede its parent.
var childParents = map[string]string{
	"invoiceIcon":   "pastOrderItem",
	"reorderButton": "pastOrderItem",
}

// parentActions supplies the selection step to insert when a child action
// appears without its parent.
var parentActions = map[string]OrderedAction{
	"pastOrderItem": {
		Type:        ActionClick,
		Element:     "pastOrderItem",
		Description: "select a past order",
		Intent:      "select past order",
	},
}

// loadMoreElements are pagination controls hoisted to immediately follow any
// section-activation action.
var loadMoreElements = map[string]bool{
	"loadMoreButton": true,
}

// actionVerbs maps action types to generated-method verb prefixes.
var actionVerbs = map[ActionType]string{
	ActionClick:    "clickOn",
	ActionTap:      "clickOn",
	ActionFill:     "fill",
	ActionNavigate: "navigateTo",
	ActionScroll:   "scrollTo",
}

// assertionVerbs maps assertion types to generated-method verb pairs
// (prefix, suffix).
var assertionVerbs = map[AssertionType][2]string{
	AssertVisibility: {"is", "Visible"},
	AssertText:       {"get", "Text"},
	AssertState:      {"get", "State"},
	AssertValue:      {"get", "Value"},
}

// methodName builds a deterministic generated-method name from a verb prefix
// and an element token: ("clickOn", "invoiceIcon") → "clickOnInvoiceIcon".
func methodName(verb, elementToken string) string {
	return verb + capitalizeToken(elementToken)
}

// assertionMethodName builds the assertion variant:
// (visibility, "invoiceModal") → "isInvoiceModalVisible".
func assertionMethodName(t AssertionType, elementToken string) string {
	verbs, ok := assertionVerbs[t]
	if !ok {
		verbs = assertionVerbs[AssertVisibility]
	}
	return verbs[0] + capitalizeToken(elementToken) + verbs[1]
}

func capitalizeToken(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	return strings.ToUpper(token[:1]) + token[1:]
}

var camelBoundaryRe = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// decamel turns "goToOrdersHub" into "go to orders hub" for synonym matching.
func decamel(name string) string {
	spaced := camelBoundaryRe.ReplaceAllString(name, "$1 $2")
	return strings.ToLower(spaced)
}

// canonicalIntent returns the synonym-table key a phrase belongs to, or "".
func canonicalIntent(phrase string) string {
	p := strings.ToLower(strings.TrimSpace(phrase))
	for key, phrases := range intentSynonyms {
		for _, candidate := range phrases {
			if p == candidate {
				return key
			}
		}
	}
	return ""
}

// methodMatchesIntent reports whether a reusable method's name and an action's
// intent phrase map to the same canonical intent.
func methodMatchesIntent(method, intentPhrase string) bool {
	key := canonicalIntent(intentPhrase)
	if key == "" {
		return false
	}
	return canonicalIntent(decamel(method)) == key
}

// Synthesize merges the intent, live observation and mined knowledge into an
// ordered list of interactions and assertions, then renders the final test
// source plus any missing reusable-action stubs. A test is never emitted with
// zero verifications.
func Synthesize(intent *Intent, obs *Observation, knowledge *MinedKnowledge, criteria AcceptanceCriteria) *GeneratedTest {
	reorderActions(intent)

	namespace := Namespace(intent.Context)
	test := &GeneratedTest{
		Title: testTitle(criteria),
		Tags:  []string{"@generated", "@" + string(intent.Context)},
	}

	var interactions []Interaction
	for _, action := range intent.Actions {
		interactions = append(interactions, resolveAction(action, obs, knowledge, namespace))
	}

	var steps []AssertionStep
	for _, assertion := range intent.Assertions {
		steps = append(steps, resolveAssertion(assertion, obs, knowledge, namespace))
	}
	if len(steps) == 0 {
		steps = append(steps, derivedAssertion(intent, interactions))
	}

	for _, ia := range interactions {
		if ia.FoundBy == FoundByNotFound {
			test.Stubs = append(test.Stubs, MethodStub{
				Namespace: namespace,
				Name:      ia.Method,
				Verb:      actionVerbs[ia.Action.Type],
				Element:   ia.Action.Element,
				Locator:   stubLocator(ia.Action.Element),
			})
			test.Warnings = append(test.Warnings, "step not resolved against live page: "+ia.Action.Description)
		}
	}
	for _, st := range steps {
		if st.FoundBy == FoundByNotFound {
			test.Warnings = append(test.Warnings, "assertion is best-effort: "+st.Assertion.Description)
		}
	}

	test.Code = renderTest(test.Title, test.Tags, intent, interactions, steps, namespace)
	test.ActionCount = len(interactions)
	test.AssertionCount = len(steps)
	return test
}

func testTitle(criteria AcceptanceCriteria) string {
	title := strings.TrimSpace(criteria.TicketTitle)
	if title == "" {
		title = "generated scenario"
	}
	id := normalizeTicketID(criteria.TicketID)
	if id == "" {
		return title
	}
	return id + ": " + title
}

// reorderActions applies the known dependency rules: activation actions sort
// first, a child action never precedes its parent selection (the parent is
// inserted when missing), and load-more controls follow activation directly.
func reorderActions(intent *Intent) {
	intent.SortActions()

	// Child/parent: swap when out of order, insert the parent when absent.
	for i := 0; i < len(intent.Actions); i++ {
		child := intent.Actions[i]
		parent, ok := childParents[child.Element]
		if !ok {
			continue
		}
		parentIdx := -1
		for j, a := range intent.Actions {
			if a.Element == parent {
				parentIdx = j
				break
			}
		}
		switch {
		case parentIdx == -1:
			tpl, ok := parentActions[parent]
			if !ok {
				continue
			}
			tpl.Order = child.Order
			intent.Actions = append(intent.Actions[:i], append([]OrderedAction{tpl}, intent.Actions[i:]...)...)
			i++ // child moved one slot right
		case parentIdx > i:
			intent.Actions[i], intent.Actions[parentIdx] = intent.Actions[parentIdx], intent.Actions[i]
		}
	}

	// Load-more hoist: immediately after the last activation action.
	lastActivation := -1
	for i, a := range intent.Actions {
		if a.Order == activationOrder {
			lastActivation = i
		}
	}
	if lastActivation == -1 {
		return
	}
	for i, a := range intent.Actions {
		if !loadMoreElements[a.Element] || i == lastActivation+1 {
			continue
		}
		moved := intent.Actions[i]
		intent.Actions = append(intent.Actions[:i], intent.Actions[i+1:]...)
		insertAt := lastActivation + 1
		if i < insertAt {
			insertAt--
		}
		intent.Actions = append(intent.Actions[:insertAt], append([]OrderedAction{moved}, intent.Actions[insertAt:]...)...)
		break
	}
}

// resolveAction matches one action in strict priority: reuse a known method,
// then the locator discovered during observation, then a synthesized method
// name.
func resolveAction(action OrderedAction, obs *Observation, knowledge *MinedKnowledge, namespace string) Interaction {
	if knowledge != nil {
		for _, m := range knowledge.MethodsWithIDs[namespace] {
			if containsString(m.TestIDs, action.Element) || methodMatchesIntent(m.Name, action.Intent) {
				return Interaction{Action: action, FoundBy: FoundByReuse, Method: m.Name, Visible: true}
			}
		}
	}

	if obs != nil {
		if el, ok := obs.ByTestID(action.Element); ok {
			return Interaction{Action: action, FoundBy: FoundByObserved, Locator: el.Locator, Visible: el.Info.Visible}
		}
		if loc, ok := obs.SearchAccessibility(action.Element, action.Description); ok {
			return Interaction{Action: action, FoundBy: FoundByAccessibility, Locator: loc, Visible: true}
		}
	}

	verb := actionVerbs[action.Type]
	if verb == "" {
		verb = "clickOn"
	}
	return Interaction{Action: action, FoundBy: FoundByNotFound, Method: methodName(verb, action.Element)}
}

// resolveAssertion applies the same three-tier strategy to an assertion.
func resolveAssertion(assertion Assertion, obs *Observation, knowledge *MinedKnowledge, namespace string) AssertionStep {
	wantMethod := assertionMethodName(assertion.Type, assertion.Element)

	if knowledge != nil {
		for _, m := range knowledge.MethodsWithIDs[namespace] {
			if containsString(m.TestIDs, assertion.Element) || m.Name == wantMethod {
				return AssertionStep{Assertion: assertion, FoundBy: FoundByReuse, Method: m.Name}
			}
		}
	}

	if obs != nil {
		if el, ok := obs.ByTestID(assertion.Element); ok {
			return AssertionStep{Assertion: assertion, FoundBy: FoundByObserved, Locator: el.Locator}
		}
		if loc, ok := obs.SearchAccessibility(assertion.Element, assertion.Description); ok {
			return AssertionStep{Assertion: assertion, FoundBy: FoundByAccessibility, Locator: loc}
		}
	}

	return AssertionStep{Assertion: assertion, FoundBy: FoundByNotFound, Method: wantMethod}
}

// derivedAssertion produces the single directionally-correct verification
// required when the interpreter yielded none: the last resolved action's
// target view must be reflected in the location.
func derivedAssertion(intent *Intent, interactions []Interaction) AssertionStep {
	element := string(intent.Context)
	for i := len(interactions) - 1; i >= 0; i-- {
		if interactions[i].FoundBy != FoundByNotFound {
			element = interactions[i].Action.Element
			break
		}
	}
	return AssertionStep{
		Assertion: Assertion{
			Type:        AssertState,
			Element:     "url",
			Description: "the resulting location reflects the " + element + " target",
			Expected:    NavigationPath(intent.Context),
		},
		FoundBy: FoundByObserved,
		Locator: "page",
	}
}

// containsString reports membership in a small slice.
func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// pageObjectVar derives the page-object variable name from a namespace:
// "orders hub page" → "ordersHubPage".
func pageObjectVar(namespace string) string {
	words := strings.Fields(namespace)
	if len(words) == 0 {
		return "page"
	}
	var b strings.Builder
	b.WriteString(words[0])
	for _, w := range words[1:] {
		b.WriteString(capitalizeToken(w))
	}
	return b.String()
}

// stubLocator is the best-guess locator used inside a generated stub.
func stubLocator(element string) string {
	return "this.page.getByTestId(" + quoteTS(element) + ")"
}

// renderTest renders the Playwright test declaration with a
// Given/When/Then-shaped body.
func renderTest(title string, tags []string, intent *Intent, interactions []Interaction, steps []AssertionStep, namespace string) string {
	pageVar := pageObjectVar(namespace)

	var b strings.Builder
	quotedTags := make([]string, len(tags))
	for i, t := range tags {
		quotedTags[i] = quoteTS(t)
	}
	fmt.Fprintf(&b, "test(%s, { tag: [%s] }, async ({ page }) => {\n", quoteTS(title), strings.Join(quotedTags, ", "))

	fmt.Fprintf(&b, "  // Given: the user is on the %s view\n", intent.Context)
	fmt.Fprintf(&b, "  await page.goto(%s);\n", quoteTS(NavigationPath(intent.Context)))
	b.WriteString("\n")

	b.WriteString("  // When:\n")
	for _, ia := range interactions {
		renderInteraction(&b, ia, pageVar)
	}
	b.WriteString("\n")

	b.WriteString("  // Then:\n")
	for _, st := range steps {
		renderAssertion(&b, st, pageVar)
	}

	b.WriteString("});\n")
	return b.String()
}

func renderInteraction(b *strings.Builder, ia Interaction, pageVar string) {
	switch ia.FoundBy {
	case FoundByReuse, FoundByNotFound:
		arg := ""
		if ia.Action.Type == ActionFill && ia.Action.Value != "" {
			arg = quoteTS(ia.Action.Value)
		}
		fmt.Fprintf(b, "  await %s.%s(%s); // %s\n", pageVar, ia.Method, arg, ia.Action.Description)
	default:
		switch ia.Action.Type {
		case ActionFill:
			fmt.Fprintf(b, "  await %s.fill(%s); // %s\n", ia.Locator, quoteTS(ia.Action.Value), ia.Action.Description)
		case ActionScroll:
			fmt.Fprintf(b, "  await %s.scrollIntoViewIfNeeded(); // %s\n", ia.Locator, ia.Action.Description)
		case ActionNavigate:
			fmt.Fprintf(b, "  await page.goto(%s); // %s\n", quoteTS(ia.Action.Value), ia.Action.Description)
		default:
			fmt.Fprintf(b, "  await %s.click(); // %s\n", ia.Locator, ia.Action.Description)
		}
	}
}

func renderAssertion(b *strings.Builder, st AssertionStep, pageVar string) {
	a := st.Assertion

	if a.Element == "url" {
		fmt.Fprintf(b, "  await expect(page).toHaveURL(new RegExp(%s)); // %s\n", quoteTS(regexp.QuoteMeta(a.Expected)), a.Description)
		return
	}

	switch st.FoundBy {
	case FoundByReuse, FoundByNotFound:
		switch a.Type {
		case AssertVisibility:
			fmt.Fprintf(b, "  expect(await %s.%s()).toBeTruthy(); // %s\n", pageVar, st.Method, a.Description)
		case AssertText:
			fmt.Fprintf(b, "  expect(await %s.%s()).toContain(%s); // %s\n", pageVar, st.Method, quoteTS(a.Expected), a.Description)
		default:
			fmt.Fprintf(b, "  expect(await %s.%s()).toBeTruthy(); // %s\n", pageVar, st.Method, a.Description)
		}
	default:
		switch a.Type {
		case AssertVisibility:
			fmt.Fprintf(b, "  await expect(%s).toBeVisible(); // %s\n", st.Locator, a.Description)
		case AssertText:
			fmt.Fprintf(b, "  await expect(%s).toContainText(%s); // %s\n", st.Locator, quoteTS(a.Expected), a.Description)
		case AssertValue:
			fmt.Fprintf(b, "  await expect(%s).toHaveValue(%s); // %s\n", st.Locator, quoteTS(a.Expected), a.Description)
		default:
			if a.Expected == "increased" {
				fmt.Fprintf(b, "  expect(await %s.locator('> *').count()).toBeGreaterThan(0); // %s\n", st.Locator, a.Description)
			} else {
				fmt.Fprintf(b, "  await expect(%s).toBeVisible(); // %s\n", st.Locator, a.Description)
			}
		}
	}
}

// RenderStubs renders the missing reusable-action stubs for one namespace as
// a class-body fragment ready to paste into the page object.
func RenderStubs(stubs []MethodStub) string {
	if len(stubs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("// Generated stubs; fill in locators where the best guess is wrong.\n")
	for _, s := range stubs {
		switch s.Verb {
		case "fill":
			fmt.Fprintf(&b, "async %s(value: string) {\n  await %s.fill(value);\n}\n\n", s.Name, s.Locator)
		case "scrollTo":
			fmt.Fprintf(&b, "async %s() {\n  await %s.scrollIntoViewIfNeeded();\n}\n\n", s.Name, s.Locator)
		default:
			fmt.Fprintf(&b, "async %s() {\n  await %s.click();\n}\n\n", s.Name, s.Locator)
		}
	}
	return b.String()
}
