package main

import (
	"sort"
	"strings"
)

// Context identifies the area of the application a test targets.
type Context string

const (
	ContextHome       Context = "home"
	ContextOrdersHub  Context = "ordersHub"
	ContextPastOrders Context = "pastOrders"
	ContextSearch     Context = "search"
	ContextCart       Context = "cart"
	ContextMenu       Context = "menu"
	ContextSignup     Context = "signup"
	ContextLogin      Context = "login"
)

// AllContexts lists every known context. Tests enumerate this to keep the
// lookup tables below in sync.
var AllContexts = []Context{
	ContextHome, ContextOrdersHub, ContextPastOrders, ContextSearch,
	ContextCart, ContextMenu, ContextSignup, ContextLogin,
}

// ActionType classifies an interaction step.
type ActionType string

const (
	ActionClick    ActionType = "click"
	ActionTap      ActionType = "tap"
	ActionFill     ActionType = "fill"
	ActionNavigate ActionType = "navigate"
	ActionScroll   ActionType = "scroll"
)

// AssertionType classifies a verification step.
type AssertionType string

const (
	AssertVisibility AssertionType = "visibility"
	AssertText       AssertionType = "text"
	AssertState      AssertionType = "state"
	AssertValue      AssertionType = "value"
)

// OrderedAction is one interaction the test must perform. Order is a
// tie-break weight, not a strict sequence number; ties keep list position.
type OrderedAction struct {
	Type        ActionType `json:"type"`
	Element     string     `json:"element"`
	Description string     `json:"description"`
	Intent      string     `json:"intent"`
	Value       string     `json:"value,omitempty"`
	Order       int        `json:"order"`
}

// Assertion is one verification the test must perform.
type Assertion struct {
	Type        AssertionType `json:"type"`
	Element     string        `json:"element"`
	Description string        `json:"description"`
	Expected    string        `json:"expected,omitempty"`
}

// Intent is the structured interpretation of acceptance criteria.
type Intent struct {
	Context    Context         `json:"context"`
	Actions    []OrderedAction `json:"actions"`
	Assertions []Assertion     `json:"assertions"`
}

// AcceptanceCriteria is the opaque input for one run.
type AcceptanceCriteria struct {
	Text        string
	TicketID    string
	TicketTitle string
}

// activationOrder sorts before every other action weight.
const activationOrder = -100

// SortActions orders actions by weight, keeping list position for ties.
func (in *Intent) SortActions() {
	sort.SliceStable(in.Actions, func(i, j int) bool {
		return in.Actions[i].Order < in.Actions[j].Order
	})
}

// HasActivation reports whether an action already targets the section's
// activation control. Interpreter-emitted tab clicks count the same as
// injected ones; a run never clicks the same tab twice.
func (in *Intent) HasActivation(element string) bool {
	for _, a := range in.Actions {
		if a.Element != element {
			continue
		}
		if a.Type == ActionClick || a.Type == ActionTap || a.Order == activationOrder {
			return true
		}
	}
	return false
}

// InjectActivation prepends a section-activation click for element unless an
// action targeting it already exists. An existing action is canonicalized to
// the activation weight so it still sorts before every other step.
func (in *Intent) InjectActivation(element, sectionName string) bool {
	for i := range in.Actions {
		a := &in.Actions[i]
		if a.Element != element {
			continue
		}
		if a.Type == ActionClick || a.Type == ActionTap || a.Order == activationOrder {
			a.Order = activationOrder
			return false
		}
	}
	act := OrderedAction{
		Type:        ActionClick,
		Element:     element,
		Description: "activate the " + sectionName + " section",
		Intent:      "open " + sectionName,
		Order:       activationOrder,
	}
	in.Actions = append([]OrderedAction{act}, in.Actions...)
	return true
}

// contextKeywords maps each context to the phrases that indicate it in
// acceptance criteria. First context whose keyword matches wins; more
// specific contexts are listed before their parents in contextDetectionOrder.
var contextKeywords = map[Context][]string{
	ContextPastOrders: {"past order", "previous order", "order history", "reorder", "past orders"},
	ContextOrdersHub:  {"orders hub", "order hub", "my orders", "orders page", "upcoming order"},
	ContextCart:       {"cart", "basket", "checkout"},
	ContextSearch:     {"search", "find a restaurant", "find restaurant"},
	ContextMenu:       {"menu", "restaurant page", "item detail", "add item"},
	ContextSignup:     {"sign up", "signup", "register", "create account", "create an account"},
	ContextLogin:      {"log in", "login", "sign in"},
	ContextHome:       {"home", "landing", "dashboard"},
}

// contextDetectionOrder fixes keyword lookup order so that sub-sections win
// over their parent (pastOrders before ordersHub) and the table stays
// deterministic.
var contextDetectionOrder = []Context{
	ContextPastOrders, ContextOrdersHub, ContextCart, ContextSearch,
	ContextMenu, ContextSignup, ContextLogin, ContextHome,
}

// DetectContext assigns a context from the fixed keyword table. Falls back to
// home when nothing matches.
func DetectContext(text string) Context {
	lower := strings.ToLower(text)
	for _, ctx := range contextDetectionOrder {
		for _, kw := range contextKeywords[ctx] {
			if strings.Contains(lower, kw) {
				return ctx
			}
		}
	}
	return ContextHome
}

// sectionInfo describes a context that is a sub-section of a larger view and
// must be activated (tab click) before it can be observed.
type sectionInfo struct {
	Parent  Context
	Element string   // stable identifier of the activating control
	Name    string   // human name used in descriptions
	Aliases []string // visible texts that identify the control
}

// sectionContexts maps sub-section contexts to their activation metadata.
var sectionContexts = map[Context]sectionInfo{
	ContextPastOrders: {
		Parent:  ContextOrdersHub,
		Element: "pastOrdersTab",
		Name:    "Past Orders",
		Aliases: []string{"past orders", "previous orders", "history"},
	},
}

// contextPaths maps contexts to their navigation targets, relative to the
// application base URL. Sub-sections navigate to their parent's path.
var contextPaths = map[Context]string{
	ContextHome:       "/",
	ContextOrdersHub:  "/orders",
	ContextPastOrders: "/orders",
	ContextSearch:     "/search",
	ContextCart:       "/cart",
	ContextMenu:       "/menu",
	ContextSignup:     "/signup",
	ContextLogin:      "/login",
}

// noAuthContexts bypass the authentication state entirely.
var noAuthContexts = map[Context]bool{
	ContextSignup: true,
	ContextLogin:  true,
}

// contextNamespaces maps contexts to the reusable-action namespace searched
// during synthesis. Sub-sections share their parent's namespace.
var contextNamespaces = map[Context]string{
	ContextHome:       "home page",
	ContextOrdersHub:  "orders hub page",
	ContextPastOrders: "orders hub page",
	ContextSearch:     "search page",
	ContextCart:       "cart page",
	ContextMenu:       "menu page",
	ContextSignup:     "signup page",
	ContextLogin:      "login page",
}

// contextSpecFiles maps contexts to their target spec file. Sub-sections
// intentionally share their parent's file.
var contextSpecFiles = map[Context]string{
	ContextHome:       "tests/home.spec.ts",
	ContextOrdersHub:  "tests/orders-hub.spec.ts",
	ContextPastOrders: "tests/orders-hub.spec.ts",
	ContextSearch:     "tests/search.spec.ts",
	ContextCart:       "tests/cart.spec.ts",
	ContextMenu:       "tests/menu.spec.ts",
	ContextSignup:     "tests/signup.spec.ts",
	ContextLogin:      "tests/login.spec.ts",
}

// NavigationPath returns the path for a context, defaulting to the root.
func NavigationPath(ctx Context) string {
	if p, ok := contextPaths[ctx]; ok {
		return p
	}
	return "/"
}

// RequiresAuth reports whether a context needs an authenticated session.
func RequiresAuth(ctx Context) bool {
	return !noAuthContexts[ctx]
}

// Namespace returns the reusable-action namespace for a context.
func Namespace(ctx Context) string {
	if ns, ok := contextNamespaces[ctx]; ok {
		return ns
	}
	return string(ctx) + " page"
}

// SpecFile returns the target spec file for a context.
func SpecFile(ctx Context) string {
	if f, ok := contextSpecFiles[ctx]; ok {
		return f
	}
	return "tests/" + string(ctx) + ".spec.ts"
}

// SectionFor returns activation metadata when ctx is a sub-section.
func SectionFor(ctx Context) (sectionInfo, bool) {
	s, ok := sectionContexts[ctx]
	return s, ok
}
