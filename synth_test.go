package main

import (
	"strings"
	"testing"
)

func elementsOf(intent *Intent) []string {
	out := make([]string, len(intent.Actions))
	for i, a := range intent.Actions {
		out[i] = a.Element
	}
	return out
}

func sameElements(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestReorderActionsChildBeforeParent(t *testing.T) {
	intent := &Intent{
		Context: ContextPastOrders,
		Actions: []OrderedAction{
			{Element: "invoiceIcon", Order: 1},
			{Element: "pastOrderItem", Order: 2},
		},
	}
	reorderActions(intent)

	want := []string{"pastOrderItem", "invoiceIcon"}
	if got := elementsOf(intent); !sameElements(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestReorderActionsInsertsMissingParent(t *testing.T) {
	intent := &Intent{
		Context: ContextPastOrders,
		Actions: []OrderedAction{
			{Element: "invoiceIcon", Order: 1},
		},
	}
	reorderActions(intent)

	want := []string{"pastOrderItem", "invoiceIcon"}
	if got := elementsOf(intent); !sameElements(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if intent.Actions[0].Intent != "select past order" {
		t.Errorf("inserted parent should carry the selection intent, got %q", intent.Actions[0].Intent)
	}
}

func TestReorderActionsLoadMoreFollowsActivation(t *testing.T) {
	intent := &Intent{
		Context: ContextPastOrders,
		Actions: []OrderedAction{
			{Element: "pastOrderItem", Order: 1},
			{Element: "invoiceIcon", Order: 2},
			{Element: "loadMoreButton", Order: 3},
		},
	}
	intent.InjectActivation("pastOrdersTab", "Past Orders")
	reorderActions(intent)

	want := []string{"pastOrdersTab", "loadMoreButton", "pastOrderItem", "invoiceIcon"}
	if got := elementsOf(intent); !sameElements(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestReorderActionsNoActivationNoHoist(t *testing.T) {
	intent := &Intent{
		Context: ContextOrdersHub,
		Actions: []OrderedAction{
			{Element: "pastOrderItem", Order: 1},
			{Element: "loadMoreButton", Order: 2},
		},
	}
	reorderActions(intent)

	want := []string{"pastOrderItem", "loadMoreButton"}
	if got := elementsOf(intent); !sameElements(got, want) {
		t.Errorf("load-more should stay put without an activation, got %v", got)
	}
}

func TestReorderActionsActivationSortsFirst(t *testing.T) {
	intent := &Intent{
		Context: ContextPastOrders,
		Actions: []OrderedAction{
			{Element: "invoiceIcon", Order: 1},
			{Element: "pastOrdersTab", Order: activationOrder},
			{Element: "pastOrderItem", Order: 1},
		},
	}
	reorderActions(intent)

	if intent.Actions[0].Element != "pastOrdersTab" {
		t.Errorf("activation must come first, got %v", elementsOf(intent))
	}
}

func testObservation() *Observation {
	mk := func(testID, text string) ObservedElement {
		info := ElementInfo{Tag: "button", TestID: testID, Text: text, Visible: true}
		return ObservedElement{TestID: testID, Text: text, Locator: ResolveLocator(info), Info: info}
	}
	return &Observation{
		URL:   "http://localhost:3000/orders",
		Title: "Orders",
		Elements: []ObservedElement{
			mk("pastOrdersTab", "Past Orders"),
			mk("pastOrderItem", "Order #42"),
			mk("invoiceIcon", ""),
		},
		AXNodes: []AXNodeSummary{
			{Role: "button", Name: "Load more"},
		},
	}
}

func TestResolveActionReuseWins(t *testing.T) {
	knowledge := fallbackKnowledge()
	action := OrderedAction{Type: ActionClick, Element: "invoiceIcon", Intent: "open invoice"}

	ia := resolveAction(action, testObservation(), knowledge, "orders hub page")
	if ia.FoundBy != FoundByReuse {
		t.Fatalf("foundBy = %s, want reuse", ia.FoundBy)
	}
	if ia.Method != "clickInvoiceIcon" {
		t.Errorf("method = %s, want clickInvoiceIcon", ia.Method)
	}
}

func TestResolveActionObservedLocator(t *testing.T) {
	action := OrderedAction{Type: ActionClick, Element: "pastOrderItem"}

	ia := resolveAction(action, testObservation(), nil, "orders hub page")
	if ia.FoundBy != FoundByObserved {
		t.Fatalf("foundBy = %s, want observed-locator", ia.FoundBy)
	}
	if ia.Locator != "page.getByTestId('pastOrderItem')" {
		t.Errorf("locator = %s", ia.Locator)
	}
}

func TestResolveActionAccessibilityFallback(t *testing.T) {
	action := OrderedAction{Type: ActionClick, Element: "loadMoreButton", Description: "click load more"}

	ia := resolveAction(action, testObservation(), nil, "orders hub page")
	if ia.FoundBy != FoundByAccessibility {
		t.Fatalf("foundBy = %s, want accessibility-search", ia.FoundBy)
	}
	if !strings.Contains(ia.Locator, "getByRole('button', { name: 'Load more' })") {
		t.Errorf("locator = %s", ia.Locator)
	}
}

func TestResolveActionNotFound(t *testing.T) {
	action := OrderedAction{Type: ActionClick, Element: "mysteryWidget"}

	ia := resolveAction(action, testObservation(), nil, "orders hub page")
	if ia.FoundBy != FoundByNotFound {
		t.Fatalf("foundBy = %s, want not-found", ia.FoundBy)
	}
	if ia.Method != "clickOnMysteryWidget" {
		t.Errorf("method = %s, want clickOnMysteryWidget", ia.Method)
	}
}

func TestResolveAssertionByMethodName(t *testing.T) {
	knowledge := &MinedKnowledge{
		MethodsWithIDs: map[string][]KnownMethod{
			"orders hub page": {{Name: "isInvoiceModalVisible"}},
		},
	}
	assertion := Assertion{Type: AssertVisibility, Element: "invoiceModal"}

	st := resolveAssertion(assertion, nil, knowledge, "orders hub page")
	if st.FoundBy != FoundByReuse {
		t.Fatalf("foundBy = %s, want reuse", st.FoundBy)
	}
	if st.Method != "isInvoiceModalVisible" {
		t.Errorf("method = %s", st.Method)
	}
}

func TestDerivedAssertionAlwaysPresent(t *testing.T) {
	intent := &Intent{
		Context: ContextPastOrders,
		Actions: []OrderedAction{
			{Type: ActionClick, Element: "pastOrderItem", Order: 1},
		},
	}
	gen := Synthesize(intent, testObservation(), nil, AcceptanceCriteria{TicketID: "APP-7", TicketTitle: "select order"})

	if gen.AssertionCount != 1 {
		t.Fatalf("a test must carry at least one assertion, got %d", gen.AssertionCount)
	}
	if !strings.Contains(gen.Code, "toHaveURL") {
		t.Errorf("derived assertion should verify the location:\n%s", gen.Code)
	}
	if !strings.Contains(gen.Code, "/orders") {
		t.Errorf("derived assertion should reference the context path:\n%s", gen.Code)
	}
}

func TestSynthesizeTitleAndTags(t *testing.T) {
	intent := &Intent{Context: ContextPastOrders}
	criteria := AcceptanceCriteria{TicketID: "app_123", TicketTitle: "Invoice opens from past orders"}

	gen := Synthesize(intent, testObservation(), nil, criteria)

	if gen.Title != "APP-123: Invoice opens from past orders" {
		t.Errorf("title = %q", gen.Title)
	}
	if len(gen.Tags) != 2 || gen.Tags[0] != "@generated" || gen.Tags[1] != "@pastOrders" {
		t.Errorf("tags = %v", gen.Tags)
	}
	if !strings.Contains(gen.Code, "test('APP-123: Invoice opens from past orders', { tag: ['@generated', '@pastOrders'] }") {
		t.Errorf("declaration missing title or tags:\n%s", gen.Code)
	}
}

func TestSynthesizeStubsForUnresolvedSteps(t *testing.T) {
	intent := &Intent{
		Context: ContextCart,
		Actions: []OrderedAction{
			{Type: ActionClick, Element: "giftWrapToggle", Description: "toggle gift wrap", Order: 1},
		},
		Assertions: []Assertion{
			{Type: AssertVisibility, Element: "giftWrapBanner", Description: "banner shows"},
		},
	}
	gen := Synthesize(intent, &Observation{URL: "http://localhost:3000/cart"}, nil, AcceptanceCriteria{TicketTitle: "gift wrap"})

	if len(gen.Stubs) != 1 {
		t.Fatalf("expected 1 stub, got %+v", gen.Stubs)
	}
	if gen.Stubs[0].Name != "clickOnGiftWrapToggle" {
		t.Errorf("stub name = %s", gen.Stubs[0].Name)
	}
	if len(gen.Warnings) != 2 {
		t.Errorf("expected warnings for the unresolved step and assertion, got %v", gen.Warnings)
	}

	stubs := RenderStubs(gen.Stubs)
	if !strings.Contains(stubs, "async clickOnGiftWrapToggle()") {
		t.Errorf("rendered stubs missing method:\n%s", stubs)
	}
	if !strings.Contains(stubs, "getByTestId('giftWrapToggle')") {
		t.Errorf("rendered stubs missing best-guess locator:\n%s", stubs)
	}
}

func TestRenderStubsEmpty(t *testing.T) {
	if RenderStubs(nil) != "" {
		t.Error("no stubs should render to an empty string")
	}
}

func TestSynthesizeFillAction(t *testing.T) {
	intent := &Intent{
		Context: ContextSearch,
		Actions: []OrderedAction{
			{Type: ActionFill, Element: "searchInput", Value: "pizza", Description: "type the query", Order: 1},
		},
	}
	obs := &Observation{
		URL: "http://localhost:3000/search",
		Elements: []ObservedElement{
			{TestID: "searchInput", Locator: "page.getByTestId('searchInput')", Info: ElementInfo{TestID: "searchInput", Visible: true}},
		},
	}

	gen := Synthesize(intent, obs, nil, AcceptanceCriteria{TicketTitle: "search"})
	if !strings.Contains(gen.Code, "page.getByTestId('searchInput').fill('pizza')") {
		t.Errorf("fill action not rendered:\n%s", gen.Code)
	}
}

func TestMethodMatchesIntent(t *testing.T) {
	tests := []struct {
		method string
		intent string
		want   bool
	}{
		{"goToCart", "open cart", true},
		{"openCart", "go to cart", true},
		{"selectPastOrdersTab", "open past orders", true},
		{"loadMoreOrders", "load more", true},
		{"goToCheckout", "checkout", true},
		{"openCart", "open invoice", false},
		{"randomMethod", "open cart", false},
		{"openCart", "something unknown", false},
	}
	for _, tt := range tests {
		if got := methodMatchesIntent(tt.method, tt.intent); got != tt.want {
			t.Errorf("methodMatchesIntent(%q, %q) = %v, want %v", tt.method, tt.intent, got, tt.want)
		}
	}
}

func TestDecamel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"goToOrdersHub", "go to orders hub"},
		{"clickInvoiceIcon", "click invoice icon"},
		{"loadMore", "load more"},
		{"single", "single"},
	}
	for _, tt := range tests {
		if got := decamel(tt.in); got != tt.want {
			t.Errorf("decamel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAssertionMethodName(t *testing.T) {
	tests := []struct {
		typ  AssertionType
		el   string
		want string
	}{
		{AssertVisibility, "invoiceModal", "isInvoiceModalVisible"},
		{AssertText, "cartBadge", "getCartBadgeText"},
		{AssertState, "orderList", "getOrderListState"},
		{AssertValue, "searchInput", "getSearchInputValue"},
		{AssertionType("bogus"), "thing", "isThingVisible"},
	}
	for _, tt := range tests {
		if got := assertionMethodName(tt.typ, tt.el); got != tt.want {
			t.Errorf("assertionMethodName(%s, %q) = %q, want %q", tt.typ, tt.el, got, tt.want)
		}
	}
}

func TestPageObjectVar(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"orders hub page", "ordersHubPage"},
		{"home page", "homePage"},
		{"", "page"},
	}
	for _, tt := range tests {
		if got := pageObjectVar(tt.in); got != tt.want {
			t.Errorf("pageObjectVar(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
