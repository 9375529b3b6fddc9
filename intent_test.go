package main

import (
	"testing"
)

func TestDetectContext(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Context
	}{
		{"past orders beats orders hub", "User opens the orders hub and selects a past order", ContextPastOrders},
		{"orders hub", "User navigates to the orders hub", ContextOrdersHub},
		{"upcoming orders", "An upcoming order shows its status", ContextOrdersHub},
		{"reorder implies past orders", "User can reorder a previous meal", ContextPastOrders},
		{"cart", "User opens the cart and proceeds to checkout", ContextCart},
		{"search", "User searches for a restaurant", ContextSearch},
		{"menu", "User browses the restaurant page and adds an item", ContextMenu},
		{"signup", "A new user can create an account", ContextSignup},
		{"login", "User can log in with email and password", ContextLogin},
		{"case insensitive", "USER VIEWS ORDER HISTORY", ContextPastOrders},
		{"no match falls back to home", "Something entirely unrelated", ContextHome},
		{"empty falls back to home", "", ContextHome},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectContext(tt.text)
			if got != tt.want {
				t.Errorf("DetectContext(%q) = %s, want %s", tt.text, got, tt.want)
			}
		})
	}
}

func TestContextTablesComplete(t *testing.T) {
	for _, ctx := range AllContexts {
		if _, ok := contextPaths[ctx]; !ok {
			t.Errorf("contextPaths missing entry for %s", ctx)
		}
		if _, ok := contextNamespaces[ctx]; !ok {
			t.Errorf("contextNamespaces missing entry for %s", ctx)
		}
		if _, ok := contextSpecFiles[ctx]; !ok {
			t.Errorf("contextSpecFiles missing entry for %s", ctx)
		}
		if _, ok := contextKeywords[ctx]; !ok {
			t.Errorf("contextKeywords missing entry for %s", ctx)
		}
	}
	if len(contextDetectionOrder) != len(AllContexts) {
		t.Errorf("contextDetectionOrder has %d entries, want %d", len(contextDetectionOrder), len(AllContexts))
	}
}

func TestSubSectionSharesParentTargets(t *testing.T) {
	if NavigationPath(ContextPastOrders) != NavigationPath(ContextOrdersHub) {
		t.Error("pastOrders should navigate to the ordersHub path")
	}
	if Namespace(ContextPastOrders) != Namespace(ContextOrdersHub) {
		t.Error("pastOrders should share the ordersHub namespace")
	}
	if SpecFile(ContextPastOrders) != SpecFile(ContextOrdersHub) {
		t.Error("pastOrders should land in the ordersHub spec file")
	}
}

func TestRequiresAuth(t *testing.T) {
	if RequiresAuth(ContextLogin) {
		t.Error("login context should not require auth")
	}
	if RequiresAuth(ContextSignup) {
		t.Error("signup context should not require auth")
	}
	if !RequiresAuth(ContextPastOrders) {
		t.Error("pastOrders context should require auth")
	}
	if !RequiresAuth(ContextHome) {
		t.Error("home context should require auth")
	}
}

func TestSectionFor(t *testing.T) {
	info, ok := SectionFor(ContextPastOrders)
	if !ok {
		t.Fatal("pastOrders should be a sub-section")
	}
	if info.Parent != ContextOrdersHub {
		t.Errorf("parent = %s, want %s", info.Parent, ContextOrdersHub)
	}
	if info.Element != "pastOrdersTab" {
		t.Errorf("element = %s, want pastOrdersTab", info.Element)
	}

	if _, ok := SectionFor(ContextCart); ok {
		t.Error("cart should not be a sub-section")
	}
}

func TestSortActionsStable(t *testing.T) {
	intent := &Intent{
		Actions: []OrderedAction{
			{Element: "b", Order: 2},
			{Element: "a", Order: 1},
			{Element: "c", Order: 2},
			{Element: "tab", Order: activationOrder},
		},
	}
	intent.SortActions()

	want := []string{"tab", "a", "b", "c"}
	for i, el := range want {
		if intent.Actions[i].Element != el {
			t.Errorf("position %d = %s, want %s", i, intent.Actions[i].Element, el)
		}
	}
}

func TestInjectActivation(t *testing.T) {
	intent := &Intent{
		Context: ContextPastOrders,
		Actions: []OrderedAction{
			{Type: ActionClick, Element: "invoiceIcon", Order: 1},
		},
	}

	if !intent.InjectActivation("pastOrdersTab", "Past Orders") {
		t.Fatal("first injection should report true")
	}
	if len(intent.Actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(intent.Actions))
	}
	if intent.Actions[0].Element != "pastOrdersTab" || intent.Actions[0].Order != activationOrder {
		t.Errorf("activation should be prepended with the activation weight, got %+v", intent.Actions[0])
	}

	// Second injection for the same element is a no-op.
	if intent.InjectActivation("pastOrdersTab", "Past Orders") {
		t.Error("repeated injection should report false")
	}
	if len(intent.Actions) != 2 {
		t.Errorf("expected 2 actions after repeat, got %d", len(intent.Actions))
	}
}

func TestHasActivation(t *testing.T) {
	intent := &Intent{
		Actions: []OrderedAction{
			{Type: ActionFill, Element: "pastOrdersTab", Order: 1},
		},
	}
	if intent.HasActivation("pastOrdersTab") {
		t.Error("a fill action on the control is not an activation")
	}

	intent.Actions[0].Type = ActionClick
	if !intent.HasActivation("pastOrdersTab") {
		t.Error("a click on the activation control should be detected")
	}

	intent.Actions[0].Type = ""
	intent.Actions[0].Order = activationOrder
	if !intent.HasActivation("pastOrdersTab") {
		t.Error("activation-weight action should be detected")
	}
}

func TestInjectActivationCanonicalizesExistingTabClick(t *testing.T) {
	intent := &Intent{
		Context: ContextPastOrders,
		Actions: []OrderedAction{
			{Type: ActionClick, Element: "pastOrdersTab", Description: "go to past orders", Order: 1},
			{Type: ActionClick, Element: "loadMoreButton", Order: 2},
		},
	}

	if intent.InjectActivation("pastOrdersTab", "Past Orders") {
		t.Error("injection over an existing tab click should report false")
	}
	if len(intent.Actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(intent.Actions))
	}

	var tabClicks int
	for _, a := range intent.Actions {
		if a.Element == "pastOrdersTab" {
			tabClicks++
			if a.Order != activationOrder {
				t.Errorf("existing tab click should carry the activation weight, got %d", a.Order)
			}
		}
	}
	if tabClicks != 1 {
		t.Fatalf("expected exactly one tab click, got %d", tabClicks)
	}

	intent.SortActions()
	if intent.Actions[0].Element != "pastOrdersTab" {
		t.Errorf("canonicalized tab click should sort first, got %q", intent.Actions[0].Element)
	}
}
