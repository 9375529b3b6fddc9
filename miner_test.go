package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const ordersHubPageSource = `import { Page } from '@playwright/test';

export class OrdersHubPage {
  constructor(private page: Page) {}

  async selectPastOrdersTab() {
    await this.page.getByTestId('pastOrdersTab').click();
  }

  async clickInvoiceIcon(): Promise<void> {
    await this.page.locator('[data-testid="invoiceIcon"]').click();
  }

  async loadMoreOrders() {
    await this.page.getByTestId("loadMoreButton").click();
    await this.page.getByTestId('pastOrderItem').first().waitFor();
  }
}
`

func TestExtractMethods(t *testing.T) {
	methods, samples := extractMethods(ordersHubPageSource)

	if len(methods) != 3 {
		t.Fatalf("expected 3 methods, got %d: %+v", len(methods), methods)
	}

	byName := make(map[string][]string)
	for _, m := range methods {
		byName[m.Name] = m.TestIDs
	}

	if ids := byName["selectPastOrdersTab"]; len(ids) != 1 || ids[0] != "pastOrdersTab" {
		t.Errorf("selectPastOrdersTab ids = %v", ids)
	}
	if ids := byName["clickInvoiceIcon"]; len(ids) != 1 || ids[0] != "invoiceIcon" {
		t.Errorf("clickInvoiceIcon ids = %v", ids)
	}
	if ids := byName["loadMoreOrders"]; len(ids) != 2 {
		t.Errorf("loadMoreOrders should carry both identifiers, got %v", ids)
	}

	if _, ok := byName["constructor"]; ok {
		t.Error("constructor must not be mined as a method")
	}

	if len(samples) != 1 || samples[0] != `[data-testid="invoiceIcon"]` {
		t.Errorf("samples = %v", samples)
	}
}

func TestExtractMethodsDeduplicatesIDs(t *testing.T) {
	source := `async openCart() {
  await this.page.getByTestId('cartIcon').click();
  await this.page.getByTestId('cartIcon').waitFor();
}`
	methods, _ := extractMethods(source)
	if len(methods) != 1 {
		t.Fatalf("expected 1 method, got %d", len(methods))
	}
	if len(methods[0].TestIDs) != 1 {
		t.Errorf("duplicate identifier should be recorded once, got %v", methods[0].TestIDs)
	}
}

func TestNamespaceForFile(t *testing.T) {
	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"orders-hub.page.ts", "orders hub page", true},
		{"OrdersHubPage.ts", "orders hub page", true},
		{"home.page.ts", "home page", true},
		{"cart.page.js", "cart page", true},
		{"orders-hub.spec.ts", "", false},
		{"home.test.ts", "", false},
		{"README.md", "", false},
		{"checkout.page.ts", "", false},
	}
	for _, tt := range tests {
		ns, ok := namespaceForFile(tt.name)
		if ok != tt.ok || ns != tt.want {
			t.Errorf("namespaceForFile(%q) = (%q, %v), want (%q, %v)", tt.name, ns, ok, tt.want, tt.ok)
		}
	}
}

func TestMineLocalDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "orders-hub.page.ts"), []byte(ordersHubPageSource), 0644); err != nil {
		t.Fatal(err)
	}
	// A spec file in the same directory must be ignored.
	if err := os.WriteFile(filepath.Join(dir, "orders-hub.spec.ts"), []byte("test('x', async () => {});"), 0644); err != nil {
		t.Fatal(err)
	}

	knowledge := Mine(context.Background(), &LocalPageObjects{Dir: dir}, nil)

	if knowledge.Fallback {
		t.Fatal("mining a real directory should not fall back")
	}
	methods := knowledge.MethodsWithIDs["orders hub page"]
	if len(methods) != 3 {
		t.Fatalf("expected 3 methods, got %+v", methods)
	}
	// Sorted by name.
	if methods[0].Name != "clickInvoiceIcon" {
		t.Errorf("methods not sorted, first = %s", methods[0].Name)
	}
}

func TestMineNilSourceFallsBack(t *testing.T) {
	knowledge := Mine(context.Background(), nil, nil)
	if !knowledge.Fallback {
		t.Fatal("nil source must use the static table")
	}
	if len(knowledge.MethodsWithIDs["orders hub page"]) == 0 {
		t.Error("static table should cover the orders hub namespace")
	}
}

func TestMineEmptyDirectoryFallsBack(t *testing.T) {
	knowledge := Mine(context.Background(), &LocalPageObjects{Dir: t.TempDir()}, nil)
	if !knowledge.Fallback {
		t.Error("a directory with no page objects should fall back")
	}
}

func TestMineListingFailureFallsBack(t *testing.T) {
	knowledge := Mine(context.Background(), &LocalPageObjects{Dir: "/nonexistent/autospec-test"}, nil)
	if !knowledge.Fallback {
		t.Error("an unreadable directory should fall back")
	}
}

type failingPageObjects struct{}

func (failingPageObjects) ListFiles(context.Context) ([]string, error) {
	return []string{"orders-hub.page.ts"}, nil
}

func (failingPageObjects) ReadFile(context.Context, string) (string, error) {
	return "", errors.New("read refused")
}

func TestMineReadFailureFallsBack(t *testing.T) {
	knowledge := Mine(context.Background(), failingPageObjects{}, nil)
	if !knowledge.Fallback {
		t.Error("a file read failure should fall back")
	}
}

func TestStaticKnownMethodsCoverCoreElements(t *testing.T) {
	want := map[string]string{
		"pastOrdersTab":  "orders hub page",
		"pastOrderItem":  "orders hub page",
		"invoiceIcon":    "orders hub page",
		"loadMoreButton": "orders hub page",
		"cartIcon":       "home page",
		"checkoutButton": "cart page",
	}
	for id, ns := range want {
		found := false
		for _, m := range staticKnownMethods[ns] {
			if containsString(m.TestIDs, id) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("static table missing %s in namespace %q", id, ns)
		}
	}
}

func TestJoinRepoPath(t *testing.T) {
	tests := []struct {
		dir, name, want string
	}{
		{"tests/pages", "home.page.ts", "tests/pages/home.page.ts"},
		{"tests/pages/", "home.page.ts", "tests/pages/home.page.ts"},
		{"", "home.page.ts", "home.page.ts"},
	}
	for _, tt := range tests {
		if got := joinRepoPath(tt.dir, tt.name); got != tt.want {
			t.Errorf("joinRepoPath(%q, %q) = %q, want %q", tt.dir, tt.name, got, tt.want)
		}
	}
}

// blockingPageObjects simulates a source whose reads never complete; it
// honors cancellation the way the real sources do.
type blockingPageObjects struct{}

func (blockingPageObjects) ListFiles(context.Context) ([]string, error) {
	return []string{"ordersHubPage.ts"}, nil
}

func (blockingPageObjects) ReadFile(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestMineDeadlineFallsBackWithinBudget(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	knowledge := Mine(ctx, blockingPageObjects{}, nil)
	elapsed := time.Since(start)

	if !knowledge.Fallback {
		t.Error("a deadline during mining should fall back to the static table")
	}
	if len(knowledge.MethodsWithIDs) == 0 {
		t.Error("fallback knowledge should still carry the static methods")
	}
	if elapsed > 5*time.Second {
		t.Errorf("mining should return promptly after the deadline, took %v", elapsed)
	}
}
