package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// MineTimeout is the hard budget for the whole mining step. On timeout the
// pipeline continues with the static fallback table instead of blocking.
const MineTimeout = 20 * time.Second

// KnownMethod is a reusable action: its name and the stable identifiers its
// body touches. Read-only once mined; lifetime is one synthesis run.
type KnownMethod struct {
	Name    string
	TestIDs []string
}

// MinedKnowledge is the lookup produced by mining the reusable-action
// library. It lets the synthesizer prefer reuse over generation.
type MinedKnowledge struct {
	MethodsByNamespace map[string][]string
	MethodsWithIDs     map[string][]KnownMethod
	SelectorSamples    []string
	Fallback           bool // true when the static table was used
}

// PageObjectSource abstracts where page-object sources come from: a local
// directory or the hosting repository.
type PageObjectSource interface {
	ListFiles(ctx context.Context) ([]string, error)
	ReadFile(ctx context.Context, name string) (string, error)
}

// pageObjectNameHints filter which files are worth mining, keyed by the
// namespace the file feeds.
var pageObjectNameHints = []struct {
	Hint      string
	Namespace string
}{
	{"home", "home page"},
	{"order", "orders hub page"},
	{"cart", "cart page"},
}

var (
	methodDeclRe = regexp.MustCompile(`(?m)^\s*(?:async\s+)?([a-zA-Z_][A-Za-z0-9_]*)\s*\([^)]*\)\s*(?::\s*[^{\n]+)?\{`)
	testIDCallRe = regexp.MustCompile(`getByTestId\(\s*['"]([^'"]+)['"]`)
	testIDAttrRe = regexp.MustCompile(`\[data-testid=["']([^"']+)["']\]`)
)

// Mine inspects the reusable-action library and extracts, per namespace, the
// method names and the stable identifiers each method touches. Per-file
// fetches run concurrently and are joined before use. Bounded by MineTimeout;
// any failure degrades to the static fallback table so the pipeline never
// blocks on this step.
func Mine(ctx context.Context, src PageObjectSource, logger *RunLogger) *MinedKnowledge {
	ctx, cancel := context.WithTimeout(ctx, MineTimeout)
	defer cancel()

	if src == nil {
		return fallbackKnowledge()
	}

	files, err := src.ListFiles(ctx)
	if err != nil {
		if logger != nil {
			logger.Warning("page-object listing failed, using static knowledge: " + err.Error())
		}
		return fallbackKnowledge()
	}

	type minedFile struct {
		namespace string
		methods   []KnownMethod
		samples   []string
	}

	var mu sync.Mutex
	var mined []minedFile

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range files {
		namespace, ok := namespaceForFile(name)
		if !ok {
			continue
		}
		g.Go(func() error {
			content, err := src.ReadFile(gctx, name)
			if err != nil {
				return fmt.Errorf("read %s: %w", name, err)
			}
			methods, samples := extractMethods(content)
			mu.Lock()
			mined = append(mined, minedFile{namespace: namespace, methods: methods, samples: samples})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if logger != nil {
			logger.Warning("page-object mining failed, using static knowledge: " + err.Error())
		}
		return fallbackKnowledge()
	}

	knowledge := &MinedKnowledge{
		MethodsByNamespace: make(map[string][]string),
		MethodsWithIDs:     make(map[string][]KnownMethod),
	}
	for _, mf := range mined {
		for _, m := range mf.methods {
			knowledge.MethodsByNamespace[mf.namespace] = append(knowledge.MethodsByNamespace[mf.namespace], m.Name)
			knowledge.MethodsWithIDs[mf.namespace] = append(knowledge.MethodsWithIDs[mf.namespace], m)
		}
		knowledge.SelectorSamples = append(knowledge.SelectorSamples, mf.samples...)
	}
	for ns := range knowledge.MethodsByNamespace {
		sort.Strings(knowledge.MethodsByNamespace[ns])
		sort.Slice(knowledge.MethodsWithIDs[ns], func(i, j int) bool {
			return knowledge.MethodsWithIDs[ns][i].Name < knowledge.MethodsWithIDs[ns][j].Name
		})
	}
	sort.Strings(knowledge.SelectorSamples)

	if len(knowledge.MethodsByNamespace) == 0 {
		return fallbackKnowledge()
	}
	return knowledge
}

// namespaceForFile applies the filename heuristics. Only TypeScript/JavaScript
// sources matching a hint are mined.
func namespaceForFile(name string) (string, bool) {
	base := strings.ToLower(filepath.Base(name))
	if !strings.HasSuffix(base, ".ts") && !strings.HasSuffix(base, ".js") {
		return "", false
	}
	if strings.HasSuffix(base, ".spec.ts") || strings.HasSuffix(base, ".test.ts") {
		return "", false
	}
	for _, h := range pageObjectNameHints {
		if strings.Contains(base, h.Hint) {
			return h.Namespace, true
		}
	}
	return "", false
}

// extractMethods scans a page-object source for method declarations and, per
// method body, the stable identifiers referenced through either textual
// pattern: an identifier-lookup call or a CSS attribute selector.
func extractMethods(source string) ([]KnownMethod, []string) {
	decls := methodDeclRe.FindAllStringSubmatchIndex(source, -1)
	var methods []KnownMethod
	var samples []string

	for i, d := range decls {
		name := source[d[2]:d[3]]
		if name == "constructor" || name == "if" || name == "for" || name == "while" || name == "switch" {
			continue
		}

		bodyStart := d[1]
		bodyEnd := len(source)
		if i+1 < len(decls) {
			bodyEnd = decls[i+1][0]
		}
		body := source[bodyStart:bodyEnd]

		seen := make(map[string]bool)
		var ids []string
		for _, m := range testIDCallRe.FindAllStringSubmatch(body, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				ids = append(ids, m[1])
			}
		}
		for _, m := range testIDAttrRe.FindAllStringSubmatch(body, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				ids = append(ids, m[1])
			}
			samples = append(samples, `[data-testid="`+m[1]+`"]`)
		}

		methods = append(methods, KnownMethod{Name: name, TestIDs: ids})
	}

	return methods, samples
}

// staticKnownMethods is the built-in fallback table, kept as versioned data so
// tests can enumerate it directly.
var staticKnownMethods = map[string][]KnownMethod{
	"home page": {
		{Name: "goToOrdersHub", TestIDs: []string{"ordersHubLink"}},
		{Name: "searchFor", TestIDs: []string{"searchInput"}},
		{Name: "openCart", TestIDs: []string{"cartIcon"}},
	},
	"orders hub page": {
		{Name: "selectPastOrdersTab", TestIDs: []string{"pastOrdersTab"}},
		{Name: "selectPastOrder", TestIDs: []string{"pastOrderItem"}},
		{Name: "clickInvoiceIcon", TestIDs: []string{"invoiceIcon"}},
		{Name: "loadMoreOrders", TestIDs: []string{"loadMoreButton"}},
	},
	"cart page": {
		{Name: "proceedToCheckout", TestIDs: []string{"checkoutButton"}},
		{Name: "getCartBadgeText", TestIDs: []string{"cartBadge"}},
	},
}

// fallbackKnowledge returns a copy of the static table.
func fallbackKnowledge() *MinedKnowledge {
	knowledge := &MinedKnowledge{
		MethodsByNamespace: make(map[string][]string),
		MethodsWithIDs:     make(map[string][]KnownMethod),
		Fallback:           true,
	}
	for ns, methods := range staticKnownMethods {
		for _, m := range methods {
			knowledge.MethodsByNamespace[ns] = append(knowledge.MethodsByNamespace[ns], m.Name)
			knowledge.MethodsWithIDs[ns] = append(knowledge.MethodsWithIDs[ns], m)
		}
		sort.Strings(knowledge.MethodsByNamespace[ns])
	}
	return knowledge
}

// LocalPageObjects mines a directory on disk.
type LocalPageObjects struct {
	Dir string
}

// ListFiles returns the file names directly under the directory.
func (l *LocalPageObjects) ListFiles(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return nil, fmt.Errorf("read page-object dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// ReadFile reads one page-object source.
func (l *LocalPageObjects) ReadFile(_ context.Context, name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(l.Dir, name))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RemotePageObjects mines the reusable-action library through the hosting
// collaborator's read operations.
type RemotePageObjects struct {
	Hosting HostingClient
	Dir     string // path of the page-object directory in the repository
}

// ListFiles lists the page-object directory in the hosting repository.
func (r *RemotePageObjects) ListFiles(ctx context.Context) ([]string, error) {
	return r.Hosting.ListDir(ctx, r.Dir)
}

// ReadFile fetches one page-object source from the hosting repository.
func (r *RemotePageObjects) ReadFile(ctx context.Context, name string) (string, error) {
	content, _, err := r.Hosting.ReadFile(ctx, joinRepoPath(r.Dir, name))
	return content, err
}

// joinRepoPath joins repository paths with forward slashes regardless of OS.
func joinRepoPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return strings.TrimSuffix(dir, "/") + "/" + name
}
