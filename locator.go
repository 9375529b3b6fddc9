package main

import (
	"strings"
)

// Name-length limits for the text-based strategies. Long names are almost
// always dynamic content and make fragile locators.
const (
	maxAccessibleNameLen = 100
	maxPlaceholderLen    = 100
	maxVisibleTextLen    = 50
)

// ElementInfo is the raw attribute view of one page element, as collected by
// the observation driver. The locator resolver consumes it without touching
// the live page.
type ElementInfo struct {
	Tag         string `json:"tag"`
	Type        string `json:"type"`
	TestID      string `json:"testId"`
	Role        string `json:"role"`
	AriaLabel   string `json:"ariaLabel"`
	Alt         string `json:"alt"`
	Title       string `json:"title"`
	Placeholder string `json:"placeholder"`
	Text        string `json:"text"`
	ID          string `json:"id"`
	LabelText   string `json:"labelText"`
	Class       string `json:"class"`
	Selected    string `json:"ariaSelected"`
	Current     string `json:"ariaCurrent"`
	Visible     bool   `json:"visible"`
}

// implicitRoles maps tag names to their implicit ARIA role when no explicit
// role attribute is present.
var implicitRoles = map[string]string{
	"a":        "link",
	"button":   "button",
	"input":    "textbox",
	"textarea": "textbox",
	"select":   "combobox",
	"img":      "img",
	"nav":      "navigation",
	"h1":       "heading",
	"h2":       "heading",
	"h3":       "heading",
	"h4":       "heading",
	"h5":       "heading",
	"h6":       "heading",
	"table":    "table",
	"li":       "listitem",
	"ul":       "list",
}

// buttonInputTypes are input types whose implicit role is button, not textbox.
var buttonInputTypes = map[string]bool{
	"button": true,
	"submit": true,
	"reset":  true,
}

// formTags are tags eligible for the label strategy.
var formTags = map[string]bool{
	"input":    true,
	"textarea": true,
	"select":   true,
}

// ResolveLocator produces a stable, human-readable locator expression for an
// element through a fixed priority chain, first match wins:
//
//  1. stable test identifier
//  2. role + short accessible name
//  3. associated label text, for form fields with an id
//  4. short placeholder text
//  5. short visible text (last-resort semantic match)
//  6. raw structural fallback (testid attribute selector or DOM id)
//
// It never fails: when no strategy yields a value it returns the document
// root so callers can treat "not resolved" as "not interactable".
func ResolveLocator(el ElementInfo) string {
	if el.TestID != "" {
		return "page.getByTestId(" + quoteTS(el.TestID) + ")"
	}

	if role := elementRole(el); role != "" {
		if name := accessibleName(el); name != "" && len(name) < maxAccessibleNameLen {
			return "page.getByRole(" + quoteTS(role) + ", { name: " + quoteTS(name) + " })"
		}
	}

	if el.LabelText != "" && el.ID != "" && formTags[strings.ToLower(el.Tag)] {
		return "page.getByLabel(" + quoteTS(strings.TrimSpace(el.LabelText)) + ")"
	}

	if p := strings.TrimSpace(el.Placeholder); p != "" && len(p) < maxPlaceholderLen {
		return "page.getByPlaceholder(" + quoteTS(p) + ")"
	}

	if t := strings.TrimSpace(el.Text); t != "" && len(t) < maxVisibleTextLen {
		return "page.getByText(" + quoteTS(t) + ")"
	}

	if el.ID != "" {
		return "page.locator(" + quoteTS("#"+el.ID) + ")"
	}

	return "page.locator('body')"
}

// elementRole returns the explicit role attribute, or the tag's implicit role.
func elementRole(el ElementInfo) string {
	if el.Role != "" {
		return el.Role
	}
	tag := strings.ToLower(el.Tag)
	if tag == "input" && buttonInputTypes[strings.ToLower(el.Type)] {
		return "button"
	}
	return implicitRoles[tag]
}

// accessibleName computes the accessible name from aria-label, alt, trimmed
// text content, title, or placeholder, in that order.
func accessibleName(el ElementInfo) string {
	for _, candidate := range []string{el.AriaLabel, el.Alt, strings.TrimSpace(el.Text), el.Title, el.Placeholder} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// quoteTS renders s as a single-quoted TypeScript string literal.
func quoteTS(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", `\'`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return "'" + s + "'"
}
