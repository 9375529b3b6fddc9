package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// InterpretTimeout bounds one language-model interpretation call.
const InterpretTimeout = 45 * time.Second

// Interpreter turns acceptance-criteria text into a structured Intent.
type Interpreter interface {
	Interpret(ctx context.Context, criteria string) (*Intent, error)
}

// InterpretCriteria is the single decision point between the primary and
// fallback interpreters. It never fails: when the primary path is absent or
// errors, the deterministic keyword interpreter takes over.
func InterpretCriteria(ctx context.Context, primary Interpreter, criteria string, logger *RunLogger) *Intent {
	if primary != nil {
		intent, err := primary.Interpret(ctx, criteria)
		if err == nil {
			return intent
		}
		if logger != nil {
			logger.Warning("primary interpreter failed, using keyword fallback: " + err.Error())
		}
	}
	intent, _ := (&KeywordInterpreter{}).Interpret(ctx, criteria)
	return intent
}

// LLMInterpreter delegates interpretation to a chat-completion model with a
// fixed instruction contract. The response must be a single JSON object
// matching the Intent shape; a JSON substring is salvaged from malformed
// output before giving up.
type LLMInterpreter struct {
	client openai.Client
	model  string
}

// NewLLMInterpreter builds the primary interpreter. Returns nil when no API
// key is configured, which selects the fallback path.
func NewLLMInterpreter(cfg *LLMConfig) *LLMInterpreter {
	if cfg == nil || cfg.APIKey == "" {
		return nil
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &LLMInterpreter{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Interpret sends the criteria to the model and parses the Intent JSON.
func (li *LLMInterpreter) Interpret(ctx context.Context, criteria string) (*Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, InterpretTimeout)
	defer cancel()

	system := getPrompt("interpret", map[string]string{
		"contexts": joinContexts(),
	})

	resp, err := li.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: li.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(criteria),
		},
		MaxTokens:   openai.Int(2000),
		Temperature: openai.Float(0),
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	content := resp.Choices[0].Message.Content
	intent, err := parseIntentJSON(content)
	if err != nil {
		return nil, err
	}
	normalizeIntent(intent, criteria)
	return intent, nil
}

// parseIntentJSON parses the model output, salvaging a JSON object substring
// when the output carries prose or fencing around it.
func parseIntentJSON(content string) (*Intent, error) {
	var intent Intent
	if err := json.Unmarshal([]byte(content), &intent); err == nil {
		return &intent, nil
	}

	sub, ok := extractJSONObject(content)
	if !ok {
		return nil, fmt.Errorf("model output contains no JSON object")
	}
	if err := json.Unmarshal([]byte(sub), &intent); err != nil {
		return nil, fmt.Errorf("invalid intent JSON: %w", err)
	}
	return &intent, nil
}

// extractJSONObject returns the first balanced top-level JSON object in text.
func extractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// normalizeIntent repairs model output so downstream stages can rely on the
// Intent shape: unknown contexts fall back to keyword detection, action types
// are canonicalized, and zero orders are assigned by list position.
func normalizeIntent(intent *Intent, criteria string) {
	if !knownContext(intent.Context) {
		intent.Context = DetectContext(criteria)
	}
	for i := range intent.Actions {
		a := &intent.Actions[i]
		switch a.Type {
		case ActionClick, ActionTap, ActionFill, ActionNavigate, ActionScroll:
		default:
			a.Type = ActionClick
		}
		if a.Order == 0 {
			a.Order = i + 1
		}
	}
	for i := range intent.Assertions {
		switch intent.Assertions[i].Type {
		case AssertVisibility, AssertText, AssertState, AssertValue:
		default:
			intent.Assertions[i].Type = AssertVisibility
		}
	}
}

func knownContext(ctx Context) bool {
	for _, c := range AllContexts {
		if c == ctx {
			return true
		}
	}
	return false
}

func joinContexts() string {
	parts := make([]string, len(AllContexts))
	for i, c := range AllContexts {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

// KeywordInterpreter is the deterministic fallback. It never fails; it may
// simply produce fewer or weaker actions than the model.
type KeywordInterpreter struct{}

// actionRule derives one action from a substring match on the criteria.
type actionRule struct {
	Phrases     []string
	Type        ActionType
	Element     string
	Description string
	Intent      string
}

// actionRules is the fixed phrase→action table, checked in order. The first
// phrase hit per rule adds the action once.
var actionRules = []actionRule{
	{
		Phrases:     []string{"invoice"},
		Type:        ActionClick,
		Element:     "invoiceIcon",
		Description: "click the invoice icon",
		Intent:      "open invoice",
	},
	{
		Phrases:     []string{"load more"},
		Type:        ActionClick,
		Element:     "loadMoreButton",
		Description: "click the load more button",
		Intent:      "load more",
	},
	{
		Phrases:     []string{"add to cart", "adds an item", "add item"},
		Type:        ActionClick,
		Element:     "addToCartButton",
		Description: "add the item to the cart",
		Intent:      "add to cart",
	},
	{
		Phrases:     []string{"checkout", "place order", "places an order"},
		Type:        ActionClick,
		Element:     "checkoutButton",
		Description: "proceed to checkout",
		Intent:      "go to checkout",
	},
	{
		Phrases:     []string{"reorder"},
		Type:        ActionClick,
		Element:     "reorderButton",
		Description: "click the reorder button",
		Intent:      "reorder",
	},
	{
		Phrases:     []string{"opens the cart", "open the cart", "taps the cart", "clicks the cart"},
		Type:        ActionClick,
		Element:     "cartIcon",
		Description: "open the cart",
		Intent:      "go to cart",
	},
	{
		Phrases:     []string{"searches for", "types in the search", "enters a search"},
		Type:        ActionFill,
		Element:     "searchInput",
		Description: "type into the search field",
		Intent:      "search",
	},
}

// assertionRule derives one assertion from a substring match on the expected
// clause of the criteria.
type assertionRule struct {
	Phrases     []string
	Type        AssertionType
	Element     string
	Description string
	Expected    string
}

var assertionRules = []assertionRule{
	{
		Phrases:     []string{"invoice modal", "invoice is displayed", "invoice opens"},
		Type:        AssertVisibility,
		Element:     "invoiceModal",
		Description: "the invoice modal is visible",
	},
	{
		Phrases:     []string{"more orders"},
		Type:        AssertState,
		Element:     "orderList",
		Description: "more orders are displayed than before",
		Expected:    "increased",
	},
	{
		Phrases:     []string{"cart is displayed", "cart opens", "cart page"},
		Type:        AssertVisibility,
		Element:     "cartDrawer",
		Description: "the cart is visible",
	},
	{
		Phrases:     []string{"item is added", "added to the cart", "cart badge"},
		Type:        AssertText,
		Element:     "cartBadge",
		Description: "the cart badge reflects the added item",
		Expected:    "1",
	},
	{
		Phrases:     []string{"results are displayed", "results are shown", "search results"},
		Type:        AssertVisibility,
		Element:     "searchResults",
		Description: "search results are visible",
	},
}

// Interpret derives an Intent from fixed keyword tables. Error is always nil;
// the signature matches the Interpreter interface.
func (ki *KeywordInterpreter) Interpret(_ context.Context, criteria string) (*Intent, error) {
	lower := strings.ToLower(criteria)
	intent := &Intent{Context: DetectContext(criteria)}

	order := 1
	for _, rule := range actionRules {
		for _, phrase := range rule.Phrases {
			if strings.Contains(lower, phrase) {
				intent.Actions = append(intent.Actions, OrderedAction{
					Type:        rule.Type,
					Element:     rule.Element,
					Description: rule.Description,
					Intent:      rule.Intent,
					Order:       order,
				})
				order++
				break
			}
		}
	}

	// Assertion rules match against the expected clause when one exists,
	// otherwise against the full text.
	expectText := lower
	if idx := strings.Index(lower, "expected:"); idx != -1 {
		expectText = lower[idx+len("expected:"):]
	}
	for _, rule := range assertionRules {
		for _, phrase := range rule.Phrases {
			if strings.Contains(expectText, phrase) {
				intent.Assertions = append(intent.Assertions, Assertion{
					Type:        rule.Type,
					Element:     rule.Element,
					Description: rule.Description,
					Expected:    rule.Expected,
				})
				break
			}
		}
	}

	return intent, nil
}
