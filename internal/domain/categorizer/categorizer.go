// Package categorizer derives an expense category from an order's item
// categories.
//
// Vendor product groups ("Electronics", "gl_books", ...) rarely line up
// with budget categories, so inference runs an ordered rule list: exact
// key match first, then substring match in either direction, then the
// default. Rule precedence is explicit in the list order rather than
// hidden in map iteration.
package categorizer

import (
	"strings"

	"github.com/spendtrack/reconcile-backend/internal/infrastructure/storage"
)

// DefaultCategory is assigned when no rule recognizes the vendor category.
const DefaultCategory = "Shopping"

// InferenceConfidence is the fixed confidence written alongside an
// inferred category. It is a categorization confidence, deliberately
// independent of the record-linkage confidence of the match that
// triggered the inference.
const InferenceConfidence = 90

// MinMatchConfidence gates inference: only matches at or above this
// link confidence get a category propagated onto their transaction.
const MinMatchConfidence = 80

// Rule maps a vendor category key to an expense category
type Rule struct {
	Key    string
	Target string
}

// DefaultRules returns the vendor-to-expense category ruleset in
// precedence order.
func DefaultRules() []Rule {
	return []Rule{
		{"Electronics", "Shopping > Electronics"},
		{"Books", "Shopping > Books"},
		{"Kindle", "Shopping > Books"},
		{"Grocery", "Food & Dining > Groceries"},
		{"Pantry", "Food & Dining > Groceries"},
		{"Apparel", "Shopping > Clothing"},
		{"Clothing", "Shopping > Clothing"},
		{"Shoes", "Shopping > Clothing"},
		{"Home", "Shopping > Home"},
		{"Kitchen", "Shopping > Home"},
		{"Furniture", "Shopping > Home"},
		{"Lawn & Garden", "Shopping > Home"},
		{"Office Product", "Shopping > Office"},
		{"Beauty", "Personal Care"},
		{"Personal Care", "Personal Care"},
		{"Health", "Health & Wellness"},
		{"Drugstore", "Health & Wellness"},
		{"Pet Products", "Pets"},
		{"Pet Supplies", "Pets"},
		{"Toy", "Shopping > Toys"},
		{"Video Games", "Entertainment"},
		{"Digital Music", "Entertainment"},
		{"Sports", "Shopping > Sports & Outdoors"},
		{"Outdoors", "Shopping > Sports & Outdoors"},
		{"Automotive", "Auto & Transport"},
	}
}

// Categorizer infers expense categories from order items
type Categorizer struct {
	rules []Rule
}

// New creates a categorizer with the default ruleset
func New() *Categorizer {
	return NewWithRules(DefaultRules())
}

// NewWithRules creates a categorizer with a custom ruleset
func NewWithRules(rules []Rule) *Categorizer {
	return &Categorizer{rules: rules}
}

// InferCategory derives an expense category for the order, or "" when
// the order has no categorized items at all.
func (c *Categorizer) InferCategory(order *storage.Order) string {
	vendor := dominantItemCategory(order.Items)
	if vendor == "" {
		return ""
	}
	return c.mapCategory(vendor)
}

// mapCategory resolves a vendor category through the ruleset:
// exact match, then case-sensitive substring match in either direction,
// then the default.
func (c *Categorizer) mapCategory(vendor string) string {
	for _, rule := range c.rules {
		if rule.Key == vendor {
			return rule.Target
		}
	}
	for _, rule := range c.rules {
		if strings.Contains(vendor, rule.Key) || strings.Contains(rule.Key, vendor) {
			return rule.Target
		}
	}
	return DefaultCategory
}

// dominantItemCategory picks the most frequent non-empty item category,
// breaking ties by first occurrence.
func dominantItemCategory(items []storage.Item) string {
	counts := make(map[string]int)
	var seen []string

	for _, item := range items {
		if item.Category == "" {
			continue
		}
		if counts[item.Category] == 0 {
			seen = append(seen, item.Category)
		}
		counts[item.Category]++
	}

	best := ""
	for _, category := range seen {
		if best == "" || counts[category] > counts[best] {
			best = category
		}
	}
	return best
}

// ParentOf returns the parent segment of a hierarchical category name
// ("Shopping > Books" -> "Shopping"), or "" for a top-level category.
func ParentOf(category string) string {
	if idx := strings.LastIndex(category, " > "); idx > 0 {
		return category[:idx]
	}
	return ""
}
