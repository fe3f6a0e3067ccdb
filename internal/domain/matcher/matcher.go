// Package matcher scores bank transactions against imported orders and
// selects the best candidate per order.
//
// Each candidate transaction is scored from four independent weighted
// factors (amount, merchant text, date proximity, unlinked bonus) after
// a hard date-window gate. Points are additive with a maximum of 100;
// the best candidate is accepted only when its score clears the
// configured threshold.
//
// Example usage:
//
//	m := matcher.New(matcher.DefaultConfig())
//	result := m.Match(orders, transactions)
//	for _, match := range result.Matches {
//		// match.Confidence, match.Reason
//	}
//
// Matching is pure: it never touches storage, so a caller can score a
// batch and discard the result without side effects.
package matcher

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spendtrack/reconcile-backend/internal/infrastructure/storage"
)

// Factor weights. Amount is the strongest discriminator because
// independent high-precision evidence is rare; merchant text can be
// absent for processor-routed charges; settlement lag makes proximity
// tertiary; the unlinked bonus nudges ties toward unclaimed
// transactions without excluding claimed ones.
const (
	pointsAmountExact     = 40
	pointsAmountTolerance = 35
	pointsAmountPartial   = 25
	pointsMerchantStrong  = 30
	pointsMerchantWeak    = 5
	pointsSameDay         = 20
	pointsNextDay         = 15
	pointsTwoDays         = 10
	pointsThreePlusDays   = 5
	pointsUnlinked        = 10
)

// Config holds matcher configuration
type Config struct {
	// WindowDays is the settlement window: a transaction must fall in
	// [order date, order date + WindowDays] to be a candidate at all.
	WindowDays int

	// AcceptThreshold is the minimum confidence (0-100) for the best
	// candidate to be accepted.
	AcceptThreshold int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		WindowDays:      7,
		AcceptThreshold: 60,
	}
}

// Match is the outcome of one accepted matching attempt. Matches are
// ephemeral: computed, applied by the linker, then discarded.
type Match struct {
	OrderID       string `json:"order_id"`
	TransactionID string `json:"transaction_id"`
	Confidence    int    `json:"confidence"`
	Reason        string `json:"reason"`
}

// Result holds the outcome of one matching pass
type Result struct {
	Matches   []Match          `json:"matches"`
	Unmatched []*storage.Order `json:"unmatched"`
}

// Matcher scores transactions against orders
type Matcher struct {
	config Config
}

// New creates a matcher with the given config
func New(config Config) *Matcher {
	if config.WindowDays <= 0 {
		config.WindowDays = 7
	}
	if config.AcceptThreshold <= 0 {
		config.AcceptThreshold = 60
	}
	return &Matcher{config: config}
}

// Match scans all transactions for every order and keeps the
// highest-scoring candidate per order when it clears the threshold.
//
// A transaction already claimed by another order is still a candidate
// here; it merely loses the unlinked bonus. Only the persisted link
// prevents it from being offered again on a later run. Within one batch
// two orders can therefore select the same transaction.
func (m *Matcher) Match(orders []*storage.Order, transactions []*storage.Transaction) *Result {
	result := &Result{}

	for _, order := range orders {
		var best *Match

		for _, tx := range transactions {
			score, reasons, ok := m.scoreCandidate(order, tx)
			if !ok {
				continue
			}
			if best == nil || score > best.Confidence {
				best = &Match{
					OrderID:       order.OrderID,
					TransactionID: tx.TransactionID,
					Confidence:    score,
					Reason:        strings.Join(reasons, "; "),
				}
			}
		}

		if best != nil && best.Confidence >= m.config.AcceptThreshold {
			result.Matches = append(result.Matches, *best)
		} else {
			result.Unmatched = append(result.Unmatched, order)
		}
	}

	return result
}

// scoreCandidate computes the confidence score for one order/transaction
// pair. ok is false when the candidate is rejected outright (outside the
// date window, or amount beyond every tier).
func (m *Matcher) scoreCandidate(order *storage.Order, tx *storage.Transaction) (int, []string, bool) {
	days := daysBetween(order.OrderDate, tx.Date)
	if days < 0 || days > m.config.WindowDays {
		return 0, nil, false
	}

	score := 0
	var reasons []string

	// Amount
	amount := math.Abs(tx.Amount)
	diff := math.Abs(amount - order.TotalAmount)
	tolerance := math.Max(0.50, order.TotalAmount*0.01)
	switch {
	case diff < 0.005:
		score += pointsAmountExact
		reasons = append(reasons, "Exact amount match")
	case diff <= tolerance:
		score += pointsAmountTolerance
		reasons = append(reasons, "Amount within tolerance")
	case diff <= order.TotalAmount*0.05:
		score += pointsAmountPartial
		reasons = append(reasons, "Amount within 5% (possible gift card/points)")
	default:
		return 0, nil, false
	}

	// Merchant signal
	haystack := strings.ToLower(tx.Description + " " + tx.MerchantName)
	if strings.Contains(haystack, "amazon") || strings.Contains(haystack, "amzn") {
		score += pointsMerchantStrong
		reasons = append(reasons, "Merchant name contains Amazon/AMZN")
	} else {
		score += pointsMerchantWeak
	}

	// Date proximity
	switch days {
	case 0:
		score += pointsSameDay
		reasons = append(reasons, "Same day")
	case 1:
		score += pointsNextDay
		reasons = append(reasons, "Next day")
	case 2:
		score += pointsTwoDays
		reasons = append(reasons, "2 days after order")
	default:
		score += pointsThreePlusDays
		reasons = append(reasons, fmt.Sprintf("%d days after order", days))
	}

	// Unlinked bonus
	if !tx.Linked() {
		score += pointsUnlinked
		reasons = append(reasons, "Transaction not already matched")
	}

	return score, reasons, true
}

// daysBetween returns the whole-day difference from a to b, ignoring any
// time-of-day component
func daysBetween(a, b time.Time) int {
	a = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
