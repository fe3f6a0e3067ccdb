// Package normalizer parses raw order-history exports into canonical
// order records.
//
// Vendor exports are messy: column names drift between export versions,
// amounts carry currency symbols, dates come in several formats, and
// cancelled rows appear alongside real purchases. The normalizer maps
// whatever it is given onto the canonical Order/Item schema and skips
// rows it cannot salvage, recording a reason for each skip so the
// import summary can surface them.
package normalizer

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spendtrack/reconcile-backend/internal/infrastructure/storage"
)

// fieldAliases maps canonical fields to the vendor column names that may
// carry them. First match wins.
var fieldAliases = map[string][]string{
	"order_id":   {"Order ID", "Order Number"},
	"order_date": {"Order Date", "Purchase Date"},
	"total":      {"Total Owed", "Total", "Order Total"},
	"title":      {"Product Name", "Title", "Item"},
	"price":      {"Unit Price", "Item Total", "Price"},
	"quantity":   {"Quantity"},
	"category":   {"Category", "Product Group"},
	"asin":       {"ASIN"},
	"seller":     {"Seller"},
	"status":     {"Order Status", "Shipment Status"},
	"payment":    {"Payment Instrument Type"},
}

// dateLayouts are tried in order when parsing order dates
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	time.RFC3339,
	"January 2, 2006",
	"2006-01-02T15:04:05Z",
}

// SkippedRow records why one CSV row was discarded
type SkippedRow struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Result is the outcome of parsing one export
type Result struct {
	Orders  []*storage.Order
	Skipped []SkippedRow
}

// Normalizer parses raw CSV text into orders
type Normalizer struct {
	logger *slog.Logger
}

// New creates a normalizer. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// Parse converts raw order-export CSV text into canonical orders.
// Rows sharing an order ID accumulate into one order; output preserves
// first-occurrence order. Row-level problems skip the row and continue;
// only structurally unusable input (empty, or a header with no order ID
// column) returns an error.
func (n *Normalizer) Parse(csvText string) (*Result, error) {
	lines := splitLines(csvText)
	if len(lines) < 2 {
		return nil, fmt.Errorf("export has no data rows")
	}

	header := splitFields(lines[0])
	columns, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	byID := make(map[string]*storage.Order)

	for i, line := range lines[1:] {
		lineNo := i + 2 // 1-based, after the header
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := splitFields(line)
		row := func(field string) string {
			idx, ok := columns[field]
			if !ok || idx >= len(fields) {
				return ""
			}
			return strings.TrimSpace(fields[idx])
		}

		orderID := row("order_id")
		rawDate := row("order_date")
		if orderID == "" || rawDate == "" {
			n.skip(result, lineNo, "missing order id or order date")
			continue
		}

		orderDate, err := parseDate(rawDate)
		if err != nil {
			n.skip(result, lineNo, fmt.Sprintf("unparsable order date %q", rawDate))
			continue
		}

		quantity := parseQuantity(row("quantity"))
		status := row("status")
		if isCancelled(status) && quantity == 0 {
			n.skip(result, lineNo, "cancelled order with zero quantity")
			continue
		}

		order, seen := byID[orderID]
		if !seen {
			order = &storage.Order{
				OrderID:       orderID,
				OrderDate:     orderDate,
				TotalAmount:   parseAmount(row("total")),
				PaymentMethod: row("payment"),
				Status:        status,
			}
			byID[orderID] = order
			result.Orders = append(result.Orders, order)
		}

		title := row("title")
		if title == "" {
			// The order survives; only the item is unusable
			n.skip(result, lineNo, "item title is blank")
			continue
		}

		if quantity < 1 {
			quantity = 1
		}
		order.Items = append(order.Items, storage.Item{
			Title:    title,
			Price:    parseAmount(row("price")),
			Quantity: quantity,
			Category: row("category"),
			ASIN:     row("asin"),
			Seller:   row("seller"),
		})
	}

	return result, nil
}

func (n *Normalizer) skip(result *Result, line int, reason string) {
	n.logger.Warn("skipping row", "line", line, "reason", reason)
	result.Skipped = append(result.Skipped, SkippedRow{Line: line, Reason: reason})
}

// mapColumns resolves header names to canonical field indexes. Aliases
// are tried in priority order, so "Total Owed" beats "Total" when both
// columns are present. Unrecognized headers are ignored. At minimum the
// order ID column must be present for the export to be usable.
func mapColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int)
	for field, aliases := range fieldAliases {
		for _, alias := range aliases {
			idx := -1
			for i, name := range header {
				if strings.EqualFold(strings.TrimSpace(name), alias) {
					idx = i
					break
				}
			}
			if idx >= 0 {
				columns[field] = idx
				break
			}
		}
	}

	if _, ok := columns["order_id"]; !ok {
		return nil, fmt.Errorf("export header has no recognizable order ID column")
	}

	return columns, nil
}

// splitLines splits on newlines, tolerating CRLF
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	out := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

// splitFields splits one CSV line on commas, honoring double quotes.
// A quote toggles "inside field" mode so commas inside quoted values are
// not treated as delimiters. Doubled quotes inside a quoted field
// collapse to a literal quote.
func splitFields(line string) []string {
	var fields []string
	var field strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				field.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case ch == ',' && !inQuotes:
			fields = append(fields, field.String())
			field.Reset()
		default:
			field.WriteByte(ch)
		}
	}
	fields = append(fields, field.String())

	return fields
}

// parseAmount strips everything but digits, dot and minus before
// parsing. Unparsable amounts default to 0.
func parseAmount(s string) float64 {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)

	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return amount
}

// parseQuantity parses an integer quantity; blank or invalid means 0
// so the cancelled-row check can distinguish "no units" from "1 unit".
func parseQuantity(s string) int {
	if s == "" {
		return 0
	}
	q, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return q
}

// parseDate tries the known vendor date layouts in order
func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			// Normalize away any time component
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date %q", s)
}

// isCancelled reports whether an order status indicates cancellation
func isCancelled(status string) bool {
	return strings.Contains(strings.ToLower(status), "cancel")
}
