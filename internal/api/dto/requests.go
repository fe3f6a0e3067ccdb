package dto

import (
	"fmt"
	"time"
)

// ImportRequest carries an order-history export as raw CSV text.
// The import endpoint also accepts the CSV directly as the request body
// with a text/csv content type.
type ImportRequest struct {
	CSV string `json:"csv" binding:"required"`
}

// MatchRequest triggers a matching pass.
type MatchRequest struct {
	DryRun bool `json:"dry_run"`
}

// RelinkRequest links an order to a transaction by explicit user choice.
type RelinkRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
	Confidence    int    `json:"confidence"`
}

// TransactionInput is one bank transaction being seeded into the pool.
// Dates are accepted as YYYY-MM-DD or RFC 3339.
type TransactionInput struct {
	TransactionID string  `json:"transaction_id" binding:"required"`
	Date          string  `json:"date" binding:"required"`
	Amount        float64 `json:"amount"`
	Description   string  `json:"description"`
	MerchantName  string  `json:"merchant_name"`
	Category      string  `json:"category"`
}

// ParseDate resolves the input's date string.
func (t *TransactionInput) ParseDate() (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if parsed, err := time.Parse(layout, t.Date); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable date %q", t.Date)
}
