package storage

import "time"

// Order is a vendor purchase record imported from an order-history export.
// One order may carry multiple line items. Orders attach to transactions
// through Transaction.AmazonOrderID, never the other way around.
type Order struct {
	OrderID       string    `json:"order_id"`
	OrderDate     time.Time `json:"order_date"`
	TotalAmount   float64   `json:"total_amount"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	Status        string    `json:"status,omitempty"`
	Items         []Item    `json:"items"`
	ImportedAt    time.Time `json:"imported_at,omitempty"`
}

// Item is a single line item owned by its order. Items are replaced
// wholesale when an order is re-imported.
type Item struct {
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Category string  `json:"category,omitempty"`
	ASIN     string  `json:"asin,omitempty"`
	Seller   string  `json:"seller,omitempty"`
}

// Transaction is a bank-ledger record. It pre-exists independently of
// orders; the reconciliation core mutates Category, Confidence, Verified
// and AmazonOrderID in place.
//
// Confidence is the record-linkage confidence written by the linker.
// CategoryConfidence is the categorization confidence written alongside
// an inferred category. The two scales are deliberately separate.
type Transaction struct {
	TransactionID      string    `json:"transaction_id"`
	Date               time.Time `json:"date"`
	Amount             float64   `json:"amount"`
	Description        string    `json:"description"`
	MerchantName       string    `json:"merchant_name,omitempty"`
	Category           string    `json:"category,omitempty"`
	CategoryConfidence int       `json:"category_confidence,omitempty"`
	Confidence         int       `json:"confidence"`
	Verified           bool      `json:"verified"`
	AmazonOrderID      string    `json:"amazon_order_id,omitempty"`
}

// Linked reports whether the transaction is claimed by an order.
func (t *Transaction) Linked() bool {
	return t.AmazonOrderID != ""
}

// ReconcileRun records one import or auto-match run.
type ReconcileRun struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"` // "import" or "match"
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at,omitempty"`
	Total       int    `json:"total"`
	Succeeded   int    `json:"succeeded"`
	Skipped     int    `json:"skipped"`
	Errored     int    `json:"errored"`
	Status      string `json:"status"`
}

// OrderFilters defines filters for listing orders
type OrderFilters struct {
	Status string // "linked", "unlinked" or empty for all
	Limit  int    // Max results (0 = default 50)
	Offset int    // Pagination offset
}

// OrderListResult contains paginated order results
type OrderListResult struct {
	Orders     []*Order `json:"orders"`
	TotalCount int      `json:"total_count"`
	Limit      int      `json:"limit"`
	Offset     int      `json:"offset"`
}

// Stats contains aggregate reconciliation statistics
type Stats struct {
	TotalOrders        int     `json:"total_orders"`
	TotalTransactions  int     `json:"total_transactions"`
	LinkedTransactions int     `json:"linked_transactions"`
	VerifiedCount      int     `json:"verified_count"`
	TotalOrderAmount   float64 `json:"total_order_amount"`
}
