package storage

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, etc.)
// and makes testing with mocks straightforward. The reconciliation core
// only ever talks to this interface, never to a concrete database.
type Repository interface {
	OrderRepository
	TransactionRepository
	CategoryRepository
	RunRepository
	Close() error
}

// OrderRepository handles order persistence
type OrderRepository interface {
	// UpsertOrder inserts or updates an order by order ID.
	// Returns true if the order was newly created.
	UpsertOrder(order *Order) (created bool, err error)

	// AddItems replaces the items of an order wholesale.
	AddItems(orderID string, items []Item) error

	// GetOrder retrieves an order with its items, or nil if absent.
	GetOrder(orderID string) (*Order, error)

	// GetUnmatchedOrders returns orders not yet claimed by any transaction,
	// in import order.
	GetUnmatchedOrders() ([]*Order, error)

	// ListOrders returns orders matching the given filters with pagination.
	ListOrders(filters OrderFilters) (*OrderListResult, error)

	// GetStats returns aggregate statistics.
	GetStats() (*Stats, error)
}

// TransactionRepository handles the bank-transaction pool
type TransactionRepository interface {
	// SaveTransactions inserts or updates transactions by transaction ID.
	SaveTransactions(txs []*Transaction) error

	// GetTransactions returns up to limit transactions, newest first
	// (0 = default 500).
	GetTransactions(limit int) ([]*Transaction, error)

	// GetTransaction retrieves a transaction by ID, or nil if absent.
	GetTransaction(transactionID string) (*Transaction, error)

	// GetTransactionForOrder returns the transaction currently linked to
	// the order, or nil if the order is unlinked.
	GetTransactionForOrder(orderID string) (*Transaction, error)

	// LinkOrderToTransaction sets the transaction's amazon_order_id and
	// link confidence.
	LinkOrderToTransaction(orderID, transactionID string, confidence int) error

	// UnlinkOrder clears the link and confidence on whichever transaction
	// currently claims the order.
	UnlinkOrder(orderID string) error

	// UpdateTransactionCategory sets the inferred category and its
	// categorization confidence.
	UpdateTransactionCategory(transactionID, category string, confidence int) error

	// SetTransactionVerified flips the human-verified flag.
	SetTransactionVerified(transactionID string, verified bool) error
}

// CategoryRepository handles the expense category tree
type CategoryRepository interface {
	// AddCategory registers a category under an optional parent.
	// Idempotent: re-adding an existing category is not an error.
	AddCategory(name, parent string) error
}

// RunRepository tracks import and auto-match runs
type RunRepository interface {
	// StartRun records the start of a run and returns its ID.
	StartRun(kind string) (string, error)

	// CompleteRun records the completion of a run.
	CompleteRun(runID string, total, succeeded, skipped, errored int) error

	// ListRuns returns recent runs, newest first.
	ListRuns(limit int) ([]ReconcileRun, error)
}
