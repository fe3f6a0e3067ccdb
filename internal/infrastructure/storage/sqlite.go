package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// dateLayout is the canonical date format for order and transaction dates.
const dateLayout = "2006-01-02"

// Storage provides SQLite database access for the reconciliation core.
// It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}

	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// ----------------------------------------------------------------
// Orders
// ----------------------------------------------------------------

// UpsertOrder inserts or updates an order by order ID.
// Returns true if the order was newly created.
func (s *Storage) UpsertOrder(order *Order) (bool, error) {
	var exists int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM orders WHERE order_id = ?`, order.OrderID).Scan(&exists)
	if err != nil {
		return false, err
	}

	if exists > 0 {
		_, err = s.db.Exec(`
			UPDATE orders
			SET order_date = ?, total_amount = ?, payment_method = ?, status = ?
			WHERE order_id = ?`,
			order.OrderDate.Format(dateLayout),
			order.TotalAmount,
			order.PaymentMethod,
			order.Status,
			order.OrderID,
		)
		return false, err
	}

	_, err = s.db.Exec(`
		INSERT INTO orders (order_id, order_date, total_amount, payment_method, status)
		VALUES (?, ?, ?, ?, ?)`,
		order.OrderID,
		order.OrderDate.Format(dateLayout),
		order.TotalAmount,
		order.PaymentMethod,
		order.Status,
	)
	return true, err
}

// AddItems replaces the items of an order wholesale
func (s *Storage) AddItems(orderID string, items []Item) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM order_items WHERE order_id = ?`, orderID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to clear items for order %s: %w", orderID, err)
	}

	for _, item := range items {
		_, err := tx.Exec(`
			INSERT INTO order_items (order_id, title, price, quantity, category, asin, seller)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			orderID, item.Title, item.Price, item.Quantity, item.Category, item.ASIN, item.Seller,
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert item for order %s: %w", orderID, err)
		}
	}

	return tx.Commit()
}

// GetOrder retrieves an order with its items, or nil if absent
func (s *Storage) GetOrder(orderID string) (*Order, error) {
	row := s.db.QueryRow(`
		SELECT order_id, order_date, total_amount, payment_method, status, imported_at
		FROM orders WHERE order_id = ?`, orderID)

	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadItems(order); err != nil {
		return nil, err
	}

	return order, nil
}

// GetUnmatchedOrders returns orders not yet claimed by any transaction,
// in import order
func (s *Storage) GetUnmatchedOrders() ([]*Order, error) {
	rows, err := s.db.Query(`
		SELECT order_id, order_date, total_amount, payment_method, status, imported_at
		FROM orders
		WHERE order_id NOT IN (
			SELECT amazon_order_id FROM transactions
			WHERE amazon_order_id IS NOT NULL AND amazon_order_id != ''
		)
		ORDER BY imported_at, order_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var orders []*Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, order := range orders {
		if err := s.loadItems(order); err != nil {
			return nil, err
		}
	}

	return orders, nil
}

// ListOrders returns orders matching the given filters with pagination
func (s *Storage) ListOrders(filters OrderFilters) (*OrderListResult, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	where := ""
	switch filters.Status {
	case "linked":
		where = `WHERE order_id IN (
			SELECT amazon_order_id FROM transactions
			WHERE amazon_order_id IS NOT NULL AND amazon_order_id != '')`
	case "unlinked":
		where = `WHERE order_id NOT IN (
			SELECT amazon_order_id FROM transactions
			WHERE amazon_order_id IS NOT NULL AND amazon_order_id != '')`
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM orders ` + where).Scan(&total); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT order_id, order_date, total_amount, payment_method, status, imported_at
		FROM orders %s
		ORDER BY order_date DESC, order_id
		LIMIT ? OFFSET ?`, where)

	rows, err := s.db.Query(query, limit, filters.Offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := &OrderListResult{
		TotalCount: total,
		Limit:      limit,
		Offset:     filters.Offset,
	}

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result.Orders = append(result.Orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, order := range result.Orders {
		if err := s.loadItems(order); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// GetStats returns aggregate statistics
func (s *Storage) GetStats() (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(total_amount), 0) FROM orders
	`).Scan(&stats.TotalOrders, &stats.TotalOrderAmount)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRow(`
		SELECT
			COUNT(*),
			COUNT(CASE WHEN amazon_order_id IS NOT NULL AND amazon_order_id != '' THEN 1 END),
			COUNT(CASE WHEN verified = 1 THEN 1 END)
		FROM transactions
	`).Scan(&stats.TotalTransactions, &stats.LinkedTransactions, &stats.VerifiedCount)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// loadItems populates the Items slice of an order
func (s *Storage) loadItems(order *Order) error {
	rows, err := s.db.Query(`
		SELECT title, price, quantity, category, asin, seller
		FROM order_items WHERE order_id = ? ORDER BY id`, order.OrderID)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	order.Items = nil
	for rows.Next() {
		var item Item
		var category, asin, seller sql.NullString
		if err := rows.Scan(&item.Title, &item.Price, &item.Quantity, &category, &asin, &seller); err != nil {
			return err
		}
		item.Category = category.String
		item.ASIN = asin.String
		item.Seller = seller.String
		order.Items = append(order.Items, item)
	}
	return rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows for scanOrder
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row scanner) (*Order, error) {
	order := &Order{}
	var orderDate string
	var paymentMethod, status sql.NullString
	var importedAt sql.NullTime

	err := row.Scan(&order.OrderID, &orderDate, &order.TotalAmount, &paymentMethod, &status, &importedAt)
	if err != nil {
		return nil, err
	}

	order.OrderDate, err = time.Parse(dateLayout, orderDate)
	if err != nil {
		return nil, fmt.Errorf("invalid stored order date %q: %w", orderDate, err)
	}
	order.PaymentMethod = paymentMethod.String
	order.Status = status.String
	if importedAt.Valid {
		order.ImportedAt = importedAt.Time
	}

	return order, nil
}

// ----------------------------------------------------------------
// Transactions
// ----------------------------------------------------------------

// SaveTransactions inserts or updates transactions by transaction ID
func (s *Storage) SaveTransactions(txs []*Transaction) error {
	dbTx, err := s.db.Begin()
	if err != nil {
		return err
	}

	for _, t := range txs {
		_, err := dbTx.Exec(`
			INSERT INTO transactions
			(transaction_id, date, amount, description, merchant_name,
			 category, category_confidence, confidence, verified, amazon_order_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(transaction_id) DO UPDATE SET
				date = excluded.date,
				amount = excluded.amount,
				description = excluded.description,
				merchant_name = excluded.merchant_name`,
			t.TransactionID,
			t.Date.Format(dateLayout),
			t.Amount,
			t.Description,
			t.MerchantName,
			t.Category,
			t.CategoryConfidence,
			t.Confidence,
			t.Verified,
			nullIfEmpty(t.AmazonOrderID),
		)
		if err != nil {
			_ = dbTx.Rollback()
			return fmt.Errorf("failed to save transaction %s: %w", t.TransactionID, err)
		}
	}

	return dbTx.Commit()
}

// GetTransactions returns up to limit transactions, newest first
func (s *Storage) GetTransactions(limit int) ([]*Transaction, error) {
	if limit <= 0 {
		limit = 500
	}

	rows, err := s.db.Query(`
		SELECT transaction_id, date, amount, description, merchant_name,
		       category, category_confidence, confidence, verified, amazon_order_id
		FROM transactions
		ORDER BY date DESC, transaction_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var txs []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// GetTransaction retrieves a transaction by ID, or nil if absent
func (s *Storage) GetTransaction(transactionID string) (*Transaction, error) {
	row := s.db.QueryRow(`
		SELECT transaction_id, date, amount, description, merchant_name,
		       category, category_confidence, confidence, verified, amazon_order_id
		FROM transactions WHERE transaction_id = ?`, transactionID)

	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// GetTransactionForOrder returns the transaction currently linked to the order
func (s *Storage) GetTransactionForOrder(orderID string) (*Transaction, error) {
	row := s.db.QueryRow(`
		SELECT transaction_id, date, amount, description, merchant_name,
		       category, category_confidence, confidence, verified, amazon_order_id
		FROM transactions WHERE amazon_order_id = ?`, orderID)

	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// LinkOrderToTransaction sets the transaction's amazon_order_id and link confidence
func (s *Storage) LinkOrderToTransaction(orderID, transactionID string, confidence int) error {
	res, err := s.db.Exec(`
		UPDATE transactions SET amazon_order_id = ?, confidence = ?
		WHERE transaction_id = ?`,
		orderID, confidence, transactionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("transaction %s not found", transactionID)
	}
	return nil
}

// UnlinkOrder clears the link and confidence on whichever transaction
// currently claims the order
func (s *Storage) UnlinkOrder(orderID string) error {
	_, err := s.db.Exec(`
		UPDATE transactions SET amazon_order_id = NULL, confidence = 0
		WHERE amazon_order_id = ?`, orderID)
	return err
}

// UpdateTransactionCategory sets the inferred category and its confidence
func (s *Storage) UpdateTransactionCategory(transactionID, category string, confidence int) error {
	res, err := s.db.Exec(`
		UPDATE transactions SET category = ?, category_confidence = ?
		WHERE transaction_id = ?`,
		category, confidence, transactionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("transaction %s not found", transactionID)
	}
	return nil
}

// SetTransactionVerified flips the human-verified flag
func (s *Storage) SetTransactionVerified(transactionID string, verified bool) error {
	res, err := s.db.Exec(`
		UPDATE transactions SET verified = ? WHERE transaction_id = ?`,
		verified, transactionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("transaction %s not found", transactionID)
	}
	return nil
}

func scanTransaction(row scanner) (*Transaction, error) {
	t := &Transaction{}
	var date string
	var description, merchantName, category, orderID sql.NullString

	err := row.Scan(&t.TransactionID, &date, &t.Amount, &description, &merchantName,
		&category, &t.CategoryConfidence, &t.Confidence, &t.Verified, &orderID)
	if err != nil {
		return nil, err
	}

	t.Date, err = time.Parse(dateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("invalid stored transaction date %q: %w", date, err)
	}
	t.Description = description.String
	t.MerchantName = merchantName.String
	t.Category = category.String
	t.AmazonOrderID = orderID.String

	return t, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// ----------------------------------------------------------------
// Categories
// ----------------------------------------------------------------

// AddCategory registers a category under an optional parent.
// Duplicate-category errors are swallowed.
func (s *Storage) AddCategory(name, parent string) error {
	_, err := s.db.Exec(`
		INSERT INTO categories (name, parent) VALUES (?, ?)
		ON CONFLICT(name) DO NOTHING`,
		name, nullIfEmpty(parent))
	return err
}

// ----------------------------------------------------------------
// Runs
// ----------------------------------------------------------------

// StartRun records the start of a run and returns its ID
func (s *Storage) StartRun(kind string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(`
		INSERT INTO reconcile_runs (id, kind, status) VALUES (?, ?, 'running')`,
		id, kind)
	if err != nil {
		return "", err
	}
	return id, nil
}

// CompleteRun records the completion of a run
func (s *Storage) CompleteRun(runID string, total, succeeded, skipped, errored int) error {
	status := "completed"
	if errored > 0 {
		status = "completed_with_errors"
	}

	_, err := s.db.Exec(`
		UPDATE reconcile_runs
		SET completed_at = CURRENT_TIMESTAMP, total = ?, succeeded = ?,
		    skipped = ?, errored = ?, status = ?
		WHERE id = ?`,
		total, succeeded, skipped, errored, status, runID)
	return err
}

// ListRuns returns recent runs, newest first
func (s *Storage) ListRuns(limit int) ([]ReconcileRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, kind, started_at, COALESCE(completed_at, ''),
		       total, succeeded, skipped, errored, status
		FROM reconcile_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []ReconcileRun
	for rows.Next() {
		var run ReconcileRun
		err := rows.Scan(&run.ID, &run.Kind, &run.StartedAt, &run.CompletedAt,
			&run.Total, &run.Succeeded, &run.Skipped, &run.Errored, &run.Status)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
