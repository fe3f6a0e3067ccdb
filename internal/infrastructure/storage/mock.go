package storage

import (
	"fmt"
	"time"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps and slices, making tests fast and isolated.
type MockRepository struct {
	orders       map[string]*Order
	orderSeq     []string // Insertion order of order IDs
	transactions map[string]*Transaction
	txSeq        []string
	categories   map[string]string
	runs         []ReconcileRun

	// Hooks for test assertions
	UpsertOrderCalled    bool
	AddItemsCalled       bool
	LinkCalled           bool
	UnlinkCalled         bool
	UpdateCategoryCalled bool
	SetVerifiedCalled    bool
	LastLinkedOrderID    string
	LastCategory         string

	// Error injection for testing error paths
	UpsertOrderErr    error
	AddItemsErr       error
	LinkErr           error
	UnlinkErr         error
	UpdateCategoryErr error
	SetVerifiedErr    error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		orders:       make(map[string]*Order),
		transactions: make(map[string]*Transaction),
		categories:   make(map[string]string),
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// UpsertOrder saves an order to the in-memory map
func (m *MockRepository) UpsertOrder(order *Order) (bool, error) {
	m.UpsertOrderCalled = true
	if m.UpsertOrderErr != nil {
		return false, m.UpsertOrderErr
	}

	_, exists := m.orders[order.OrderID]
	copied := *order
	if exists {
		// Items are managed by AddItems, keep the existing set
		copied.Items = m.orders[order.OrderID].Items
	} else {
		m.orderSeq = append(m.orderSeq, order.OrderID)
		copied.ImportedAt = time.Now()
	}
	m.orders[order.OrderID] = &copied
	return !exists, nil
}

// AddItems replaces the items of an order wholesale
func (m *MockRepository) AddItems(orderID string, items []Item) error {
	m.AddItemsCalled = true
	if m.AddItemsErr != nil {
		return m.AddItemsErr
	}
	order, ok := m.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s not found", orderID)
	}
	order.Items = append([]Item(nil), items...)
	return nil
}

// GetOrder retrieves an order by ID
func (m *MockRepository) GetOrder(orderID string) (*Order, error) {
	order, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	copied := *order
	return &copied, nil
}

// GetUnmatchedOrders returns orders with no linked transaction, in import order
func (m *MockRepository) GetUnmatchedOrders() ([]*Order, error) {
	linked := make(map[string]bool)
	for _, t := range m.transactions {
		if t.AmazonOrderID != "" {
			linked[t.AmazonOrderID] = true
		}
	}

	var orders []*Order
	for _, id := range m.orderSeq {
		if linked[id] {
			continue
		}
		copied := *m.orders[id]
		orders = append(orders, &copied)
	}
	return orders, nil
}

// ListOrders returns orders matching the given filters
func (m *MockRepository) ListOrders(filters OrderFilters) (*OrderListResult, error) {
	linked := make(map[string]bool)
	for _, t := range m.transactions {
		if t.AmazonOrderID != "" {
			linked[t.AmazonOrderID] = true
		}
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	var all []*Order
	for _, id := range m.orderSeq {
		if filters.Status == "linked" && !linked[id] {
			continue
		}
		if filters.Status == "unlinked" && linked[id] {
			continue
		}
		copied := *m.orders[id]
		all = append(all, &copied)
	}

	result := &OrderListResult{
		TotalCount: len(all),
		Limit:      limit,
		Offset:     filters.Offset,
	}
	for i := filters.Offset; i < len(all) && len(result.Orders) < limit; i++ {
		result.Orders = append(result.Orders, all[i])
	}
	return result, nil
}

// GetStats returns aggregate statistics over the in-memory data
func (m *MockRepository) GetStats() (*Stats, error) {
	stats := &Stats{TotalOrders: len(m.orders), TotalTransactions: len(m.transactions)}
	for _, o := range m.orders {
		stats.TotalOrderAmount += o.TotalAmount
	}
	for _, t := range m.transactions {
		if t.AmazonOrderID != "" {
			stats.LinkedTransactions++
		}
		if t.Verified {
			stats.VerifiedCount++
		}
	}
	return stats, nil
}

// SaveTransactions saves transactions to the in-memory map
func (m *MockRepository) SaveTransactions(txs []*Transaction) error {
	for _, t := range txs {
		if _, exists := m.transactions[t.TransactionID]; !exists {
			m.txSeq = append(m.txSeq, t.TransactionID)
		}
		copied := *t
		m.transactions[t.TransactionID] = &copied
	}
	return nil
}

// GetTransactions returns transactions in insertion order
func (m *MockRepository) GetTransactions(limit int) ([]*Transaction, error) {
	if limit <= 0 {
		limit = 500
	}
	var txs []*Transaction
	for _, id := range m.txSeq {
		if len(txs) >= limit {
			break
		}
		copied := *m.transactions[id]
		txs = append(txs, &copied)
	}
	return txs, nil
}

// GetTransaction retrieves a transaction by ID
func (m *MockRepository) GetTransaction(transactionID string) (*Transaction, error) {
	t, ok := m.transactions[transactionID]
	if !ok {
		return nil, nil
	}
	copied := *t
	return &copied, nil
}

// GetTransactionForOrder returns the transaction linked to the order
func (m *MockRepository) GetTransactionForOrder(orderID string) (*Transaction, error) {
	for _, t := range m.transactions {
		if t.AmazonOrderID == orderID {
			copied := *t
			return &copied, nil
		}
	}
	return nil, nil
}

// LinkOrderToTransaction sets the link fields on a transaction
func (m *MockRepository) LinkOrderToTransaction(orderID, transactionID string, confidence int) error {
	m.LinkCalled = true
	m.LastLinkedOrderID = orderID
	if m.LinkErr != nil {
		return m.LinkErr
	}
	t, ok := m.transactions[transactionID]
	if !ok {
		return fmt.Errorf("transaction %s not found", transactionID)
	}
	t.AmazonOrderID = orderID
	t.Confidence = confidence
	return nil
}

// UnlinkOrder clears the link fields on whichever transaction claims the order
func (m *MockRepository) UnlinkOrder(orderID string) error {
	m.UnlinkCalled = true
	if m.UnlinkErr != nil {
		return m.UnlinkErr
	}
	for _, t := range m.transactions {
		if t.AmazonOrderID == orderID {
			t.AmazonOrderID = ""
			t.Confidence = 0
		}
	}
	return nil
}

// UpdateTransactionCategory sets the category fields on a transaction
func (m *MockRepository) UpdateTransactionCategory(transactionID, category string, confidence int) error {
	m.UpdateCategoryCalled = true
	m.LastCategory = category
	if m.UpdateCategoryErr != nil {
		return m.UpdateCategoryErr
	}
	t, ok := m.transactions[transactionID]
	if !ok {
		return fmt.Errorf("transaction %s not found", transactionID)
	}
	t.Category = category
	t.CategoryConfidence = confidence
	return nil
}

// SetTransactionVerified flips the verified flag
func (m *MockRepository) SetTransactionVerified(transactionID string, verified bool) error {
	m.SetVerifiedCalled = true
	if m.SetVerifiedErr != nil {
		return m.SetVerifiedErr
	}
	t, ok := m.transactions[transactionID]
	if !ok {
		return fmt.Errorf("transaction %s not found", transactionID)
	}
	t.Verified = verified
	return nil
}

// AddCategory registers a category; duplicates are ignored
func (m *MockRepository) AddCategory(name, parent string) error {
	if _, exists := m.categories[name]; !exists {
		m.categories[name] = parent
	}
	return nil
}

// StartRun records a new run
func (m *MockRepository) StartRun(kind string) (string, error) {
	id := fmt.Sprintf("run-%d", len(m.runs)+1)
	m.runs = append(m.runs, ReconcileRun{ID: id, Kind: kind, Status: "running"})
	return id, nil
}

// CompleteRun marks a run completed
func (m *MockRepository) CompleteRun(runID string, total, succeeded, skipped, errored int) error {
	for i := range m.runs {
		if m.runs[i].ID == runID {
			m.runs[i].Total = total
			m.runs[i].Succeeded = succeeded
			m.runs[i].Skipped = skipped
			m.runs[i].Errored = errored
			m.runs[i].Status = "completed"
			return nil
		}
	}
	return fmt.Errorf("run %s not found", runID)
}

// ListRuns returns recorded runs, newest first
func (m *MockRepository) ListRuns(limit int) ([]ReconcileRun, error) {
	if limit <= 0 || limit > len(m.runs) {
		limit = len(m.runs)
	}
	runs := make([]ReconcileRun, 0, limit)
	for i := len(m.runs) - 1; i >= 0 && len(runs) < limit; i-- {
		runs = append(runs, m.runs[i])
	}
	return runs, nil
}
