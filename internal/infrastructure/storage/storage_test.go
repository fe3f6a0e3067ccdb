package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestStorage_UpsertOrder_InsertThenUpdate(t *testing.T) {
	store, err := NewStorage(createTempDB(t))
	require.NoError(t, err)
	defer store.Close()

	order := &Order{
		OrderID:       "112-3456789",
		OrderDate:     date(2024, 1, 10),
		TotalAmount:   45.99,
		PaymentMethod: "Visa",
		Status:        "Shipped",
	}

	created, err := store.UpsertOrder(order)
	require.NoError(t, err)
	assert.True(t, created)

	// Re-import: same ID, updated fields
	order.TotalAmount = 50.00
	created, err = store.UpsertOrder(order)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := store.GetOrder("112-3456789")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 50.00, got.TotalAmount)
	assert.Equal(t, date(2024, 1, 10), got.OrderDate)
}

func TestStorage_AddItems_ReplacesWholesale(t *testing.T) {
	store, err := NewStorage(createTempDB(t))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.UpsertOrder(&Order{OrderID: "o1", OrderDate: date(2024, 2, 1), TotalAmount: 20})
	require.NoError(t, err)

	err = store.AddItems("o1", []Item{
		{Title: "USB Cable", Price: 9.99, Quantity: 1, Category: "Electronics"},
		{Title: "Batteries", Price: 10.01, Quantity: 2, Category: "Electronics"},
	})
	require.NoError(t, err)

	// Re-import replaces, never appends
	err = store.AddItems("o1", []Item{
		{Title: "USB Cable", Price: 9.99, Quantity: 1, Category: "Electronics", ASIN: "B00ABC"},
	})
	require.NoError(t, err)

	got, err := store.GetOrder("o1")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "USB Cable", got.Items[0].Title)
	assert.Equal(t, "B00ABC", got.Items[0].ASIN)
}

func TestStorage_GetUnmatchedOrders(t *testing.T) {
	store, err := NewStorage(createTempDB(t))
	require.NoError(t, err)
	defer store.Close()

	for _, id := range []string{"o1", "o2", "o3"} {
		_, err := store.UpsertOrder(&Order{OrderID: id, OrderDate: date(2024, 3, 1), TotalAmount: 10})
		require.NoError(t, err)
	}

	err = store.SaveTransactions([]*Transaction{
		{TransactionID: "t1", Date: date(2024, 3, 2), Amount: 10, Description: "AMAZON.COM"},
	})
	require.NoError(t, err)

	require.NoError(t, store.LinkOrderToTransaction("o2", "t1", 95))

	unmatched, err := store.GetUnmatchedOrders()
	require.NoError(t, err)
	require.Len(t, unmatched, 2)
	assert.Equal(t, "o1", unmatched[0].OrderID)
	assert.Equal(t, "o3", unmatched[1].OrderID)
}

func TestStorage_LinkAndUnlink(t *testing.T) {
	store, err := NewStorage(createTempDB(t))
	require.NoError(t, err)
	defer store.Close()

	err = store.SaveTransactions([]*Transaction{
		{TransactionID: "t1", Date: date(2024, 3, 2), Amount: 42.50, Description: "AMZN Mktp"},
	})
	require.NoError(t, err)

	require.NoError(t, store.LinkOrderToTransaction("o1", "t1", 85))

	linked, err := store.GetTransactionForOrder("o1")
	require.NoError(t, err)
	require.NotNil(t, linked)
	assert.Equal(t, "t1", linked.TransactionID)
	assert.Equal(t, 85, linked.Confidence)

	require.NoError(t, store.UnlinkOrder("o1"))

	linked, err = store.GetTransactionForOrder("o1")
	require.NoError(t, err)
	assert.Nil(t, linked)

	tx, err := store.GetTransaction("t1")
	require.NoError(t, err)
	assert.Equal(t, 0, tx.Confidence)
	assert.Empty(t, tx.AmazonOrderID)
}

func TestStorage_LinkUnknownTransaction(t *testing.T) {
	store, err := NewStorage(createTempDB(t))
	require.NoError(t, err)
	defer store.Close()

	err = store.LinkOrderToTransaction("o1", "missing", 80)
	assert.Error(t, err)
}

func TestStorage_UpdateTransactionCategory(t *testing.T) {
	store, err := NewStorage(createTempDB(t))
	require.NoError(t, err)
	defer store.Close()

	err = store.SaveTransactions([]*Transaction{
		{TransactionID: "t1", Date: date(2024, 3, 2), Amount: 30, Description: "AMAZON.COM"},
	})
	require.NoError(t, err)

	require.NoError(t, store.UpdateTransactionCategory("t1", "Shopping > Books", 90))

	tx, err := store.GetTransaction("t1")
	require.NoError(t, err)
	assert.Equal(t, "Shopping > Books", tx.Category)
	assert.Equal(t, 90, tx.CategoryConfidence)
	// Link confidence untouched
	assert.Equal(t, 0, tx.Confidence)
}

func TestStorage_SetTransactionVerified(t *testing.T) {
	store, err := NewStorage(createTempDB(t))
	require.NoError(t, err)
	defer store.Close()

	err = store.SaveTransactions([]*Transaction{
		{TransactionID: "t1", Date: date(2024, 3, 2), Amount: 30},
	})
	require.NoError(t, err)

	require.NoError(t, store.SetTransactionVerified("t1", true))
	tx, err := store.GetTransaction("t1")
	require.NoError(t, err)
	assert.True(t, tx.Verified)

	require.NoError(t, store.SetTransactionVerified("t1", false))
	tx, err = store.GetTransaction("t1")
	require.NoError(t, err)
	assert.False(t, tx.Verified)
}

func TestStorage_SaveTransactions_UpsertPreservesLink(t *testing.T) {
	store, err := NewStorage(createTempDB(t))
	require.NoError(t, err)
	defer store.Close()

	err = store.SaveTransactions([]*Transaction{
		{TransactionID: "t1", Date: date(2024, 3, 2), Amount: 30, Description: "AMAZON.COM"},
	})
	require.NoError(t, err)
	require.NoError(t, store.LinkOrderToTransaction("o1", "t1", 75))

	// Bank sync re-delivers the same transaction; the link must survive
	err = store.SaveTransactions([]*Transaction{
		{TransactionID: "t1", Date: date(2024, 3, 2), Amount: 30, Description: "AMAZON.COM*XYZ"},
	})
	require.NoError(t, err)

	tx, err := store.GetTransaction("t1")
	require.NoError(t, err)
	assert.Equal(t, "o1", tx.AmazonOrderID)
	assert.Equal(t, 75, tx.Confidence)
	assert.Equal(t, "AMAZON.COM*XYZ", tx.Description)
}

func TestStorage_AddCategory_Idempotent(t *testing.T) {
	store, err := NewStorage(createTempDB(t))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.AddCategory("Shopping", ""))
	require.NoError(t, store.AddCategory("Shopping > Books", "Shopping"))
	// Duplicate is swallowed
	require.NoError(t, store.AddCategory("Shopping", ""))
}

func TestStorage_Runs(t *testing.T) {
	store, err := NewStorage(createTempDB(t))
	require.NoError(t, err)
	defer store.Close()

	runID, err := store.StartRun("import")
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	require.NoError(t, store.CompleteRun(runID, 42, 40, 2, 0))

	runs, err := store.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "import", runs[0].Kind)
	assert.Equal(t, 42, runs[0].Total)
	assert.Equal(t, 40, runs[0].Succeeded)
	assert.Equal(t, "completed", runs[0].Status)
}

func TestStorage_ListOrders_Filters(t *testing.T) {
	store, err := NewStorage(createTempDB(t))
	require.NoError(t, err)
	defer store.Close()

	for _, id := range []string{"o1", "o2"} {
		_, err := store.UpsertOrder(&Order{OrderID: id, OrderDate: date(2024, 4, 1), TotalAmount: 5})
		require.NoError(t, err)
	}
	err = store.SaveTransactions([]*Transaction{
		{TransactionID: "t1", Date: date(2024, 4, 2), Amount: 5},
	})
	require.NoError(t, err)
	require.NoError(t, store.LinkOrderToTransaction("o1", "t1", 90))

	linked, err := store.ListOrders(OrderFilters{Status: "linked"})
	require.NoError(t, err)
	require.Len(t, linked.Orders, 1)
	assert.Equal(t, "o1", linked.Orders[0].OrderID)

	unlinked, err := store.ListOrders(OrderFilters{Status: "unlinked"})
	require.NoError(t, err)
	require.Len(t, unlinked.Orders, 1)
	assert.Equal(t, "o2", unlinked.Orders[0].OrderID)

	all, err := store.ListOrders(OrderFilters{})
	require.NoError(t, err)
	assert.Equal(t, 2, all.TotalCount)
}

func TestStorage_GetStats(t *testing.T) {
	store, err := NewStorage(createTempDB(t))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.UpsertOrder(&Order{OrderID: "o1", OrderDate: date(2024, 4, 1), TotalAmount: 99.50})
	require.NoError(t, err)
	err = store.SaveTransactions([]*Transaction{
		{TransactionID: "t1", Date: date(2024, 4, 2), Amount: 99.50},
		{TransactionID: "t2", Date: date(2024, 4, 3), Amount: 12.00},
	})
	require.NoError(t, err)
	require.NoError(t, store.LinkOrderToTransaction("o1", "t1", 100))
	require.NoError(t, store.SetTransactionVerified("t1", true))

	stats, err := store.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalOrders)
	assert.Equal(t, 2, stats.TotalTransactions)
	assert.Equal(t, 1, stats.LinkedTransactions)
	assert.Equal(t, 1, stats.VerifiedCount)
	assert.InDelta(t, 99.50, stats.TotalOrderAmount, 0.001)
}

func TestStorage_MigrationsAreIdempotent(t *testing.T) {
	dbPath := createTempDB(t)

	store, err := NewStorage(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening runs migrations again; already-applied versions are skipped
	store, err = NewStorage(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}
