package normalizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SingleOrderMultipleItems(t *testing.T) {
	csv := `Order ID,Order Date,Total Owed,Product Name,Unit Price,Quantity,Category,ASIN,Seller,Order Status,Payment Instrument Type
112-0001,2024-01-10,45.99,"The Go Programming Language",35.99,1,Books,B00TESTA,Amazon.com,Shipped,Visa
112-0001,2024-01-10,45.99,"Moleskine Notebook, Large",10.00,1,Office Product,B00TESTB,Amazon.com,Shipped,Visa`

	result, err := New(nil).Parse(csv)
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)
	assert.Empty(t, result.Skipped)

	order := result.Orders[0]
	assert.Equal(t, "112-0001", order.OrderID)
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), order.OrderDate)
	assert.Equal(t, 45.99, order.TotalAmount)
	assert.Equal(t, "Visa", order.PaymentMethod)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "The Go Programming Language", order.Items[0].Title)
	assert.Equal(t, "Moleskine Notebook, Large", order.Items[1].Title)
	assert.Equal(t, 10.00, order.Items[1].Price)
}

func TestParse_QuotedCommasAndEscapedQuotes(t *testing.T) {
	csv := `Order ID,Order Date,Total,Title,Price
112-0002,2024-02-01,"1,234.56","Monitor, 27"" 4K","1,234.56"`

	result, err := New(nil).Parse(csv)
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)

	order := result.Orders[0]
	assert.Equal(t, 1234.56, order.TotalAmount)
	require.Len(t, order.Items, 1)
	assert.Equal(t, `Monitor, 27" 4K`, order.Items[0].Title)
	assert.Equal(t, 1234.56, order.Items[0].Price)
}

func TestParse_HeaderAliases(t *testing.T) {
	// Older exports use different column names for the same fields
	csv := `Order Number,Purchase Date,Order Total,Item,Item Total,Product Group
112-0003,01/15/2024,$19.99,Desk Lamp,$19.99,Home`

	result, err := New(nil).Parse(csv)
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)

	order := result.Orders[0]
	assert.Equal(t, "112-0003", order.OrderID)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), order.OrderDate)
	assert.Equal(t, 19.99, order.TotalAmount)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Home", order.Items[0].Category)
}

func TestParse_FirstAliasWins(t *testing.T) {
	// Both "Total Owed" and "Total" present: "Total Owed" is canonical
	csv := `Order ID,Order Date,Total,Total Owed,Title,Price
112-0004,2024-01-10,99.99,45.99,Widget,45.99`

	result, err := New(nil).Parse(csv)
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)
	assert.Equal(t, 45.99, result.Orders[0].TotalAmount)
}

func TestParse_SkipsRowMissingIDOrDate(t *testing.T) {
	csv := `Order ID,Order Date,Title,Price
,2024-01-10,No ID Item,5.00
112-0005,,No Date Item,5.00
112-0006,2024-01-12,Good Item,5.00`

	result, err := New(nil).Parse(csv)
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)
	assert.Equal(t, "112-0006", result.Orders[0].OrderID)
	require.Len(t, result.Skipped, 2)
	assert.Contains(t, result.Skipped[0].Reason, "missing order id or order date")
}

func TestParse_SkipsUnparsableDate(t *testing.T) {
	csv := `Order ID,Order Date,Title,Price
112-0007,not-a-date,Item,5.00`

	result, err := New(nil).Parse(csv)
	require.NoError(t, err)
	assert.Empty(t, result.Orders)
	require.Len(t, result.Skipped, 1)
	assert.Contains(t, result.Skipped[0].Reason, "unparsable order date")
}

func TestParse_SkipsCancelledZeroQuantity(t *testing.T) {
	csv := `Order ID,Order Date,Title,Price,Quantity,Order Status
112-0008,2024-01-10,Cancelled Item,5.00,0,Cancelled
112-0009,2024-01-11,Kept Item,5.00,1,Shipped`

	result, err := New(nil).Parse(csv)
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)
	assert.Equal(t, "112-0009", result.Orders[0].OrderID)
	require.Len(t, result.Skipped, 1)
	assert.Contains(t, result.Skipped[0].Reason, "cancelled")
}

func TestParse_BlankTitleSkipsItemNotOrder(t *testing.T) {
	csv := `Order ID,Order Date,Total,Title,Price
112-0010,2024-01-10,20.00,,10.00
112-0010,2024-01-10,20.00,Real Item,10.00`

	result, err := New(nil).Parse(csv)
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)
	require.Len(t, result.Orders[0].Items, 1)
	assert.Equal(t, "Real Item", result.Orders[0].Items[0].Title)
	require.Len(t, result.Skipped, 1)
	assert.Contains(t, result.Skipped[0].Reason, "blank")
}

func TestParse_QuantityDefaultsToOne(t *testing.T) {
	csv := `Order ID,Order Date,Title,Price
112-0011,2024-01-10,Item,5.00`

	result, err := New(nil).Parse(csv)
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)
	require.Len(t, result.Orders[0].Items, 1)
	assert.Equal(t, 1, result.Orders[0].Items[0].Quantity)
}

func TestParse_AmountCleaning(t *testing.T) {
	csv := `Order ID,Order Date,Total,Title,Price
112-0012,2024-01-10,"$1,050.75",Item,garbage`

	result, err := New(nil).Parse(csv)
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)
	assert.Equal(t, 1050.75, result.Orders[0].TotalAmount)
	// Unparsable numbers default to 0
	assert.Equal(t, 0.0, result.Orders[0].Items[0].Price)
}

func TestParse_OutputPreservesFirstOccurrenceOrder(t *testing.T) {
	csv := `Order ID,Order Date,Title,Price
B-002,2024-01-10,Item B1,1.00
A-001,2024-01-11,Item A1,2.00
B-002,2024-01-10,Item B2,3.00`

	result, err := New(nil).Parse(csv)
	require.NoError(t, err)
	require.Len(t, result.Orders, 2)
	assert.Equal(t, "B-002", result.Orders[0].OrderID)
	assert.Equal(t, "A-001", result.Orders[1].OrderID)
	assert.Len(t, result.Orders[0].Items, 2)
}

func TestParse_EmptyInputIsStructuralError(t *testing.T) {
	_, err := New(nil).Parse("")
	assert.Error(t, err)

	_, err = New(nil).Parse("Order ID,Order Date\n")
	assert.Error(t, err)
}

func TestParse_UnrecognizableHeaderIsStructuralError(t *testing.T) {
	_, err := New(nil).Parse("Foo,Bar\n1,2\n")
	assert.Error(t, err)
}

func TestParse_UnrecognizedColumnsIgnored(t *testing.T) {
	csv := `Order ID,Order Date,Title,Price,Website,Currency
112-0013,2024-01-10,Item,5.00,Amazon.com,USD`

	result, err := New(nil).Parse(csv)
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)
	assert.Len(t, result.Orders[0].Items, 1)
}
