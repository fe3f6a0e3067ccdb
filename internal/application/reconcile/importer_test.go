package reconcile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendtrack/reconcile-backend/internal/infrastructure/storage"
)

const sampleCSV = `Order ID,Order Date,Total Owed,Product Name,Unit Price,Quantity,Category,Order Status
112-0001,2024-01-10,45.99,Paperback Novel,45.99,1,Books,Shipped
112-0002,2024-01-12,19.99,Desk Lamp,19.99,1,Home,Shipped`

func TestImporter_ImportCSV(t *testing.T) {
	repo := storage.NewMockRepository()
	importer := NewImporter(repo, nil)

	result, err := importer.ImportCSV(sampleCSV)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 2, result.Total)
	assert.Empty(t, result.SkippedRows)

	order, err := repo.GetOrder("112-0001")
	require.NoError(t, err)
	require.NotNil(t, order)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Paperback Novel", order.Items[0].Title)
}

func TestImporter_ReimportIsIdempotent(t *testing.T) {
	repo := storage.NewMockRepository()
	importer := NewImporter(repo, nil)

	_, err := importer.ImportCSV(sampleCSV)
	require.NoError(t, err)

	result, err := importer.ImportCSV(sampleCSV)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Imported)
	assert.Equal(t, 2, result.Updated)

	// Items replaced, not appended
	order, err := repo.GetOrder("112-0001")
	require.NoError(t, err)
	assert.Len(t, order.Items, 1)

	unmatched, err := repo.GetUnmatchedOrders()
	require.NoError(t, err)
	assert.Len(t, unmatched, 2, "re-import must not duplicate orders")
}

func TestImporter_SkippedRowsSurfaced(t *testing.T) {
	csv := `Order ID,Order Date,Title,Price
112-0003,2024-01-10,Good Item,5.00
,2024-01-11,No ID,5.00`

	repo := storage.NewMockRepository()
	importer := NewImporter(repo, nil)

	result, err := importer.ImportCSV(csv)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	require.Len(t, result.SkippedRows, 1)
	assert.Contains(t, result.SkippedRows[0].Reason, "missing order id")
}

func TestImporter_PerOrderFailureIsolated(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.AddItemsErr = errors.New("constraint violation")
	importer := NewImporter(repo, nil)

	result, err := importer.ImportCSV(sampleCSV)
	require.NoError(t, err, "per-order failures must not abort the batch")
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 0, result.Imported)
}

func TestImporter_StructuralFailureAborts(t *testing.T) {
	repo := storage.NewMockRepository()
	importer := NewImporter(repo, nil)

	_, err := importer.ImportCSV("")
	assert.Error(t, err)

	_, err = importer.ImportCSV("Unrelated,Columns\n1,2")
	assert.Error(t, err)
}

func TestImporter_RecordsRun(t *testing.T) {
	repo := storage.NewMockRepository()
	importer := NewImporter(repo, nil)

	_, err := importer.ImportCSV(sampleCSV)
	require.NoError(t, err)

	runs, err := repo.ListRuns(5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "import", runs[0].Kind)
	assert.Equal(t, 2, runs[0].Succeeded)
	assert.Equal(t, "completed", runs[0].Status)
}
