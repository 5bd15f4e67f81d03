package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/monedero/backend/src/models"
)

func testOperation(id int64, date time.Time) models.LedgerOperation {
	return models.LedgerOperation{
		OperationID: id,
		Date:        date,
		Type:        models.OperationBuy,
		Symbol:      "GGAL",
		Quantity:    10,
		PriceARS:    1000,
		PriceUSD:    1,
	}
}

func TestInsertOperationAndExists(t *testing.T) {
	db := newTestDB(t)

	exists, err := OperationExists(db, 42)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, InsertOperation(db, testOperation(42, time.Now())))

	exists, err = OperationExists(db, 42)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestInsertOperationDuplicateID(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, InsertOperation(db, testOperation(42, time.Now())))
	err := InsertOperation(db, testOperation(42, time.Now()))
	assert.ErrorIs(t, err, models.ErrStoreWriteFailed)
}

func TestListOperationsNewestFirst(t *testing.T) {
	db := newTestDB(t)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, InsertOperation(db, testOperation(1, base)))
	require.NoError(t, InsertOperation(db, testOperation(2, base.Add(time.Hour))))

	ops, err := ListOperations(db)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, int64(2), ops[0].OperationID)
	assert.Equal(t, int64(1), ops[1].OperationID)
}
