package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/monedero/backend/src/models"
)

func TestSnapshotsEmptySeries(t *testing.T) {
	db := newTestDB(t)

	latest, err := GetLatestSnapshot(db)
	require.NoError(t, err)
	assert.Nil(t, latest)

	previous, err := GetPreviousSnapshot(db)
	require.NoError(t, err)
	assert.Nil(t, previous)
}

func TestSnapshotOrdering(t *testing.T) {
	db := newTestDB(t)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, InsertSnapshot(db, models.ValuationSnapshot{TotalARS: 95000, TotalUSD: 950, Date: base}))
	require.NoError(t, InsertSnapshot(db, models.ValuationSnapshot{TotalARS: 100000, TotalUSD: 1000, Date: base.Add(24 * time.Hour)}))

	latest, err := GetLatestSnapshot(db)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 100000.0, latest.TotalARS)
	assert.Equal(t, 1000.0, latest.TotalUSD)

	previous, err := GetPreviousSnapshot(db)
	require.NoError(t, err)
	require.NotNil(t, previous)
	assert.Equal(t, 95000.0, previous.TotalARS)
	assert.Equal(t, 950.0, previous.TotalUSD)
}

func TestSnapshotSingleRowHasNoPrevious(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, InsertSnapshot(db, models.ValuationSnapshot{TotalARS: 100, TotalUSD: 1, Date: time.Now()}))

	previous, err := GetPreviousSnapshot(db)
	require.NoError(t, err)
	assert.Nil(t, previous)
}
