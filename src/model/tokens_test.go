package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerTokenLifecycle(t *testing.T) {
	db := newTestDB(t)

	_, err := GetBrokerToken(db)
	assert.ErrorIs(t, err, ErrNoStoredToken)

	require.NoError(t, SaveBrokerToken(db, []byte("sealed-v1")))
	got, err := GetBrokerToken(db)
	require.NoError(t, err)
	assert.Equal(t, []byte("sealed-v1"), got)

	// Saving again replaces the single row.
	require.NoError(t, SaveBrokerToken(db, []byte("sealed-v2")))
	got, err = GetBrokerToken(db)
	require.NoError(t, err)
	assert.Equal(t, []byte("sealed-v2"), got)

	require.NoError(t, DeleteBrokerToken(db))
	_, err = GetBrokerToken(db)
	assert.ErrorIs(t, err, ErrNoStoredToken)
}
