package inventory

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeductNeverGoesNegative(t *testing.T) {
	item, err := NewItem("p1", "Orquídea", decimal.RequireFromString("24.90"), 3)
	require.NoError(t, err)

	require.NoError(t, item.Deduct(2))
	assert.Equal(t, 1, item.Quantity)

	assert.ErrorIs(t, item.Deduct(2), ErrInsufficientStock)
	assert.Equal(t, 1, item.Quantity)

	assert.ErrorIs(t, item.Deduct(0), ErrInvalidQuantity)
}

func TestRestock(t *testing.T) {
	item, err := NewItem("p1", "Orquídea", decimal.Zero, 0)
	require.NoError(t, err)

	require.NoError(t, item.Restock(4))
	assert.Equal(t, 4, item.Quantity)
	assert.ErrorIs(t, item.Restock(-1), ErrInvalidQuantity)
}

func TestNewItemRejectsNegativeStock(t *testing.T) {
	_, err := NewItem("p1", "x", decimal.Zero, -1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestShortageError(t *testing.T) {
	var err error = &ShortageError{Items: []Shortage{
		{ProductID: "a", Name: "Tulipanes", InStock: 1, Requested: 3},
		{ProductID: "b", Name: "Lirios", InStock: 0, Requested: 1},
	}}

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, err.Error(), "Tulipanes (stock: 1, solicitado: 3)")
	assert.Contains(t, err.Error(), "Lirios (stock: 0, solicitado: 1)")

	var se *ShortageError
	require.True(t, errors.As(err, &se))
	assert.Len(t, se.Items, 2)
}
