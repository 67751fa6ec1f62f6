package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/money"
)

func newTestSku(stock, reserved int) *Sku {
	return &Sku{
		ID:         "sku-1",
		Code:       "WIDGET-1",
		Name:       "Widget",
		Price:      money.MustParse("10.00", "USD"),
		Stock:      stock,
		Reserved:   reserved,
		TrackStock: true,
		Active:     true,
	}
}

// assertLedgerInvariant checks 0 <= reserved <= stock.
func assertLedgerInvariant(t *testing.T, s *Sku) {
	t.Helper()
	assert.GreaterOrEqual(t, s.Reserved, 0)
	assert.GreaterOrEqual(t, s.Stock, s.Reserved)
}

func TestReserve(t *testing.T) {
	s := newTestSku(10, 0)

	require.NoError(t, s.Reserve(3))
	assert.Equal(t, 3, s.Reserved)
	assert.Equal(t, 10, s.Stock)
	assert.Equal(t, 7, s.Available())
	assertLedgerInvariant(t, s)
}

func TestReserve_Insufficient(t *testing.T) {
	s := newTestSku(5, 3)

	err := s.Reserve(3)
	var insufficientErr *InsufficientStockError
	require.ErrorAs(t, err, &insufficientErr)
	assert.Equal(t, "WIDGET-1", insufficientErr.SkuCode)
	assert.Equal(t, 2, insufficientErr.Available)
	assert.Equal(t, 3, s.Reserved, "failed reserve must not mutate")
}

func TestReserve_NonPositive(t *testing.T) {
	s := newTestSku(5, 0)

	require.ErrorIs(t, s.Reserve(0), ErrInvalidQuantity)
	require.ErrorIs(t, s.Reserve(-1), ErrInvalidQuantity)
}

func TestReserveThenRelease_RestoresPriorState(t *testing.T) {
	s := newTestSku(10, 2)

	require.NoError(t, s.Reserve(4))
	require.NoError(t, s.Release(4))
	assert.Equal(t, 2, s.Reserved)
	assert.Equal(t, 10, s.Stock)
	assertLedgerInvariant(t, s)
}

func TestRelease_OverRelease(t *testing.T) {
	s := newTestSku(10, 2)

	require.ErrorIs(t, s.Release(3), ErrOverRelease)
	assert.Equal(t, 2, s.Reserved)
}

func TestReserveThenConsume_SpendsReservation(t *testing.T) {
	s := newTestSku(10, 1)

	require.NoError(t, s.Reserve(4))
	require.NoError(t, s.Consume(4))
	// Net zero reservation, net -4 stock.
	assert.Equal(t, 1, s.Reserved)
	assert.Equal(t, 6, s.Stock)
	assertLedgerInvariant(t, s)
}

func TestConsume_OverConsume(t *testing.T) {
	s := newTestSku(10, 2)

	require.ErrorIs(t, s.Consume(3), ErrOverConsume)
	assert.Equal(t, 2, s.Reserved)
	assert.Equal(t, 10, s.Stock)
}

func TestSetStock(t *testing.T) {
	s := newTestSku(10, 2)

	require.NoError(t, s.SetStock(5))
	assert.Equal(t, 5, s.Stock)
	assertLedgerInvariant(t, s)

	require.ErrorIs(t, s.SetStock(-1), ErrNegativeStock)
	require.ErrorIs(t, s.SetStock(1), ErrNegativeStock, "stock below reserved breaks the ledger")
}

func TestCanFulfill(t *testing.T) {
	s := newTestSku(5, 3)

	assert.True(t, s.CanFulfill(2))
	assert.False(t, s.CanFulfill(3))
}

func TestUntrackedSku_LedgerIsNoop(t *testing.T) {
	s := newTestSku(0, 0)
	s.TrackStock = false

	assert.True(t, s.CanFulfill(100))
	assert.True(t, s.InStock())

	require.NoError(t, s.Reserve(5))
	assert.Equal(t, 0, s.Reserved)

	require.NoError(t, s.Release(5))
	require.NoError(t, s.Consume(5))
	assert.Equal(t, 0, s.Stock)
}
