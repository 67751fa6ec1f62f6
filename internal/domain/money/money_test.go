package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RoundsHalfUp(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"10.005", "10.01"},
		{"10.004", "10.00"},
		{"10.995", "11.00"},
		{"0.125", "0.13"},
		{"25", "25.00"},
	}
	for _, tt := range tests {
		m, err := Parse(tt.in, "USD")
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, m.Amount().StringFixed(2), "input %s", tt.in)
	}
}

func TestNew_NegativeAmount(t *testing.T) {
	_, err := New(decimal.NewFromInt(-1), "USD")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestAdd(t *testing.T) {
	a := MustParse("10.50", "USD")
	b := MustParse("2.25", "USD")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.True(t, sum.Equal(MustParse("12.75", "USD")))
}

func TestAdd_CurrencyMismatch(t *testing.T) {
	a := MustParse("10.00", "USD")
	b := MustParse("10.00", "EUR")

	_, err := a.Add(b)
	require.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = a.Sub(b)
	require.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = a.GreaterThan(b)
	require.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = a.LessThan(b)
	require.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestSub_NegativeResult(t *testing.T) {
	a := MustParse("5.00", "USD")
	b := MustParse("10.00", "USD")

	_, err := a.Sub(b)
	require.ErrorIs(t, err, ErrNegativeResult)
}

func TestSub(t *testing.T) {
	a := MustParse("10.00", "USD")
	b := MustParse("2.50", "USD")

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.True(t, diff.Equal(MustParse("7.50", "USD")))
}

func TestMulInt(t *testing.T) {
	price := MustParse("19.99", "USD")

	total, err := price.MulInt(3)
	require.NoError(t, err)
	assert.True(t, total.Equal(MustParse("59.97", "USD")))
}

func TestMul_RoundsResult(t *testing.T) {
	price := MustParse("10.00", "USD")

	tax, err := price.Mul(decimal.RequireFromString("0.125"))
	require.NoError(t, err)
	assert.Equal(t, "1.25", tax.Amount().StringFixed(2))
}

func TestComparisons(t *testing.T) {
	small := MustParse("1.00", "USD")
	big := MustParse("2.00", "USD")

	gt, err := big.GreaterThan(small)
	require.NoError(t, err)
	assert.True(t, gt)

	lt, err := small.LessThan(big)
	require.NoError(t, err)
	assert.True(t, lt)

	gt, err = small.GreaterThan(big)
	require.NoError(t, err)
	assert.False(t, gt)
}

func TestIsZero(t *testing.T) {
	assert.True(t, Zero("USD").IsZero())
	assert.False(t, MustParse("0.01", "USD").IsZero())
}

func TestJSONRoundTrip(t *testing.T) {
	m := MustParse("12.34", "EUR")

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var got Money
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, m.Equal(got))
	assert.Equal(t, "EUR", got.Currency())
}

func TestUnmarshalJSON_RejectsNegative(t *testing.T) {
	var m Money
	err := json.Unmarshal([]byte(`{"amount":"-5","currency":"USD"}`), &m)
	require.ErrorIs(t, err, ErrInvalidAmount)
}
