// Package money provides an immutable, currency-tagged monetary amount with
// fixed two-digit rounding. All arithmetic is currency-checked: operations on
// mismatched currencies fail instead of silently mixing them.
package money

import (
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for monetary operations.
var (
	ErrInvalidAmount    = errors.New("amount cannot be negative")
	ErrCurrencyMismatch = errors.New("cannot operate on different currencies")
	ErrNegativeResult   = errors.New("result cannot be negative")
)

// Money is a non-negative amount in a single currency. The zero value is
// 0.00 with an empty currency; use New or Zero to construct tagged values.
// Amounts are stored rounded to 2 fractional digits, half up.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// New creates a Money from a decimal amount and currency code. The amount is
// rounded to 2 digits (half up) before storage. Negative amounts are rejected
// with ErrInvalidAmount.
func New(amount decimal.Decimal, currency string) (Money, error) {
	if amount.IsNegative() {
		return Money{}, ErrInvalidAmount
	}
	return Money{amount: amount.Round(2), currency: currency}, nil
}

// Parse creates a Money from a decimal string such as "10.005".
func Parse(s, currency string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, errors.Wrap(err, "parse amount")
	}
	return New(d, currency)
}

// MustParse is Parse that panics on error. Intended for constants, seeds and
// tests.
func MustParse(s, currency string) Money {
	m, err := Parse(s, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns 0.00 in the given currency.
func Zero(currency string) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// Amount returns the rounded decimal amount.
func (m Money) Amount() decimal.Decimal { return m.amount }

// Currency returns the currency code.
func (m Money) Currency() string { return m.currency }

// Add returns m + other. Fails with ErrCurrencyMismatch when the currencies
// differ.
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Add(other.amount).Round(2), currency: m.currency}, nil
}

// Sub returns m - other. Fails with ErrCurrencyMismatch when the currencies
// differ and with ErrNegativeResult when the result would drop below zero.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	result := m.amount.Sub(other.amount)
	if result.IsNegative() {
		return Money{}, ErrNegativeResult
	}
	return Money{amount: result.Round(2), currency: m.currency}, nil
}

// Mul returns m scaled by the given factor, rounded to 2 digits.
func (m Money) Mul(factor decimal.Decimal) (Money, error) {
	result := m.amount.Mul(factor)
	if result.IsNegative() {
		return Money{}, ErrNegativeResult
	}
	return Money{amount: result.Round(2), currency: m.currency}, nil
}

// MulInt returns m multiplied by an integer quantity.
func (m Money) MulInt(quantity int) (Money, error) {
	return m.Mul(decimal.NewFromInt(int64(quantity)))
}

// GreaterThan reports whether m > other in the same currency.
func (m Money) GreaterThan(other Money) (bool, error) {
	if err := m.sameCurrency(other); err != nil {
		return false, err
	}
	return m.amount.GreaterThan(other.amount), nil
}

// LessThan reports whether m < other in the same currency.
func (m Money) LessThan(other Money) (bool, error) {
	if err := m.sameCurrency(other); err != nil {
		return false, err
	}
	return m.amount.LessThan(other.amount), nil
}

// IsZero reports whether the amount equals zero, regardless of currency.
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// Equal reports whether both amount and currency match.
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// String renders the amount with exactly two fractional digits and the
// currency code, e.g. "10.50 USD".
func (m Money) String() string {
	return m.amount.StringFixed(2) + " " + m.currency
}

type moneyJSON struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// MarshalJSON encodes the amount and currency as a flat object. Used when
// line items are serialized into JSONB columns.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.amount, Currency: m.currency})
}

// UnmarshalJSON decodes a Money and re-applies construction validation.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := New(raw.Amount, raw.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m Money) sameCurrency(other Money) error {
	if m.currency != other.currency {
		return errors.Wrapf(ErrCurrencyMismatch, "%s vs %s", m.currency, other.currency)
	}
	return nil
}
