package order

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/money"
)

// TaxPolicy computes the tax charged on an order subtotal.
type TaxPolicy func(subtotal money.Money) (money.Money, error)

// ShippingPolicy computes the shipping charged on an order subtotal.
type ShippingPolicy func(subtotal money.Money) (money.Money, error)

// FlatRateTax taxes the subtotal at a fixed rate, e.g. 0.10 for 10%.
func FlatRateTax(rate decimal.Decimal) TaxPolicy {
	return func(subtotal money.Money) (money.Money, error) {
		return subtotal.Mul(rate)
	}
}

// ThresholdShipping charges a flat fee unless the subtotal strictly exceeds
// the free-shipping threshold. A subtotal equal to the threshold still pays
// the fee. Both amounts are taken in the subtotal's currency.
func ThresholdShipping(fee, freeOver decimal.Decimal) ShippingPolicy {
	return func(subtotal money.Money) (money.Money, error) {
		threshold, err := money.New(freeOver, subtotal.Currency())
		if err != nil {
			return money.Money{}, err
		}
		over, err := subtotal.GreaterThan(threshold)
		if err != nil {
			return money.Money{}, err
		}
		if over {
			return money.Zero(subtotal.Currency()), nil
		}
		return money.New(fee, subtotal.Currency())
	}
}

// Default placeholder policies: flat 10% tax, $10 shipping free over $50.
// Real tax and rate tables plug in through the Service options.
func DefaultTaxPolicy() TaxPolicy {
	return FlatRateTax(decimal.RequireFromString("0.10"))
}

func DefaultShippingPolicy() ShippingPolicy {
	return ThresholdShipping(decimal.NewFromInt(10), decimal.NewFromInt(50))
}
