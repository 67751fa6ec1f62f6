// Package cart holds the per-customer shopping cart aggregate. The cart
// performs no stock validation itself; availability is checked by the
// Service before an add or increase, and authoritatively re-checked by the
// order placement workflow.
package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/money"
)

// Sentinel errors for cart operations.
var (
	ErrNotFound        = errors.New("cart not found")
	ErrItemNotFound    = errors.New("item not found in cart")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// Item is one cart line: a SKU reference with a quantity and a cached price
// snapshot. The unit price is refreshed from the catalog by the caller
// before totals are computed; it is not authoritative pricing.
type Item struct {
	SkuID     string      `json:"sku_id"`
	Quantity  int         `json:"quantity"`
	UnitPrice money.Money `json:"unit_price"`
}

// Cart is the mutable collection of items owned by exactly one active
// customer. At most one active cart exists per customer; the store enforces
// that, not the aggregate.
type Cart struct {
	ID         string
	CustomerID string
	Items      []Item
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// New creates an empty active cart for the customer.
func New(id, customerID string) *Cart {
	return &Cart{ID: id, CustomerID: customerID, Active: true}
}

// AddItem appends a line for the SKU, merging quantities when the SKU is
// already present.
func (c *Cart) AddItem(skuID string, quantity int, unitPrice money.Money) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	for i := range c.Items {
		if c.Items[i].SkuID == skuID {
			c.Items[i].Quantity += quantity
			c.Items[i].UnitPrice = unitPrice
			return nil
		}
	}
	c.Items = append(c.Items, Item{SkuID: skuID, Quantity: quantity, UnitPrice: unitPrice})
	return nil
}

// UpdateItemQuantity sets an absolute quantity on an existing line.
func (c *Cart) UpdateItemQuantity(skuID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	for i := range c.Items {
		if c.Items[i].SkuID == skuID {
			c.Items[i].Quantity = quantity
			return nil
		}
	}
	return ErrItemNotFound
}

// RemoveItem deletes the line for the SKU. Removing an absent SKU is a no-op.
func (c *Cart) RemoveItem(skuID string) {
	for i := range c.Items {
		if c.Items[i].SkuID == skuID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return
		}
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = nil
}

// IsEmpty reports whether the cart has no items.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Item returns the line for the SKU, or nil when absent.
func (c *Cart) Item(skuID string) *Item {
	for i := range c.Items {
		if c.Items[i].SkuID == skuID {
			return &c.Items[i]
		}
	}
	return nil
}

// Total sums quantity x unit price across all lines. The accumulator starts
// at zero in the cart's implicit currency: the first line's currency, or
// defaultCurrency for an empty cart.
func (c *Cart) Total(defaultCurrency string) (money.Money, error) {
	currency := defaultCurrency
	if len(c.Items) > 0 {
		currency = c.Items[0].UnitPrice.Currency()
	}

	total := money.Zero(currency)
	for _, item := range c.Items {
		line, err := item.UnitPrice.MulInt(item.Quantity)
		if err != nil {
			return money.Money{}, errors.Wrapf(err, "line total for sku %s", item.SkuID)
		}
		total, err = total.Add(line)
		if err != nil {
			return money.Money{}, errors.Wrapf(err, "accumulate sku %s", item.SkuID)
		}
	}
	return total, nil
}

// TotalItemCount sums the quantities across all lines.
func (c *Cart) TotalItemCount() int {
	var n int
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// Deactivate retires the cart. A deactivated cart is never reused; the next
// add creates a fresh one.
func (c *Cart) Deactivate() {
	c.Active = false
}

// Repository defines cart persistence. FindActiveByCustomer returns
// ErrNotFound when the customer has no active cart.
type Repository interface {
	FindActiveByCustomer(ctx context.Context, customerID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Deactivate(ctx context.Context, customerID string) error
}
