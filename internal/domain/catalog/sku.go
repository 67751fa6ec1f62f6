// Package catalog holds the product catalog entities. The Sku entity owns
// the stock ledger: total and reserved quantities for one purchasable
// variant, with the invariant 0 <= reserved <= stock at all times.
package catalog

import (
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/money"
)

// Sentinel errors for ledger operations.
var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrNegativeStock   = errors.New("stock quantity cannot be negative")
	ErrOverRelease     = errors.New("cannot release more than reserved quantity")
	ErrOverConsume     = errors.New("cannot consume more than reserved quantity")
)

// InsufficientStockError indicates a reservation request exceeded the
// available (unreserved) stock of a SKU.
type InsufficientStockError struct {
	SkuCode   string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for SKU %s: requested %d, available %d",
		e.SkuCode, e.Requested, e.Available)
}

// Product groups SKUs under one catalog entry.
type Product struct {
	ID          string
	Name        string
	Description string
	Category    string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Sku is a purchasable product variant and the unit of stock tracking.
// ProductName is denormalized by the store so order snapshots do not need a
// back-reference into Product.
//
// Version is the optimistic concurrency token for the stock fields: every
// ledger write must be conditional on the version read alongside the state.
type Sku struct {
	ID          string
	Code        string
	Name        string
	Description string
	ProductID   string
	ProductName string
	Price       money.Money
	Stock       int
	Reserved    int
	TrackStock  bool
	Active      bool
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Available returns the unreserved stock.
func (s *Sku) Available() int {
	return s.Stock - s.Reserved
}

// InStock reports whether at least one unit can be sold.
func (s *Sku) InStock() bool {
	return !s.TrackStock || s.Available() > 0
}

// CanFulfill reports whether quantity units can be reserved right now.
// Untracked SKUs always fulfill.
func (s *Sku) CanFulfill(quantity int) bool {
	return !s.TrackStock || s.Available() >= quantity
}

// Reserve places a hold on quantity units. For untracked SKUs this is a
// successful no-op: untracked stock is not ledgered.
func (s *Sku) Reserve(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !s.TrackStock {
		return nil
	}
	if s.Available() < quantity {
		return &InsufficientStockError{
			SkuCode:   s.Code,
			Requested: quantity,
			Available: s.Available(),
		}
	}
	s.Reserved += quantity
	return nil
}

// Release returns quantity previously reserved units to the available pool,
// e.g. when an order is cancelled.
func (s *Sku) Release(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !s.TrackStock {
		return nil
	}
	if s.Reserved < quantity {
		return errors.Wrapf(ErrOverRelease, "sku %s: release %d, reserved %d", s.Code, quantity, s.Reserved)
	}
	s.Reserved -= quantity
	return nil
}

// Consume spends a reservation on fulfillment: both reserved and total stock
// decrease, so availability is unchanged.
func (s *Sku) Consume(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !s.TrackStock {
		return nil
	}
	if s.Reserved < quantity {
		return errors.Wrapf(ErrOverConsume, "sku %s: consume %d, reserved %d", s.Code, quantity, s.Reserved)
	}
	s.Reserved -= quantity
	s.Stock -= quantity
	return nil
}

// SetStock restocks to an absolute quantity. The new total must cover the
// outstanding reservations, otherwise the ledger invariant would break.
func (s *Sku) SetStock(quantity int) error {
	if quantity < 0 {
		return ErrNegativeStock
	}
	if quantity < s.Reserved {
		return errors.Wrapf(ErrNegativeStock, "sku %s: stock %d below reserved %d", s.Code, quantity, s.Reserved)
	}
	s.Stock = quantity
	return nil
}
